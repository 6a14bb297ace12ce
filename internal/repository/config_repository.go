package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lewtec/imgflare/internal/domain"
)

// ConfigRepository implements domain.ConfigRepository on sqlite
type ConfigRepository struct {
	db DBTX
}

// NewConfigRepository creates a new ConfigRepository
func NewConfigRepository(db DBTX) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the stored value for key. A missing key is not an error.
func (r *ConfigRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("while reading config '%s': %w", key, err)
	}
	return value.String, value.Valid, nil
}

// Set creates or replaces the entry for key
func (r *ConfigRepository) Set(ctx context.Context, key, value, description string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO config (key, value, description) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, description = excluded.description`,
		key, value, description)
	if err != nil {
		return fmt.Errorf("while writing config '%s': %w", key, err)
	}
	return nil
}

// All returns every stored entry ordered by key
func (r *ConfigRepository) All(ctx context.Context) ([]*domain.ConfigEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value, description FROM config ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("while listing config: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ConfigEntry
	for rows.Next() {
		var entry domain.ConfigEntry
		var value, description sql.NullString
		if err := rows.Scan(&entry.Key, &value, &description); err != nil {
			return nil, fmt.Errorf("while listing config: %w", err)
		}
		entry.Value = value.String
		entry.Description = description.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Verify that ConfigRepository implements domain.ConfigRepository
var _ domain.ConfigRepository = (*ConfigRepository)(nil)
