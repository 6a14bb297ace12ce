package domain

import "context"

// ConfigEntry is one persisted configuration value
type ConfigEntry struct {
	Key         string
	Value       string
	Description string
}

// ConfigRepository defines the storage operations for configuration values
type ConfigRepository interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or fully replaces the entry for key
	Set(ctx context.Context, key, value, description string) error

	// All returns every stored entry ordered by key
	All(ctx context.Context) ([]*ConfigEntry, error)
}
