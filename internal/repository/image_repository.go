package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lewtec/imgflare/internal/domain"
)

// TimeLayout is how uploaded_at is stored: fixed width UTC, so text order is time order
const TimeLayout = "2006-01-02 15:04:05.000000000"

const imageColumns = `id, original_url, cloudflare_url, status, size, width, height, content_type, variants, uploaded_at, error`

// sortColumns maps accepted OrderBy values to columns
var sortColumns = map[string]string{
	"":            "uploaded_at",
	"uploaded_at": "uploaded_at",
	"id":          "id",
	"size":        "size",
	"status":      "status",
}

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ImageRepository implements domain.ImageRepository on sqlite
type ImageRepository struct {
	db  DBTX
	now func() time.Time
}

// NewImageRepository creates a new ImageRepository
func NewImageRepository(db DBTX) *ImageRepository {
	return &ImageRepository{db: db, now: time.Now}
}

// NewImageRepositoryWithClock creates an ImageRepository that stamps inserts with now
func NewImageRepositoryWithClock(db DBTX, now func() time.Time) *ImageRepository {
	return &ImageRepository{db: db, now: now}
}

// Insert stores a new record. The upload time comes from the repository clock.
// A duplicate id is ignored and reported as zero rows written.
func (r *ImageRepository) Insert(ctx context.Context, rec *domain.ImageRecord) (int64, error) {
	if rec.ID == "" {
		return 0, fmt.Errorf("while inserting image: empty id")
	}
	status := rec.Status
	if status == "" {
		status = domain.StatusPending
	}
	uploadedAt := r.now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO images (`+imageColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`,
		rec.ID,
		rec.OriginalURL,
		nullString(rec.CloudflareURL),
		string(status),
		nullInt64(rec.Size),
		nullInt(rec.Width),
		nullInt(rec.Height),
		nullString(rec.ContentType),
		nullString(rec.Variants),
		uploadedAt.Format(TimeLayout),
		nullString(rec.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("while inserting image '%s': %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("while inserting image '%s': %w", rec.ID, err)
	}
	if n > 0 {
		rec.Status = status
		rec.UploadedAt = uploadedAt
	}
	return n, nil
}

// Update applies the set fields of upd. An empty update touches nothing.
// A missing id is not an error, it just affects zero rows.
func (r *ImageRepository) Update(ctx context.Context, id string, upd domain.ImageUpdate) (int64, error) {
	if upd.Empty() {
		return 0, nil
	}
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.CloudflareURL != nil {
		add("cloudflare_url", nullString(*upd.CloudflareURL))
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.Size != nil {
		add("size", *upd.Size)
	}
	if upd.Width != nil {
		add("width", *upd.Width)
	}
	if upd.Height != nil {
		add("height", *upd.Height)
	}
	if upd.ContentType != nil {
		add("content_type", nullString(*upd.ContentType))
	}
	if upd.Variants != nil {
		add("variants", nullString(*upd.Variants))
	}
	if upd.Error != nil {
		add("error", nullString(*upd.Error))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE images SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return 0, fmt.Errorf("while updating image '%s': %w", id, err)
	}
	return res.RowsAffected()
}

// Get retrieves a record by id
func (r *ImageRepository) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id)
	rec, err := scanImage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("while reading image '%s': %w", id, err)
	}
	return rec, nil
}

// List retrieves records matching the filter.
// Without an OrderBy the newest uploads come first.
func (r *ImageRepository) List(ctx context.Context, filter domain.ImageFilter) ([]*domain.ImageRecord, error) {
	column, ok := sortColumns[filter.OrderBy]
	if !ok {
		return nil, fmt.Errorf("cannot order by %q", filter.OrderBy)
	}
	direction := "ASC"
	if filter.Order == domain.OrderDesc || (filter.OrderBy == "" && filter.Order == "") {
		direction = "DESC"
	}

	query := "SELECT " + imageColumns + " FROM images"
	var args []interface{}
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += fmt.Sprintf(" ORDER BY %s %s, rowid %s", column, direction, direction)
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return r.query(ctx, query, args...)
}

// Search finds records whose id, urls or content type contain query, newest first
func (r *ImageRepository) Search(ctx context.Context, query string, limit int) ([]*domain.ImageRecord, error) {
	pattern := "%" + escapeLike(query) + "%"
	stmt := "SELECT " + imageColumns + ` FROM images
WHERE id LIKE ? ESCAPE '\'
   OR original_url LIKE ? ESCAPE '\'
   OR cloudflare_url LIKE ? ESCAPE '\'
   OR content_type LIKE ? ESCAPE '\'
ORDER BY uploaded_at DESC, rowid DESC`
	args := []interface{}{pattern, pattern, pattern, pattern}
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, stmt, args...)
}

// Delete removes the record row
func (r *ImageRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("while deleting image '%s': %w", id, err)
	}
	return res.RowsAffected()
}

// Count returns the total number of records
func (r *ImageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		return 0, fmt.Errorf("while counting images: %w", err)
	}
	return count, nil
}

// Stats summarizes the catalog per status
func (r *ImageRepository) Stats(ctx context.Context) (*domain.ImageStats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT status, COUNT(*), COALESCE(SUM(size), 0), COUNT(size)
FROM images
GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("while computing stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.ImageStats{ByStatus: map[domain.Status]int64{}}
	for rows.Next() {
		var status string
		var count, size, sized int64
		if err := rows.Scan(&status, &count, &size, &sized); err != nil {
			return nil, fmt.Errorf("while computing stats: %w", err)
		}
		stats.ByStatus[domain.Status(status)] = count
		stats.Total += count
		stats.TotalSize += size
		stats.SizedImages += sized
	}
	return stats, rows.Err()
}

func (r *ImageRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.ImageRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("while listing images: %w", err)
	}
	defer rows.Close()

	var result []*domain.ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("while listing images: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanImage converts a row in imageColumns order to a domain.ImageRecord
func scanImage(row scanner) (*domain.ImageRecord, error) {
	var (
		rec                                  domain.ImageRecord
		status, uploadedAt                   string
		cloudflareURL, contentType, variants sql.NullString
		errMsg                               sql.NullString
		size, width, height                  sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.OriginalURL, &cloudflareURL, &status, &size, &width, &height,
		&contentType, &variants, &uploadedAt, &errMsg)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	rec.CloudflareURL = cloudflareURL.String
	rec.ContentType = contentType.String
	rec.Variants = variants.String
	rec.Error = errMsg.String
	if size.Valid {
		v := size.Int64
		rec.Size = &v
	}
	if width.Valid {
		v := int(width.Int64)
		rec.Width = &v
	}
	if height.Valid {
		v := int(height.Int64)
		rec.Height = &v
	}
	rec.UploadedAt, err = time.Parse(TimeLayout, uploadedAt)
	if err != nil {
		// rows written by other tools may use sqlite's datetime('now') format
		rec.UploadedAt, _ = time.Parse(time.DateTime, uploadedAt)
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Verify that ImageRepository implements domain.ImageRepository
var _ domain.ImageRepository = (*ImageRepository)(nil)
