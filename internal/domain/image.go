package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an image record
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

// Statuses lists every known status in lifecycle order
var Statuses = []Status{
	StatusPending,
	StatusUploading,
	StatusProcessing,
	StatusComplete,
	StatusFailed,
	StatusDeleted,
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts user input into a Status
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// LocalURLPrefix marks original URLs that point at a local file
const LocalURLPrefix = "local://"

// ImageRecord is one image the tool uploaded, as kept in the local catalog.
// Size, Width, Height and ContentType are advisory and may be absent.
type ImageRecord struct {
	ID            string
	OriginalURL   string
	CloudflareURL string
	Status        Status
	Size          *int64
	Width         *int
	Height        *int
	ContentType   string
	Variants      string
	UploadedAt    time.Time
	Error         string
}

// IsLocal reports whether the record was uploaded from a local file
func (r *ImageRecord) IsLocal() bool {
	return strings.HasPrefix(r.OriginalURL, LocalURLPrefix)
}

// ImageUpdate holds the mutable fields of a record. Nil fields are left untouched.
// ID and OriginalURL are immutable and have no field here.
type ImageUpdate struct {
	CloudflareURL *string
	Status        *Status
	Size          *int64
	Width         *int
	Height        *int
	ContentType   *string
	Variants      *string
	Error         *string
}

// Empty reports whether the update would change nothing
func (u ImageUpdate) Empty() bool {
	return u.CloudflareURL == nil && u.Status == nil && u.Size == nil &&
		u.Width == nil && u.Height == nil && u.ContentType == nil &&
		u.Variants == nil && u.Error == nil
}

// SortOrder is the direction of a listing
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ImageFilter selects records for listing
type ImageFilter struct {
	Status  Status
	Limit   int
	OrderBy string
	Order   SortOrder
}

// ImageStats summarizes the local catalog
type ImageStats struct {
	Total     int64
	ByStatus  map[Status]int64
	TotalSize int64
	// SizedImages is the number of records with a known size
	SizedImages int64
}

// ErrMalformedVariants is returned when a stored variants blob cannot be parsed
var ErrMalformedVariants = errors.New("malformed variants data")

// ParseVariants decodes a stored variants blob.
// An empty blob means no variants were recorded and yields a nil slice.
func ParseVariants(blob string) ([]string, error) {
	if blob == "" {
		return nil, nil
	}
	var variants []string
	if err := json.Unmarshal([]byte(blob), &variants); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVariants, err)
	}
	return variants, nil
}

// EncodeVariants serializes a list of variant URLs for storage
func EncodeVariants(variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	data, err := json.Marshal(variants)
	if err != nil {
		return ""
	}
	return string(data)
}

// ImageRepository defines the storage operations for image records
type ImageRepository interface {
	// Insert stores a new record and returns the number of rows written.
	// A duplicate id writes nothing and is not an error.
	Insert(ctx context.Context, rec *ImageRecord) (int64, error)

	// Update applies the non-nil fields of upd to the record with the given id
	Update(ctx context.Context, id string, upd ImageUpdate) (int64, error)

	// Get retrieves a record, nil if absent
	Get(ctx context.Context, id string) (*ImageRecord, error)

	// List retrieves records matching the filter
	List(ctx context.Context, filter ImageFilter) ([]*ImageRecord, error)

	// Search finds records whose id, urls or content type contain query
	Search(ctx context.Context, query string, limit int) ([]*ImageRecord, error)

	// Delete removes a record row
	Delete(ctx context.Context, id string) (int64, error)

	// Count returns the total number of records
	Count(ctx context.Context) (int64, error)

	// Stats summarizes the catalog
	Stats(ctx context.Context) (*ImageStats, error)
}
