package workflow

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"

	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/cloudflare"
	"github.com/lewtec/imgflare/internal/domain"
)

// DefaultListLimit caps list and search results when no limit is given
const DefaultListLimit = 10

// OpenStatuses are the states reported by status when no id is given
var OpenStatuses = []domain.Status{
	domain.StatusPending,
	domain.StatusUploading,
	domain.StatusProcessing,
	domain.StatusFailed,
}

// Catalog answers read queries over the local records, with a few remote lookups
type Catalog struct {
	images domain.ImageRepository
	creds  CredentialSource
	remote RemoteFactory
	log    *zap.Logger
}

// NewCatalog creates a Catalog
func NewCatalog(images domain.ImageRepository, creds CredentialSource, remote RemoteFactory, log *zap.Logger) *Catalog {
	return &Catalog{images: images, creds: creds, remote: remote, log: log}
}

// Get returns a record or nil when it does not exist
func (c *Catalog) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	rec, err := c.images.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("while looking up image %s: %w", id, err)
	}
	return rec, nil
}

// List applies filter, defaulting to the newest DefaultListLimit records
func (c *Catalog) List(ctx context.Context, filter domain.ImageFilter) ([]*domain.ImageRecord, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "uploaded_at"
	}
	if filter.Order == "" {
		filter.Order = domain.OrderDesc
	}
	records, err := c.images.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("while listing images: %w", err)
	}
	return records, nil
}

// All returns every record, optionally restricted to one status, oldest first
func (c *Catalog) All(ctx context.Context, status domain.Status) ([]*domain.ImageRecord, error) {
	records, err := c.images.List(ctx, domain.ImageFilter{Status: status, OrderBy: "uploaded_at", Order: domain.OrderAsc})
	if err != nil {
		return nil, fmt.Errorf("while listing images: %w", err)
	}
	return records, nil
}

// Open returns records that are not complete or deleted, newest first
func (c *Catalog) Open(ctx context.Context) ([]*domain.ImageRecord, error) {
	var out []*domain.ImageRecord
	for _, st := range OpenStatuses {
		records, err := c.images.List(ctx, domain.ImageFilter{Status: st})
		if err != nil {
			return nil, fmt.Errorf("while listing %s images: %w", st, err)
		}
		out = append(out, records...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// Search finds records containing query, DefaultListLimit results when limit is 0
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]*domain.ImageRecord, error) {
	if limit == 0 {
		limit = DefaultListLimit
	}
	records, err := c.images.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("while searching images: %w", err)
	}
	return records, nil
}

// Stats summarizes the catalog
func (c *Catalog) Stats(ctx context.Context) (*domain.ImageStats, error) {
	stats, err := c.images.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("while computing statistics: %w", err)
	}
	return stats, nil
}

// Remote lists one page of images from the remote account
func (c *Catalog) Remote(ctx context.Context, page, perPage int) ([]cloudflare.Image, error) {
	remote, _, err := connect(ctx, c.creds, c.remote)
	if err != nil {
		return nil, err
	}
	images, err := remote.ListImages(ctx, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote images: %w", err)
	}
	return images, nil
}

// VariantsState tells apart the outcomes of a variants lookup
type VariantsState int

const (
	VariantsNotFound VariantsState = iota
	VariantsNone
	VariantsFound
)

// Variant is one delivery URL of an image
type Variant struct {
	Name string
	URL  string
}

// VariantsResult is the outcome of a variants lookup. When no variants
// were recorded Default holds the public delivery URL.
type VariantsResult struct {
	State    VariantsState
	Record   *domain.ImageRecord
	Variants []Variant
	Default  string
}

// VariantName is the last path segment of a variant URL
func VariantName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return path.Base(raw)
	}
	return path.Base(u.Path)
}

func toVariants(urls []string) []Variant {
	out := make([]Variant, 0, len(urls))
	for _, u := range urls {
		out = append(out, Variant{Name: VariantName(u), URL: u})
	}
	return out
}

// Variants reads the stored variants of id. A malformed blob yields
// domain.ErrMalformedVariants.
func (c *Catalog) Variants(ctx context.Context, id string) (*VariantsResult, error) {
	rec, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &VariantsResult{State: VariantsNotFound}, nil
	}
	urls, err := domain.ParseVariants(rec.Variants)
	if err != nil {
		return nil, fmt.Errorf("while reading variants of %s: %w", id, err)
	}
	if len(urls) == 0 {
		res := &VariantsResult{State: VariantsNone, Record: rec, Default: rec.CloudflareURL}
		if res.Default == "" {
			creds, err := c.creds.Credentials(ctx)
			if err != nil {
				return nil, fmt.Errorf("while reading configuration: %w", err)
			}
			res.Default = cloudflare.DeliveryURL(cloudflare.Credentials(creds), id, cloudflare.DefaultVariant)
		}
		return res, nil
	}
	return &VariantsResult{State: VariantsFound, Record: rec, Variants: toVariants(urls)}, nil
}

// RefreshVariants fetches the remote image and stores its current variants
func (c *Catalog) RefreshVariants(ctx context.Context, id string) (*VariantsResult, error) {
	remote, _, err := connect(ctx, c.creds, c.remote)
	if err != nil {
		return nil, err
	}
	rec, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &VariantsResult{State: VariantsNotFound}, nil
	}

	img, err := remote.GetImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image %s: %w", id, err)
	}
	blob := domain.EncodeVariants(img.Variants)
	if _, err := c.images.Update(ctx, id, domain.ImageUpdate{Variants: &blob}); err != nil {
		return nil, fmt.Errorf("while storing variants of %s: %w", id, err)
	}
	rec.Variants = blob
	c.log.Debug("variants refreshed", zap.String("id", id), zap.Int("count", len(img.Variants)))

	if len(img.Variants) == 0 {
		return &VariantsResult{State: VariantsNone, Record: rec, Default: remote.DeliveryURL(id, cloudflare.DefaultVariant)}, nil
	}
	return &VariantsResult{State: VariantsFound, Record: rec, Variants: toVariants(img.Variants)}, nil
}
