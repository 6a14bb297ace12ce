package workflow

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/cloudflare"
	"github.com/lewtec/imgflare/internal/config"
	"github.com/lewtec/imgflare/internal/domain"
	"github.com/lewtec/imgflare/internal/imaging"
)

// UploadOptions tune a single upload
type UploadOptions struct {
	// Force skips the image extension check
	Force bool
	// SkipInspect disables the metadata fetch for URL sources
	SkipInspect bool
}

// Uploader sends images to the remote service and records them locally
type Uploader struct {
	images  domain.ImageRepository
	creds   CredentialSource
	remote  RemoteFactory
	log     *zap.Logger
	inspect *http.Client
}

// NewUploader creates an Uploader
func NewUploader(images domain.ImageRepository, creds CredentialSource, remote RemoteFactory, log *zap.Logger) *Uploader {
	return &Uploader{
		images:  images,
		creds:   creds,
		remote:  remote,
		log:     log,
		inspect: imaging.NewRemoteClient(),
	}
}

// WithInspectClient sets the HTTP client used to inspect URL sources. It
// should carry a timeout, inspection runs before the record is stored.
func (u *Uploader) WithInspectClient(hc *http.Client) *Uploader {
	u.inspect = hc
	return u
}

// ValidateURL checks a URL source without touching the network
func ValidateURL(src string, force bool) error {
	if !config.IsValidURL(src) {
		return &ValidationError{Input: src, Reason: "not a valid http or https URL"}
	}
	if !force && !config.HasImageExtension(src) {
		return &ValidationError{Input: src, Reason: "URL does not end in an image extension, use --force to upload anyway"}
	}
	return nil
}

// ValidateFile checks a local source and returns its absolute path
func ValidateFile(path string, force bool) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &ValidationError{Input: path, Reason: "file does not exist or is not readable"}
	}
	if !info.Mode().IsRegular() {
		return "", &ValidationError{Input: path, Reason: "not a regular file"}
	}
	if !force && !config.IsImageFilePath(path) {
		return "", &ValidationError{Input: path, Reason: "file does not have an image extension, use --force to upload anyway"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("while resolving %s: %w", path, err)
	}
	return abs, nil
}

// UploadURL uploads the image at src and records it. The store is written
// exactly once and only after the remote upload succeeded.
func (u *Uploader) UploadURL(ctx context.Context, src string, opts UploadOptions) (*domain.ImageRecord, error) {
	if err := ValidateURL(src, opts.Force); err != nil {
		return nil, err
	}
	remote, _, err := connect(ctx, u.creds, u.remote)
	if err != nil {
		return nil, err
	}

	u.log.Debug("uploading image from url", zap.String("url", src))
	img, err := remote.UploadByURL(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", src, err)
	}

	var md imaging.Metadata
	if !opts.SkipInspect {
		md = imaging.InspectRemote(ctx, u.log, u.inspect, src)
	}
	return u.record(ctx, remote, img, src, md)
}

// UploadLocal uploads a file from disk and records it under local://<absolute path>
func (u *Uploader) UploadLocal(ctx context.Context, path string, opts UploadOptions) (*domain.ImageRecord, error) {
	abs, err := ValidateFile(path, opts.Force)
	if err != nil {
		return nil, err
	}
	remote, _, err := connect(ctx, u.creds, u.remote)
	if err != nil {
		return nil, err
	}

	u.log.Debug("uploading local image", zap.String("path", abs))
	img, err := remote.UploadFile(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", abs, err)
	}

	md := imaging.Inspect(u.log, abs)
	return u.record(ctx, remote, img, domain.LocalURLPrefix+abs, md)
}

func (u *Uploader) record(ctx context.Context, remote Remote, img *cloudflare.Image, original string, md imaging.Metadata) (*domain.ImageRecord, error) {
	rec := &domain.ImageRecord{
		ID:            img.ID,
		OriginalURL:   original,
		CloudflareURL: remote.DeliveryURL(img.ID, cloudflare.DefaultVariant),
		Status:        domain.StatusComplete,
		Size:          md.Size,
		Width:         md.Width,
		Height:        md.Height,
		ContentType:   md.ContentType,
		Variants:      domain.EncodeVariants(img.Variants),
	}
	if rec.Width == nil {
		if w, ok := img.MetaInt("width"); ok {
			rec.Width = &w
		}
	}
	if rec.Height == nil {
		if h, ok := img.MetaInt("height"); ok {
			rec.Height = &h
		}
	}

	n, err := u.images.Insert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w (remote image %s): %w", ErrNotPersisted, img.ID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w (remote image %s): a record with this id already exists", ErrNotPersisted, img.ID)
	}
	u.log.Info("image uploaded", zap.String("id", rec.ID), zap.String("original_url", original))
	return rec, nil
}
