package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/cloudflare"
	"github.com/lewtec/imgflare/internal/config"
)

// ErrNotConfigured is returned before any remote work when credentials are missing
var ErrNotConfigured = cloudflare.ErrNotConfigured

// ErrNotPersisted means the remote upload succeeded but no local record was written.
// The remote image is orphaned.
var ErrNotPersisted = errors.New("image uploaded but not recorded locally")

// Remote is the subset of the image service the workflows need
type Remote interface {
	UploadByURL(ctx context.Context, src string) (*cloudflare.Image, error)
	UploadFile(ctx context.Context, path string) (*cloudflare.Image, error)
	GetImage(ctx context.Context, id string) (*cloudflare.Image, error)
	ListImages(ctx context.Context, page, perPage int) ([]cloudflare.Image, error)
	DeleteImage(ctx context.Context, id string) error
	DeliveryURL(imageID, variant string) string
}

var _ Remote = (*cloudflare.Client)(nil)

// RemoteFactory builds a Remote for resolved credentials
type RemoteFactory func(creds config.Credentials) (Remote, error)

// NewRemote returns a factory producing Cloudflare clients
func NewRemote(log *zap.Logger, opts ...cloudflare.Option) RemoteFactory {
	return func(creds config.Credentials) (Remote, error) {
		all := append([]cloudflare.Option{cloudflare.WithLogger(log)}, opts...)
		client, err := cloudflare.New(cloudflare.Credentials(creds), all...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// CredentialSource resolves the credentials of the current invocation
type CredentialSource interface {
	Credentials(ctx context.Context) (config.Credentials, error)
}

var _ CredentialSource = (*config.Settings)(nil)

// connect resolves credentials and builds a remote. Missing credentials
// yield ErrNotConfigured without calling the factory.
func connect(ctx context.Context, creds CredentialSource, factory RemoteFactory) (Remote, config.Credentials, error) {
	c, err := creds.Credentials(ctx)
	if err != nil {
		return nil, c, fmt.Errorf("while reading configuration: %w", err)
	}
	if !c.Complete() {
		return nil, c, ErrNotConfigured
	}
	remote, err := factory(c)
	if err != nil {
		return nil, c, err
	}
	return remote, c, nil
}

// ValidationError rejects an input before any remote or store work
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}
