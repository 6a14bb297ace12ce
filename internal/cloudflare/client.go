package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the Cloudflare v4 API root
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
	// DefaultDeliveryHost serves images when no delivery prefix is configured
	DefaultDeliveryHost = "https://imagedelivery.net"
	// DefaultVariant is the variant every account has
	DefaultVariant = "public"
)

// ErrNotConfigured is returned when the token or the account id is missing
var ErrNotConfigured = errors.New(`Cloudflare configuration not found, run "imgflare setup" first`)

// Credentials identify the account the client talks to
type Credentials struct {
	APIToken    string
	AccountID   string
	DeliveryURL string
}

// Client calls the Cloudflare Images API. It holds no state besides credentials.
type Client struct {
	creds   Credentials
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client. Token and account id are required.
func New(creds Credentials, opts ...Option) (*Client, error) {
	if creds.APIToken == "" || creds.AccountID == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		creds:   creds,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 2 * time.Minute},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DeliveryURL returns the public URL of an image variant. It does no I/O.
func (c *Client) DeliveryURL(imageID, variant string) string {
	return DeliveryURL(c.creds, imageID, variant)
}

// DeliveryURL builds the delivery URL from credentials. A configured prefix
// has one trailing slash removed; without a prefix the imagedelivery.net form
// keyed by account id is used.
func DeliveryURL(creds Credentials, imageID, variant string) string {
	if variant == "" {
		variant = DefaultVariant
	}
	if creds.DeliveryURL == "" {
		return fmt.Sprintf("%s/%s/%s/%s", DefaultDeliveryHost, creds.AccountID, imageID, variant)
	}
	base := strings.TrimSuffix(creds.DeliveryURL, "/")
	return fmt.Sprintf("%s/%s/%s", base, imageID, variant)
}

func (c *Client) imagesPath() string {
	return fmt.Sprintf("%s/accounts/%s/images/v1", c.baseURL, url.PathEscape(c.creds.AccountID))
}

// UploadByURL asks the service to fetch src itself
func (c *Client) UploadByURL(ctx context.Context, src string) (*Image, error) {
	const op = "upload"
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		err := form.WriteField("url", src)
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()
	defer pr.Close()

	var img Image
	if err := c.do(ctx, op, http.MethodPost, c.imagesPath(), pr, form.FormDataContentType(), &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// UploadFile streams a local file to the service as multipart form data.
// The file and the request body pipe are closed whether or not the upload succeeds.
func (c *Client) UploadFile(ctx context.Context, path string) (*Image, error) {
	const op = "upload"
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()
	// unblocks the writer goroutine if the request ends before the body is drained
	defer pr.Close()

	var img Image
	if err := c.do(ctx, op, http.MethodPost, c.imagesPath(), pr, form.FormDataContentType(), &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// GetImage fetches the details of one image
func (c *Client) GetImage(ctx context.Context, id string) (*Image, error) {
	var img Image
	if err := c.do(ctx, "get image", http.MethodGet, c.imagesPath()+"/"+url.PathEscape(id), nil, "", &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// ListImages fetches one page of the account's images. Zero values use the service defaults.
func (c *Client) ListImages(ctx context.Context, page, perPage int) ([]Image, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	endpoint := c.imagesPath()
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var list imageList
	if err := c.do(ctx, "list images", http.MethodGet, endpoint, nil, "", &list); err != nil {
		return nil, err
	}
	return list.Images, nil
}

// DeleteImage removes an image from the service
func (c *Client) DeleteImage(ctx context.Context, id string) error {
	return c.do(ctx, "delete image", http.MethodDelete, c.imagesPath()+"/"+url.PathEscape(id), nil, "", nil)
}

// do performs an authenticated request and decodes the envelope's result into out
func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.APIToken)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.log.Debug("cloudflare request",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)),
	)
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: firstErrorMessage(data, fmt.Sprintf("status %d", resp.StatusCode))}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("while decoding response: %w", err)}
	}
	if !env.Success {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: firstErrorMessage(data, "unknown error")}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("while decoding result: %w", err)}
	}
	return nil
}

// firstErrorMessage picks errors[0].message out of a response body
func firstErrorMessage(body []byte, fallback string) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
	}
	return fallback
}
