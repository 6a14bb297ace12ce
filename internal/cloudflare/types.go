package cloudflare

import (
	"encoding/json"
	"fmt"
	"time"
)

// Image is an image resource as returned by the API
type Image struct {
	ID                string                 `json:"id"`
	Filename          string                 `json:"filename,omitempty"`
	Meta              map[string]interface{} `json:"meta,omitempty"`
	RequireSignedURLs bool                   `json:"requireSignedURLs"`
	Uploaded          time.Time              `json:"uploaded"`
	Variants          []string               `json:"variants"`
}

// MetaInt reads an integer from the image meta map, if present
func (img *Image) MetaInt(key string) (int, bool) {
	switch v := img.Meta[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// MetaString reads a string from the image meta map, if present
func (img *Image) MetaString(key string) string {
	s, _ := img.Meta[key].(string)
	return s
}

// Message is an entry of the errors or messages arrays
type Message struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success  bool            `json:"success"`
	Errors   []Message       `json:"errors"`
	Messages []Message       `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

type imageList struct {
	Images []Image `json:"images"`
}

// Error is returned by every client operation that fails, whether the
// service answered with an error or the request never completed
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("Cloudflare API request failed: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("Cloudflare API request failed: %s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
