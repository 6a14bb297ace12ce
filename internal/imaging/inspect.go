// Package imaging extracts best-effort metadata from image sources.
// Nothing here fails an upload: unknown fields stay nil.
package imaging

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// sniffLimit bounds how much of a source is read to find the header
const sniffLimit = 3072

// RemoteTimeout bounds a whole remote inspection, body read included
const RemoteTimeout = 15 * time.Second

// NewRemoteClient returns the HTTP client used for remote inspection
func NewRemoteClient() *http.Client {
	return &http.Client{Timeout: RemoteTimeout}
}

// Metadata holds what could be learned about an image
type Metadata struct {
	Size        *int64
	Width       *int
	Height      *int
	ContentType string
}

// Inspect reads size, dimensions and content type of a local file.
// Size is known whenever the file can be stat'ed.
func Inspect(log *zap.Logger, path string) Metadata {
	var md Metadata
	info, err := os.Stat(path)
	if err != nil {
		log.Warn("failed to stat image", zap.String("path", path), zap.Error(err))
		return md
	}
	size := info.Size()
	md.Size = &size

	f, err := os.Open(path)
	if err != nil {
		log.Warn("failed to open image", zap.String("path", path), zap.Error(err))
		return md
	}
	defer f.Close()

	head := make([]byte, sniffLimit)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	md.ContentType = mimetype.Detect(head).String()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return md
	}
	decodeDimensions(log, f, path, &md)
	return md
}

// InspectRemote issues a GET for src and reads the response header bytes.
// The body is never read past what the image header needs. A nil client
// means NewRemoteClient; a stalled source gives up with empty fields once
// the client timeout expires.
func InspectRemote(ctx context.Context, log *zap.Logger, client *http.Client, src string) Metadata {
	var md Metadata
	if client == nil {
		client = NewRemoteClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		log.Warn("failed to inspect remote image", zap.String("url", src), zap.Error(err))
		return md
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Warn("failed to inspect remote image", zap.String("url", src), zap.Error(err))
		return md
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("remote image not readable", zap.String("url", src), zap.Int("status", resp.StatusCode))
		return md
	}

	if resp.ContentLength >= 0 {
		size := resp.ContentLength
		md.Size = &size
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		md.ContentType = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}

	head := make([]byte, sniffLimit)
	n, _ := io.ReadFull(resp.Body, head)
	head = head[:n]
	if md.ContentType == "" || md.ContentType == "application/octet-stream" {
		md.ContentType = mimetype.Detect(head).String()
	}
	decodeDimensions(log, bytes.NewReader(head), src, &md)
	return md
}

func decodeDimensions(log *zap.Logger, r io.Reader, source string, md *Metadata) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		log.Debug("image dimensions unavailable", zap.String("source", source), zap.Error(err))
		return
	}
	w, h := cfg.Width, cfg.Height
	md.Width = &w
	md.Height = &h
	if md.ContentType == "" || md.ContentType == "application/octet-stream" {
		md.ContentType = "image/" + format
	}
}
