package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/russross/blackfriday/v2"
	"gopkg.in/yaml.v3"

	"github.com/lewtec/imgflare/internal/domain"
)

// Formats are the supported export formats
var Formats = []string{"json", "csv", "yaml", "html"}

// ErrUnknownFormat is returned for a format outside Formats
var ErrUnknownFormat = fmt.Errorf("unknown export format, expected one of %s", strings.Join(Formats, ", "))

// Row is the exported shape of a record
type Row struct {
	ID            string   `json:"id" yaml:"id"`
	OriginalURL   string   `json:"original_url" yaml:"original_url"`
	CloudflareURL string   `json:"cloudflare_url,omitempty" yaml:"cloudflare_url,omitempty"`
	Status        string   `json:"status" yaml:"status"`
	Size          *int64   `json:"size,omitempty" yaml:"size,omitempty"`
	Width         *int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height        *int     `json:"height,omitempty" yaml:"height,omitempty"`
	ContentType   string   `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Variants      []string `json:"variants,omitempty" yaml:"variants,omitempty"`
	UploadedAt    string   `json:"uploaded_at" yaml:"uploaded_at"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewRow converts a record. A malformed variants blob exports as no variants.
func NewRow(rec *domain.ImageRecord) Row {
	variants, _ := domain.ParseVariants(rec.Variants)
	return Row{
		ID:            rec.ID,
		OriginalURL:   rec.OriginalURL,
		CloudflareURL: rec.CloudflareURL,
		Status:        string(rec.Status),
		Size:          rec.Size,
		Width:         rec.Width,
		Height:        rec.Height,
		ContentType:   rec.ContentType,
		Variants:      variants,
		UploadedAt:    rec.UploadedAt.UTC().Format(time.RFC3339),
		Error:         rec.Error,
	}
}

// Export writes records to w in the given format
func Export(w io.Writer, format string, records []*domain.ImageRecord) error {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, NewRow(rec))
	}
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "csv":
		return writeCSV(w, rows)
	case "html":
		_, err := w.Write(renderHTML(rows))
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

var csvHeader = []string{"id", "original_url", "cloudflare_url", "status", "size", "width", "height", "content_type", "variants", "uploaded_at", "error"}

func optional[T int | int64](v *T) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(int64(*v), 10)
}

func writeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		err := cw.Write([]string{
			r.ID,
			r.OriginalURL,
			r.CloudflareURL,
			r.Status,
			optional(r.Size),
			optional(r.Width),
			optional(r.Height),
			r.ContentType,
			strings.Join(r.Variants, " "),
			r.UploadedAt,
			r.Error,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// markdownCell escapes the characters that would break a table cell and any
// markup, so cells always render as text
func markdownCell(s string) string {
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return "-"
	}
	return s
}

func renderHTML(rows []Row) []byte {
	var md bytes.Buffer
	md.WriteString("# Images\n\n")
	fmt.Fprintf(&md, "%d images exported.\n\n", len(rows))
	md.WriteString("| ID | Status | Size | Dimensions | Uploaded | Original URL | Cloudflare URL |\n")
	md.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(&md, "| %s | %s | %s | %s | %s | %s | %s |\n",
			markdownCell(r.ID),
			markdownCell(r.Status),
			markdownCell(Size(r.Size)),
			markdownCell(Dimensions(r.Width, r.Height)),
			markdownCell(r.UploadedAt),
			markdownCell(r.OriginalURL),
			markdownCell(r.CloudflareURL),
		)
	}
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})
	return blackfriday.Run(md.Bytes(), blackfriday.WithRenderer(renderer))
}
