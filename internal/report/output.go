// Package report renders records for humans and exports them for other tools.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/lewtec/imgflare/internal/cloudflare"
	"github.com/lewtec/imgflare/internal/domain"
)

// DisplayTime is how timestamps are shown to the user
const DisplayTime = "2006-01-02 15:04:05"

// Size renders an optional byte size
func Size(size *int64) string {
	if size == nil {
		return "unknown"
	}
	return humanize.Bytes(uint64(*size))
}

// Dimensions renders optional width and height as WxH
func Dimensions(width, height *int) string {
	if width == nil || height == nil {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", *width, *height)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Details prints every field of a record, one per line
func Details(w io.Writer, rec *domain.ImageRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", rec.ID)
	fmt.Fprintf(tw, "Status:\t%s\n", rec.Status)
	fmt.Fprintf(tw, "Original URL:\t%s\n", rec.OriginalURL)
	fmt.Fprintf(tw, "Cloudflare URL:\t%s\n", orDash(rec.CloudflareURL))
	fmt.Fprintf(tw, "Size:\t%s\n", Size(rec.Size))
	fmt.Fprintf(tw, "Dimensions:\t%s\n", Dimensions(rec.Width, rec.Height))
	fmt.Fprintf(tw, "Content type:\t%s\n", orDash(rec.ContentType))
	fmt.Fprintf(tw, "Uploaded at:\t%s (%s)\n", rec.UploadedAt.Local().Format(DisplayTime), humanize.Time(rec.UploadedAt))
	if rec.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", rec.Error)
	}
	return tw.Flush()
}

// Table prints records as aligned columns
func Table(w io.Writer, records []*domain.ImageRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSIZE\tDIMENSIONS\tUPLOADED\tORIGINAL URL")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.Status,
			Size(rec.Size),
			Dimensions(rec.Width, rec.Height),
			rec.UploadedAt.Local().Format(DisplayTime),
			rec.OriginalURL,
		)
	}
	return tw.Flush()
}

// RemoteTable prints images as listed by the remote service
func RemoteTable(w io.Writer, images []cloudflare.Image) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tUPLOADED\tVARIANTS")
	for _, img := range images {
		uploaded := "-"
		if !img.Uploaded.IsZero() {
			uploaded = img.Uploaded.Local().Format(DisplayTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", img.ID, orDash(img.Filename), uploaded, len(img.Variants))
	}
	return tw.Flush()
}

// Stats prints the catalog summary
func Stats(w io.Writer, stats *domain.ImageStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total images:\t%s\n", humanize.Comma(stats.Total))
	for _, st := range domain.Statuses {
		if n := stats.ByStatus[st]; n > 0 {
			fmt.Fprintf(tw, "  %s:\t%s\n", st, humanize.Comma(n))
		}
	}
	fmt.Fprintf(tw, "Total size:\t%s\n", humanize.Bytes(uint64(stats.TotalSize)))
	if unknown := stats.Total - stats.SizedImages; unknown > 0 {
		fmt.Fprintf(tw, "Unknown size:\t%s images\n", humanize.Comma(unknown))
	}
	return tw.Flush()
}

// Lines writes each value on its own line
func Lines(w io.Writer, values []string) error {
	if len(values) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(values, "\n")+"\n")
	return err
}
