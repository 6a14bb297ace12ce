package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lewtec/imgflare/internal/domain"
)

func sampleRecords() []*domain.ImageRecord {
	size := int64(2048)
	w, h := 640, 480
	return []*domain.ImageRecord{
		{
			ID:            "abc",
			OriginalURL:   "https://x/y.png",
			CloudflareURL: "https://imagedelivery.net/acc/abc/public",
			Status:        domain.StatusComplete,
			Size:          &size,
			Width:         &w,
			Height:        &h,
			ContentType:   "image/png",
			Variants:      `["https://imagedelivery.net/acc/abc/public"]`,
			UploadedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          "def",
			OriginalURL: "local:///tmp/a|b.jpg",
			Status:      domain.StatusFailed,
			UploadedAt:  time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
			Error:       "boom",
		},
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "json", sampleRecords()))
	var rows []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "abc", rows[0].ID)
	assert.Equal(t, []string{"https://imagedelivery.net/acc/abc/public"}, rows[0].Variants)
	assert.Equal(t, "2024-05-01T12:00:00Z", rows[0].UploadedAt)
	assert.Nil(t, rows[1].Size)
}

func TestExportYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "YAML", sampleRecords()))
	var rows []Row
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "failed", rows[1].Status)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "csv", sampleRecords()))
	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, csvHeader, lines[0])
	assert.Equal(t, "2048", lines[1][4])
	assert.Equal(t, "", lines[2][4])
}

func TestExportHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "html", sampleRecords()))
	out := buf.String()
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>abc</td>")
	assert.Contains(t, out, "640x480")
}

func TestExportHTMLEscapesMarkup(t *testing.T) {
	records := []*domain.ImageRecord{
		{ID: "evil", OriginalURL: "https://evil.example/<script>alert(1)</script>.png", Status: domain.StatusComplete},
		{ID: "<b>bold</b>", OriginalURL: "local:///tmp/<img src=x onerror=alert(2)>.png", Status: domain.StatusComplete},
	}
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "html", records))
	out := buf.String()
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<img")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "alert(1)")
}

func TestExportUnknownFormat(t *testing.T) {
	err := Export(&bytes.Buffer{}, "xml", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestHumanOutput(t *testing.T) {
	records := sampleRecords()

	var table bytes.Buffer
	require.NoError(t, Table(&table, records))
	assert.Contains(t, table.String(), "2.0 kB")
	assert.Contains(t, table.String(), "unknown")

	var details bytes.Buffer
	require.NoError(t, Details(&details, records[1]))
	assert.Contains(t, details.String(), "boom")

	var stats bytes.Buffer
	require.NoError(t, Stats(&stats, &domain.ImageStats{
		Total:       3,
		ByStatus:    map[domain.Status]int64{domain.StatusComplete: 2, domain.StatusFailed: 1},
		TotalSize:   1500,
		SizedImages: 2,
	}))
	assert.Contains(t, stats.String(), "1.5 kB")
	assert.Contains(t, stats.String(), "Unknown size:")
}
