package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/config"
	"github.com/lewtec/imgflare/internal/domain"
)

// DefaultConcurrency is the number of uploads a batch runs at once
const DefaultConcurrency = 3

// BatchOptions tune a batch run
type BatchOptions struct {
	Concurrency int
	Upload      UploadOptions
}

// BatchResult is the outcome of one batch item
type BatchResult struct {
	URL    string
	Record *domain.ImageRecord
	Err    error
}

// BatchReport collects every item result in input order
type BatchReport struct {
	RunID   string
	Results []BatchResult
}

// Succeeded counts items that were uploaded and recorded
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts items that returned an error
func (r *BatchReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Batch uploads every item through UploadURL. A failing item never stops the others.
func (u *Uploader) Batch(ctx context.Context, items []config.BatchItem, opts BatchOptions) *BatchReport {
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	report := &BatchReport{
		RunID:   uuid.NewString(),
		Results: make([]BatchResult, len(items)),
	}
	log := u.log.With(zap.String("run_id", report.RunID))
	log.Debug("starting batch", zap.Int("items", len(items)), zap.Int("concurrency", workers))

	p := pool.New().WithMaxGoroutines(workers)
	for i, item := range items {
		p.Go(func() {
			rec, err := u.UploadURL(ctx, item.URL, opts.Upload)
			if err != nil {
				log.Warn("batch item failed", zap.String("url", item.URL), zap.Error(err))
			}
			report.Results[i] = BatchResult{URL: item.URL, Record: rec, Err: err}
		})
	}
	p.Wait()

	log.Debug("batch finished", zap.Int("succeeded", report.Succeeded()), zap.Int("failed", report.Failed()))
	return report
}
