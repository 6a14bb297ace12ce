package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/cloudflare"
	"github.com/lewtec/imgflare/internal/config"
	"github.com/lewtec/imgflare/internal/domain"
	"github.com/lewtec/imgflare/internal/imaging"
	"github.com/lewtec/imgflare/internal/repository"
)

var testCreds = config.Credentials{APIToken: strings.Repeat("t", 40), AccountID: "0123456789abcdef0123456789abcdef"}

type staticCreds config.Credentials

func (s staticCreds) Credentials(context.Context) (config.Credentials, error) {
	return config.Credentials(s), nil
}

// fakeRemote records every call and fails on demand
type fakeRemote struct {
	mu        sync.Mutex
	calls     int
	uploaded  []string
	deleted   []string
	failOn    map[string]bool
	uploadErr error
	deleteErr error
	variants  []string
}

func (f *fakeRemote) upload(src string) (*cloudflare.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if f.failOn[src] {
		return nil, &cloudflare.Error{Op: "upload", StatusCode: 400, Message: "bad image"}
	}
	f.uploaded = append(f.uploaded, src)
	id := "img-" + filepath.Base(src)
	return &cloudflare.Image{ID: id, Variants: []string{"https://imagedelivery.net/acc/" + id + "/public", "https://imagedelivery.net/acc/" + id + "/thumb"}}, nil
}

func (f *fakeRemote) UploadByURL(_ context.Context, src string) (*cloudflare.Image, error) {
	return f.upload(src)
}

func (f *fakeRemote) UploadFile(_ context.Context, path string) (*cloudflare.Image, error) {
	return f.upload(path)
}

func (f *fakeRemote) GetImage(_ context.Context, id string) (*cloudflare.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &cloudflare.Image{ID: id, Variants: f.variants}, nil
}

func (f *fakeRemote) ListImages(context.Context, int, int) ([]cloudflare.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []cloudflare.Image{{ID: "remote-1"}}, nil
}

func (f *fakeRemote) DeleteImage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRemote) DeliveryURL(id, variant string) string {
	return cloudflare.DeliveryURL(cloudflare.Credentials(testCreds), id, variant)
}

func (f *fakeRemote) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	repo      *repository.ImageRepository
	count     func() int64
	remote    *fakeRemote
	factories atomic.Int32
	uploader  *Uploader
	deleter   *Deleter
	catalog   *Catalog
}

func newHarness(t *testing.T, creds config.Credentials, confirm Confirmer) *harness {
	t.Helper()
	db := repository.SetupTestDB(t)
	t.Cleanup(func() { repository.CleanupTestDB(t, db) })

	h := &harness{
		repo:   repository.NewImageRepository(db),
		count:  func() int64 { return repository.CountRows(t, db) },
		remote: &fakeRemote{failOn: map[string]bool{}},
	}
	factory := func(config.Credentials) (Remote, error) {
		h.factories.Add(1)
		return h.remote, nil
	}
	src := staticCreds(creds)
	log := zap.NewNop()
	h.uploader = NewUploader(h.repo, src, factory, log)
	h.deleter = NewDeleter(h.repo, src, factory, confirm, log)
	h.catalog = NewCatalog(h.repo, src, factory, log)
	return h
}

func TestUploadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("success records one complete image", func(t *testing.T) {
		h := newHarness(t, testCreds, nil)
		rec, err := h.uploader.UploadURL(ctx, "https://x/y.png", UploadOptions{SkipInspect: true})
		require.NoError(t, err)
		assert.Equal(t, "img-y.png", rec.ID)
		assert.Equal(t, int64(1), h.count())

		stored, err := h.repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, domain.StatusComplete, stored.Status)
		assert.Equal(t, "https://x/y.png", stored.OriginalURL)
		assert.Equal(t, "https://imagedelivery.net/"+testCreds.AccountID+"/img-y.png/public", stored.CloudflareURL)
		variants, err := domain.ParseVariants(stored.Variants)
		require.NoError(t, err)
		assert.Len(t, variants, 2)
	})

	t.Run("remote failure writes nothing", func(t *testing.T) {
		h := newHarness(t, testCreds, nil)
		h.remote.uploadErr = errors.New("connection reset")
		_, err := h.uploader.UploadURL(ctx, "https://x/y.png", UploadOptions{SkipInspect: true})
		require.Error(t, err)
		assert.Equal(t, int64(0), h.count())
	})

	t.Run("unconfigured makes no remote call", func(t *testing.T) {
		h := newHarness(t, config.Credentials{}, nil)
		_, err := h.uploader.UploadURL(ctx, "https://x/y.png", UploadOptions{SkipInspect: true})
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.Equal(t, int32(0), h.factories.Load())
		assert.Equal(t, 0, h.remote.Calls())
		assert.Equal(t, int64(0), h.count())
	})

	t.Run("validation happens before anything else", func(t *testing.T) {
		h := newHarness(t, config.Credentials{}, nil)
		for _, src := range []string{"not a url", "https://x/y.txt"} {
			_, err := h.uploader.UploadURL(ctx, src, UploadOptions{})
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		}
		assert.Equal(t, 0, h.remote.Calls())
	})

	t.Run("force accepts a URL without extension", func(t *testing.T) {
		h := newHarness(t, testCreds, nil)
		_, err := h.uploader.UploadURL(ctx, "https://x/photo", UploadOptions{Force: true, SkipInspect: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), h.count())
	})

	t.Run("duplicate id is reported as not persisted", func(t *testing.T) {
		h := newHarness(t, testCreds, nil)
		_, err := h.uploader.UploadURL(ctx, "https://x/y.png", UploadOptions{SkipInspect: true})
		require.NoError(t, err)
		_, err = h.uploader.UploadURL(ctx, "https://other/y.png", UploadOptions{SkipInspect: true})
		assert.ErrorIs(t, err, ErrNotPersisted)
		assert.Contains(t, err.Error(), "img-y.png")
		assert.Equal(t, int64(1), h.count())
	})
}

func TestUploadURLStalledSource(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	h := newHarness(t, testCreds, nil)
	assert.Equal(t, imaging.RemoteTimeout, h.uploader.inspect.Timeout)
	h.uploader.WithInspectClient(&http.Client{Timeout: 200 * time.Millisecond})

	start := time.Now()
	rec, err := h.uploader.UploadURL(context.Background(), srv.URL+"/a.png", UploadOptions{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "img-a.png", rec.ID)
	assert.Equal(t, int64(1), h.count())
	assert.Nil(t, rec.Width)
}

func TestUploadLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	h := newHarness(t, testCreds, nil)
	rec, err := h.uploader.UploadLocal(ctx, path, UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.LocalURLPrefix+path, rec.OriginalURL)
	assert.True(t, rec.IsLocal())
	require.NotNil(t, rec.Size)
	assert.Equal(t, int64(10), *rec.Size)

	_, err = h.uploader.UploadLocal(ctx, filepath.Join(dir, "missing.png"), UploadOptions{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = h.uploader.UploadLocal(ctx, dir, UploadOptions{Force: true})
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, h.remote.Calls())
}

func seed(t *testing.T, h *harness, id string) {
	t.Helper()
	n, err := h.repo.Insert(context.Background(), &domain.ImageRecord{ID: id, OriginalURL: "https://x/" + id + ".png", Status: domain.StatusComplete})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	yes := ConfirmFunc(func(*domain.ImageRecord) (bool, error) { return true, nil })
	no := ConfirmFunc(func(*domain.ImageRecord) (bool, error) { return false, nil })

	t.Run("hard delete removes the record", func(t *testing.T) {
		h := newHarness(t, testCreds, yes)
		seed(t, h, "a")
		res, err := h.deleter.Delete(ctx, "a", DeleteOptions{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeDeleted, res.Outcome)
		rec, err := h.repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.Equal(t, []string{"a"}, h.remote.deleted)
	})

	t.Run("keep record only changes status", func(t *testing.T) {
		h := newHarness(t, testCreds, yes)
		seed(t, h, "a")
		before, err := h.repo.Get(ctx, "a")
		require.NoError(t, err)

		res, err := h.deleter.Delete(ctx, "a", DeleteOptions{KeepRecord: true})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSoftDeleted, res.Outcome)

		after, err := h.repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDeleted, after.Status)
		after.Status = before.Status
		assert.Equal(t, before, after)
	})

	t.Run("remote failure leaves the record unchanged", func(t *testing.T) {
		h := newHarness(t, testCreds, yes)
		seed(t, h, "a")
		h.remote.deleteErr = &cloudflare.Error{Op: "delete image", StatusCode: 500, Message: "status 500"}
		_, err := h.deleter.Delete(ctx, "a", DeleteOptions{Force: true})
		var apiErr *cloudflare.Error
		require.ErrorAs(t, err, &apiErr)
		rec, err := h.repo.Get(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, domain.StatusComplete, rec.Status)
	})

	t.Run("missing id with force makes no remote call", func(t *testing.T) {
		h := newHarness(t, testCreds, nil)
		res, err := h.deleter.Delete(ctx, "missing", DeleteOptions{Force: true})
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotFound, res.Outcome)
		assert.Equal(t, 0, h.remote.Calls())
	})

	t.Run("declined confirmation cancels", func(t *testing.T) {
		h := newHarness(t, testCreds, no)
		seed(t, h, "a")
		res, err := h.deleter.Delete(ctx, "a", DeleteOptions{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeCancelled, res.Outcome)
		assert.Equal(t, 0, h.remote.Calls())
		assert.Equal(t, int64(1), h.count())
	})

	t.Run("unconfigured", func(t *testing.T) {
		h := newHarness(t, config.Credentials{}, yes)
		seed(t, h, "a")
		_, err := h.deleter.Delete(ctx, "a", DeleteOptions{Force: true})
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.Equal(t, int32(0), h.factories.Load())
	})
}

func TestBatch(t *testing.T) {
	h := newHarness(t, testCreds, nil)
	h.remote.failOn["https://x/bad.png"] = true

	items := []config.BatchItem{
		{URL: "https://x/1.png"},
		{URL: "https://x/bad.png"},
		{URL: "https://x/2.png"},
		{URL: "https://x/3.png"},
	}
	report := h.uploader.Batch(context.Background(), items, BatchOptions{Concurrency: 2, Upload: UploadOptions{SkipInspect: true}})
	require.Len(t, report.Results, 4)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Succeeded())
	assert.Equal(t, 1, report.Failed())
	assert.Error(t, report.Results[1].Err)
	assert.Equal(t, "https://x/bad.png", report.Results[1].URL)
	assert.Equal(t, int64(3), h.count())
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testCreds, nil)

	failed := domain.StatusFailed
	seed(t, h, "a")
	seed(t, h, "b")
	_, err := h.repo.Update(ctx, "b", domain.ImageUpdate{Status: &failed})
	require.NoError(t, err)

	open, err := h.catalog.Open(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b", open[0].ID)

	rec, err := h.catalog.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	list, err := h.catalog.List(ctx, domain.ImageFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	remote, err := h.catalog.Remote(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", remote[0].ID)
}

func TestVariants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testCreds, nil)

	res, err := h.catalog.Variants(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, VariantsNotFound, res.State)

	seed(t, h, "none")
	res, err = h.catalog.Variants(ctx, "none")
	require.NoError(t, err)
	assert.Equal(t, VariantsNone, res.State)
	assert.Equal(t, "https://imagedelivery.net/"+testCreds.AccountID+"/none/public", res.Default)

	seed(t, h, "broken")
	blob := "{not json"
	_, err = h.repo.Update(ctx, "broken", domain.ImageUpdate{Variants: &blob})
	require.NoError(t, err)
	_, err = h.catalog.Variants(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrMalformedVariants)

	h.remote.variants = []string{"https://imagedelivery.net/acc/none/public", "https://imagedelivery.net/acc/none/avatar"}
	res, err = h.catalog.RefreshVariants(ctx, "none")
	require.NoError(t, err)
	assert.Equal(t, VariantsFound, res.State)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, "avatar", res.Variants[1].Name)

	res, err = h.catalog.Variants(ctx, "none")
	require.NoError(t, err)
	assert.Equal(t, VariantsFound, res.State)
}

func TestVariantName(t *testing.T) {
	assert.Equal(t, "public", VariantName("https://imagedelivery.net/acc/id/public"))
	assert.Equal(t, "thumb", VariantName("https://cdn.example.com/id/thumb?x=1"))
}
