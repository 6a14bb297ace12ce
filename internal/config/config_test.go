package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/repository"
)

func TestValidateAPIToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{"39 characters is rejected", strings.Repeat("a", 39), false},
		{"40 printable characters is accepted", strings.Repeat("a", 40), true},
		{"mixed printable characters", "Ab3-_." + strings.Repeat("x", 34), true},
		{"embedded space is printable", strings.Repeat("a", 20) + " " + strings.Repeat("a", 20), true},
		{"embedded tab is rejected", strings.Repeat("a", 20) + "\t" + strings.Repeat("a", 20), false},
		{"control character is rejected", strings.Repeat("a", 40) + "\x01", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIToken(tt.token)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAPIToken)
			}
		})
	}
}

func TestValidateAccountID(t *testing.T) {
	assert.ErrorIs(t, ValidateAccountID(strings.Repeat("zz", 16)), ErrInvalidAccountID)
	assert.ErrorIs(t, ValidateAccountID(strings.Repeat("a", 31)), ErrInvalidAccountID)
	assert.ErrorIs(t, ValidateAccountID(strings.Repeat("a", 33)), ErrInvalidAccountID)
	assert.NoError(t, ValidateAccountID(strings.Repeat("ab12", 8)))
	assert.NoError(t, ValidateAccountID(strings.Repeat("AB12", 8)))
}

func TestURLValidators(t *testing.T) {
	assert.True(t, IsValidURL("https://x/y.png"))
	assert.True(t, IsValidURL("http://example.com"))
	assert.False(t, IsValidURL("not a url"))
	assert.False(t, IsValidURL("/relative/path.png"))
	assert.False(t, IsValidURL("ftp://example.com/a.png"))

	assert.True(t, HasImageExtension("https://x/y.png"))
	assert.True(t, HasImageExtension("https://x/y.JPEG?width=10"))
	assert.False(t, HasImageExtension("https://x/y"))
	assert.False(t, HasImageExtension("https://x/y.txt"))

	assert.True(t, IsImageFilePath("/tmp/photo.webp"))
	assert.True(t, IsImageFilePath("photo.AVIF"))
	assert.False(t, IsImageFilePath("notes.md"))
	assert.False(t, IsImageFilePath("  "))

	assert.NoError(t, ValidateDeliveryURL(""))
	assert.NoError(t, ValidateDeliveryURL("https://cdn.example.com/images"))
	assert.ErrorIs(t, ValidateDeliveryURL("cdn.example.com"), ErrInvalidURL)
}

func TestParseBatch(t *testing.T) {
	t.Run("json list", func(t *testing.T) {
		items, err := ParseBatch("batch.json", []byte(`[{"url":"https://a/1.png"},{"url":"https://a/2.png","note":"x"}]`))
		require.NoError(t, err)
		assert.Equal(t, []BatchItem{{URL: "https://a/1.png"}, {URL: "https://a/2.png"}}, items)
	})

	t.Run("yaml list", func(t *testing.T) {
		items, err := ParseBatch("batch.yml", []byte("- url: https://a/1.png\n- url: https://a/2.gif\n"))
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	invalid := map[string]string{
		"not a list":     `{"url":"https://a/1.png"}`,
		"missing url":    `[{"href":"https://a/1.png"}]`,
		"invalid url":    `[{"url":"nope"}]`,
		"non string url": `[{"url":42}]`,
		"null":           `null`,
		"malformed":      `[{`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBatch("batch.json", []byte(body))
			assert.ErrorIs(t, err, ErrInvalidBatchInput)
		})
	}
}

func TestSettings(t *testing.T) {
	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	ctx := context.Background()

	repo := repository.NewConfigRepository(db)
	env := &Env{APIToken: "env-token", AccountID: "env-account"}
	settings := NewSettings(repo, env)

	t.Run("falls back to environment", func(t *testing.T) {
		creds, err := settings.Credentials(ctx)
		require.NoError(t, err)
		assert.Equal(t, "env-token", creds.APIToken)
		assert.Equal(t, "env-account", creds.AccountID)
		assert.Empty(t, creds.DeliveryURL)
		assert.True(t, creds.Complete())
	})

	t.Run("store takes precedence over environment", func(t *testing.T) {
		require.NoError(t, settings.Set(ctx, KeyAPIToken, "store-token"))
		value, err := settings.Get(ctx, KeyAPIToken)
		require.NoError(t, err)
		assert.Equal(t, "store-token", value)

		resolved, err := settings.Resolve(ctx)
		require.NoError(t, err)
		require.Len(t, resolved, len(Keys))
		assert.Equal(t, SourceStore, resolved[0].Source)
		assert.Equal(t, SourceEnv, resolved[1].Source)
		assert.Equal(t, SourceNone, resolved[2].Source)
	})

	t.Run("unconfigured without env", func(t *testing.T) {
		empty := repository.SetupTestDB(t)
		defer repository.CleanupTestDB(t, empty)
		ok, err := NewSettings(repository.NewConfigRepository(empty), nil).IsConfigured(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("IMGFLARE_DELIVERY_URL_PREFIX=https://cdn.example.com/\n"), 0o600))

	t.Setenv("IMGFLARE_CLOUDFLARE_API_TOKEN", "from-env")
	t.Setenv("IMGFLARE_DELIVERY_URL_PREFIX", "")
	os.Unsetenv("IMGFLARE_DELIVERY_URL_PREFIX")

	env, err := LoadEnv(zap.NewNop(), envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", env.APIToken)
	assert.Equal(t, "https://cdn.example.com/", env.DeliveryURL)
	assert.Equal(t, "IMGFLARE_CLOUDFLARE_API_TOKEN", EnvName(KeyAPIToken))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "******7890", Mask("1234567890"))
}
