package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/lewtec/imgflare/internal/domain"
)

// EnvPrefix prefixes every environment variable the tool reads
const EnvPrefix = "IMGFLARE"

// Persisted configuration keys
const (
	KeyAPIToken    = "cloudflare_api_token"
	KeyAccountID   = "cloudflare_account_id"
	KeyDeliveryURL = "delivery_url_prefix"
)

// Keys lists the known configuration keys with their descriptions
var Keys = []struct {
	Key         string
	Description string
}{
	{KeyAPIToken, "Cloudflare API token for authentication"},
	{KeyAccountID, "Cloudflare Account ID for API requests"},
	{KeyDeliveryURL, "URL prefix for Cloudflare Images delivery"},
}

// Description returns the description stored alongside key
func Description(key string) string {
	for _, k := range Keys {
		if k.Key == key {
			return k.Description
		}
	}
	return ""
}

// EnvName returns the environment variable consulted for key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// Env holds the values read from the process environment
type Env struct {
	APIToken    string `envconfig:"CLOUDFLARE_API_TOKEN"`
	AccountID   string `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	DeliveryURL string `envconfig:"DELIVERY_URL_PREFIX"`
	DataDir     string `envconfig:"DATA_DIR"`
	// APIBaseURL overrides the Cloudflare API root
	APIBaseURL  string `envconfig:"API_BASE_URL"`
}

// Lookup returns the environment value for a persisted key
func (e *Env) Lookup(key string) string {
	if e == nil {
		return ""
	}
	switch key {
	case KeyAPIToken:
		return e.APIToken
	case KeyAccountID:
		return e.AccountID
	case KeyDeliveryURL:
		return e.DeliveryURL
	}
	return ""
}

// LoadEnv loads the given .env files, when present, and reads the
// IMGFLARE_* environment. Variables already set win over .env files.
func LoadEnv(log *zap.Logger, envFiles ...string) (*Env, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			log.Warn("failed to read env file", zap.String("file", file), zap.Error(err))
		}
	}
	var env Env
	if err := envconfig.Process(strings.ToLower(EnvPrefix), &env); err != nil {
		return nil, fmt.Errorf("while reading environment: %w", err)
	}
	return &env, nil
}

// DefaultDataDir is ~/.imgflare
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("while locating home directory: %w", err)
	}
	return filepath.Join(home, ".imgflare"), nil
}

// Credentials are the values needed to talk to the remote service
type Credentials struct {
	APIToken    string
	AccountID   string
	DeliveryURL string
}

// Complete reports whether token and account id are both present
func (c Credentials) Complete() bool {
	return c.APIToken != "" && c.AccountID != ""
}

// Settings resolves configuration values: the store first, then the environment
type Settings struct {
	repo domain.ConfigRepository
	env  *Env
}

// NewSettings creates a resolver over repo and env. env may be nil.
func NewSettings(repo domain.ConfigRepository, env *Env) *Settings {
	return &Settings{repo: repo, env: env}
}

// Get resolves key. An empty result means the key is not configured.
func (s *Settings) Get(ctx context.Context, key string) (string, error) {
	value, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if ok && value != "" {
		return value, nil
	}
	return s.env.Lookup(key), nil
}

// Set persists key with its standard description
func (s *Settings) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, key, value, Description(key))
}

// Credentials resolves every key the remote client needs
func (s *Settings) Credentials(ctx context.Context) (Credentials, error) {
	var creds Credentials
	var err error
	if creds.APIToken, err = s.Get(ctx, KeyAPIToken); err != nil {
		return creds, err
	}
	if creds.AccountID, err = s.Get(ctx, KeyAccountID); err != nil {
		return creds, err
	}
	if creds.DeliveryURL, err = s.Get(ctx, KeyDeliveryURL); err != nil {
		return creds, err
	}
	return creds, nil
}

// IsConfigured reports whether token and account id resolve to values
func (s *Settings) IsConfigured(ctx context.Context) (bool, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return false, err
	}
	return creds.Complete(), nil
}

// Source says where a resolved value comes from
type Source string

const (
	SourceStore Source = "store"
	SourceEnv   Source = "env"
	SourceNone  Source = "unset"
)

// Resolved is a configuration value together with its origin
type Resolved struct {
	Key         string
	Value       string
	Description string
	Source      Source
}

// Resolve reports every known key with its effective value and origin
func (s *Settings) Resolve(ctx context.Context) ([]Resolved, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*domain.ConfigEntry, len(stored))
	for _, entry := range stored {
		byKey[entry.Key] = entry
	}
	var out []Resolved
	for _, k := range Keys {
		r := Resolved{Key: k.Key, Description: k.Description, Source: SourceNone}
		if entry, ok := byKey[k.Key]; ok && entry.Value != "" {
			r.Value = entry.Value
			r.Source = SourceStore
			if entry.Description != "" {
				r.Description = entry.Description
			}
		} else if v := s.env.Lookup(k.Key); v != "" {
			r.Value = v
			r.Source = SourceEnv
		}
		out = append(out, r)
	}
	return out, nil
}

// Mask hides all but the last four characters of a secret
func Mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
