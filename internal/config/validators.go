package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// MinAPITokenLength is the shortest accepted API token
const MinAPITokenLength = 40

var (
	ErrInvalidAPIToken   = errors.New("invalid API token format")
	ErrInvalidAccountID  = errors.New("invalid Account ID format, it should be a 32-character hexadecimal string")
	ErrInvalidURL        = errors.New("invalid URL format")
	ErrInvalidBatchInput = errors.New("invalid batch file, expected a list of objects with a \"url\" property")
)

var accountIDPattern = regexp.MustCompile(`(?i)^[a-f0-9]{32}$`)

// ImageExtensions are the file extensions recognized as images
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "svg", "avif"}

// IsValidURL accepts absolute http and https URLs with a host
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateAPIToken requires at least MinAPITokenLength printable characters
func ValidateAPIToken(token string) error {
	if len([]rune(token)) < MinAPITokenLength {
		return ErrInvalidAPIToken
	}
	for _, r := range token {
		if !unicode.IsPrint(r) {
			return ErrInvalidAPIToken
		}
	}
	return nil
}

// ValidateAccountID requires 32 hex characters, any case
func ValidateAccountID(accountID string) error {
	if !accountIDPattern.MatchString(accountID) {
		return ErrInvalidAccountID
	}
	return nil
}

// ValidateDeliveryURL accepts an empty value, the key is optional
func ValidateDeliveryURL(raw string) error {
	if raw == "" || IsValidURL(raw) {
		return nil
	}
	return ErrInvalidURL
}

func hasImageExtension(p string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	for _, known := range ImageExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// HasImageExtension reports whether the path of a URL ends in an image extension
func HasImageExtension(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return hasImageExtension(u.Path)
}

// IsImageFilePath reports whether a local path ends in an image extension
func IsImageFilePath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	return hasImageExtension(filepath.ToSlash(p))
}

// BatchItem is one entry of a batch file
type BatchItem struct {
	URL string `json:"url" yaml:"url"`
}

// ParseBatch decodes a batch file: a JSON or YAML list of objects with a url.
// YAML is used when the file name ends in .yaml or .yml.
func ParseBatch(name string, data []byte) ([]BatchItem, error) {
	var raw []map[string]interface{}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchInput, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchInput, err)
		}
	}
	if raw == nil {
		return nil, ErrInvalidBatchInput
	}
	items := make([]BatchItem, 0, len(raw))
	for i, entry := range raw {
		u, ok := entry["url"].(string)
		if !ok || !IsValidURL(u) {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidBatchInput, i+1)
		}
		items = append(items, BatchItem{URL: u})
	}
	return items, nil
}
