package domain

import (
	"context"
	"errors"
)

// Service persists generated media in object storage and hands back
// durable public URLs.
type Service interface {
	// Configured reports whether object storage credentials are present.
	// When false the app runs degraded: artifacts keep their ephemeral
	// provider URLs.
	Configured() bool
	// Upload stores the payload under key. The payload may be raw bytes, a
	// data URL, a bare base64 string or a remote http(s) URL to fetch.
	Upload(ctx context.Context, payload any, key, contentType string) (string, error)
	// GenerateKey builds a unique object key as prefix/<timestamp>-<random>.<ext>.
	GenerateKey(prefix, ext string) string
	// EnsureURL relocates a provider URL into storage, returning the
	// original URL untouched when storage is not configured or the copy
	// fails.
	EnsureURL(ctx context.Context, srcURL, prefix, contentType string) string
	// ContentTypeFor sniffs a MIME type from a data URL, defaulting by mode.
	ContentTypeFor(data, mode string) string
}

var (
	ErrNotConfigured = errors.New("storage_not_configured")
	ErrEmptyPayload  = errors.New("empty_payload")
	ErrFetch         = errors.New("fetch_failed")
	ErrStorage       = errors.New("storage_failed")
)
