package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubStorage struct {
	configured bool
	uploadURL  string
	uploadErr  error
	lastKey    string
	lastType   string
}

func (f *stubStorage) Configured() bool { return f.configured }

func (f *stubStorage) Upload(_ context.Context, _ any, key, contentType string) (string, error) {
	f.lastKey = key
	f.lastType = contentType
	return f.uploadURL, f.uploadErr
}

func (f *stubStorage) GenerateKey(prefix, ext string) string {
	return prefix + "/1700000000-abc123." + ext
}

func (f *stubStorage) EnsureURL(_ context.Context, srcURL, _, _ string) string { return srcURL }

func (f *stubStorage) ContentTypeFor(_, _ string) string { return "image/jpeg" }

func TestResolveSourceURLKeepsRemoteURLs(t *testing.T) {
	s := &Server{storageSvc: &stubStorage{configured: true}}

	assert.Equal(t, "https://cdn.example.com/a.jpg",
		s.resolveSourceURL(context.Background(), "  https://cdn.example.com/a.jpg  "))
	assert.Equal(t, "", s.resolveSourceURL(context.Background(), ""))
}

func TestResolveSourceURLUploadsDataURL(t *testing.T) {
	storage := &stubStorage{configured: true, uploadURL: "https://bucket.example.com/originals/1700000000-abc123.jpg"}
	s := &Server{storageSvc: storage}

	got := s.resolveSourceURL(context.Background(), "data:image/jpeg;base64,AAAA")
	assert.Equal(t, storage.uploadURL, got)
	assert.Equal(t, "originals/1700000000-abc123.jpg", storage.lastKey)
	assert.Equal(t, "image/jpeg", storage.lastType)
}

func TestResolveSourceURLNeverStoresBase64(t *testing.T) {
	// Unconfigured storage drops inline payloads instead of persisting them.
	s := &Server{storageSvc: &stubStorage{configured: false}}
	assert.Equal(t, "", s.resolveSourceURL(context.Background(), "data:image/jpeg;base64,AAAA"))

	// So does a failed upload.
	s = &Server{storageSvc: &stubStorage{configured: true, uploadErr: errors.New("boom")}}
	assert.Equal(t, "", s.resolveSourceURL(context.Background(), "data:image/jpeg;base64,AAAA"))

	// Bare base64 without a recognizable scheme is dropped outright.
	s = &Server{storageSvc: &stubStorage{configured: true}}
	assert.Equal(t, "", s.resolveSourceURL(context.Background(), "AAAABBBB"))
}
