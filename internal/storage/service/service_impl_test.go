package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mirage-studio/mirage/internal/config"
	"github.com/mirage-studio/mirage/internal/storage/domain"
)

func newUnconfigured(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{
		Config: config.Config{},
		Log:    zap.NewNop(),
	})
}

func TestConfigured(t *testing.T) {
	assert.False(t, newUnconfigured(t).Configured())

	svc := New(Params{
		Config: config.Config{Storage: config.StorageConfig{
			AccessKey: "ak",
			SecretKey: "sk",
			Bucket:    "media",
			Region:    "us-east-1",
		}},
		Log: zap.NewNop(),
	})
	assert.True(t, svc.Configured())
}

func TestUploadRequiresConfiguration(t *testing.T) {
	svc := newUnconfigured(t)
	_, err := svc.Upload(context.Background(), []byte("data"), "images/x.jpg", "image/jpeg")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestEnsureURLPassthroughWhenUnconfigured(t *testing.T) {
	svc := newUnconfigured(t)
	url := svc.EnsureURL(context.Background(), "https://replicate.delivery/out.jpg", "images", "image/jpeg")
	assert.Equal(t, "https://replicate.delivery/out.jpg", url)
	assert.Empty(t, svc.EnsureURL(context.Background(), "", "images", "image/jpeg"))
}

func TestGenerateKeyShapeAndUniqueness(t *testing.T) {
	svc := newUnconfigured(t)
	pattern := regexp.MustCompile(`^images/\d+-[a-z0-9]{6}\.jpg$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		key := svc.GenerateKey("images", "jpg")
		assert.Regexp(t, pattern, key)
		seen[key] = true
	}
	assert.Greater(t, len(seen), 1)

	assert.Regexp(t, `^videos/\d+-[a-z0-9]{6}\.mp4$`, svc.GenerateKey("/videos/", ".mp4"))
}

func TestContentTypeFor(t *testing.T) {
	svc := newUnconfigured(t)

	assert.Equal(t, "image/png", svc.ContentTypeFor("data:image/png;base64,abc", "image"))
	assert.Equal(t, "video/webm", svc.ContentTypeFor("data:video/webm,raw", "image"))
	assert.Equal(t, "video/mp4", svc.ContentTypeFor("https://x/clip", "video"))
	assert.Equal(t, "image/jpeg", svc.ContentTypeFor("not-a-data-url", "image"))
	assert.Equal(t, "image/jpeg", svc.ContentTypeFor("", ""))
}

func TestResolvePayloadShapes(t *testing.T) {
	svc := New(Params{Config: config.Config{}, Log: zap.NewNop()}).(*storageService)
	ctx := context.Background()

	data, err := svc.resolvePayload(ctx, []byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	data, err = svc.resolvePayload(ctx, "data:image/jpeg;base64,aGVsbG8=")
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = svc.resolvePayload(ctx, "aGVsbG8=")
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = svc.resolvePayload(ctx, "data:image/jpeg;base64")
	assert.ErrorIs(t, err, domain.ErrEmptyPayload)

	_, err = svc.resolvePayload(ctx, 42)
	assert.Error(t, err)
}
