package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mirage-studio/mirage/internal/config"
	"github.com/mirage-studio/mirage/internal/storage/domain"
)

const keyRandomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var dataURLPattern = regexp.MustCompile(`^data:([^;,]+)[;,]`)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type storageService struct {
	cfg    config.StorageConfig
	log    *zap.Logger
	client *s3.Client
	httpc  *http.Client
}

func New(p Params) domain.Service {
	s := &storageService{
		cfg:   p.Config.Storage,
		log:   p.Log.Named("storage"),
		httpc: &http.Client{Timeout: 60 * time.Second},
	}
	if !s.Configured() {
		s.log.Warn("object storage not configured, artifacts keep provider urls")
		return s
	}

	options := s3.Options{
		Region:       s.cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, ""),
		UsePathStyle: s.cfg.UsePathStyle,
	}
	if s.cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(s.cfg.Endpoint)
	}
	s.client = s3.New(options)
	return s
}

func (s *storageService) Configured() bool {
	return s.cfg.AccessKey != "" && s.cfg.SecretKey != "" && s.cfg.Bucket != ""
}

func (s *storageService) Upload(ctx context.Context, payload any, key, contentType string) (string, error) {
	if !s.Configured() {
		return "", domain.ErrNotConfigured
	}
	data, err := s.resolvePayload(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", domain.ErrEmptyPayload
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.log.Error("put object", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return s.publicURL(key), nil
}

func (s *storageService) GenerateKey(prefix, ext string) string {
	random := make([]byte, 6)
	for i := range random {
		random[i] = keyRandomAlphabet[rand.Intn(len(keyRandomAlphabet))]
	}
	return fmt.Sprintf("%s/%d-%s.%s", strings.Trim(prefix, "/"), time.Now().UnixMilli(), random, strings.TrimPrefix(ext, "."))
}

func (s *storageService) EnsureURL(ctx context.Context, srcURL, prefix, contentType string) string {
	if !s.Configured() || srcURL == "" {
		return srcURL
	}
	ext := "jpg"
	if strings.HasPrefix(contentType, "video/") {
		ext = "mp4"
	} else if strings.Contains(contentType, "png") {
		ext = "png"
	}
	key := s.GenerateKey(prefix, ext)
	url, err := s.Upload(ctx, srcURL, key, contentType)
	if err != nil {
		s.log.Warn("relocate artifact failed, keeping source url",
			zap.String("source", srcURL), zap.Error(err))
		return srcURL
	}
	return url
}

func (s *storageService) ContentTypeFor(data, mode string) string {
	if m := dataURLPattern.FindStringSubmatch(data); len(m) == 2 {
		return m[1]
	}
	if mode == "video" {
		return "video/mp4"
	}
	return "image/jpeg"
}

// resolvePayload normalizes the accepted payload shapes down to raw bytes.
func (s *storageService) resolvePayload(ctx context.Context, payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		switch {
		case strings.HasPrefix(v, "data:"):
			_, encoded, ok := strings.Cut(v, ",")
			if !ok {
				return nil, domain.ErrEmptyPayload
			}
			return base64.StdEncoding.DecodeString(encoded)
		case strings.HasPrefix(v, "http://"), strings.HasPrefix(v, "https://"):
			return s.fetch(ctx, v)
		default:
			return base64.StdEncoding.DecodeString(v)
		}
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
}

func (s *storageService) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrFetch, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *storageService) publicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
