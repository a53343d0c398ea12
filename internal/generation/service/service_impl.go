package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mirage-studio/mirage/internal/clock"
	"github.com/mirage-studio/mirage/internal/generation/domain"
	"github.com/mirage-studio/mirage/internal/generation/provider"
	"github.com/mirage-studio/mirage/internal/observability/metrics"
	"github.com/mirage-studio/mirage/internal/ratelimit"
	storagedomain "github.com/mirage-studio/mirage/internal/storage/domain"
)

const (
	imagePollAttempts = 180
	videoPollAttempts = 300

	// likenessClause pins the subject's appearance during image edits.
	likenessClause = " IMPORTANT: Keep the female model's face, body, hair, and overall appearance exactly identical to the original image. Do not change her facial features, skin tone, hair color, hairstyle, or body proportions. Preserve her exact likeness."
)

var policyKeywords = []string{"nsfw", "safety", "inappropriate", "violat", "policy", "sexual", "nude"}

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Provider *provider.Client
	Storage  storagedomain.Service
	Limiter  *ratelimit.GenerateLimiter `optional:"true"`
	Metrics  *metrics.GenerationMetrics
}

type generationService struct {
	log      *zap.Logger
	clock    clock.Clock
	provider *provider.Client
	storage  storagedomain.Service
	limiter  *ratelimit.GenerateLimiter
	metrics  *metrics.GenerationMetrics
	httpc    *http.Client
}

func New(p Params) domain.Service {
	return &generationService{
		log:      p.Log.Named("generation"),
		clock:    p.Clock,
		provider: p.Provider,
		storage:  p.Storage,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *generationService) Generate(ctx context.Context, req domain.Request) (domain.Result, error) {
	if len(req.ReferenceImages) == 0 || req.ReferenceImages[0] == "" {
		return domain.Result{}, domain.ErrNoImage
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return domain.Result{}, domain.ErrPromptRequired
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeImage
	}
	if mode != domain.ModeImage && mode != domain.ModeVideo {
		return domain.Result{}, domain.ErrInvalidMode
	}

	if s.limiter.Enabled() {
		allowed, _, err := s.limiter.AllowUser(ctx, req.UserID)
		if err != nil {
			s.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		} else if !allowed {
			return domain.Result{}, domain.ErrRateLimited
		}
	}

	start := time.Now()
	var (
		out domain.Result
		err error
	)
	if mode == domain.ModeVideo {
		out, err = s.generateVideo(ctx, req)
	} else {
		out, err = s.generateImage(ctx, req)
	}
	s.metrics.Observe(mode, outcomeFor(err), time.Since(start))
	return out, err
}

func (s *generationService) generateImage(ctx context.Context, req domain.Request) (domain.Result, error) {
	input := imageInput(req.ReferenceImages, req.Prompt+likenessClause)

	prediction, err := s.provider.CreatePrediction(ctx, s.provider.ImageModel(), input)
	if err != nil {
		var limited *provider.RateLimitedError
		if !errors.As(err, &limited) {
			return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
		}

		wait := time.Duration(limited.RetryAfter+1) * time.Second
		s.log.Info("submit rate limited, retrying once", zap.Duration("wait", wait))
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return domain.Result{}, err
		}
		prediction, err = s.provider.CreatePrediction(ctx, s.provider.ImageModel(), imageInput(req.ReferenceImages, req.Prompt))
		if err != nil {
			return domain.Result{}, domain.ErrRateLimited
		}
	}

	result, err := s.provider.Poll(ctx, prediction, imagePollAttempts)
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return s.finish(ctx, result, domain.ModeImage)
}

func (s *generationService) generateVideo(ctx context.Context, req domain.Request) (domain.Result, error) {
	imageData := req.ReferenceImages[0]
	if strings.HasPrefix(imageData, "http") {
		inlined, err := s.inlineSourceImage(ctx, imageData)
		if err != nil {
			s.log.Warn("source image fetch failed", zap.String("url", imageData), zap.Error(err))
			return domain.Result{}, domain.ErrSourceFetch
		}
		imageData = inlined
	}

	numFrames := req.NumFrames
	if numFrames <= 0 {
		numFrames = domain.DefaultNumFrames
	}
	input := map[string]any{
		"image":                 imageData,
		"prompt":                req.Prompt,
		"go_fast":               false,
		"num_frames":            numFrames,
		"resolution":            "480p",
		"sample_shift":          12,
		"frames_per_second":     16,
		"interpolate_output":    true,
		"enable_safety_checker": false,
	}

	prediction, err := s.provider.CreatePrediction(ctx, s.provider.VideoModel(), input)
	if err != nil {
		var limited *provider.RateLimitedError
		if errors.As(err, &limited) {
			return domain.Result{}, domain.ErrRateLimited
		}
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	result, err := s.provider.Poll(ctx, prediction, videoPollAttempts)
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return s.finish(ctx, result, domain.ModeVideo)
}

// finish classifies the terminal prediction and relocates a successful
// artifact into object storage.
func (s *generationService) finish(ctx context.Context, result provider.Prediction, mode string) (domain.Result, error) {
	if result.Status != provider.StatusSucceeded {
		msg := result.Error
		if isPolicyRejection(msg) {
			s.log.Info("generation rejected by safety filter", zap.String("mode", mode))
			return domain.Result{}, domain.ErrContentPolicy
		}
		if msg == "" {
			msg = result.Status
		}
		return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrGenerationFailed, msg)
	}

	output := result.FirstOutput()
	if output == "" {
		return domain.Result{}, fmt.Errorf("%w: empty output", domain.ErrGenerationFailed)
	}

	prefix, contentType := "images", "image/jpeg"
	if mode == domain.ModeVideo {
		prefix, contentType = "videos", "video/mp4"
	}
	return domain.Result{Output: s.storage.EnsureURL(ctx, output, prefix, contentType)}, nil
}

// inlineSourceImage downloads a remote source and re-encodes it as a data
// URL so the provider does not depend on an expiring link.
func (s *generationService) inlineSourceImage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}

func imageInput(referenceImages []string, prompt string) map[string]any {
	return map[string]any{
		"image_input":                 referenceImages,
		"prompt":                      prompt,
		"size":                        "2K",
		"width":                       2048,
		"height":                      2048,
		"max_images":                  1,
		"aspect_ratio":                "1:1",
		"enhance_prompt":              true,
		"sequential_image_generation": "disabled",
	}
}

func isPolicyRejection(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range policyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrContentPolicy):
		return "content_policy"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
