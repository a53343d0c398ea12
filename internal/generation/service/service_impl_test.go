package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mirage-studio/mirage/internal/clock"
	"github.com/mirage-studio/mirage/internal/config"
	"github.com/mirage-studio/mirage/internal/generation/domain"
	"github.com/mirage-studio/mirage/internal/generation/provider"
)

// passthroughStorage behaves like the degraded, unconfigured uploader.
type passthroughStorage struct{}

func (passthroughStorage) Configured() bool { return false }
func (passthroughStorage) Upload(ctx context.Context, payload any, key, contentType string) (string, error) {
	return "", nil
}
func (passthroughStorage) GenerateKey(prefix, ext string) string { return prefix + "/key." + ext }
func (passthroughStorage) EnsureURL(ctx context.Context, srcURL, prefix, contentType string) string {
	return srcURL
}
func (passthroughStorage) ContentTypeFor(data, mode string) string { return "image/jpeg" }

// fakeProvider scripts a prediction API: each submission consumes the next
// scripted response, then polling walks the poll states one per request.
type fakeProvider struct {
	mu          sync.Mutex
	submissions []submission
	responses   []scriptedResponse
	pollStates  []pollState
	pollCalls   int
}

type submission struct {
	model string
	input map[string]any
}

type scriptedResponse struct {
	status     int
	retryAfter int
	prediction map[string]any
}

type pollState struct {
	status int
	body   map[string]any
}

func (f *fakeProvider) handler(t *testing.T, baseURL *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodPost {
			parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
			// /v1/models/{owner}/{name}/predictions
			model := strings.Join(parts[2:len(parts)-1], "/")

			var body struct {
				Input map[string]any `json:"input"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.submissions = append(f.submissions, submission{model: model, input: body.Input})

			if len(f.responses) == 0 {
				t.Errorf("unexpected submission to %s", r.URL.Path)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			next := f.responses[0]
			f.responses = f.responses[1:]

			if next.status == http.StatusTooManyRequests {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"retry_after": %d}`, next.retryAfter)
				return
			}
			prediction := next.prediction
			if prediction["urls"] == nil {
				prediction["urls"] = map[string]string{"get": *baseURL + "/v1/predictions/p1"}
			}
			w.WriteHeader(next.status)
			assert.NoError(t, json.NewEncoder(w).Encode(prediction))
			return
		}

		// Poll request.
		state := f.pollStates[len(f.pollStates)-1]
		if f.pollCalls < len(f.pollStates) {
			state = f.pollStates[f.pollCalls]
		}
		f.pollCalls++
		w.WriteHeader(state.status)
		assert.NoError(t, json.NewEncoder(w).Encode(state.body))
	}
}

type generationFixture struct {
	svc   domain.Service
	fake  *fakeProvider
	clock *clock.FakeClock
}

func setupGeneration(t *testing.T, fake *fakeProvider) generationFixture {
	t.Helper()

	var baseURL string
	server := httptest.NewServer(fake.handler(t, &baseURL))
	t.Cleanup(server.Close)
	baseURL = server.URL

	cfg := config.Config{
		Provider: config.ProviderConfig{
			APIToken:   "test-token",
			BaseURL:    server.URL,
			ImageModel: "acme/image-one",
			VideoModel: "acme/video-one",
		},
	}
	clk := clock.NewFakeClock(time.Now())
	svc := New(Params{
		Log:      zap.NewNop(),
		Clock:    clk,
		Provider: provider.New(cfg, clk, zap.NewNop()),
		Storage:  passthroughStorage{},
	})
	return generationFixture{svc: svc, fake: fake, clock: clk}
}

func succeeded(output string) map[string]any {
	return map[string]any{"id": "p1", "status": provider.StatusSucceeded, "output": output}
}

func TestGenerateImageSuccess(t *testing.T) {
	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusCreated, prediction: map[string]any{"id": "p1", "status": "processing"}},
		},
		pollStates: []pollState{
			{status: http.StatusOK, body: map[string]any{"id": "p1", "status": "processing"}},
			{status: http.StatusOK, body: succeeded("https://replicate.delivery/out.jpg")},
		},
	}
	f := setupGeneration(t, fake)

	result, err := f.svc.Generate(context.Background(), domain.Request{
		UserID:          "user-1",
		ReferenceImages: []string{"data:image/jpeg;base64,aGVsbG8="},
		Prompt:          "wearing a red dress",
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/out.jpg", result.Output)
	assert.Equal(t, 2, f.clock.Sleeps())

	// The submitted prompt carries the likeness instruction.
	assert.Len(t, fake.submissions, 1)
	assert.Equal(t, "acme/image-one", fake.submissions[0].model)
	prompt, _ := fake.submissions[0].input["prompt"].(string)
	assert.True(t, strings.HasPrefix(prompt, "wearing a red dress"))
	assert.Contains(t, prompt, "exact likeness")
}

func TestGenerateValidation(t *testing.T) {
	f := setupGeneration(t, &fakeProvider{})
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, domain.Request{Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrNoImage)

	_, err = f.svc.Generate(ctx, domain.Request{ReferenceImages: []string{"data:x"}})
	assert.ErrorIs(t, err, domain.ErrPromptRequired)

	_, err = f.svc.Generate(ctx, domain.Request{
		ReferenceImages: []string{"data:x"}, Prompt: "x", Mode: "audio",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestGenerateImageRetriesOnceWithPlainPrompt(t *testing.T) {
	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusTooManyRequests, retryAfter: 2},
			{status: http.StatusCreated, prediction: succeeded("https://replicate.delivery/out.jpg")},
		},
	}
	f := setupGeneration(t, fake)

	result, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{"data:image/jpeg;base64,aGVsbG8="},
		Prompt:          "wearing a red dress",
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/out.jpg", result.Output)

	assert.Len(t, fake.submissions, 2)
	first, _ := fake.submissions[0].input["prompt"].(string)
	second, _ := fake.submissions[1].input["prompt"].(string)
	assert.Contains(t, first, "exact likeness")
	// The retry goes out with the bare prompt.
	assert.Equal(t, "wearing a red dress", second)
}

func TestGenerateImageRateLimitedTwice(t *testing.T) {
	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusTooManyRequests, retryAfter: 1},
			{status: http.StatusTooManyRequests, retryAfter: 1},
		},
	}
	f := setupGeneration(t, fake)

	_, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{"data:image/jpeg;base64,aGVsbG8="},
		Prompt:          "a prompt",
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Len(t, fake.submissions, 2)
}

func TestGenerateContentPolicyRejection(t *testing.T) {
	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusCreated, prediction: map[string]any{"id": "p1", "status": "processing"}},
		},
		pollStates: []pollState{
			{status: http.StatusOK, body: map[string]any{
				"id":     "p1",
				"status": provider.StatusFailed,
				"error":  "flagged for nudity policy violation",
			}},
		},
	}
	f := setupGeneration(t, fake)

	_, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{"data:image/jpeg;base64,aGVsbG8="},
		Prompt:          "a prompt",
	})
	assert.ErrorIs(t, err, domain.ErrContentPolicy)
}

func TestGenerateFailureWithoutPolicyKeyword(t *testing.T) {
	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusCreated, prediction: map[string]any{"id": "p1", "status": "processing"}},
		},
		pollStates: []pollState{
			{status: http.StatusOK, body: map[string]any{
				"id":     "p1",
				"status": provider.StatusFailed,
				"error":  "model exploded",
			}},
		},
	}
	f := setupGeneration(t, fake)

	_, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{"data:image/jpeg;base64,aGVsbG8="},
		Prompt:          "a prompt",
	})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.NotErrorIs(t, err, domain.ErrContentPolicy)
}

func TestGeneratePollCeiling(t *testing.T) {
	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusCreated, prediction: map[string]any{"id": "p1", "status": "processing"}},
		},
		pollStates: []pollState{
			{status: http.StatusOK, body: map[string]any{"id": "p1", "status": "processing"}},
		},
	}
	f := setupGeneration(t, fake)

	_, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{"data:image/jpeg;base64,aGVsbG8="},
		Prompt:          "a prompt",
	})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, 180, f.clock.Sleeps())
}

func TestGenerateVideoInlinesSource(t *testing.T) {
	sourceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(sourceServer.Close)

	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusCreated, prediction: succeeded("https://replicate.delivery/out.mp4")},
		},
	}
	f := setupGeneration(t, fake)

	result, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{sourceServer.URL + "/src.png"},
		Prompt:          "slow pan",
		Mode:            domain.ModeVideo,
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/out.mp4", result.Output)

	assert.Len(t, fake.submissions, 1)
	assert.Equal(t, "acme/video-one", fake.submissions[0].model)
	image, _ := fake.submissions[0].input["image"].(string)
	assert.True(t, strings.HasPrefix(image, "data:image/png;base64,"))
	frames, _ := fake.submissions[0].input["num_frames"].(float64)
	assert.Equal(t, float64(domain.DefaultNumFrames), frames)
}

func TestGenerateVideoSourceFetchFailure(t *testing.T) {
	sourceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(sourceServer.Close)

	f := setupGeneration(t, &fakeProvider{})

	_, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{sourceServer.URL + "/gone.png"},
		Prompt:          "slow pan",
		Mode:            domain.ModeVideo,
	})
	assert.ErrorIs(t, err, domain.ErrSourceFetch)
}

func TestGenerateVideoRateLimitedNoRetry(t *testing.T) {
	fake := &fakeProvider{
		responses: []scriptedResponse{
			{status: http.StatusTooManyRequests, retryAfter: 1},
		},
	}
	f := setupGeneration(t, fake)

	_, err := f.svc.Generate(context.Background(), domain.Request{
		ReferenceImages: []string{"data:image/jpeg;base64,aGVsbG8="},
		Prompt:          "slow pan",
		Mode:            domain.ModeVideo,
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Len(t, fake.submissions, 1)
}
