package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirage-studio/mirage/internal/clock"
	"github.com/mirage-studio/mirage/internal/config"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"

	PollInterval = time.Second
)

var ErrPoll = errors.New("poll_failed")

// RateLimitedError reports a 429 on prediction submission together with the
// provider-suggested wait.
type RateLimitedError struct {
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
}

// Prediction mirrors the provider's prediction resource.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Output json.RawMessage `json:"output"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Terminal reports whether the prediction reached a final status.
func (p Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// FirstOutput returns the artifact URL: a bare string output, or the first
// element when the provider returns an array.
func (p Prediction) FirstOutput() string {
	if len(p.Output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// Client talks to a Replicate-compatible prediction API.
type Client struct {
	cfg   config.ProviderConfig
	log   *zap.Logger
	clock clock.Clock
	httpc *http.Client
}

func New(cfg config.Config, clk clock.Clock, log *zap.Logger) *Client {
	return &Client{
		cfg:   cfg.Provider,
		log:   log.Named("provider"),
		clock: clk,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) ImageModel() string { return c.cfg.ImageModel }
func (c *Client) VideoModel() string { return c.cfg.VideoModel }

// CreatePrediction submits a prediction for the given model. A 429 comes
// back as *RateLimitedError so callers can decide whether to retry.
func (c *Client) CreatePrediction(ctx context.Context, model string, input map[string]any) (Prediction, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return Prediction{}, err
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", strings.TrimRight(c.cfg.BaseURL, "/"), model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Prediction{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Prediction{}, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var parsed struct {
			RetryAfter int `json:"retry_after"`
		}
		_ = json.Unmarshal(raw, &parsed)
		if parsed.RetryAfter <= 0 {
			parsed.RetryAfter = 5
		}
		return Prediction{}, &RateLimitedError{RetryAfter: parsed.RetryAfter}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("prediction submit rejected",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return Prediction{}, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prediction{}, err
	}
	return p, nil
}

// Poll follows the prediction until it reaches a terminal status or the
// attempt ceiling, one request per second. On ceiling the last seen state
// is returned as-is. Any transport or non-OK response during polling is
// fatal.
func (c *Client) Poll(ctx context.Context, p Prediction, maxAttempts int) (Prediction, error) {
	result := p
	for attempts := 0; !result.Terminal() && attempts < maxAttempts; attempts++ {
		if err := c.clock.Sleep(ctx, PollInterval); err != nil {
			return result, err
		}

		url := result.URLs.Get
		if url == "" {
			url = fmt.Sprintf("%s/v1/predictions/%s", strings.TrimRight(c.cfg.BaseURL, "/"), p.ID)
		}
		next, err := c.fetchPrediction(ctx, url)
		if err != nil {
			return result, err
		}
		result = next
	}
	return result, nil
}

func (c *Client) fetchPrediction(ctx context.Context, url string) (Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrPoll, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("%w: status %d", ErrPoll, resp.StatusCode)
	}
	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrPoll, err)
	}
	return p, nil
}
