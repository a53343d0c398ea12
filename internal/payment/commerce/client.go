package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirage-studio/mirage/internal/config"
)

const apiVersion = "2018-03-22"

// ChargeRequest describes a fixed-price hosted checkout.
type ChargeRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	PricingType string            `json:"pricing_type"`
	LocalPrice  LocalPrice        `json:"local_price"`
	Metadata    map[string]string `json:"metadata"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	CancelURL   string            `json:"cancel_url,omitempty"`
}

type LocalPrice struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type Charge struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	HostedURL string `json:"hosted_url"`
}

// Client talks to the Coinbase Commerce charges API.
type Client struct {
	cfg   config.CommerceConfig
	log   *zap.Logger
	httpc *http.Client
}

func New(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		cfg:   cfg.Commerce,
		log:   log.Named("commerce"),
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *Client) WebhookSecret() string {
	return c.cfg.WebhookSecret
}

func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Charge{}, err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/charges"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Charge{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-CC-Api-Key", c.cfg.APIKey)
	httpReq.Header.Set("X-CC-Version", apiVersion)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Charge{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Charge{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("create charge rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return Charge{}, fmt.Errorf("commerce returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Data Charge `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Charge{}, err
	}
	return envelope.Data, nil
}
