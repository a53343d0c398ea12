package domain

import (
	"context"
	"errors"
)

const (
	ModeImage = "image"
	ModeVideo = "video"

	DefaultNumFrames = 81
)

type Request struct {
	UserID          string   `json:"-"`
	ReferenceImages []string `json:"referenceImages"`
	Prompt          string   `json:"prompt"`
	Mode            string   `json:"mode"`
	NumFrames       int      `json:"numFrames"`
}

type Result struct {
	Output string `json:"output"`
}

type Service interface {
	// Generate submits the request to the inference provider, waits for a
	// terminal status and returns a durable artifact URL.
	Generate(ctx context.Context, req Request) (Result, error)
}

var (
	ErrNoImage          = errors.New("no_image")
	ErrPromptRequired   = errors.New("prompt_required")
	ErrInvalidMode      = errors.New("invalid_mode")
	ErrRateLimited      = errors.New("rate_limited")
	ErrSourceFetch      = errors.New("source_fetch_failed")
	ErrContentPolicy    = errors.New("content_policy_violation")
	ErrGenerationFailed = errors.New("generation_failed")
)

// ContentPolicyMessage is the fixed user-facing text for safety rejections.
const ContentPolicyMessage = "Content too spicy! Try a tamer prompt or different image."
