package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirage-studio/mirage/internal/config"
)

const keyGenerateUser = "generate:user:%s"

// GenerateLimiter throttles generation submissions per user. A nil limiter
// (rate limiting disabled) allows everything.
type GenerateLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewGenerateLimiter(cfg config.Config) (*GenerateLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.GenerateRate <= 0 || limitCfg.GenerateBurst <= 0 {
		return nil, errors.New("generate rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &GenerateLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.GenerateRate,
		burst:   limitCfg.GenerateBurst,
	}, nil
}

func (l *GenerateLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *GenerateLimiter) AllowUser(ctx context.Context, userID string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyGenerateUser, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}
