package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	// CodeAlphabet omits lookalike characters (I, O, 0, 1).
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6

	ReferrerReward int64 = 10
	RefereeReward  int64 = 5
)

// Referral records a completed signup attributed to a referrer's code.
// At most one row exists per referee.
type Referral struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	ReferrerID     string       `gorm:"not null;index" json:"referrer_id"`
	RefereeID      string       `gorm:"not null;uniqueIndex" json:"referee_id"`
	ReferralCode   string       `gorm:"not null" json:"referral_code"`
	CreditsAwarded int64        `gorm:"not null" json:"credits_awarded"`
	SignedUpAt     time.Time    `gorm:"not null" json:"signed_up_at"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

type Stats struct {
	Clicks        int64 `json:"clicks"`
	Signups       int64 `json:"signups"`
	CreditsEarned int64 `json:"creditsEarned"`
}

type RecentReferral struct {
	Date    time.Time `json:"date"`
	Credits int64     `json:"credits"`
}

type Summary struct {
	ReferralCode    string           `json:"referralCode"`
	Stats           Stats            `json:"stats"`
	Rewards         Rewards          `json:"rewards"`
	RecentReferrals []RecentReferral `json:"recentReferrals"`
}

type Rewards struct {
	Referrer int64 `json:"referrer"`
	Referee  int64 `json:"referee"`
}

type CompleteResult struct {
	CreditsAwarded int64  `json:"creditsAwarded"`
	Message        string `json:"message"`
}

type Service interface {
	// Summary returns the user's referral code (minting one on first use),
	// click and signup stats and the most recent completed referrals.
	Summary(ctx context.Context, userID string) (Summary, error)
	// TrackClick bumps the click counter for the code's owner. Requires no
	// authenticated viewer.
	TrackClick(ctx context.Context, code string) error
	// Complete attributes the user's signup to the given code and rewards
	// both sides once. Self-referral and repeat completion are no-ops.
	Complete(ctx context.Context, userID, code string) (CompleteResult, error)
}

var (
	ErrCodeRequired = errors.New("code_required")
	ErrCodeNotFound = errors.New("code_not_found")
)
