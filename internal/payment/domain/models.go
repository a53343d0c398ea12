package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// Order tracks a credit purchase from charge creation to settlement.
// Status moves one way: pending to completed, failed or expired; a
// completed order never regresses.
type Order struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID      string         `gorm:"not null;index" json:"user_id"`
	UserEmail   string         `json:"user_email"`
	PackageID   string         `gorm:"not null" json:"package_id"`
	Credits     int64          `gorm:"not null" json:"credits"`
	Amount      int64          `gorm:"not null" json:"amount"`
	Currency    string         `gorm:"not null;default:USD" json:"currency"`
	Status      string         `gorm:"not null;index" json:"status"`
	ChargeID    string         `gorm:"index" json:"charge_id"`
	ChargeCode  string         `json:"charge_code"`
	ChargeData  datatypes.JSON `json:"charge_data,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

type ChargeResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	ChargeID    string `json:"chargeId"`
}

type Identity struct {
	ID    string
	Email string
}

type Service interface {
	// CreateCharge opens a pending order and a hosted checkout for the
	// given credit package.
	CreateCharge(ctx context.Context, buyer Identity, packageID string) (ChargeResult, error)
	// IngestWebhook verifies the signed payload and settles the referenced
	// order. Confirmed charges credit the buyer exactly once.
	IngestWebhook(ctx context.Context, rawBody []byte, signature string) error
}

var (
	ErrInvalidPackage   = errors.New("invalid_package")
	ErrNotConfigured    = errors.New("payments_not_configured")
	ErrChargeFailed     = errors.New("charge_failed")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrMissingMetadata  = errors.New("missing_metadata")
	ErrOrderNotFound    = errors.New("order_not_found")
)
