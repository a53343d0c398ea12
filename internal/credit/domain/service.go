package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Identity is the caller's snapshot as presented by the auth proxy.
type Identity struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

type Service interface {
	// GetOrCreate returns the user's row, creating it with DefaultCredits
	// on first observation.
	GetOrCreate(ctx context.Context, identity Identity) (User, error)
	Balance(ctx context.Context, userID string) (int64, error)
	HasSufficient(ctx context.Context, userID, kind string) (bool, error)
	// Debit atomically decrements the balance by the kind's cost. The
	// decrement and the sufficiency check are a single conditional update;
	// there is no partial debit.
	Debit(ctx context.Context, userID, kind string) (int64, error)
	// Credit atomically increments the balance, creating the user row first
	// if needed.
	Credit(ctx context.Context, userID string, amount int64, txType, description string) (int64, error)
	// CreditTx is Credit running on the caller's handle so the increment
	// commits or rolls back together with the caller's own writes.
	CreditTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, txType, description string) (int64, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientCredits = errors.New("insufficient_credits")
)
