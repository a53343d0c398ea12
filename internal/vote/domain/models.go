package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionNone = "none"
)

// Vote is a single user's judgment on a creation. At most one row exists
// per (user, creation) pair.
type Vote struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CreationID snowflake.ID `gorm:"not null;uniqueIndex:idx_votes_creation_user" json:"creation_id"`
	UserID     string       `gorm:"not null;uniqueIndex:idx_votes_creation_user" json:"user_id"`
	Direction  string       `gorm:"not null" json:"direction"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

// Result reports the creation's score and the caller's vote state after a
// cast.
type Result struct {
	VoteScore int64  `json:"voteScore"`
	UserVote  string `json:"userVote"`
}

type Service interface {
	// Cast applies the toggle semantics: repeating a direction retracts the
	// vote, the opposite direction flips it in place, and the creation's
	// denormalized score absorbs the corresponding delta atomically.
	Cast(ctx context.Context, userID, creationID, direction string) (Result, error)
}

var (
	ErrInvalidCreation  = errors.New("invalid_creation")
	ErrInvalidDirection = errors.New("invalid_direction")
	ErrCreationNotFound = errors.New("creation_not_found")
)
