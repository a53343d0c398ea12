package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

// Favorite bookmarks a creation for a user. One row per (user, creation).
type Favorite struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CreationID snowflake.ID `gorm:"not null;uniqueIndex:idx_favorites_creation_user" json:"creation_id"`
	UserID     string       `gorm:"not null;uniqueIndex:idx_favorites_creation_user;index" json:"user_id"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

type ToggleResult struct {
	Favorited bool `json:"favorited"`
}

type ListResult struct {
	Items    []creationdomain.Creation `json:"items"`
	PageInfo pagination.PageInfo       `json:"pageInfo"`
}

type Service interface {
	// Toggle flips the favorite state for the (user, creation) pair and
	// reports the resulting state.
	Toggle(ctx context.Context, userID, creationID string) (ToggleResult, error)
	// IsFavorited reports whether the user has bookmarked the creation.
	IsFavorited(ctx context.Context, userID, creationID string) (bool, error)
	// List returns the user's favorited creations, most recently
	// favorited first.
	List(ctx context.Context, userID string, page pagination.Pagination) (ListResult, error)
}

var (
	ErrInvalidCreation  = errors.New("invalid_creation")
	ErrCreationNotFound = errors.New("creation_not_found")
)
