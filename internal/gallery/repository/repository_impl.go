package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	votedomain "github.com/mirage-studio/mirage/internal/vote/domain"
)

type Repository interface {
	// VotesByViewer returns the viewer's vote direction keyed by creation ID
	// for the given set of creations.
	VotesByViewer(ctx context.Context, db *gorm.DB, viewerID string, creationIDs []snowflake.ID) (map[snowflake.ID]string, error)
	// CreationsByOwner returns all of the owner's creations ordered by
	// subject label then descending score.
	CreationsByOwner(ctx context.Context, db *gorm.DB, ownerID, search string) ([]creationdomain.Creation, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) VotesByViewer(ctx context.Context, db *gorm.DB, viewerID string, creationIDs []snowflake.ID) (map[snowflake.ID]string, error) {
	out := make(map[snowflake.ID]string, len(creationIDs))
	if viewerID == "" || len(creationIDs) == 0 {
		return out, nil
	}
	var votes []votedomain.Vote
	err := db.WithContext(ctx).
		Where("user_id = ? AND creation_id IN ?", viewerID, creationIDs).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		out[v.CreationID] = v.Direction
	}
	return out, nil
}

func (r *repo) CreationsByOwner(ctx context.Context, db *gorm.DB, ownerID, search string) ([]creationdomain.Creation, error) {
	stmt := db.WithContext(ctx).
		Where("owner_id = ? AND model <> ''", ownerID)
	if search != "" {
		stmt = stmt.Where("LOWER(model) LIKE ?", "%"+search+"%")
	}
	var items []creationdomain.Creation
	err := stmt.Order("model ASC, vote_score DESC, created_at DESC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
