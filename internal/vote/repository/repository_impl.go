package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/mirage-studio/mirage/internal/vote/domain"
)

type Repository interface {
	FindByUser(ctx context.Context, db *gorm.DB, creationID snowflake.ID, userID string) (*domain.Vote, error)
	Insert(ctx context.Context, db *gorm.DB, v *domain.Vote) error
	UpdateDirection(ctx context.Context, db *gorm.DB, id snowflake.ID, direction string) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ApplyScoreDelta(ctx context.Context, db *gorm.DB, creationID snowflake.ID, delta int64) error
	CreationScore(ctx context.Context, db *gorm.DB, creationID snowflake.ID) (int64, bool, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, creationID snowflake.ID, userID string) (*domain.Vote, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("creation_id = ? AND user_id = ?", creationID, userID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, v *domain.Vote) error {
	return db.WithContext(ctx).Create(v).Error
}

func (r *repo) UpdateDirection(ctx context.Context, db *gorm.DB, id snowflake.ID, direction string) error {
	return db.WithContext(ctx).Model(&domain.Vote{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"direction":  direction,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Vote{}).Error
}

func (r *repo) ApplyScoreDelta(ctx context.Context, db *gorm.DB, creationID snowflake.ID, delta int64) error {
	return db.WithContext(ctx).Exec(
		"UPDATE creations SET vote_score = vote_score + ?, updated_at = ? WHERE id = ?",
		delta, time.Now().UTC(), creationID,
	).Error
}

func (r *repo) CreationScore(ctx context.Context, db *gorm.DB, creationID snowflake.ID) (int64, bool, error) {
	var row struct {
		VoteScore int64
	}
	err := db.WithContext(ctx).
		Table("creations").
		Select("vote_score").
		Where("id = ?", creationID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.VoteScore, true, nil
}
