package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	"github.com/mirage-studio/mirage/internal/favorite/domain"
	"github.com/mirage-studio/mirage/pkg/db/pagination"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, creationID snowflake.ID, userID string) (*domain.Favorite, error)
	Insert(ctx context.Context, db *gorm.DB, f *domain.Favorite) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CreationExists(ctx context.Context, db *gorm.DB, creationID snowflake.ID) (bool, error)
	ListCreations(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]creationdomain.Creation, int64, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, creationID snowflake.ID, userID string) (*domain.Favorite, error) {
	var f domain.Favorite
	err := db.WithContext(ctx).
		Where("creation_id = ? AND user_id = ?", creationID, userID).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, f *domain.Favorite) error {
	return db.WithContext(ctx).Create(f).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Favorite{}).Error
}

func (r *repo) CreationExists(ctx context.Context, db *gorm.DB, creationID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table("creations").
		Where("id = ?", creationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListCreations(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]creationdomain.Creation, int64, error) {
	base := db.WithContext(ctx).
		Table("creations").
		Joins("JOIN favorites ON favorites.creation_id = creations.id").
		Where("favorites.user_id = ?", userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []creationdomain.Creation
	err := page.Apply(base.Session(&gorm.Session{}).
		Select("creations.*").
		Order("favorites.created_at DESC")).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
