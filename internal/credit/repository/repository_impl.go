package repository

import (
	"context"
	"time"

	"github.com/mirage-studio/mirage/internal/credit/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	EnsureUser(ctx context.Context, db *gorm.DB, user *domain.User) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	// DebitIfSufficient performs the conditional decrement and reports
	// whether a row was updated.
	DebitIfSufficient(ctx context.Context, db *gorm.DB, id string, cost int64) (bool, error)
	Increment(ctx context.Context, db *gorm.DB, id string, amount int64) error
	InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) EnsureUser(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) DebitIfSufficient(ctx context.Context, db *gorm.DB, id string, cost int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET credits = credits - ?, updated_at = ? WHERE id = ? AND credits >= ?`,
		cost,
		time.Now().UTC(),
		id,
		cost,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, id string, amount int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`,
		amount,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Create(tx).Error
}
