package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	"github.com/mirage-studio/mirage/internal/referral/domain"
)

type Repository interface {
	FindUserByCode(ctx context.Context, db *gorm.DB, code string) (*creditdomain.User, error)
	SetCode(ctx context.Context, db *gorm.DB, userID, code string) error
	IncrementClicks(ctx context.Context, db *gorm.DB, code string) error
	FindByReferee(ctx context.Context, db *gorm.DB, refereeID string) (*domain.Referral, error)
	Insert(ctx context.Context, db *gorm.DB, ref *domain.Referral) error
	Stats(ctx context.Context, db *gorm.DB, referrerID string) (signups, creditsEarned int64, err error)
	Recent(ctx context.Context, db *gorm.DB, referrerID string, limit int) ([]domain.Referral, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) FindUserByCode(ctx context.Context, db *gorm.DB, code string) (*creditdomain.User, error) {
	var user creditdomain.User
	err := db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) SetCode(ctx context.Context, db *gorm.DB, userID, code string) error {
	return db.WithContext(ctx).Model(&creditdomain.User{}).
		Where("id = ? AND referral_code IS NULL", userID).
		Updates(map[string]any{
			"referral_code": code,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repo) IncrementClicks(ctx context.Context, db *gorm.DB, code string) error {
	return db.WithContext(ctx).Exec(
		"UPDATE users SET referral_clicks = referral_clicks + 1, updated_at = ? WHERE referral_code = ?",
		time.Now().UTC(), code,
	).Error
}

func (r *repo) FindByReferee(ctx context.Context, db *gorm.DB, refereeID string) (*domain.Referral, error) {
	var ref domain.Referral
	err := db.WithContext(ctx).Where("referee_id = ?", refereeID).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ref *domain.Referral) error {
	return db.WithContext(ctx).Create(ref).Error
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, referrerID string) (int64, int64, error) {
	var row struct {
		Signups       int64
		CreditsEarned int64
	}
	err := db.WithContext(ctx).
		Table("referrals").
		Select("COUNT(*) AS signups, COALESCE(SUM(credits_awarded), 0) AS credits_earned").
		Where("referrer_id = ?", referrerID).
		Take(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Signups, row.CreditsEarned, nil
}

func (r *repo) Recent(ctx context.Context, db *gorm.DB, referrerID string, limit int) ([]domain.Referral, error) {
	var refs []domain.Referral
	err := db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("signed_up_at DESC").
		Limit(limit).
		Find(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}
