package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mirage-studio/mirage/internal/payment/domain"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error)
	SetCharge(ctx context.Context, db *gorm.DB, id snowflake.ID, chargeID, chargeCode string) error
	// MarkCompleted flips a not-yet-completed order to completed and
	// reports whether this call won the transition.
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, chargeData datatypes.JSON) (bool, error)
	// MarkClosed moves a still-pending order to failed or expired.
	MarkClosed(ctx context.Context, db *gorm.DB, id snowflake.ID, status string) error
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) SetCharge(ctx context.Context, db *gorm.DB, id snowflake.ID, chargeID, chargeCode string) error {
	return db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"charge_id":   chargeID,
			"charge_code": chargeCode,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, chargeData datatypes.JSON) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status <> ?", id, domain.StatusCompleted).
		Updates(map[string]any{
			"status":       domain.StatusCompleted,
			"charge_data":  chargeData,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkClosed(ctx context.Context, db *gorm.DB, id snowflake.ID, status string) error {
	return db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}
