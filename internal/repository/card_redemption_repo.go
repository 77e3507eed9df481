package repository

import (
	"context"
	"errors"
	"time"

	"agrimatch/internal/model"

	"gorm.io/gorm"
)

var ErrCardRedemptionStatusInvalid = errors.New("兑换记录状态不合法")

type CardRedemptionRepository struct {
	db *gorm.DB
}

func NewCardRedemptionRepository(db *gorm.DB) *CardRedemptionRepository {
	return &CardRedemptionRepository{db: db}
}

func (r *CardRedemptionRepository) Create(ctx context.Context, tx *gorm.DB, redemption *model.CardRedemption) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(redemption).Error
}

// MarkIssued PROCESSING -> SUCCESS，写入卡密
func (r *CardRedemptionRepository) MarkIssued(ctx context.Context, id int64, cardCode, provider string) error {
	return r.transition(ctx, r.db, id, map[string]interface{}{
		"status":    model.CardRedeemStatusSuccess,
		"card_code": cardCode,
		"provider":  provider,
	})
}

// MarkFailed PROCESSING -> FAILED，与退回积分在同一事务内调用
func (r *CardRedemptionRepository) MarkFailed(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	return r.transition(ctx, tx, id, map[string]interface{}{
		"status": model.CardRedeemStatusFailed,
	})
}

func (r *CardRedemptionRepository) transition(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	result := tx.WithContext(ctx).
		Model(&model.CardRedemption{}).
		Where("id = ? AND status = ?", id, model.CardRedeemStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardRedemptionStatusInvalid
	}
	return nil
}

// SumFaceValueSince 统计某时间之后未失败的兑换面额合计
func (r *CardRedemptionRepository) SumFaceValueSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.CardRedemption{}).
		Select("COALESCE(SUM(face_value), 0)").
		Where("user_id = ? AND status <> ? AND created_at >= ?", userID, model.CardRedeemStatusFailed, since).
		Scan(&total).Error
	return total, err
}

func (r *CardRedemptionRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.CardRedemption, error) {
	var list []*model.CardRedemption
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error
	return list, err
}
