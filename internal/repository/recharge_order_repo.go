package repository

import (
	"context"
	"errors"
	"time"

	"agrimatch/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRechargeOrderNotFound      = errors.New("充值订单不存在")
	ErrRechargeOrderStatusInvalid = errors.New("充值订单状态不合法")
)

type RechargeOrderRepository struct {
	db *gorm.DB
}

func NewRechargeOrderRepository(db *gorm.DB) *RechargeOrderRepository {
	return &RechargeOrderRepository{db: db}
}

func (r *RechargeOrderRepository) Create(ctx context.Context, order *model.RechargeOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *RechargeOrderRepository) GetByOrderNo(ctx context.Context, tx *gorm.DB, orderNo string) (*model.RechargeOrder, error) {
	if tx == nil {
		tx = r.db
	}
	var order model.RechargeOrder
	err := tx.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRechargeOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 条件更新（where status = from），并发回调只有一个能成功
func (r *RechargeOrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo, fromStatus, toStatus, tradeNo string) error {
	if !model.CanRechargeTransitionTo(fromStatus, toStatus) {
		return ErrRechargeOrderStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.RechargeStatusPaid {
		now := time.Now()
		updates["paid_at"] = &now
		updates["trade_no"] = tradeNo
	}

	result := tx.WithContext(ctx).
		Model(&model.RechargeOrder{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRechargeOrderStatusInvalid
	}
	return nil
}

// SumPointsSince 统计某时间之后未关闭订单的积分合计
func (r *RechargeOrderRepository) SumPointsSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.RechargeOrder{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND status <> ? AND created_at >= ?", userID, model.RechargeStatusClosed, since).
		Scan(&total).Error
	return total, err
}

func (r *RechargeOrderRepository) GetExpiredPending(ctx context.Context, before time.Time, limit int) ([]*model.RechargeOrder, error) {
	var orders []*model.RechargeOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.RechargeStatusPending, before).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
