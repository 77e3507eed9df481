package repository

import (
	"context"

	"agrimatch/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.PointsTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// ListByUserID 全部流水，最新的在前
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.PointsTransaction, error) {
	var transactions []*model.PointsTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&transactions).Error
	return transactions, err
}

// ListByUserIDAsc 按写入顺序返回，用于回放对账
func (r *TransactionRepository) ListByUserIDAsc(ctx context.Context, tx *gorm.DB, userID int64) ([]*model.PointsTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var transactions []*model.PointsTransaction
	err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) PageByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PointsTransaction, int64, error) {
	var transactions []*model.PointsTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PointsTransaction{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.PointsTransaction{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}
