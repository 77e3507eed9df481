package repository

import (
	"context"
	"errors"

	"agrimatch/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound   = errors.New("积分账户不存在")
	ErrAccountNotUpdated = errors.New("积分账户更新失败")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *AccountRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.PointsAccount, error) {
	var account model.PointsAccount
	err := r.conn(tx).WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByUserIDForUpdate 行锁读取（SELECT ... FOR UPDATE），必须在事务内调用
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.PointsAccount, error) {
	var account model.PointsAccount
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateIfAbsent 依赖 user_id 唯一索引，并发重复插入时静默忽略
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, userID int64) error {
	account := &model.PointsAccount{
		UserID:        userID,
		PointsBalance: 0,
		CnyBalance:    decimal.Zero,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(account).Error
}

// GetOrCreate 先读，不存在则插入后重读
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID int64) (*model.PointsAccount, error) {
	account, err := r.GetByUserID(ctx, nil, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	if err := r.CreateIfAbsent(ctx, userID); err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, nil, userID)
}

// UpdateBalance 写入新余额，必须在持有行锁的事务内调用
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, userID int64, points int64, cny decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&model.PointsAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"points_balance": points,
			"cny_balance":    cny,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return ErrAccountNotUpdated
	}
	return nil
}
