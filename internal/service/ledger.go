package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agrimatch/internal/infrastructure/lock"
	"agrimatch/internal/model"
	"agrimatch/internal/repository"
	"agrimatch/pkg/idgen"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultRedeemCnyRate 兑换策略：1 积分 = 1 元
var DefaultRedeemCnyRate = decimal.NewFromInt(1)

// cnyScale 人民币金额保留两位小数，与 decimal(20,2) 列一致
const cnyScale = 2

// LedgerOptions 账本策略
type LedgerOptions struct {
	// 兑换时 1 积分折算的人民币，充值不折算
	RedeemCnyRate decimal.Decimal
	// 为空时不写 outbox
	EventTopic string
}

// Ledger 积分账本
//
// 每次变动都是：用户锁 -> 事务 -> 行锁读 -> 校验 -> 更新余额 -> 追加流水 -> 写 outbox -> 提交。
// 任何一步失败整个事务回滚，不存在只改余额或只写流水的中间状态。
type Ledger struct {
	db              *gorm.DB
	locker          lock.Locker
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
	redeemRate      decimal.Decimal
	eventTopic      string
}

func NewLedger(db *gorm.DB, locker lock.Locker, opts LedgerOptions) *Ledger {
	return &Ledger{
		db:              db,
		locker:          locker,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		redeemRate:      opts.RedeemCnyRate,
		eventTopic:      opts.EventTopic,
	}
}

// mutation 一次余额变动
type mutation struct {
	userID      int64
	txType      string
	pointsDelta int64
	cnyDelta    decimal.Decimal
	refNo       string
	remark      string

	// 持有用户锁、事务开始前执行
	guard func(ctx context.Context) error
	// 事务内、行锁之前执行
	before func(tx *gorm.DB) error
	// 事务内、流水写入之后执行
	after func(tx *gorm.DB, account *model.PointsAccount) error
}

// GetOrCreateAccount 返回用户账户，不存在时创建零余额账户
func (l *Ledger) GetOrCreateAccount(ctx context.Context, userID int64) (*model.PointsAccount, error) {
	account, err := l.accountRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return account, nil
}

// Balance 积分余额
func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	account, err := l.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.PointsBalance, nil
}

// Recharge 纯积分充值，不影响人民币余额
func (l *Ledger) Recharge(ctx context.Context, userID int64, points int64) (*model.PointsAccount, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, mutation{
		userID:      userID,
		txType:      model.TxTypeRecharge,
		pointsDelta: points,
		cnyDelta:    decimal.Zero,
		remark:      "recharge",
	})
}

// Redeem 积分兑换为人民币余额，按配置汇率折算
func (l *Ledger) Redeem(ctx context.Context, userID int64, points int64) (*model.PointsAccount, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, mutation{
		userID:      userID,
		txType:      model.TxTypeRedeem,
		pointsDelta: -points,
		cnyDelta:    l.redeemRate.Mul(decimal.NewFromInt(points)).Round(cnyScale),
		remark:      "redeem",
	})
}

// Add 悬赏等业务发放积分
func (l *Ledger) Add(ctx context.Context, userID int64, points int64, remark string) (*model.PointsAccount, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, mutation{
		userID:      userID,
		txType:      model.TxTypeBountyReward,
		pointsDelta: points,
		cnyDelta:    decimal.Zero,
		remark:      remark,
	})
}

// Deduct 悬赏等业务扣除积分
func (l *Ledger) Deduct(ctx context.Context, userID int64, points int64, remark string) (*model.PointsAccount, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.apply(ctx, mutation{
		userID:      userID,
		txType:      model.TxTypeBountyDeduct,
		pointsDelta: -points,
		cnyDelta:    decimal.Zero,
		remark:      remark,
	})
}

// History 用户全部流水，最新的在前；只读，不加锁
func (l *Ledger) History(ctx context.Context, userID int64) ([]*model.PointsTransaction, error) {
	txs, err := l.transactionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return txs, nil
}

// maxHistoryPage 页码上限，保证 (page-1)*pageSize 不溢出
const maxHistoryPage = 1000000

// HistoryPage 分页流水，超出上限的页码按最后一页之后处理，返回空列表
func (l *Ledger) HistoryPage(ctx context.Context, userID int64, page, pageSize int) ([]*model.PointsTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if page > maxHistoryPage {
		page = maxHistoryPage
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	txs, total, err := l.transactionRepo.PageByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, classify(err)
	}
	return txs, total, nil
}

// Reconcile 在行锁下回放流水并与账户余额比对
func (l *Ledger) Reconcile(ctx context.Context, userID int64) error {
	if _, err := l.accountRepo.GetOrCreate(ctx, userID); err != nil {
		return classify(err)
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := l.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		txs, err := l.transactionRepo.ListByUserIDAsc(ctx, tx, userID)
		if err != nil {
			return err
		}
		points, cny := model.ReplayBalance(txs)
		if points != account.PointsBalance || !cny.Equal(account.CnyBalance) {
			return fmt.Errorf("%w: user=%d stored=(%d,%s) replay=(%d,%s)", ErrLedgerMismatch,
				userID, account.PointsBalance, account.CnyBalance, points, cny)
		}
		return nil
	})
	return classify(err)
}

func (l *Ledger) apply(ctx context.Context, m mutation) (*model.PointsAccount, error) {
	if _, err := l.accountRepo.GetOrCreate(ctx, m.userID); err != nil {
		return nil, classify(err)
	}

	unlock, err := l.locker.Lock(ctx, m.userID)
	if err != nil {
		return nil, classify(err)
	}
	defer unlock()

	if m.guard != nil {
		if err := m.guard(ctx); err != nil {
			return nil, classify(err)
		}
	}

	var (
		out  *model.PointsAccount
		txNo = idgen.GenerateTransactionNo()
	)
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.before != nil {
			if err := m.before(tx); err != nil {
				return err
			}
		}

		account, err := l.accountRepo.GetByUserIDForUpdate(ctx, tx, m.userID)
		if err != nil {
			return err
		}

		newPoints, ok := addPoints(account.PointsBalance, m.pointsDelta)
		if !ok {
			return ErrInvalidAmount
		}
		if newPoints < 0 {
			return ErrInsufficientBalance
		}
		newCny := account.CnyBalance.Add(m.cnyDelta)
		if newCny.IsNegative() {
			return ErrInsufficientBalance
		}

		if err := l.accountRepo.UpdateBalance(ctx, tx, m.userID, newPoints, newCny); err != nil {
			return fmt.Errorf("更新余额失败: %w", err)
		}

		record := &model.PointsTransaction{
			TransactionNo:      txNo,
			UserID:             m.userID,
			TxType:             m.txType,
			PointsDelta:        m.pointsDelta,
			CnyDelta:           m.cnyDelta,
			BalanceAfterPoints: newPoints,
			BalanceAfterCny:    newCny,
			RefNo:              m.refNo,
			Remark:             m.remark,
		}
		if err := l.transactionRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := l.writeEvent(ctx, tx, record); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		account.PointsBalance = newPoints
		account.CnyBalance = newCny

		if m.after != nil {
			if err := m.after(tx, account); err != nil {
				return err
			}
		}

		out = account
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	log.Info().
		Int64("user_id", m.userID).
		Str("tx_type", m.txType).
		Int64("points_delta", m.pointsDelta).
		Str("cny_delta", m.cnyDelta.String()).
		Int64("points_balance", out.PointsBalance).
		Str("transaction_no", txNo).
		Msg("积分变动成功")

	return out, nil
}

func (l *Ledger) writeEvent(ctx context.Context, tx *gorm.DB, record *model.PointsTransaction) error {
	if l.eventTopic == "" {
		return nil
	}
	payload, err := json.Marshal(model.PointsChangedEvent{
		TransactionNo:      record.TransactionNo,
		UserID:             record.UserID,
		TxType:             record.TxType,
		PointsDelta:        record.PointsDelta,
		CnyDelta:           record.CnyDelta.String(),
		BalanceAfterPoints: record.BalanceAfterPoints,
		BalanceAfterCny:    record.BalanceAfterCny.String(),
		RefNo:              record.RefNo,
		OccurredAt:         time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return l.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: record.TransactionNo,
		Topic:      l.eventTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

// addPoints 带溢出检查的加法
func addPoints(a, b int64) (int64, bool) {
	r := a + b
	if (a^r)&(b^r) < 0 {
		return 0, false
	}
	return r, true
}
