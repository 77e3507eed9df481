package service

import (
	"context"
	"errors"
	"fmt"

	"agrimatch/internal/infrastructure/lock"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidAmount          = errors.New("积分数量不合法")
	ErrInsufficientBalance    = errors.New("积分不足")
	ErrAccountNotFound        = errors.New("积分账户不存在")
	ErrConcurrencyConflict    = errors.New("系统繁忙，请稍后重试")
	ErrDailyLimitExceeded     = errors.New("已超过今日限额")
	ErrUnsupportedFaceValue   = errors.New("不支持的面额")
	ErrRechargeOrderNotFound  = errors.New("充值订单不存在")
	ErrRechargeOrderClosed    = errors.New("充值订单已关闭")
	ErrLedgerMismatch         = errors.New("流水回放与账户余额不一致")
	errRechargeOrderProcessed = errors.New("充值订单已处理")
)

// MySQL: 1205 锁等待超时, 1213 死锁
// Postgres: 40001 串行化失败, 40P01 死锁, 55P03 NOWAIT 获取锁失败
func isLockConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

// classify 把存储层和锁的错误归入对外的错误分类，业务错误原样返回
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrConcurrencyConflict),
		errors.Is(err, ErrDailyLimitExceeded),
		errors.Is(err, ErrUnsupportedFaceValue),
		errors.Is(err, ErrRechargeOrderNotFound),
		errors.Is(err, ErrRechargeOrderClosed),
		errors.Is(err, ErrLedgerMismatch):
		return err
	case errors.Is(err, lock.ErrLockFailed),
		errors.Is(err, context.DeadlineExceeded),
		isLockConflict(err):
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	default:
		return fmt.Errorf("积分账本存储异常: %w", err)
	}
}
