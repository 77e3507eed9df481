package repository

import (
	"context"
	"testing"
	"time"

	"agrimatch/internal/model"
	"agrimatch/internal/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAccountRepository_GetOrCreate(t *testing.T) {
	db := storetest.NewDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.GetByUserID(ctx, nil, 1)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	a, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.CreateIfAbsent(ctx, 1))
	b, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestAccountRepository_UpdateBalance(t *testing.T) {
	db := storetest.NewDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 2)
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		account, err := repo.GetByUserIDForUpdate(ctx, tx, 2)
		if err != nil {
			return err
		}
		return repo.UpdateBalance(ctx, tx, account.UserID, 15, decimal.RequireFromString("2.5"))
	})
	require.NoError(t, err)

	account, err := repo.GetByUserID(ctx, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(15), account.PointsBalance)
	assert.True(t, decimal.RequireFromString("2.5").Equal(account.CnyBalance))

	assert.ErrorIs(t, repo.UpdateBalance(ctx, db, 999, 1, decimal.Zero), ErrAccountNotUpdated)
}

func TestTransactionRepository_Ordering(t *testing.T) {
	db := storetest.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	for i, no := range []string{"PTX1", "PTX2", "PTX3"} {
		require.NoError(t, repo.Create(ctx, nil, &model.PointsTransaction{
			TransactionNo:      no,
			UserID:             7,
			TxType:             model.TxTypeRecharge,
			PointsDelta:        int64(i + 1),
			CnyDelta:           decimal.Zero,
			BalanceAfterPoints: int64((i + 1) * (i + 2) / 2),
			BalanceAfterCny:    decimal.Zero,
		}))
	}

	desc, err := repo.ListByUserID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, "PTX3", desc[0].TransactionNo)

	asc, err := repo.ListByUserIDAsc(ctx, nil, 7)
	require.NoError(t, err)
	assert.Equal(t, "PTX1", asc[0].TransactionNo)

	page, total, err := repo.PageByUserID(ctx, 7, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "PTX1", page[0].TransactionNo)

	points, cny := model.ReplayBalance(asc)
	assert.Equal(t, int64(6), points)
	assert.True(t, cny.IsZero())

	// 流水号唯一
	err = repo.Create(ctx, nil, &model.PointsTransaction{TransactionNo: "PTX1", UserID: 7, TxType: model.TxTypeRecharge})
	assert.Error(t, err)
}

func TestRechargeOrderRepository_UpdateStatus(t *testing.T) {
	db := storetest.NewDB(t)
	repo := NewRechargeOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.RechargeOrder{
		OrderNo: "R1", UserID: 1, Amount: decimal.NewFromInt(10), Points: 10, Status: model.RechargeStatusPending,
	}))

	assert.ErrorIs(t, repo.UpdateStatus(ctx, nil, "R1", model.RechargeStatusPaid, model.RechargeStatusClosed, ""), ErrRechargeOrderStatusInvalid)
	require.NoError(t, repo.UpdateStatus(ctx, nil, "R1", model.RechargeStatusPending, model.RechargeStatusPaid, "T1"))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, nil, "R1", model.RechargeStatusPending, model.RechargeStatusPaid, "T1"), ErrRechargeOrderStatusInvalid)

	order, err := repo.GetByOrderNo(ctx, nil, "R1")
	require.NoError(t, err)
	assert.Equal(t, model.RechargeStatusPaid, order.Status)
	assert.Equal(t, "T1", order.TradeNo)

	_, err = repo.GetByOrderNo(ctx, nil, "R2")
	assert.ErrorIs(t, err, ErrRechargeOrderNotFound)
}

func TestRechargeOrderRepository_Sums(t *testing.T) {
	db := storetest.NewDB(t)
	repo := NewRechargeOrderRepository(db)
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	for no, status := range map[string]string{"R1": model.RechargeStatusPending, "R2": model.RechargeStatusPaid, "R3": model.RechargeStatusClosed} {
		require.NoError(t, repo.Create(ctx, &model.RechargeOrder{
			OrderNo: no, UserID: 5, Amount: decimal.NewFromInt(10), Points: 10, Status: status,
		}))
	}

	total, err := repo.SumPointsSince(ctx, 5, since)
	require.NoError(t, err)
	assert.Equal(t, int64(20), total)

	expired, err := repo.GetExpiredPending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "R1", expired[0].OrderNo)
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	db := storetest.NewDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	msg := &model.OutboxMessage{MessageKey: "PTX1", Topic: "points_changed", Payload: "{}", Status: model.OutboxStatusPending}
	require.NoError(t, repo.Create(ctx, nil, msg))

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.IncrementRetryCount(ctx, msg.ID))
	require.NoError(t, repo.MarkSent(ctx, msg.ID))

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusSent, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCardRedemptionRepository(t *testing.T) {
	db := storetest.NewDB(t)
	repo := NewCardRedemptionRepository(db)
	ctx := context.Background()

	for _, v := range []int64{50, 100} {
		require.NoError(t, repo.Create(ctx, nil, &model.CardRedemption{
			UserID: 3, PointsCost: v, FaceValue: v, CardCode: "C", Status: model.CardRedeemStatusSuccess,
		}))
	}

	processing := &model.CardRedemption{UserID: 3, PointsCost: 200, FaceValue: 200, Status: model.CardRedeemStatusProcessing}
	require.NoError(t, repo.Create(ctx, nil, processing))
	require.NoError(t, repo.MarkFailed(ctx, nil, processing.ID))
	assert.ErrorIs(t, repo.MarkIssued(ctx, processing.ID, "C2", "local"), ErrCardRedemptionStatusInvalid)

	total, err := repo.SumFaceValueSince(ctx, 3, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)

	list, err := repo.ListByUserID(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, model.CardRedeemStatusFailed, list[0].Status)
	assert.Equal(t, int64(100), list[1].FaceValue)
}
