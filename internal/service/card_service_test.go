package service

import (
	"context"
	"errors"
	"testing"

	"agrimatch/internal/infrastructure/giftcard"
	"agrimatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, int64, int64) (*giftcard.Card, error) {
	return nil, giftcard.ErrIssueFailed
}

func TestCardService_Redeem(t *testing.T) {
	ledger, db := newTestLedger(t)
	svc := NewCardService(db, ledger, giftcard.LocalIssuer{}, testLimits)
	ctx := context.Background()

	_, err := ledger.Recharge(ctx, 1, 300)
	require.NoError(t, err)

	resp, err := svc.Redeem(ctx, 1, 100)
	require.NoError(t, err)
	assert.NotZero(t, resp.RedeemID)
	assert.NotEmpty(t, resp.CardCode)
	assert.Equal(t, int64(100), resp.PointsCost)
	assert.Equal(t, int64(200), resp.NewPointsBalance)

	records, err := svc.Records(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resp.CardCode, records[0].CardCode)
	assert.Equal(t, model.CardRedeemStatusSuccess, records[0].Status)

	_, err = svc.Redeem(ctx, 1, 500)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, ledger.Reconcile(ctx, 1))
}

func TestCardService_RejectsUnsupportedFaceValue(t *testing.T) {
	ledger, db := newTestLedger(t)
	svc := NewCardService(db, ledger, giftcard.LocalIssuer{}, testLimits)

	for _, v := range []int64{0, -50, 30, 1000} {
		_, err := svc.Redeem(context.Background(), 2, v)
		assert.ErrorIs(t, err, ErrUnsupportedFaceValue, "face=%d", v)
	}
}

func TestCardService_DailyLimit(t *testing.T) {
	ledger, db := newTestLedger(t)
	limits := testLimits
	limits.RedeemDayMax = 150
	svc := NewCardService(db, ledger, giftcard.LocalIssuer{}, limits)
	ctx := context.Background()

	_, err := ledger.Recharge(ctx, 3, 1000)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, 3, 100)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, 3, 100)
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	_, err = svc.Redeem(ctx, 3, 50)
	require.NoError(t, err)

	view, err := svc.Limits(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(150), view.TodayRedeemTotal)
	assert.Equal(t, limits.RedeemDayMax, view.RedeemDayMax)

	anon, err := svc.Limits(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, anon.TodayRedeemTotal)
}

func TestCardService_SingleRedeemCap(t *testing.T) {
	ledger, db := newTestLedger(t)
	limits := testLimits
	limits.RedeemMax = 100
	svc := NewCardService(db, ledger, giftcard.LocalIssuer{}, limits)

	_, err := svc.Redeem(context.Background(), 4, 200)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCardService_IssueFailureRefundsPoints(t *testing.T) {
	ledger, db := newTestLedger(t)
	svc := NewCardService(db, ledger, failingIssuer{}, testLimits)
	ctx := context.Background()

	_, err := ledger.Recharge(ctx, 5, 100)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, 5, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, giftcard.ErrIssueFailed))

	balance, err := ledger.Balance(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	history, err := ledger.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.TxTypeCardRefund, history[0].TxType)
	assert.Equal(t, int64(50), history[0].PointsDelta)
	assert.Equal(t, model.TxTypeCardRedeem, history[1].TxType)

	records, err := svc.Records(ctx, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.CardRedeemStatusFailed, records[0].Status)
	assert.Empty(t, records[0].CardCode)

	// 失败的兑换不占用当日额度
	view, err := svc.Limits(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, view.TodayRedeemTotal)

	require.NoError(t, ledger.Reconcile(ctx, 5))
}
