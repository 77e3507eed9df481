package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCloser struct {
	mock.Mock
}

func (m *mockCloser) CloseExpiredOrders(ctx context.Context, before time.Time, limit int) (int, error) {
	args := m.Called(ctx, before, limit)
	return args.Int(0), args.Error(1)
}

func TestRechargeTimeoutJob_RunOnce(t *testing.T) {
	closer := &mockCloser{}
	closer.On("CloseExpiredOrders", mock.Anything, mock.MatchedBy(func(before time.Time) bool {
		// before 约等于 now - 30m
		d := time.Since(before)
		return d >= 30*time.Minute && d < 31*time.Minute
	}), 100).Return(3, nil).Once()
	closer.On("CloseExpiredOrders", mock.Anything, mock.Anything, 100).Return(0, errors.New("db down")).Once()

	j := NewRechargeTimeoutJob(closer, 30*time.Minute)

	assert.Equal(t, 3, j.runOnce(context.Background()))
	assert.Equal(t, 0, j.runOnce(context.Background()))
	closer.AssertExpectations(t)
}

func TestRechargeTimeoutJob_StopsOnContextCancel(t *testing.T) {
	j := NewRechargeTimeoutJob(&mockCloser{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
}
