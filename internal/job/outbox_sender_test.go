package job

import (
	"context"
	"errors"
	"testing"

	"agrimatch/internal/model"
	"agrimatch/internal/repository"
	"agrimatch/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(topic, key, value string) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

func seedOutbox(t *testing.T, repo *repository.OutboxRepository, key string) *model.OutboxMessage {
	t.Helper()
	msg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      "points_changed",
		Payload:    `{"transaction_no":"` + key + `"}`,
		Status:     model.OutboxStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), nil, msg))
	return msg
}

func TestOutboxSender_MarksSentInOrder(t *testing.T) {
	db := storetest.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	ctx := context.Background()

	first := seedOutbox(t, repo, "PTX1")
	second := seedOutbox(t, repo, "PTX2")

	pub := &mockPublisher{}
	var order []string
	pub.On("Publish", "points_changed", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
		Return(nil)

	sender := NewOutboxSender(db, pub, 0, 3)
	sender.processPendingMessages(ctx)

	assert.Equal(t, []string{"PTX1", "PTX2"}, order)
	for _, id := range []int64{first.ID, second.ID} {
		msg, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.OutboxStatusSent, msg.Status)
	}
	pub.AssertExpectations(t)
}

func TestOutboxSender_RetriesThenFails(t *testing.T) {
	db := storetest.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	ctx := context.Background()

	msg := seedOutbox(t, repo, "PTX9")

	pub := &mockPublisher{}
	pub.On("Publish", "points_changed", "PTX9", mock.Anything).Return(errors.New("broker down"))

	sender := NewOutboxSender(db, pub, 0, 2)

	sender.processPendingMessages(ctx)
	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	sender.processPendingMessages(ctx)
	got, err = repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, got.Status)
	assert.Equal(t, 2, got.RetryCount)

	// 失败的消息不再被拉取
	sender.processPendingMessages(ctx)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}
