package job

import (
	"context"
	"time"

	"agrimatch/internal/infrastructure/mq"
	"agrimatch/internal/model"
	"agrimatch/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OutboxSender 轮询 outbox 表，把积分变动消息投递到 Kafka
type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	publisher     mq.Publisher
	maxRetryCount int
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, interval time.Duration, maxRetryCount int) *OutboxSender {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		publisher:     publisher,
		maxRetryCount: maxRetryCount,
		stopCh:        make(chan struct{}),
		interval:      interval,
		batchSize:     100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Info().Str("job", "OutboxSender").Msg("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("job", "OutboxSender").Msg("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Info().Str("job", "OutboxSender").Msg("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Error().Err(err).Str("job", "OutboxSender").Msg("查询消息失败")
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			log.Error().Err(updateErr).Int64("id", msg.ID).Msg("更新消息状态失败")
		} else {
			log.Debug().Int64("id", msg.ID).Str("topic", msg.Topic).Str("key", msg.MessageKey).Msg("消息发送成功")
		}
		return
	}

	log.Warn().Err(err).Int64("id", msg.ID).Msg("消息发送失败")

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Error().Err(err).Int64("id", msg.ID).Msg("增加重试次数失败")
	}

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outboxRepo.MarkFailed(ctx, msg.ID); err != nil {
			log.Error().Err(err).Int64("id", msg.ID).Msg("标记消息失败状态失败")
		} else {
			log.Warn().Int64("id", msg.ID).Msg("消息超过最大重试次数，标记为失败")
		}
	}
}
