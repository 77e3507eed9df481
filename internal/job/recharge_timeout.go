package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RechargeOrderCloser 关闭超时的待支付充值订单
type RechargeOrderCloser interface {
	CloseExpiredOrders(ctx context.Context, before time.Time, limit int) (int, error)
}

type RechargeTimeoutJob struct {
	closer    RechargeOrderCloser
	timeout   time.Duration
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewRechargeTimeoutJob(closer RechargeOrderCloser, timeout time.Duration) *RechargeTimeoutJob {
	return &RechargeTimeoutJob{
		closer:    closer,
		timeout:   timeout,
		stopCh:    make(chan struct{}),
		interval:  10 * time.Second,
		batchSize: 100,
	}
}

func (j *RechargeTimeoutJob) Start(ctx context.Context) {
	log.Info().Str("job", "RechargeTimeoutJob").Msg("充值订单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("job", "RechargeTimeoutJob").Msg("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Info().Str("job", "RechargeTimeoutJob").Msg("任务停止")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *RechargeTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *RechargeTimeoutJob) runOnce(ctx context.Context) int {
	closed, err := j.closer.CloseExpiredOrders(ctx, time.Now().Add(-j.timeout), j.batchSize)
	if err != nil {
		log.Error().Err(err).Str("job", "RechargeTimeoutJob").Msg("关闭超时充值订单失败")
		return 0
	}
	if closed > 0 {
		log.Info().Str("job", "RechargeTimeoutJob").Int("closed", closed).Msg("本次关闭超时充值订单")
	}
	return closed
}
