package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrimatch/internal/model"
	"agrimatch/internal/repository"
	"agrimatch/pkg/idgen"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RechargeService 充值订单：下单 -> 支付回调 -> 积分入账
type RechargeService struct {
	ledger    *Ledger
	orderRepo *repository.RechargeOrderRepository
	limits    Limits
	qrBaseURL string
}

func NewRechargeService(db *gorm.DB, ledger *Ledger, limits Limits, qrBaseURL string) *RechargeService {
	return &RechargeService{
		ledger:    ledger,
		orderRepo: repository.NewRechargeOrderRepository(db),
		limits:    limits,
		qrBaseURL: qrBaseURL,
	}
}

type CreateRechargeRequest struct {
	UserID     int64
	Amount     int64 // 元
	PayChannel string
}

type CreateRechargeResponse struct {
	OrderNo   string `json:"orderNo"`
	QRCodeURL string `json:"qrCodeUrl"`
	Amount    int64  `json:"amount"`
	Points    int64  `json:"points"`
}

func (s *RechargeService) CreateOrder(ctx context.Context, req *CreateRechargeRequest) (*CreateRechargeResponse, error) {
	if req.Amount <= 0 || req.Amount > s.limits.RechargeMax {
		return nil, ErrInvalidAmount
	}

	todayTotal, err := s.orderRepo.SumPointsSince(ctx, req.UserID, startOfToday())
	if err != nil {
		return nil, classify(err)
	}
	if todayTotal+req.Amount > s.limits.RechargeDayMax {
		return nil, fmt.Errorf("%w: 今日充值上限 %d 元", ErrDailyLimitExceeded, s.limits.RechargeDayMax)
	}

	order := &model.RechargeOrder{
		OrderNo:    idgen.GenerateRechargeOrderNo(),
		UserID:     req.UserID,
		Amount:     decimal.NewFromInt(req.Amount),
		Points:     req.Amount, // 1 元 = 1 积分
		PayChannel: req.PayChannel,
		Status:     model.RechargeStatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, classify(err)
	}

	log.Info().Str("order_no", order.OrderNo).Int64("user_id", req.UserID).Int64("amount", req.Amount).Msg("创建充值订单")

	return &CreateRechargeResponse{
		OrderNo:   order.OrderNo,
		QRCodeURL: s.qrBaseURL + order.OrderNo,
		Amount:    req.Amount,
		Points:    order.Points,
	}, nil
}

func (s *RechargeService) OrderStatus(ctx context.Context, orderNo string) (string, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrRechargeOrderNotFound) {
			return "", ErrRechargeOrderNotFound
		}
		return "", classify(err)
	}
	return order.Status, nil
}

// ConfirmOrder 支付回调，返回订单最终状态。订单置为 PAID 与积分入账在同一事务内，
// 已支付订单重复回调直接返回 PAID，已关闭订单返回 ErrRechargeOrderClosed。
func (s *RechargeService) ConfirmOrder(ctx context.Context, orderNo, tradeNo string) (string, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrRechargeOrderNotFound) {
			return "", ErrRechargeOrderNotFound
		}
		return "", classify(err)
	}
	if order.Status != model.RechargeStatusPending {
		log.Warn().Str("order_no", orderNo).Str("status", order.Status).Msg("订单状态不是待支付，忽略回调")
		return settledStatus(order.Status)
	}

	_, err = s.ledger.apply(ctx, mutation{
		userID:      order.UserID,
		txType:      model.TxTypeRecharge,
		pointsDelta: order.Points,
		cnyDelta:    decimal.Zero,
		refNo:       order.OrderNo,
		remark:      "recharge order",
		before: func(tx *gorm.DB) error {
			err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, model.RechargeStatusPending, model.RechargeStatusPaid, tradeNo)
			if errors.Is(err, repository.ErrRechargeOrderStatusInvalid) {
				return errRechargeOrderProcessed
			}
			return err
		},
	})
	if errors.Is(err, errRechargeOrderProcessed) {
		// 并发回调或超时关闭抢先处理，以库里的状态为准
		log.Warn().Str("order_no", orderNo).Msg("充值订单已被并发处理，忽略回调")
		current, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
		if err != nil {
			return "", classify(err)
		}
		return settledStatus(current.Status)
	}
	if err != nil {
		return "", err
	}

	log.Info().Str("order_no", orderNo).Int64("user_id", order.UserID).Int64("points", order.Points).Msg("充值订单支付成功")
	return model.RechargeStatusPaid, nil
}

func settledStatus(status string) (string, error) {
	if status == model.RechargeStatusClosed {
		return status, ErrRechargeOrderClosed
	}
	return status, nil
}

// CloseExpiredOrders 关闭创建时间早于 before 的待支付订单，返回关闭数量
func (s *RechargeService) CloseExpiredOrders(ctx context.Context, before time.Time, limit int) (int, error) {
	orders, err := s.orderRepo.GetExpiredPending(ctx, before, limit)
	if err != nil {
		return 0, classify(err)
	}

	closed := 0
	for _, order := range orders {
		err := s.orderRepo.UpdateStatus(ctx, nil, order.OrderNo, model.RechargeStatusPending, model.RechargeStatusClosed, "")
		if err != nil {
			// 已被支付回调抢先处理
			log.Warn().Err(err).Str("order_no", order.OrderNo).Msg("关闭充值订单失败")
			continue
		}
		closed++
	}
	return closed, nil
}
