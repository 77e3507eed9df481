package service

import (
	"context"
	"fmt"

	"agrimatch/internal/infrastructure/giftcard"
	"agrimatch/internal/model"
	"agrimatch/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var cardFaceValues = map[int64]bool{50: true, 100: true, 200: true, 500: true}

// CardService 积分兑换购物卡
type CardService struct {
	ledger       *Ledger
	redeemRepo   *repository.CardRedemptionRepository
	rechargeRepo *repository.RechargeOrderRepository
	issuer       giftcard.Issuer
	limits       Limits
}

func NewCardService(db *gorm.DB, ledger *Ledger, issuer giftcard.Issuer, limits Limits) *CardService {
	return &CardService{
		ledger:       ledger,
		redeemRepo:   repository.NewCardRedemptionRepository(db),
		rechargeRepo: repository.NewRechargeOrderRepository(db),
		issuer:       issuer,
		limits:       limits,
	}
}

type CardRedeemResponse struct {
	RedeemID         int64  `json:"redeemId"`
	CardCode         string `json:"cardCode"`
	FaceValue        int64  `json:"faceValue"`
	PointsCost       int64  `json:"pointsCost"`
	NewPointsBalance int64  `json:"newPointsBalance"`
}

// Redeem 按面额扣除积分并发卡。
//
// 扣积分与 PROCESSING 记录先提交，提交后再调用供应商发卡：
// 发卡成功置 SUCCESS；发卡失败在同一事务内置 FAILED 并退回积分。
// 每日额度在用户锁内校验。
func (s *CardService) Redeem(ctx context.Context, userID, faceValue int64) (*CardRedeemResponse, error) {
	if !cardFaceValues[faceValue] {
		return nil, ErrUnsupportedFaceValue
	}
	if faceValue > s.limits.RedeemMax {
		return nil, ErrInvalidAmount
	}

	var redemption *model.CardRedemption
	account, err := s.ledger.apply(ctx, mutation{
		userID:      userID,
		txType:      model.TxTypeCardRedeem,
		pointsDelta: -faceValue,
		cnyDelta:    decimal.Zero,
		remark:      fmt.Sprintf("兑换购物卡 ¥%d", faceValue),
		guard: func(ctx context.Context) error {
			today, err := s.redeemRepo.SumFaceValueSince(ctx, userID, startOfToday())
			if err != nil {
				return err
			}
			if today+faceValue > s.limits.RedeemDayMax {
				return fmt.Errorf("%w: 今日兑换上限 %d 积分", ErrDailyLimitExceeded, s.limits.RedeemDayMax)
			}
			return nil
		},
		after: func(tx *gorm.DB, _ *model.PointsAccount) error {
			redemption = &model.CardRedemption{
				UserID:     userID,
				PointsCost: faceValue,
				FaceValue:  faceValue,
				Status:     model.CardRedeemStatusProcessing,
			}
			return s.redeemRepo.Create(ctx, tx, redemption)
		},
	})
	if err != nil {
		return nil, err
	}

	card, err := s.issuer.Issue(ctx, userID, faceValue)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Int64("redeem_id", redemption.ID).Msg("购物卡发放失败，退回积分")
		if refundErr := s.refund(ctx, redemption); refundErr != nil {
			// 记录保持 PROCESSING，需人工处理
			log.Error().Err(refundErr).Int64("user_id", userID).Int64("redeem_id", redemption.ID).Msg("购物卡退回积分失败")
		}
		return nil, err
	}

	if err := s.redeemRepo.MarkIssued(ctx, redemption.ID, card.Code, card.Provider); err != nil {
		// 卡已发出、积分已扣，卡密仍返回给用户
		log.Error().Err(err).Int64("user_id", userID).Int64("redeem_id", redemption.ID).Msg("更新兑换记录失败")
	}

	log.Info().Int64("user_id", userID).Int64("face_value", faceValue).Int64("redeem_id", redemption.ID).Msg("购物卡兑换成功")

	return &CardRedeemResponse{
		RedeemID:         redemption.ID,
		CardCode:         card.Code,
		FaceValue:        faceValue,
		PointsCost:       faceValue,
		NewPointsBalance: account.PointsBalance,
	}, nil
}

func (s *CardService) refund(ctx context.Context, redemption *model.CardRedemption) error {
	_, err := s.ledger.apply(ctx, mutation{
		userID:      redemption.UserID,
		txType:      model.TxTypeCardRefund,
		pointsDelta: redemption.PointsCost,
		cnyDelta:    decimal.Zero,
		refNo:       fmt.Sprintf("CARD%d", redemption.ID),
		remark:      "购物卡发放失败退回",
		before: func(tx *gorm.DB) error {
			return s.redeemRepo.MarkFailed(ctx, tx, redemption.ID)
		},
	})
	return err
}

// Limits 限额信息，userID 为 0 时不统计当日用量
func (s *CardService) Limits(ctx context.Context, userID int64) (*LimitsView, error) {
	view := &LimitsView{Limits: s.limits}
	if userID <= 0 {
		return view, nil
	}

	since := startOfToday()
	recharge, err := s.rechargeRepo.SumPointsSince(ctx, userID, since)
	if err != nil {
		return nil, classify(err)
	}
	redeem, err := s.redeemRepo.SumFaceValueSince(ctx, userID, since)
	if err != nil {
		return nil, classify(err)
	}
	view.TodayRechargeTotal = recharge
	view.TodayRedeemTotal = redeem
	return view, nil
}

// Records 用户购物卡兑换记录，最新在前
func (s *CardService) Records(ctx context.Context, userID int64) ([]*model.CardRedemption, error) {
	records, err := s.redeemRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}
