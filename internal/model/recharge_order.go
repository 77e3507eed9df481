package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RechargeStatusPending = "PENDING"
	RechargeStatusPaid    = "PAID"
	RechargeStatusClosed  = "CLOSED"
)

var rechargeTransitions = map[string][]string{
	RechargeStatusPending: {RechargeStatusPaid, RechargeStatusClosed},
}

func CanRechargeTransitionTo(currentStatus, targetStatus string) bool {
	for _, s := range rechargeTransitions[currentStatus] {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// RechargeOrder 充值订单，支付成功后按 1 元 = 1 积分入账
type RechargeOrder struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderNo"`
	UserID     int64           `gorm:"index;not null" json:"userId"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Points     int64           `gorm:"not null" json:"points"`
	PayChannel string          `gorm:"type:varchar(32)" json:"payChannel"`
	Status     string          `gorm:"type:varchar(20);index;not null" json:"status"`
	TradeNo    string          `gorm:"type:varchar(64)" json:"tradeNo,omitempty"`
	PaidAt     *time.Time      `json:"paidAt,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (RechargeOrder) TableName() string {
	return "bus_recharge_order"
}
