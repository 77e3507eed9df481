package model

import (
	"time"
)

const (
	CardRedeemStatusProcessing = "PROCESSING" // 已扣积分，等待发卡
	CardRedeemStatusSuccess    = "SUCCESS"
	CardRedeemStatusFailed     = "FAILED" // 发卡失败，积分已退回
)

// CardRedemption 购物卡兑换记录
type CardRedemption struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"userId"`
	PointsCost int64     `gorm:"not null" json:"pointsCost"`
	FaceValue  int64     `gorm:"not null" json:"faceValue"`
	CardCode   string    `gorm:"type:varchar(128);not null" json:"-"`
	Provider   string    `gorm:"type:varchar(32)" json:"provider"`
	Status     string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (CardRedemption) TableName() string {
	return "bus_card_redeem"
}
