package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PointsAccount 用户积分账户
// 每个用户只有一条记录，首次访问时惰性创建，只能由账本操作修改，不删除
type PointsAccount struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"uniqueIndex;not null" json:"userId"`
	PointsBalance int64           `gorm:"not null;default:0" json:"pointsBalance"`
	CnyBalance    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"cnyBalance"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (PointsAccount) TableName() string {
	return "bus_points_account"
}
