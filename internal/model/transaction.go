package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 积分流水类型
// ============================================================================

const (
	TxTypeRecharge     = "RECHARGE"      // 充值
	TxTypeRedeem       = "REDEEM"        // 兑换为余额
	TxTypeBountyReward = "BOUNTY_REWARD" // 悬赏奖励
	TxTypeBountyDeduct = "BOUNTY_DEDUCT" // 悬赏扣除
	TxTypeCardRedeem   = "CARD_REDEEM"   // 兑换购物卡
	TxTypeCardRefund   = "CARD_REFUND"   // 发卡失败退回
)

// PointsTransaction 积分流水表
//
// 只追加，不修改，不删除。按 id 顺序回放所有流水的增量之和必须等于账户当前余额。
type PointsTransaction struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transactionNo"`
	UserID             int64           `gorm:"index;not null" json:"userId"`
	TxType             string          `gorm:"type:varchar(32);not null" json:"txType"`
	PointsDelta        int64           `gorm:"not null" json:"pointsDelta"`
	CnyDelta           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"cnyDelta"`
	BalanceAfterPoints int64           `gorm:"not null" json:"balanceAfterPoints"`
	BalanceAfterCny    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balanceAfterCny"`
	RefNo              string          `gorm:"type:varchar(64);index" json:"refNo,omitempty"` // 关联单号（充值订单等）
	Remark             string          `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"createTime"`
}

func (PointsTransaction) TableName() string {
	return "bus_points_tx"
}

// ReplayBalance 按时间正序回放流水，返回累计余额
func ReplayBalance(txs []*PointsTransaction) (int64, decimal.Decimal) {
	var points int64
	cny := decimal.Zero
	for _, t := range txs {
		points += t.PointsDelta
		cny = cny.Add(t.CnyDelta)
	}
	return points, cny
}
