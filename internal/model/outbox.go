package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 与积分变动同事务写入，由 OutboxSender 投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// PointsChangedEvent 积分变动消息体
type PointsChangedEvent struct {
	TransactionNo      string `json:"transaction_no"`
	UserID             int64  `json:"user_id"`
	TxType             string `json:"tx_type"`
	PointsDelta        int64  `json:"points_delta"`
	CnyDelta           string `json:"cny_delta"`
	BalanceAfterPoints int64  `json:"balance_after_points"`
	BalanceAfterCny    string `json:"balance_after_cny"`
	RefNo              string `json:"ref_no,omitempty"`
	OccurredAt         string `json:"occurred_at"`
}
