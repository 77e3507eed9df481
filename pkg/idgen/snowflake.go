package idgen

import (
	"fmt"
	"sync"
	"time"
)

// 雪花算法：41 位毫秒时间戳 | 10 位机器ID | 12 位序列号
const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator = &Snowflake{workerID: 1}
	defaultMu        sync.RWMutex
)

func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间", maxWorkerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init 设置默认生成器的机器ID
func Init(workerID int64) error {
	s, err := NewSnowflake(workerID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGenerator = s
	defaultMu.Unlock()
	return nil
}

// NextID 生成下一个ID
func NextID() int64 {
	defaultMu.RLock()
	g := defaultGenerator
	defaultMu.RUnlock()
	return g.Generate()
}

// Generate 生成ID，同一毫秒内序列号用完时等待下一毫秒
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.timestamp {
		// 时钟回拨，沿用上次时间戳
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateRechargeOrderNo 充值订单号：R + 雪花ID
func GenerateRechargeOrderNo() string {
	return withPrefix("R")
}

// GenerateTransactionNo 积分流水号
func GenerateTransactionNo() string {
	return withPrefix("PTX")
}

func withPrefix(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, NextID())
}
