package lock

import (
	"context"
	"errors"
)

var (
	ErrLockFailed = errors.New("获取用户锁失败")
)

// Locker 按用户维度的互斥。不同用户之间互不阻塞。
type Locker interface {
	// Lock 阻塞直到拿到 userID 的锁，返回的 unlock 必须调用
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}
