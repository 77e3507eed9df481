package lock

import (
	"context"
	"sync"
	"time"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker 单实例进程内的用户锁，按 userID 分槽，无等待者时回收
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]*slot
	wait  time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		slots: make(map[int64]*slot),
		wait:  wait,
	}
}

func (l *LocalLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[userID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[userID] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(userID, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(userID, s)
		return nil, ctx.Err()
	case <-timer.C:
		l.release(userID, s)
		return nil, ErrLockFailed
	}
}

func (l *LocalLocker) release(userID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, userID)
	}
}

// size 仅用于测试
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
