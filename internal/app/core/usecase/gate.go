package usecase

import (
	"context"
	"errors"
	"time"
)

// ErrPoolTimeout 在時限內拿不到資料庫連線名額
var ErrPoolTimeout = errors.New("storage pool acquire timeout")

// Gate 以 semaphore 限制同時進行的儲存操作數量，容量與連線池相同
// 取得名額有時限，逾時回傳 ErrPoolTimeout 而不是無限等待
type Gate struct {
	slots   chan struct{}
	timeout time.Duration
}

// NewGate size <= 0 代表不限制
func NewGate(size int, timeout time.Duration) *Gate {
	g := &Gate{timeout: timeout}
	if size > 0 {
		g.slots = make(chan struct{}, size)
	}
	return g
}

// Acquire 取得一個名額，回傳的 release 必須呼叫且只呼叫一次
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if g == nil || g.slots == nil {
		return func() {}, nil
	}
	// Fast path
	select {
	case g.slots <- struct{}{}:
		return g.release, nil
	default:
	}

	var timeout <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case g.slots <- struct{}{}:
		return g.release, nil
	case <-timeout:
		return nil, ErrPoolTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gate) release() {
	<-g.slots
}
