package vehicle

import (
	"context"
	"sync"
	"time"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
)

// Locks 以车辆ID为key的互斥锁组。
// 同一车辆的状态写操作（创建/审批/还车/保养）必须串行，
// 不同车辆完全并行。等待超时返回冲突错误，调用方可稍后重试，
// 保证没有操作会无限期阻塞。
//
// 条目不回收：车队规模有限，每辆车常驻一个容量1的信号量即可。
type Locks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocks 创建锁组
func NewLocks() *Locks {
	return &Locks{slots: make(map[string]chan struct{})}
}

func (l *Locks) slot(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[id]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[id] = s
	}
	return s
}

// Acquire 在 wait 时限内获取某车辆的锁，返回释放函数。
// 超时或ctx取消时返回 ConflictError（瞬态，可重试）。
func (l *Locks) Acquire(ctx context.Context, vehicleID string, wait time.Duration) (func(), error) {
	if wait <= 0 {
		wait = 3 * time.Second
	}
	s := l.slot(vehicleID)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-s })
		}, nil
	case <-timer.C:
		return nil, apperr.Conflictf("vehicle %s is busy, lock wait timed out after %s", vehicleID, wait)
	case <-ctx.Done():
		return nil, apperr.Conflictf("vehicle %s lock wait aborted: %v", vehicleID, ctx.Err())
	}
}
