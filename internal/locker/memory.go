package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spacebook/internal/domain"
)

// slot is one lock; refs counts the holder and everyone waiting for it.
type slot struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker serializes slots within one process. A key's entry lives only
// while someone holds or waits for it.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

var _ domain.SlotLocker = (*MemoryLocker)(nil)

func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot), wait: wait}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (domain.Unlock, error) {
	s := l.ref(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key, s)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
}

func (l *MemoryLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size returns the number of tracked keys.
func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
