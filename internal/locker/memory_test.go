package locker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Acquire(ctx, "slot:1:2025-01-06")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "slot:1:2025-01-06")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := l.Acquire(ctx, "slot:1:2025-01-07")
	require.NoError(t, err)
	other()

	unlock()
	unlock() // повторный вызов безопасен

	again, err := l.Acquire(ctx, "slot:1:2025-01-06")
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_ContextCanceled(t *testing.T) {
	l := NewMemoryLocker(time.Minute)
	unlock, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	l := NewMemoryLocker(5 * time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Acquire(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestMemoryLocker_ReleasesIdleKeys(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	for day := 1; day <= 50; day++ {
		unlock, err := l.Acquire(ctx, fmt.Sprintf("slot:1:2025-01-%02d", day))
		require.NoError(t, err)
		unlock()
	}
	assert.Equal(t, 0, l.size())

	held, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, l.size())

	// Неудачное ожидание не оставляет записей сверх удерживаемой
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Acquire(canceled, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.size())

	held()
	held()
	assert.Equal(t, 0, l.size())

	again, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, l.size())
}
