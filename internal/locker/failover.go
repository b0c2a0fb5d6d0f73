package locker

import (
	"context"
	"errors"
	"sync"
	"time"

	"spacebook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLocker uses primary until it errors, then the fallback, probing the
// primary again once per recoveryInterval.
type FailoverLocker struct {
	primary  domain.SlotLocker
	fallback domain.SlotLocker
	logger   *zerolog.Logger

	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
	now       func() time.Time
}

var _ domain.SlotLocker = (*FailoverLocker)(nil)

func NewFailoverLocker(primary, fallback domain.SlotLocker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *FailoverLocker) Acquire(ctx context.Context, key string) (domain.Unlock, error) {
	if l.usePrimary() {
		unlock, err := l.primary.Acquire(ctx, key)
		if err == nil {
			l.markUp()
			return unlock, nil
		}
		// Занятый слот или отмена запроса не означают отказ Redis
		if errors.Is(err, ErrLockTimeout) || ctx.Err() != nil {
			return nil, err
		}
		l.logger.Error().Err(err).Str("key", key).Msg("Primary slot locker failed, falling back to memory")
		l.markDown()
	}

	return l.fallback.Acquire(ctx, key)
}

func (l *FailoverLocker) usePrimary() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.isDown {
		return true
	}
	if l.now().Sub(l.lastCheck) > recoveryInterval {
		l.lastCheck = l.now()
		return true
	}
	return false
}

func (l *FailoverLocker) markDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isDown = true
	l.lastCheck = l.now()
}

func (l *FailoverLocker) markUp() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isDown {
		l.logger.Info().Msg("Primary slot locker recovered")
	}
	l.isDown = false
}

// IsDown reports whether the fallback is currently in use.
func (l *FailoverLocker) IsDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isDown
}
