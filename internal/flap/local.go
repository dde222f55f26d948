package flap

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/catdoor/internal/observability"
)

// Local is the local-timer Flap Actuator backend: lock state lives purely
// in process memory, and unlock happens either on request or automatically
// after a configured duration.
type Local struct {
	duration time.Duration

	mu        sync.Mutex
	locked    bool
	lockStart time.Time
	autoTimer *time.Timer
	autoDone  chan struct{}
}

func NewLocal(duration time.Duration) *Local {
	return &Local{duration: duration}
}

func (l *Local) Lock(ctx context.Context, reason string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		remaining := l.duration - time.Since(l.lockStart)
		slog.Info("flap already locked", "remaining", remaining, "reason", reason)
		return false, nil
	}

	l.locked = true
	l.lockStart = time.Now()
	l.cancelAutoLocked()

	done := make(chan struct{})
	l.autoDone = done
	l.autoTimer = time.AfterFunc(l.duration, func() {
		select {
		case <-done:
			return
		default:
		}
		if _, err := l.Unlock(context.Background(), "auto"); err != nil {
			slog.Error("auto-unlock failed", "error", err)
		}
	})

	observability.LockEvents.WithLabelValues("lock", reason).Inc()
	slog.Info("flap locked", "reason", reason, "duration", l.duration)
	return true, nil
}

func (l *Local) Unlock(ctx context.Context, reason string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return false, nil
	}

	l.locked = false
	l.cancelAutoLocked()
	observability.LockEvents.WithLabelValues("unlock", reason).Inc()
	slog.Info("flap unlocked", "reason", reason)
	return true, nil
}

// cancelAutoLocked stops any pending auto-unlock task. Callers must hold mu.
func (l *Local) cancelAutoLocked() {
	if l.autoTimer != nil {
		l.autoTimer.Stop()
		l.autoTimer = nil
	}
	if l.autoDone != nil {
		close(l.autoDone)
		l.autoDone = nil
	}
}

func (l *Local) State() LockState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return Locked
	}
	return Unlocked
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelAutoLocked()
	return nil
}

var _ Actuator = (*Local)(nil)
