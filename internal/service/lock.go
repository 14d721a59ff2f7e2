package service

import "context"

// IdentityLock serializes enrollment against recognition cycles. It is a
// single-token channel so waiting can be bounded by a context.
type IdentityLock struct {
	token chan struct{}
}

func NewIdentityLock() *IdentityLock {
	l := &IdentityLock{token: make(chan struct{}, 1)}
	l.token <- struct{}{}
	return l
}

// TryAcquire takes the lock without waiting.
func (l *IdentityLock) TryAcquire() bool {
	select {
	case <-l.token:
		return true
	default:
		return false
	}
}

// Acquire waits for the lock until ctx is done.
func (l *IdentityLock) Acquire(ctx context.Context) error {
	select {
	case <-l.token:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *IdentityLock) Release() {
	select {
	case l.token <- struct{}{}:
	default:
		panic("service: release of unlocked IdentityLock")
	}
}
