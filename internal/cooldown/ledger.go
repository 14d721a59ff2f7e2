// Package cooldown suppresses repeated attendance events for the same
// identity within a time window.
package cooldown

import (
	"sync"
	"time"
)

const DefaultWindow = 120 * time.Second

type Ledger struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func NewLedger(window time.Duration) *Ledger {
	return &Ledger{
		window: window,
		last:   make(map[string]time.Time),
	}
}

func (l *Ledger) Window() time.Duration {
	return l.window
}

// ShouldLog reports whether an event for name at now falls outside the window
// of the last recorded one.
func (l *Ledger) ShouldLog(name string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.shouldLogLocked(name, now)
}

func (l *Ledger) shouldLogLocked(name string, now time.Time) bool {
	last, ok := l.last[name]
	if !ok {
		return true
	}
	return now.Sub(last) >= l.window
}

func (l *Ledger) Record(name string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.last[name] = now
}

// Admit combines ShouldLog and Record under one lock.
func (l *Ledger) Admit(name string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.shouldLogLocked(name, now) {
		return false
	}
	l.last[name] = now
	return true
}

// Seed loads last-seen timestamps, typically rebuilt from the attendance
// journal at start-up. Newer entries already in the ledger win.
func (l *Ledger) Seed(latest map[string]time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name, ts := range latest {
		if cur, ok := l.last[name]; ok && cur.After(ts) {
			continue
		}
		l.last[name] = ts
	}
}

// Forget drops name, used when an identity is deleted.
func (l *Ledger) Forget(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.last, name)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.last)
}
