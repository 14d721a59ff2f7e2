package frame

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// scriptedSource fails while failing is set and serves gray frames otherwise.
type scriptedSource struct {
	failing      atomic.Bool
	reads        atomic.Int64
	reopens      atomic.Int64
	closed       atomic.Bool
	healOnReopen bool
}

func (s *scriptedSource) NextFrame(ctx context.Context) (image.Image, error) {
	s.reads.Add(1)
	if s.failing.Load() {
		return nil, domain.ErrFrameUnavailable
	}
	return image.NewGray(image.Rect(0, 0, 8, 8)), nil
}

func (s *scriptedSource) Reopen(context.Context) error {
	s.reopens.Add(1)
	if s.healOnReopen {
		s.failing.Store(false)
		return nil
	}
	return errors.New("device busy")
}

func (s *scriptedSource) Close() error {
	s.closed.Store(true)
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	acquired int
	failed   int
	reopened []bool
}

func (o *countingObserver) FrameAcquired() {
	o.mu.Lock()
	o.acquired++
	o.mu.Unlock()
}

func (o *countingObserver) FrameFailed() {
	o.mu.Lock()
	o.failed++
	o.mu.Unlock()
}

func (o *countingObserver) CameraReopened(ok bool) {
	o.mu.Lock()
	o.reopened = append(o.reopened, ok)
	o.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() AcquirerConfig {
	return AcquirerConfig{
		FetchTimeout: 100 * time.Millisecond,
		Interval:     time.Millisecond,
		FailureDelay: time.Millisecond,
		Reconnect: ReconnectConfig{
			AfterFailures: 3,
			MaxRetries:    2,
			RetryDelay:    time.Millisecond,
			MaxRetryDelay: 5 * time.Millisecond,
		},
	}
}

func runAcquirer(t *testing.T, a *Acquirer) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("acquirer did not stop")
		}
	}
}

func TestAcquirer_PublishesFrames(t *testing.T) {
	src := &scriptedSource{}
	slot := NewSlot()
	obs := &countingObserver{}

	a := NewAcquirer(src, slot, fastConfig(), testLogger())
	a.SetObserver(obs)
	stop := runAcquirer(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := slot.Next(ctx, 2)
	require.NoError(t, err)
	assert.Greater(t, f.Seq, uint64(2))
	assert.Eventually(t, func() bool { return a.Status() == StatusStreaming }, time.Second, time.Millisecond)

	stop()
	assert.True(t, src.closed.Load(), "source closed when Run returns")
	assert.Equal(t, StatusStopped, a.Status())
}

func TestAcquirer_ReopensAfterConsecutiveFailures(t *testing.T) {
	src := &scriptedSource{healOnReopen: true}
	src.failing.Store(true)
	slot := NewSlot()
	obs := &countingObserver{}

	a := NewAcquirer(src, slot, fastConfig(), testLogger())
	a.SetObserver(obs)
	stop := runAcquirer(t, a)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := slot.Next(ctx, 0)
	require.NoError(t, err, "frames flow again after the reopen")

	assert.Equal(t, int64(1), src.reopens.Load())
	obs.mu.Lock()
	assert.Equal(t, []bool{true}, obs.reopened)
	assert.GreaterOrEqual(t, obs.failed, 3)
	obs.mu.Unlock()
}

func TestAcquirer_ReportsUnavailableAndKeepsTrying(t *testing.T) {
	src := &scriptedSource{}
	src.failing.Store(true)

	a := NewAcquirer(src, NewSlot(), fastConfig(), testLogger())
	stop := runAcquirer(t, a)
	defer stop()

	assert.Eventually(t, func() bool { return a.Status() == StatusUnavailable }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return src.reopens.Load() > 2 }, time.Second, time.Millisecond,
		"a second round starts after the first is exhausted")

	src.failing.Store(false)
	assert.Eventually(t, func() bool { return a.Status() == StatusStreaming }, time.Second, time.Millisecond)
}

func TestBackoff(t *testing.T) {
	cfg := ReconnectConfig{RetryDelay: 150 * time.Millisecond, MaxRetryDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 150 * time.Millisecond},
		{2, 300 * time.Millisecond},
		{3, 600 * time.Millisecond},
		{5, 2400 * time.Millisecond},
		{6, 4800 * time.Millisecond},
		{7, 5 * time.Second},
		{40, 5 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.attempt, cfg), "attempt %d", tt.attempt)
	}
}
