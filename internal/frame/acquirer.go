package frame

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/camera"
)

type Status string

const (
	StatusStarting     Status = "starting"
	StatusStreaming    Status = "streaming"
	StatusFailing      Status = "failing"
	StatusReconnecting Status = "reconnecting"
	StatusUnavailable  Status = "camera unavailable"
	StatusStopped      Status = "stopped"
)

// Observer receives acquisition events, typically for metrics.
type Observer interface {
	FrameAcquired()
	FrameFailed()
	CameraReopened(ok bool)
}

type noopObserver struct{}

func (noopObserver) FrameAcquired()      {}
func (noopObserver) FrameFailed()        {}
func (noopObserver) CameraReopened(bool) {}

// ReconnectConfig controls how a failing source is reopened.
type ReconnectConfig struct {
	// AfterFailures is the number of consecutive read failures that triggers a reopen.
	AfterFailures int
	// MaxRetries is the number of reopen attempts per round.
	MaxRetries int
	// RetryDelay is the first backoff delay; it doubles per attempt.
	RetryDelay time.Duration
	// MaxRetryDelay caps the backoff delay.
	MaxRetryDelay time.Duration
}

type AcquirerConfig struct {
	// FetchTimeout bounds a single NextFrame call.
	FetchTimeout time.Duration
	// Interval is the pause between successful reads; zero reads as fast as the source allows.
	Interval time.Duration
	// FailureDelay is the pause after a failed read.
	FailureDelay time.Duration
	Reconnect    ReconnectConfig
}

func DefaultAcquirerConfig() AcquirerConfig {
	return AcquirerConfig{
		FetchTimeout: 2500 * time.Millisecond,
		FailureDelay: 200 * time.Millisecond,
		Reconnect: ReconnectConfig{
			AfterFailures: 30,
			MaxRetries:    5,
			RetryDelay:    150 * time.Millisecond,
			MaxRetryDelay: 5 * time.Second,
		},
	}
}

// Acquirer is the single producer of a Slot. It reads the source until ctx
// is done, reopening it after repeated failures, and never gives up.
type Acquirer struct {
	source   camera.Source
	slot     *Slot
	config   AcquirerConfig
	observer Observer
	logger   *slog.Logger

	status   atomic.Value
	reopens  atomic.Uint64
	failures int
}

func NewAcquirer(source camera.Source, slot *Slot, config AcquirerConfig, logger *slog.Logger) *Acquirer {
	a := &Acquirer{
		source:   source,
		slot:     slot,
		config:   config,
		observer: noopObserver{},
		logger:   logger,
	}
	a.status.Store(StatusStarting)
	return a
}

func (a *Acquirer) SetObserver(o Observer) {
	if o != nil {
		a.observer = o
	}
}

func (a *Acquirer) Status() Status {
	return a.status.Load().(Status)
}

// Reopens returns how many reopen attempts were made.
func (a *Acquirer) Reopens() uint64 {
	return a.reopens.Load()
}

// Run blocks until ctx is cancelled. The source is closed on return.
func (a *Acquirer) Run(ctx context.Context) {
	a.logger.Info("frame acquisition started")
	defer func() {
		if err := a.source.Close(); err != nil {
			a.logger.Warn("failed to close camera source", slog.Any("error", err))
		}
		a.setStatus(StatusStopped)
		a.logger.Info("frame acquisition stopped")
	}()

	for ctx.Err() == nil {
		if err := a.readOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.observer.FrameFailed()
			a.failures++
			if a.Status() != StatusUnavailable {
				a.setStatus(StatusFailing)
			}

			if a.failures == 1 {
				a.logger.Warn("camera read failed", slog.Any("error", err))
			}

			if a.config.Reconnect.AfterFailures > 0 && a.failures >= a.config.Reconnect.AfterFailures {
				a.reconnect(ctx)
				a.failures = 0
				continue
			}
			sleep(ctx, a.config.FailureDelay)
			continue
		}

		if a.failures > 0 {
			a.logger.Info("camera recovered", slog.Int("failed_reads", a.failures))
		}
		a.failures = 0
		a.setStatus(StatusStreaming)
		sleep(ctx, a.config.Interval)
	}
}

func (a *Acquirer) readOnce(ctx context.Context) error {
	fetchCtx := ctx
	if a.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, a.config.FetchTimeout)
		defer cancel()
	}

	img, err := a.source.NextFrame(fetchCtx)
	if err != nil {
		return err
	}
	if img == nil {
		return errors.New("source returned nil frame")
	}

	a.slot.Publish(img, time.Now())
	a.observer.FrameAcquired()
	return nil
}

// reconnect runs one round of reopen attempts with exponential backoff.
// Sources that cannot be reopened (HTTP snapshots) only get the backoff.
func (a *Acquirer) reconnect(ctx context.Context) {
	cfg := a.config.Reconnect
	reopener, canReopen := a.source.(camera.Reopener)

	a.setStatus(StatusReconnecting)
	a.logger.Warn("camera failing, reconnecting",
		slog.Int("consecutive_failures", a.failures),
		slog.Bool("reopen", canReopen),
	)

	for attempt := 1; attempt <= max(cfg.MaxRetries, 1); attempt++ {
		if !sleep(ctx, backoff(attempt, cfg)) {
			return
		}

		if !canReopen {
			return
		}

		a.reopens.Add(1)
		err := reopener.Reopen(ctx)
		a.observer.CameraReopened(err == nil)
		if err == nil {
			a.logger.Info("camera reopened", slog.Int("attempt", attempt))
			return
		}

		a.logger.Warn("camera reopen failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", cfg.MaxRetries),
			slog.Any("error", err),
		)
	}

	a.setStatus(StatusUnavailable)
	a.logger.Error("camera unavailable, will keep trying", slog.Int("attempts", cfg.MaxRetries))
	sleep(ctx, cfg.MaxRetryDelay)
}

func (a *Acquirer) setStatus(s Status) {
	a.status.Store(s)
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func backoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := cfg.RetryDelay << min(attempt-1, 30)
	if cfg.MaxRetryDelay > 0 && (delay > cfg.MaxRetryDelay || delay <= 0) {
		return cfg.MaxRetryDelay
	}
	return delay
}

// sleep waits d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
