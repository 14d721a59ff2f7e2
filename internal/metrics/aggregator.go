package metrics

import (
	"context"
	"log/slog"
	"time"
)

// Sources are read on every aggregation tick. Nil entries are skipped.
type Sources struct {
	Identities      func() int
	FramesDropped   func() uint64
	CooldownEntries func() int
}

// Aggregator periodically copies component state into gauges
type Aggregator struct {
	recorder *Recorder
	sources  Sources
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
}

// NewAggregator creates a new metrics aggregator worker
func NewAggregator(recorder *Recorder, sources Sources, logger *slog.Logger, interval time.Duration) *Aggregator {
	if interval == 0 {
		interval = 5 * time.Second
	}

	return &Aggregator{
		recorder: recorder,
		sources:  sources,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the aggregation worker
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("metrics aggregator started", "interval", a.interval)
	a.aggregate()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("metrics aggregator stopped")
			return
		case <-a.done:
			a.logger.Info("metrics aggregator stopped")
			return
		case <-ticker.C:
			a.aggregate()
		}
	}
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
}

func (a *Aggregator) aggregate() {
	if a.sources.Identities != nil {
		a.recorder.SetIdentities(a.sources.Identities())
	}
	if a.sources.FramesDropped != nil {
		a.recorder.SetFramesDropped(a.sources.FramesDropped())
	}
	if a.sources.CooldownEntries != nil {
		a.recorder.SetCooldownEntries(a.sources.CooldownEntries())
	}
}
