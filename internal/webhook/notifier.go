package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

// Notifier queues events and delivers them from a single worker. Broadcast
// never blocks: when the queue is full the event is dropped and logged.
type Notifier struct {
	config Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	queue   chan *job
	pending sync.WaitGroup
}

func NewNotifier(config Config, logger *slog.Logger) *Notifier {
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Notifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
		now:    time.Now,
		queue:  make(chan *job, config.QueueSize),
	}
}

// Broadcast implements the service publisher.
func (n *Notifier) Broadcast(eventType ws.EventType, data interface{}) {
	if n.config.Events != nil && !n.config.Events[eventType] {
		return
	}

	event := EventPayload{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      data,
		Timestamp: n.now().UTC(),
	}
	body, err := encode(event)
	if err != nil {
		n.logger.Error("failed to encode webhook event", slog.String("event", string(eventType)), slog.Any("error", err))
		return
	}

	n.enqueue(&job{event: event, body: body})
}

func (n *Notifier) enqueue(j *job) {
	n.pending.Add(1)
	select {
	case n.queue <- j:
	default:
		n.pending.Done()
		n.logger.Warn("webhook queue full, event dropped",
			slog.String("event", string(j.event.Type)),
			slog.String("delivery", j.event.ID.String()),
		)
	}
}

// Run delivers queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info("webhook worker started", slog.String("url", n.config.URL))

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("webhook worker stopped", slog.Int("queued", len(n.queue)))
			return
		case j := <-n.queue:
			n.process(ctx, j)
		}
	}
}

func (n *Notifier) process(ctx context.Context, j *job) {
	defer n.pending.Done()

	j.attempts++
	err := n.send(ctx, j)
	if err == nil {
		n.logger.Debug("webhook delivered",
			slog.String("event", string(j.event.Type)),
			slog.Int("attempts", j.attempts),
		)
		return
	}

	if j.attempts >= n.config.MaxAttempts || ctx.Err() != nil {
		n.logger.Warn("webhook delivery failed",
			slog.String("event", string(j.event.Type)),
			slog.String("delivery", j.event.ID.String()),
			slog.Int("attempts", j.attempts),
			slog.Any("error", err),
		)
		return
	}

	delay := n.config.RetryDelay << (j.attempts - 1)
	n.logger.Info("webhook scheduled for retry",
		slog.String("event", string(j.event.Type)),
		slog.Int("attempts", j.attempts),
		slog.Duration("delay", delay),
		slog.Any("error", err),
	)

	n.pending.Add(1)
	time.AfterFunc(delay, func() {
		defer n.pending.Done()
		if ctx.Err() == nil {
			n.enqueue(j)
		}
	})
}

// Wait blocks until every queued event was delivered or given up. Tests use it.
func (n *Notifier) Wait() {
	n.pending.Wait()
}
