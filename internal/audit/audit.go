// Package audit records who changed biometric data and when (LGPD).
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

// EventType defines the type of auditable event
type EventType string

const (
	EventIdentityEnrolled   EventType = "IDENTITY_ENROLLED"
	EventIdentityDeleted    EventType = "IDENTITY_DELETED"
	EventAttendanceRecorded EventType = "ATTENDANCE_RECORDED"
)

// Event is one audit trail entry. Embeddings and images are never included.
type Event struct {
	ID           uuid.UUID         `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	EventType    EventType         `json:"event_type"`
	IdentityName string            `json:"identity_name"`
	Source       string            `json:"source"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger.With("component", "audit"),
	}
}

func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal audit event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.EventType)),
		)
		return err
	}

	l.logger.InfoContext(ctx, "audit_event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.EventType)),
		slog.String("identity_name", event.IdentityName),
		slog.String("source", event.Source),
		slog.String("event_data", string(eventJSON)),
	)

	return nil
}

// NoOpLogger is a logger that does nothing (for testing or when audit is disabled)
type NoOpLogger struct{}

func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}

// Publisher turns live events into audit entries. It plugs into the
// services next to the websocket hub.
type Publisher struct {
	logger Logger
	source string
	now    func() time.Time
}

func NewPublisher(logger Logger, source string) *Publisher {
	return &Publisher{logger: logger, source: source, now: time.Now}
}

func (p *Publisher) Broadcast(eventType ws.EventType, data interface{}) {
	event, ok := p.translate(eventType, data)
	if !ok {
		return
	}
	// erro já foi logado pelo Logger
	_ = p.logger.Log(context.Background(), event)
}

func (p *Publisher) translate(eventType ws.EventType, data interface{}) (Event, bool) {
	event := Event{
		Timestamp: p.now().UTC(),
		Source:    p.source,
	}

	switch eventType {
	case ws.EventEnrollmentCompleted:
		ident, ok := data.(*domain.Identity)
		if !ok {
			return Event{}, false
		}
		event.EventType = EventIdentityEnrolled
		event.IdentityName = ident.Name
		event.Metadata = map[string]string{"image_ref": ident.ImageRef}

	case ws.EventIdentityDeleted:
		m, ok := data.(map[string]string)
		if !ok {
			return Event{}, false
		}
		event.EventType = EventIdentityDeleted
		event.IdentityName = m["name"]

	case ws.EventAttendanceRecorded:
		att, ok := data.(*domain.AttendanceEvent)
		if !ok {
			return Event{}, false
		}
		event.EventType = EventAttendanceRecorded
		event.IdentityName = att.IdentityName
		event.Metadata = map[string]string{"attendance_id": att.ID.String()}

	default:
		// annotations.updated não é auditável
		return Event{}, false
	}

	return event, true
}
