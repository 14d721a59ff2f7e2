package service

import (
	"context"
	"image"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

type IdentityRepositoryInterface interface {
	List(ctx context.Context) ([]domain.Identity, error)
	Get(ctx context.Context, name string) (*domain.Identity, error)
	Upsert(ctx context.Context, identity *domain.Identity) error
	Delete(ctx context.Context, name string) error
}

type AttendanceRepositoryInterface interface {
	Append(ctx context.Context, event *domain.AttendanceEvent) error
	ListRecent(ctx context.Context, limit int) ([]domain.AttendanceEvent, error)
	LatestByIdentity(ctx context.Context, since time.Time) (map[string]time.Time, error)
}

// ImageStoreInterface stores reference images. Save returns the reference
// recorded on the identity.
type ImageStoreInterface interface {
	Save(ctx context.Context, name string, img image.Image) (string, error)
	Load(ctx context.Context, ref string) (image.Image, error)
	Delete(ctx context.Context, ref string) error
}

// Metrics is the subset of metrics.Recorder used by the services.
type Metrics interface {
	RecognitionCycle(result string, d time.Duration)
	FaceOutcome(kind domain.AnnotationKind)
	AttendanceWritten()
	AttendanceFailed()
	Enrollment(result string, d time.Duration)
}

// Publisher pushes live events to connected clients. ws.Hub implements it.
type Publisher interface {
	Broadcast(eventType ws.EventType, data interface{})
}

// Publishers fans an event out to every publisher in order.
type Publishers []Publisher

func (ps Publishers) Broadcast(eventType ws.EventType, data interface{}) {
	for _, p := range ps {
		p.Broadcast(eventType, data)
	}
}

type noopMetrics struct{}

func (noopMetrics) RecognitionCycle(string, time.Duration) {}
func (noopMetrics) FaceOutcome(domain.AnnotationKind)     {}
func (noopMetrics) AttendanceWritten()                    {}
func (noopMetrics) AttendanceFailed()                     {}
func (noopMetrics) Enrollment(string, time.Duration)      {}

type noopPublisher struct{}

func (noopPublisher) Broadcast(ws.EventType, interface{}) {}
