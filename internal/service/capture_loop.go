package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/cooldown"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/matching"
	"github.com/saturnino-fabrica-de-software/chamada/internal/metrics"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	"github.com/saturnino-fabrica-de-software/chamada/internal/quality"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

const (
	StatusReady             = "Ready"
	StatusWaitingFrames     = "Waiting for camera frames..."
	StatusNoFace            = "No face detected."
	StatusEnrollmentRunning = "Enrollment in progress"
	StatusNotRecognized     = "Face not recognized."
	StatusLowQuality        = "Face quality too low."

	LabelUnknown        = "Unknown"
	LabelLowQuality     = "Low quality"
	LabelLivenessFailed = "Liveness fail"

	clockLayout = "15:04:05"
)

type CaptureLoopConfig struct {
	PollInterval        time.Duration
	MaxBackoff          time.Duration
	RecognitionInterval time.Duration
	// CycleTimeout bounds detection, embedding and journal writes of one cycle.
	CycleTimeout    time.Duration
	DownscaleFactor float64
	Upsample        int
}

func DefaultCaptureLoopConfig() CaptureLoopConfig {
	return CaptureLoopConfig{
		PollInterval:        40 * time.Millisecond,
		MaxBackoff:          2 * time.Second,
		RecognitionInterval: 250 * time.Millisecond,
		CycleTimeout:        5 * time.Second,
		DownscaleFactor:     0.5,
	}
}

// CaptureLoop reads the latest frame, recognizes the faces in it, logs
// attendance and publishes the resulting AnnotationSet.
type CaptureLoop struct {
	slot       *frame.Slot
	finder     *faceFinder
	gate       *quality.Gate
	liveness   provider.LivenessChecker
	engine     *matching.Engine
	ledger     *cooldown.Ledger
	identities *identity.Store
	attendance AttendanceRepositoryInterface
	lock       *IdentityLock
	metrics    Metrics
	publisher  Publisher
	logger     *slog.Logger
	config     CaptureLoopConfig
	now        func() time.Time

	current atomic.Pointer[domain.AnnotationSet]

	lastSeq         uint64
	lastRecognition time.Time
	backoff         time.Duration
}

func NewCaptureLoop(
	slot *frame.Slot,
	embedder provider.FaceEmbedder,
	gate *quality.Gate,
	engine *matching.Engine,
	ledger *cooldown.Ledger,
	identities *identity.Store,
	attendance AttendanceRepositoryInterface,
	lock *IdentityLock,
	config CaptureLoopConfig,
	logger *slog.Logger,
) *CaptureLoop {
	l := &CaptureLoop{
		slot:       slot,
		finder:     newFaceFinder(embedder, config.DownscaleFactor, config.Upsample),
		gate:       gate,
		liveness:   provider.AlwaysLive{},
		engine:     engine,
		ledger:     ledger,
		identities: identities,
		attendance: attendance,
		lock:       lock,
		metrics:    noopMetrics{},
		publisher:  noopPublisher{},
		logger:     logger,
		config:     config,
		now:        time.Now,
	}
	l.current.Store(&domain.AnnotationSet{Status: StatusReady, Annotations: []domain.Annotation{}})
	return l
}

func (l *CaptureLoop) WithLiveness(checker provider.LivenessChecker) *CaptureLoop {
	l.liveness = checker
	return l
}

func (l *CaptureLoop) WithMetrics(m Metrics) *CaptureLoop {
	l.metrics = m
	return l
}

func (l *CaptureLoop) WithPublisher(p Publisher) *CaptureLoop {
	l.publisher = p
	return l
}

// Annotations returns the last published set. It is never nil.
func (l *CaptureLoop) Annotations() *domain.AnnotationSet {
	return l.current.Load()
}

// Run ticks until ctx is cancelled.
func (l *CaptureLoop) Run(ctx context.Context) {
	l.logger.Info("capture loop started",
		slog.Duration("poll_interval", l.config.PollInterval),
		slog.Duration("recognition_interval", l.config.RecognitionInterval),
	)
	defer l.logger.Info("capture loop stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(l.Tick(ctx))
		}
	}
}

// Tick runs one step of the loop and returns the delay until the next one.
func (l *CaptureLoop) Tick(ctx context.Context) time.Duration {
	seq := l.slot.Seq()
	if seq == 0 || seq == l.lastSeq {
		l.backoff = min(max(l.backoff*2, l.config.PollInterval), l.config.MaxBackoff)
		if seq == 0 || l.backoff >= l.config.MaxBackoff {
			l.setStatus(StatusWaitingFrames)
		}
		return l.backoff
	}
	l.backoff = 0

	now := l.now()
	if !l.lastRecognition.IsZero() && now.Sub(l.lastRecognition) < l.config.RecognitionInterval {
		return l.config.PollInterval
	}

	if !l.lock.TryAcquire() {
		l.setStatus(StatusEnrollmentRunning)
		l.metrics.RecognitionCycle(metrics.ResultSkipped, 0)
		return l.config.PollInterval
	}
	defer l.lock.Release()

	f, ok := l.slot.Latest()
	if !ok {
		return l.config.PollInterval
	}
	l.lastSeq = f.Seq
	l.lastRecognition = now

	cycleCtx := ctx
	if l.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, l.config.CycleTimeout)
		defer cancel()
	}

	start := time.Now()
	set, err := l.Recognize(cycleCtx, f)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("recognition cycle failed", slog.Uint64("frame_seq", f.Seq), slog.Any("error", err))
		}
		l.metrics.RecognitionCycle(metrics.ResultError, time.Since(start))
		return l.config.PollInterval
	}
	l.metrics.RecognitionCycle(metrics.ResultOK, time.Since(start))

	l.current.Store(set)
	l.publisher.Broadcast(ws.EventAnnotationsUpdated, set)
	return l.config.PollInterval
}

// Recognize runs detection, gating, matching and attendance logging on f.
// On error nothing is logged and the caller keeps the previous annotations.
func (l *CaptureLoop) Recognize(ctx context.Context, f frame.Frame) (*domain.AnnotationSet, error) {
	img := f.Image
	bounds := img.Bounds()
	set := &domain.AnnotationSet{
		FrameSeq:    f.Seq,
		FrameWidth:  bounds.Dx(),
		FrameHeight: bounds.Dy(),
		ComputedAt:  l.now(),
		Annotations: []domain.Annotation{},
	}

	cands, err := l.finder.find(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		set.Status = StatusNoFace
		return set, nil
	}

	annotations := make([]domain.Annotation, len(cands))
	for i, c := range cands {
		annotations[i] = l.screen(ctx, img, c.Box)
		cands[i].QualityOK = annotations[i].Kind == ""
	}

	if err := l.finder.embed(ctx, img, cands); err != nil {
		return nil, err
	}

	known := l.identities.Snapshot()
	var marked []string
	bestDist := 1.0
	bestName := ""

	for i := range cands {
		if !cands[i].QualityOK {
			continue
		}
		a := &annotations[i]
		emb := cands[i].Embedding
		if emb == nil {
			*a = domain.Annotation{Box: cands[i].Box, Kind: domain.AnnotationUnknown, Label: LabelUnknown, Distance: matching.NoCandidateDistance}
			continue
		}

		res := l.engine.Match(emb, known.Identities())
		name, ok := res.Name()
		if !ok {
			*a = domain.Annotation{Box: cands[i].Box, Kind: domain.AnnotationUnknown, Label: LabelUnknown, Distance: res.Distance}
			continue
		}

		*a = domain.Annotation{Box: cands[i].Box, Kind: domain.AnnotationMatched, Label: name, Name: name, Distance: res.Distance}
		if res.Distance < bestDist {
			bestDist, bestName = res.Distance, name
		}

		if !l.ledger.Admit(name, set.ComputedAt) {
			continue
		}

		ident, _ := known.Get(name)
		persisted := l.logAttendance(ctx, &ident, set.ComputedAt)
		a.Persisted = &persisted
		if persisted {
			marked = append(marked, fmt.Sprintf("%s marked present at %s", name, set.ComputedAt.Format(clockLayout)))
		} else {
			marked = append(marked, fmt.Sprintf("%s recognized, attendance not persisted", name))
		}
	}

	for _, a := range annotations {
		l.metrics.FaceOutcome(a.Kind)
	}
	set.Annotations = annotations
	set.Status = summarize(marked, bestName, bestDist, annotations)
	return set, nil
}

// screen applies the quality gate and the liveness hook. A zero Kind means
// the region passed both.
func (l *CaptureLoop) screen(ctx context.Context, img image.Image, box domain.BoundingBox) domain.Annotation {
	assessment := l.gate.Assess(img, box)
	if !assessment.OK {
		return domain.Annotation{Box: box, Kind: domain.AnnotationLowQuality, Label: LabelLowQuality, Reason: assessment.Reason}
	}

	live, err := l.liveness.Live(ctx, img, box)
	if err != nil {
		l.logger.Debug("liveness check failed", slog.Any("error", err))
	}
	if err != nil || !live {
		return domain.Annotation{Box: box, Kind: domain.AnnotationLivenessFailed, Label: LabelLivenessFailed}
	}
	return domain.Annotation{Box: box}
}

// logAttendance appends the event. The cooldown entry is kept on failure so a
// broken journal does not turn into a write on every frame.
func (l *CaptureLoop) logAttendance(ctx context.Context, ident *domain.Identity, at time.Time) bool {
	event := domain.NewAttendanceEvent(ident, at)
	if err := l.attendance.Append(ctx, event); err != nil {
		l.metrics.AttendanceFailed()
		l.logger.Error("failed to persist attendance",
			slog.String("name", ident.Name),
			slog.Any("error", errors.Join(domain.ErrStoreWriteFailed, err)),
		)
		return false
	}

	l.metrics.AttendanceWritten()
	l.publisher.Broadcast(ws.EventAttendanceRecorded, event)
	l.logger.Info("attendance recorded", slog.String("name", ident.Name), slog.Time("at", at))
	return true
}

func summarize(marked []string, bestName string, bestDist float64, annotations []domain.Annotation) string {
	if len(marked) > 0 {
		return strings.Join(marked, "; ")
	}
	if bestName != "" {
		return fmt.Sprintf("Recognized %s (dist %.3f)", bestName, bestDist)
	}
	for _, a := range annotations {
		if a.Kind == domain.AnnotationUnknown {
			return StatusNotRecognized
		}
	}
	return StatusLowQuality
}

// setStatus republishes the current annotations with a new status.
func (l *CaptureLoop) setStatus(status string) {
	prev := l.current.Load()
	if prev.Status == status {
		return
	}
	next := *prev
	next.Status = status
	l.current.Store(&next)
}
