package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
	"github.com/saturnino-fabrica-de-software/chamada/internal/metrics"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	"github.com/saturnino-fabrica-de-software/chamada/internal/quality"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

const (
	maxNameLength    = 100
	maxContactLength = 50
)

type EnrollmentConfig struct {
	Shots               int
	Timeout             time.Duration
	CanonicalSize       int
	GoodSharpnessFactor float64
	GoodSizeFactor      float64
	DownscaleFactor     float64
	Upsample            int
}

func DefaultEnrollmentConfig() EnrollmentConfig {
	return EnrollmentConfig{
		Shots:               5,
		Timeout:             8 * time.Second,
		CanonicalSize:       256,
		GoodSharpnessFactor: 2.0,
		GoodSizeFactor:      1.2,
		DownscaleFactor:     0.5,
	}
}

// Shot is one qualifying enrollment capture.
type Shot struct {
	FrameSeq  uint64
	Box       domain.BoundingBox
	Crop      *image.RGBA
	Sharpness float64
	Embedding domain.Embedding
}

type EnrollmentResult struct {
	Identity       *domain.Identity `json:"identity"`
	Sharpness      float64          `json:"sharpness"`
	ShotsEvaluated int              `json:"shots_evaluated"`
}

// Enroller captures the best of a short burst of frames and stores it as the
// identity's reference.
type Enroller struct {
	slot       *frame.Slot
	finder     *faceFinder
	gate       *quality.Gate
	identities *identity.Store
	repo       IdentityRepositoryInterface
	images     ImageStoreInterface
	lock       *IdentityLock
	metrics    Metrics
	publisher  Publisher
	logger     *slog.Logger
	config     EnrollmentConfig

	// score ranks canonical crops; higher is better.
	score func(image.Image) float64
}

func NewEnroller(
	slot *frame.Slot,
	embedder provider.FaceEmbedder,
	gate *quality.Gate,
	identities *identity.Store,
	repo IdentityRepositoryInterface,
	images ImageStoreInterface,
	lock *IdentityLock,
	config EnrollmentConfig,
	logger *slog.Logger,
) *Enroller {
	return &Enroller{
		slot:       slot,
		finder:     newFaceFinder(embedder, config.DownscaleFactor, config.Upsample),
		gate:       gate,
		identities: identities,
		repo:       repo,
		images:     images,
		lock:       lock,
		metrics:    noopMetrics{},
		publisher:  noopPublisher{},
		logger:     logger,
		config:     config,
		score:      quality.Sharpness,
	}
}

func (e *Enroller) WithMetrics(m Metrics) *Enroller {
	e.metrics = m
	return e
}

func (e *Enroller) WithPublisher(p Publisher) *Enroller {
	e.publisher = p
	return e
}

// Enroll captures frames from the live feed until deadline or until enough
// qualifying shots were seen, and stores the sharpest one. A zero deadline
// uses the configured timeout.
func (e *Enroller) Enroll(ctx context.Context, name, contact string, deadline time.Time) (*EnrollmentResult, error) {
	name, contact, err := validateEnrollment(name, contact)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if deadline.IsZero() {
		deadline = start.Add(e.config.Timeout)
	}

	captureCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := e.lock.Acquire(captureCtx); err != nil {
		return nil, domain.ErrEnrollmentBusy.WithError(err)
	}
	defer e.lock.Release()

	e.logger.Info("enrollment started", slog.String("name", name), slog.Time("deadline", deadline))

	best, evaluated, ok := bestShot(e.shots(captureCtx), e.goodEnough)
	if !ok {
		e.metrics.Enrollment(metrics.ResultFailed, time.Since(start))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.logger.Warn("enrollment failed, no qualifying shot", slog.String("name", name))
		return nil, domain.ErrNoQualifyingShot
	}

	result, err := e.commit(ctx, name, contact, best)
	if err != nil {
		e.metrics.Enrollment(metrics.ResultError, time.Since(start))
		return nil, err
	}
	result.ShotsEvaluated = evaluated

	e.metrics.Enrollment(metrics.ResultOK, time.Since(start))
	return result, nil
}

// EnrollImage enrolls from a single still image.
func (e *Enroller) EnrollImage(ctx context.Context, name, contact string, img image.Image) (*EnrollmentResult, error) {
	name, contact, err := validateEnrollment(name, contact)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := e.lock.Acquire(ctx); err != nil {
		return nil, domain.ErrEnrollmentBusy.WithError(err)
	}
	defer e.lock.Release()

	shot, err := e.evaluate(ctx, img, 0)
	if err != nil {
		e.metrics.Enrollment(metrics.ResultFailed, time.Since(start))
		return nil, err
	}

	result, err := e.commit(ctx, name, contact, shot)
	if err != nil {
		e.metrics.Enrollment(metrics.ResultError, time.Since(start))
		return nil, err
	}
	result.ShotsEvaluated = 1

	e.metrics.Enrollment(metrics.ResultOK, time.Since(start))
	return result, nil
}

// shots yields qualifying shots from frames published after the call, up to
// the configured count. It ends when ctx is done.
func (e *Enroller) shots(ctx context.Context) iter.Seq[Shot] {
	return func(yield func(Shot) bool) {
		after := e.slot.Seq()
		for taken := 0; taken < e.config.Shots; {
			f, err := e.slot.Next(ctx, after)
			if err != nil {
				return
			}
			after = f.Seq

			shot, err := e.evaluate(ctx, f.Image, f.Seq)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.Debug("enrollment frame rejected", slog.Uint64("frame_seq", f.Seq), slog.Any("error", err))
				continue
			}

			taken++
			if !yield(shot) {
				return
			}
		}
	}
}

// evaluate turns one image into a shot: largest face, quality gate, canonical
// crop, sharpness score and embedding.
func (e *Enroller) evaluate(ctx context.Context, img image.Image, seq uint64) (Shot, error) {
	cands, err := e.finder.find(ctx, img)
	if err != nil {
		return Shot{}, err
	}
	if len(cands) == 0 {
		return Shot{}, domain.ErrNoFaceDetected
	}

	largest := 0
	for i, c := range cands {
		if c.Box.Width()*c.Box.Height() > cands[largest].Box.Width()*cands[largest].Box.Height() {
			largest = i
		}
	}
	cand := cands[largest : largest+1]

	assessment := e.gate.Assess(img, cand[0].Box)
	if !assessment.OK {
		return Shot{}, domain.ErrLowQuality.WithMessage(fmt.Sprintf("Face rejected: %s", assessment.Reason))
	}

	crop, err := imaging.CanonicalCrop(img, cand[0].Box, e.config.CanonicalSize)
	if err != nil {
		return Shot{}, err
	}

	cand[0].QualityOK = true
	if err := e.finder.embed(ctx, img, cand); err != nil {
		return Shot{}, err
	}
	if cand[0].Embedding == nil {
		return Shot{}, domain.ErrNoFaceDetected
	}
	if !cand[0].Embedding.Valid() {
		return Shot{}, fmt.Errorf("embedding has %d dimensions: %w", len(cand[0].Embedding), domain.ErrInvalidImage)
	}

	return Shot{
		FrameSeq:  seq,
		Box:       cand[0].Box,
		Crop:      crop,
		Sharpness: e.score(crop),
		Embedding: cand[0].Embedding,
	}, nil
}

func (e *Enroller) goodEnough(s Shot) bool {
	return s.Sharpness > e.config.GoodSharpnessFactor*e.gate.MinSharpness &&
		float64(s.Box.Height()) > e.config.GoodSizeFactor*float64(e.gate.MinFaceSize)
}

// bestShot folds seq into its sharpest element, stopping early at the first
// shot accepted by goodEnough. Ties keep the earlier shot.
func bestShot(seq iter.Seq[Shot], goodEnough func(Shot) bool) (Shot, int, bool) {
	var best Shot
	n := 0
	for s := range seq {
		n++
		if n == 1 || s.Sharpness > best.Sharpness {
			best = s
		}
		if goodEnough != nil && goodEnough(s) {
			break
		}
	}
	return best, n, n > 0
}

// commit writes the reference image and the identity record, then refreshes
// the store. Nothing is left behind when the record cannot be written.
func (e *Enroller) commit(ctx context.Context, name, contact string, shot Shot) (*EnrollmentResult, error) {
	previous, hadPrevious := e.identities.Snapshot().Get(name)

	ref, err := e.images.Save(ctx, name, shot.Crop)
	if err != nil {
		return nil, domain.ErrStoreWriteFailed.WithError(fmt.Errorf("save reference image: %w", err))
	}

	ident := &domain.Identity{
		Name:      name,
		Contact:   contact,
		Embedding: shot.Embedding,
		ImageRef:  ref,
	}
	if err := e.repo.Upsert(ctx, ident); err != nil {
		if delErr := e.images.Delete(ctx, ref); delErr != nil {
			e.logger.Error("failed to remove orphan reference image", slog.String("image_ref", ref), slog.Any("error", delErr))
		}
		return nil, domain.ErrStoreWriteFailed.WithError(fmt.Errorf("save identity: %w", err))
	}

	if err := e.identities.Load(ctx); err != nil {
		e.logger.Warn("identity reload failed, applying enrollment in memory", slog.Any("error", err))
		e.identities.Put(*ident)
	}

	if hadPrevious && previous.ImageRef != "" && previous.ImageRef != ref {
		if err := e.images.Delete(ctx, previous.ImageRef); err != nil {
			e.logger.Warn("failed to remove previous reference image", slog.String("image_ref", previous.ImageRef), slog.Any("error", err))
		}
	}

	e.publisher.Broadcast(ws.EventEnrollmentCompleted, ident)
	e.logger.Info("identity enrolled",
		slog.String("name", name),
		slog.Float64("sharpness", shot.Sharpness),
		slog.String("image_ref", ref),
	)

	return &EnrollmentResult{Identity: ident, Sharpness: shot.Sharpness}, nil
}

func validateEnrollment(name, contact string) (string, string, error) {
	name = domain.NormalizeName(name)
	contact = strings.TrimSpace(contact)

	var problems []string
	if name == "" {
		problems = append(problems, "name is required")
	}
	if len(name) > maxNameLength {
		problems = append(problems, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	if contact == "" {
		problems = append(problems, "contact is required")
	}
	if len(contact) > maxContactLength {
		problems = append(problems, fmt.Sprintf("contact must be at most %d characters", maxContactLength))
	}
	if len(problems) > 0 {
		return "", "", domain.ErrValidationFailed.WithMessage(strings.Join(problems, "; "))
	}
	return name, contact, nil
}

// IsEnrollmentFailure reports whether err is an expected enrollment outcome
// rather than an infrastructure problem.
func IsEnrollmentFailure(err error) bool {
	return errors.Is(err, domain.ErrNoQualifyingShot) ||
		errors.Is(err, domain.ErrNoFaceDetected) ||
		errors.Is(err, domain.ErrLowQuality) ||
		errors.Is(err, domain.ErrValidationFailed)
}
