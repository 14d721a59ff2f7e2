package service

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/cooldown"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/matching"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	mockprovider "github.com/saturnino-fabrica-de-software/chamada/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/chamada/internal/quality"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

type loopFixture struct {
	loop       *CaptureLoop
	slot       *frame.Slot
	store      *identity.Store
	attendance *MockAttendanceRepository
	lock       *IdentityLock
	publisher  *recordingPublisher
	clock      time.Time
}

func newLoopFixture(t *testing.T, minFaceSize int) *loopFixture {
	t.Helper()

	fx := &loopFixture{
		slot:       frame.NewSlot(),
		store:      identity.NewStore(new(MockIdentityRepository)),
		attendance: new(MockAttendanceRepository),
		lock:       NewIdentityLock(),
		publisher:  &recordingPublisher{},
		clock:      time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
	}

	fx.loop = NewCaptureLoop(
		fx.slot,
		mockprovider.New(),
		quality.NewGate(minFaceSize, 5),
		matching.NewEngine(matching.DefaultDistThreshold, matching.DefaultMargin),
		cooldown.NewLedger(120*time.Second),
		fx.store,
		fx.attendance,
		fx.lock,
		DefaultCaptureLoopConfig(),
		discardLogger(),
	).WithPublisher(fx.publisher)
	fx.loop.now = func() time.Time { return fx.clock }
	return fx
}

// enroll stores the embedding the mock provider computes for img under name,
// plus a decoy identity at the opposite end of the embedding space.
func (fx *loopFixture) enroll(t *testing.T, name string, img image.Image) {
	t.Helper()
	dets, err := mockprovider.New().DetectAndEmbed(context.Background(), img, 0)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	decoy := dets[0].Embedding.Clone()
	for i := range decoy {
		decoy[i] = -decoy[i]
	}

	fx.store.Put(domain.Identity{Name: name, Contact: "555-0101", Embedding: dets[0].Embedding})
	fx.store.Put(domain.Identity{Name: "decoy", Contact: "000", Embedding: decoy})
}

func TestCaptureLoop_AliceScenario(t *testing.T) {
	fx := newLoopFixture(t, 80)
	img := texturedFrame(320, 240, 1)
	fx.enroll(t, "alice", img)

	fx.attendance.On("Append", mock.Anything, mock.MatchedBy(func(e *domain.AttendanceEvent) bool {
		return e.IdentityName == "alice" && e.Contact == "555-0101"
	})).Return(nil)

	ctx := context.Background()
	t0 := fx.clock
	f := frame.Frame{Seq: 1, Image: img}

	tests := []struct {
		offset      time.Duration
		wantWrite   bool
		wantStatus  string
		wantWritten int
	}{
		{0, true, "alice marked present at 08:00:00", 1},
		{10 * time.Second, false, "Recognized alice (dist 0.000)", 1},
		{130 * time.Second, true, "alice marked present at 08:02:10", 2},
		{140 * time.Second, false, "Recognized alice (dist 0.000)", 2},
	}

	for _, tt := range tests {
		fx.clock = t0.Add(tt.offset)

		set, err := fx.loop.Recognize(ctx, f)
		require.NoError(t, err)
		require.Len(t, set.Annotations, 1)

		a := set.Annotations[0]
		assert.Equal(t, domain.AnnotationMatched, a.Kind, "offset %s", tt.offset)
		assert.Equal(t, "alice", a.Name)
		assert.InDelta(t, 0.0, a.Distance, 1e-9, "round trip through the store gives distance 0")
		if tt.wantWrite {
			require.NotNil(t, a.Persisted)
			assert.True(t, *a.Persisted)
		} else {
			assert.Nil(t, a.Persisted)
		}
		assert.Equal(t, tt.wantStatus, set.Status)
		fx.attendance.AssertNumberOfCalls(t, "Append", tt.wantWritten)
	}
}

func TestCaptureLoop_AppendFailureKeepsCooldown(t *testing.T) {
	fx := newLoopFixture(t, 80)
	img := texturedFrame(320, 240, 2)
	fx.enroll(t, "alice", img)
	fx.attendance.On("Append", mock.Anything, mock.Anything).Return(assert.AnError)

	ctx := context.Background()
	f := frame.Frame{Seq: 1, Image: img}

	set, err := fx.loop.Recognize(ctx, f)
	require.NoError(t, err)
	require.NotNil(t, set.Annotations[0].Persisted)
	assert.False(t, *set.Annotations[0].Persisted)
	assert.Equal(t, "alice recognized, attendance not persisted", set.Status)

	fx.clock = fx.clock.Add(10 * time.Second)
	_, err = fx.loop.Recognize(ctx, f)
	require.NoError(t, err)
	fx.attendance.AssertNumberOfCalls(t, "Append", 1)
}

func TestCaptureLoop_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		minFaceSize int
		enroll      bool
		img         image.Image
		wantKind    domain.AnnotationKind
		wantReason  domain.LowQualityReason
		wantStatus  string
		wantNoFaces bool
	}{
		{
			name:        "no face",
			minFaceSize: 80,
			img:         image.NewRGBA(image.Rect(0, 0, 320, 240)),
			wantStatus:  StatusNoFace,
			wantNoFaces: true,
		},
		{
			name:        "too small",
			minFaceSize: 200,
			img:         texturedFrame(320, 240, 3),
			wantKind:    domain.AnnotationLowQuality,
			wantReason:  domain.ReasonTooSmall,
			wantStatus:  StatusLowQuality,
		},
		{
			name:        "unknown with empty store",
			minFaceSize: 80,
			img:         texturedFrame(320, 240, 4),
			wantKind:    domain.AnnotationUnknown,
			wantStatus:  StatusNotRecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newLoopFixture(t, tt.minFaceSize)

			set, err := fx.loop.Recognize(context.Background(), frame.Frame{Seq: 7, Image: tt.img})

			require.NoError(t, err)
			assert.Equal(t, uint64(7), set.FrameSeq)
			assert.Equal(t, tt.wantStatus, set.Status)
			if tt.wantNoFaces {
				assert.Empty(t, set.Annotations)
				return
			}
			require.Len(t, set.Annotations, 1)
			assert.Equal(t, tt.wantKind, set.Annotations[0].Kind)
			assert.Equal(t, tt.wantReason, set.Annotations[0].Reason)
			fx.attendance.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		})
	}
}

type rejectAll struct{}

func (rejectAll) Live(context.Context, image.Image, domain.BoundingBox) (bool, error) {
	return false, nil
}

func TestCaptureLoop_LivenessHook(t *testing.T) {
	fx := newLoopFixture(t, 80)
	img := texturedFrame(320, 240, 5)
	fx.enroll(t, "alice", img)
	fx.loop.WithLiveness(rejectAll{})

	set, err := fx.loop.Recognize(context.Background(), frame.Frame{Seq: 1, Image: img})

	require.NoError(t, err)
	require.Len(t, set.Annotations, 1)
	assert.Equal(t, domain.AnnotationLivenessFailed, set.Annotations[0].Kind)
	fx.attendance.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestCaptureLoop_TickWaitsForFrames(t *testing.T) {
	fx := newLoopFixture(t, 80)
	cfg := DefaultCaptureLoopConfig()

	assert.Equal(t, cfg.PollInterval, fx.loop.Tick(context.Background()))
	assert.Equal(t, 2*cfg.PollInterval, fx.loop.Tick(context.Background()))
	assert.Equal(t, StatusWaitingFrames, fx.loop.Annotations().Status)

	for i := 0; i < 10; i++ {
		fx.loop.Tick(context.Background())
	}
	assert.Equal(t, cfg.MaxBackoff, fx.loop.Tick(context.Background()), "backoff is capped")
}

func TestCaptureLoop_TickPublishes(t *testing.T) {
	fx := newLoopFixture(t, 80)
	img := texturedFrame(320, 240, 6)
	fx.enroll(t, "alice", img)
	fx.attendance.On("Append", mock.Anything, mock.Anything).Return(nil).Once()

	fx.slot.Publish(img, fx.clock)
	fx.loop.Tick(context.Background())

	set := fx.loop.Annotations()
	assert.Equal(t, uint64(1), set.FrameSeq)
	assert.Equal(t, "alice marked present at 08:00:00", set.Status)
	assert.ElementsMatch(t, []string{string(ws.EventAttendanceRecorded), string(ws.EventAnnotationsUpdated)}, fx.publisher.events)

	// Mesmo frame: nada é recalculado.
	fx.loop.Tick(context.Background())
	assert.Same(t, set, fx.loop.Annotations())
}

func TestCaptureLoop_SkipsWhileEnrolling(t *testing.T) {
	fx := newLoopFixture(t, 80)
	fx.slot.Publish(texturedFrame(320, 240, 7), fx.clock)

	require.True(t, fx.lock.TryAcquire())
	fx.loop.Tick(context.Background())
	fx.lock.Release()

	assert.Equal(t, StatusEnrollmentRunning, fx.loop.Annotations().Status)
	assert.Equal(t, uint64(0), fx.loop.Annotations().FrameSeq)
}

func TestCaptureLoop_EmbedderErrorKeepsStaleOverlay(t *testing.T) {
	embedder := new(MockFaceEmbedder)
	embedder.On("DetectAndEmbed", mock.Anything, mock.Anything, 0).Return(nil, domain.ErrEmbedderUnavailable)

	slot := frame.NewSlot()
	loop := NewCaptureLoop(
		slot,
		embedder,
		quality.NewGate(80, 5),
		matching.NewEngine(matching.DefaultDistThreshold, matching.DefaultMargin),
		cooldown.NewLedger(time.Minute),
		identity.NewStore(new(MockIdentityRepository)),
		new(MockAttendanceRepository),
		NewIdentityLock(),
		DefaultCaptureLoopConfig(),
		discardLogger(),
	)
	before := loop.Annotations()

	slot.Publish(texturedFrame(64, 64, 1), time.Now())
	loop.Tick(context.Background())

	assert.Same(t, before, loop.Annotations())
	embedder.AssertExpectations(t)
}

func TestCaptureLoop_SingleStageEmbedderUsesFullFrame(t *testing.T) {
	img := texturedFrame(320, 240, 8)
	emb := make(domain.Embedding, domain.EmbeddingDimension)
	emb[0] = 0.5

	embedder := new(MockFaceEmbedder)
	embedder.On("DetectAndEmbed", mock.Anything, img, 0).Return([]provider.Detection{
		{Box: domain.BoundingBox{Top: 20, Left: 20, Bottom: 220, Right: 220}, Embedding: emb},
	}, nil)

	store := identity.NewStore(new(MockIdentityRepository))
	store.Put(domain.Identity{Name: "bob", Embedding: emb})

	attendance := new(MockAttendanceRepository)
	attendance.On("Append", mock.Anything, mock.Anything).Return(nil)

	loop := NewCaptureLoop(
		frame.NewSlot(),
		embedder,
		quality.NewGate(80, 5),
		matching.NewEngine(matching.DefaultDistThreshold, matching.DefaultMargin),
		cooldown.NewLedger(time.Minute),
		store,
		attendance,
		NewIdentityLock(),
		DefaultCaptureLoopConfig(),
		discardLogger(),
	)

	set, err := loop.Recognize(context.Background(), frame.Frame{Seq: 1, Image: img})

	require.NoError(t, err)
	require.Len(t, set.Annotations, 1)
	assert.Equal(t, "bob", set.Annotations[0].Name)
	assert.Equal(t, domain.BoundingBox{Top: 20, Left: 20, Bottom: 220, Right: 220}, set.Annotations[0].Box)
	embedder.AssertExpectations(t)
}

func TestCaptureLoop_BoxesInFullResolution(t *testing.T) {
	sizes := []struct {
		name string
		w, h int
	}{
		{"even frame", 320, 240},
		{"odd frame", 641, 481},
		{"hd frame", 1280, 720},
	}

	for _, tt := range sizes {
		t.Run(tt.name, func(t *testing.T) {
			fx := newLoopFixture(t, 40)
			img := texturedFrame(tt.w, tt.h, 3)

			want, err := mockprovider.New().Detect(context.Background(), img, 0)
			require.NoError(t, err)
			require.Len(t, want, 1)

			set, err := fx.loop.Recognize(context.Background(), frame.Frame{Seq: 1, Image: img})
			require.NoError(t, err)
			require.Len(t, set.Annotations, 1)

			assert.Equal(t, tt.w, set.FrameWidth)
			assert.Equal(t, tt.h, set.FrameHeight)
			assert.Equal(t, want[0], set.Annotations[0].Box, "box detected on the downscaled copy maps back to full resolution")
		})
	}
}
