package service

import (
	"context"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

type MockAttendanceRepository struct {
	mock.Mock
}

func (m *MockAttendanceRepository) Append(ctx context.Context, event *domain.AttendanceEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAttendanceRepository) ListRecent(ctx context.Context, limit int) ([]domain.AttendanceEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AttendanceEvent), args.Error(1)
}

func (m *MockAttendanceRepository) LatestByIdentity(ctx context.Context, since time.Time) (map[string]time.Time, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]time.Time), args.Error(1)
}

type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) List(ctx context.Context) ([]domain.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Identity), args.Error(1)
}

func (m *MockIdentityRepository) Get(ctx context.Context, name string) (*domain.Identity, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockIdentityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockIdentityRepository) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// MockFaceEmbedder implements only the single-stage contract.
type MockFaceEmbedder struct {
	mock.Mock
}

func (m *MockFaceEmbedder) DetectAndEmbed(ctx context.Context, img image.Image, upsample int) ([]provider.Detection, error) {
	args := m.Called(ctx, img, upsample)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Detection), args.Error(1)
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Broadcast(eventType ws.EventType, _ interface{}) {
	p.events = append(p.events, string(eventType))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// texturedFrame has enough high-frequency detail to pass any sane sharpness threshold.
func texturedFrame(w, h int, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*31 + y*17 + ((x*y+seed)%7)*40 + seed*13) % 256)
			i := img.PixOffset(x, y)
			img.Pix[i] = v
			img.Pix[i+1] = v ^ uint8(seed)
			img.Pix[i+2] = 255 - v
			img.Pix[i+3] = 255
		}
	}
	return img
}

func readDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
