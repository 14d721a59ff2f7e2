//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// DeviceSource reads frames from a local capture device through OpenCV.
type DeviceSource struct {
	device        int
	width, height int

	mu  sync.Mutex
	cap *gocv.VideoCapture
	mat gocv.Mat
}

func NewDeviceSource(device, width, height int) (*DeviceSource, error) {
	s := &DeviceSource{device: device, width: width, height: height, mat: gocv.NewMat()}
	if err := s.open(); err != nil {
		_ = s.mat.Close()
		return nil, err
	}
	return s, nil
}

func (s *DeviceSource) open() error {
	vc, err := gocv.OpenVideoCapture(s.device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", s.device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return fmt.Errorf("open camera %d: device not opened", s.device)
	}

	// MJPG evita o gargalo de banda do YUYV em 720p
	vc.Set(gocv.VideoCaptureFOURCC, vc.ToCodec("MJPG"))
	if s.width > 0 && s.height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.height))
	}
	s.cap = vc
	return nil
}

func (s *DeviceSource) NextFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return nil, domain.ErrFrameUnavailable.WithError(ErrSourceClosed)
	}
	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, domain.ErrFrameUnavailable.WithError(errors.New("camera read returned no frame"))
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(fmt.Errorf("convert frame: %w", err))
	}
	return img, nil
}

// Reopen releases the device handle and opens it again.
func (s *DeviceSource) Reopen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap != nil {
		_ = s.cap.Close()
		s.cap = nil
	}
	return s.open()
}

func (s *DeviceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.cap != nil {
		err = s.cap.Close()
		s.cap = nil
	}
	return errors.Join(err, s.mat.Close())
}

var _ Reopener = (*DeviceSource)(nil)
