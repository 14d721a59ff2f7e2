package camera

import (
	"context"
	"errors"
	"image"
)

var (
	ErrSourceClosed = errors.New("camera source closed")
	ErrNoFrames     = errors.New("no frames available")
)

// Source produces frames from a camera or a stand-in for one. NextFrame
// blocks until a frame is read or ctx is done. Implementations wrap read
// failures in domain.ErrFrameUnavailable.
type Source interface {
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Reopener is implemented by sources that hold a device handle which can go
// stale and must be released and opened again.
type Reopener interface {
	Reopen(ctx context.Context) error
}
