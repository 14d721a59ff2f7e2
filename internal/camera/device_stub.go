//go:build !gocv

package camera

import (
	"context"
	"errors"
	"image"
)

var ErrDeviceUnsupported = errors.New("device camera support requires building with -tags gocv")

// DeviceSource is unavailable in builds without OpenCV.
type DeviceSource struct{}

func NewDeviceSource(_, _, _ int) (*DeviceSource, error) {
	return nil, ErrDeviceUnsupported
}

func (s *DeviceSource) NextFrame(context.Context) (image.Image, error) {
	return nil, ErrDeviceUnsupported
}

func (s *DeviceSource) Reopen(context.Context) error { return ErrDeviceUnsupported }

func (s *DeviceSource) Close() error { return nil }
