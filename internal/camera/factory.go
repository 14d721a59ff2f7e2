package camera

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
)

// Open builds the frame source selected by CAMERA_SOURCE.
func Open(cfg *config.Config) (Source, error) {
	switch cfg.CameraSource {
	case config.CameraSourceHTTP:
		return NewHTTPSource(cfg.CameraURL, cfg.FrameTimeout), nil
	case config.CameraSourceDevice:
		return NewDeviceSource(cfg.CameraDevice, cfg.CameraWidth, cfg.CameraHeight)
	case config.CameraSourceDirectory:
		return NewDirectorySource(cfg.CameraDir)
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.CameraSource)
	}
}
