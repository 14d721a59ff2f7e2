package face

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/mock"
)

// ProviderType defines supported embedder backends
type ProviderType string

const (
	// ProviderTypeDeepFace calls a DeepFace HTTP server
	ProviderTypeDeepFace ProviderType = config.EmbedderDeepFace
	// ProviderTypeMock is deterministic and needs no model (dev/test)
	ProviderTypeMock ProviderType = config.EmbedderMock
)

// NewEmbedder creates the FaceEmbedder selected by EMBEDDER.
//
// Environment variables:
//   - EMBEDDER: "deepface" or "mock" (default: "deepface")
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_DETECTOR, DEEPFACE_TIMEOUT
func NewEmbedder(cfg *config.Config) (provider.FaceEmbedder, error) {
	switch ProviderType(cfg.Embedder) {
	case ProviderTypeDeepFace, "":
		return createDeepFaceProvider(cfg), nil

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown embedder: %s (supported: %s, %s)",
			cfg.Embedder, ProviderTypeDeepFace, ProviderTypeMock)
	}
}

// createDeepFaceProvider fills unset fields from deepface.DefaultConfig.
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	dc := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		dc.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		dc.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		dc.Detector = cfg.DeepFaceDetector
	}
	if cfg.DeepFaceTimeout > 0 {
		dc.Timeout = cfg.DeepFaceTimeout
	}

	return deepface.NewProvider(dc)
}
