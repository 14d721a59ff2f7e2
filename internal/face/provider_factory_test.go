package face

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/mock"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		embedder string
		check    func(t *testing.T, e provider.FaceEmbedder)
		wantErr  bool
	}{
		{
			name:     "explicit deepface",
			embedder: "deepface",
			check: func(t *testing.T, e provider.FaceEmbedder) {
				assert.IsType(t, &deepface.Provider{}, e)
			},
		},
		{
			name:     "empty defaults to deepface",
			embedder: "",
			check: func(t *testing.T, e provider.FaceEmbedder) {
				assert.IsType(t, &deepface.Provider{}, e)
			},
		},
		{
			name:     "mock is two-stage",
			embedder: "mock",
			check: func(t *testing.T, e provider.FaceEmbedder) {
				assert.IsType(t, &mock.Provider{}, e)
				_, ok := e.(provider.RegionEmbedder)
				assert.True(t, ok)
			},
		},
		{
			name:     "unknown",
			embedder: "opencv",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(&config.Config{Embedder: tt.embedder})

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown embedder")
				return
			}
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestCreateDeepFaceProvider_Overrides(t *testing.T) {
	p := createDeepFaceProvider(&config.Config{
		DeepFaceURL:     "http://gpu-box:5005",
		DeepFaceTimeout: 3 * time.Second,
	})

	require.NotNil(t, p)
}
