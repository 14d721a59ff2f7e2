package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
)

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.EncodeJPEG(&buf, img))
	return buf.Bytes()
}

func TestHTTPSource_NextFrame(t *testing.T) {
	frame := jpegFrame(t, 64, 48)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
	}{
		{
			name: "serves snapshot",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/shot.jpg", r.URL.Path)
				w.Header().Set("Content-Type", "image/jpeg")
				_, _ = w.Write(frame)
			},
		},
		{
			name: "non 200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantErr: true,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not a jpeg"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			src := NewHTTPSource(server.URL+"/shot.jpg", time.Second)
			defer src.Close()

			img, err := src.NextFrame(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrFrameUnavailable)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
		})
	}
}

func TestHTTPSource_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, 50*time.Millisecond)
	_, err := src.NextFrame(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFrameUnavailable)
}

func TestHTTPSource_Unreachable(t *testing.T) {
	src := NewHTTPSource("http://127.0.0.1:1/shot.jpg", 200*time.Millisecond)
	_, err := src.NextFrame(context.Background())

	assert.ErrorIs(t, err, domain.ErrFrameUnavailable)
}
