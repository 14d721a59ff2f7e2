package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
)

// maxSnapshotBytes limita o tamanho de um snapshot JPEG
const maxSnapshotBytes = 16 << 20

// HTTPSource fetches a JPEG snapshot per frame, as served by phone camera
// apps such as IP Webcam (`/shot.jpg`).
type HTTPSource struct {
	url        string
	httpClient *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) NextFrame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(fmt.Errorf("build request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, domain.ErrFrameUnavailable.WithError(fmt.Errorf("snapshot returned status %d", resp.StatusCode))
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, domain.ErrFrameUnavailable.WithError(err)
	}
	return img, nil
}

func (s *HTTPSource) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
