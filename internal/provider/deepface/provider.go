package deepface

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

// Provider implements provider.RegionEmbedder using DeepFace API.
// DeepFace has no upsampling knob; the upsample argument is ignored.
type Provider struct {
	client *Client
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// DetectAndEmbed detects every face in img and returns its embedding.
func (p *Provider) DetectAndEmbed(ctx context.Context, img image.Image, _ int) ([]provider.Detection, error) {
	results, err := p.represent(ctx, img, "")
	if err != nil {
		return nil, fmt.Errorf("detect and embed: %w", err)
	}

	dets := make([]provider.Detection, 0, len(results))
	for _, r := range results {
		emb, err := toEmbedding(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("detect and embed: %w", err)
		}
		dets = append(dets, provider.Detection{Box: toBox(r.FacialArea), Embedding: emb})
	}
	return dets, nil
}

// Detect runs the detector only; embeddings returned by the service are discarded.
func (p *Provider) Detect(ctx context.Context, img image.Image, _ int) ([]domain.BoundingBox, error) {
	results, err := p.represent(ctx, img, "")
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	boxes := make([]domain.BoundingBox, 0, len(results))
	for _, r := range results {
		boxes = append(boxes, toBox(r.FacialArea))
	}
	return boxes, nil
}

// EmbedRegions crops each box from img and embeds it with detection skipped.
func (p *Provider) EmbedRegions(ctx context.Context, img image.Image, boxes []domain.BoundingBox) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(boxes))
	for i, box := range boxes {
		crop, err := imaging.Crop(img, box)
		if err != nil {
			continue
		}

		results, err := p.represent(ctx, crop, DetectorSkip)
		if err != nil {
			return nil, fmt.Errorf("embed region %d: %w", i, err)
		}
		if len(results) == 0 {
			continue
		}

		emb, err := toEmbedding(results[0].Embedding)
		if err != nil {
			return nil, fmt.Errorf("embed region %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}

// represent sends img and keeps only results that carry a real detection.
// With enforce_detection disabled DeepFace answers a faceless image with a
// single whole-image area at zero confidence.
func (p *Provider) represent(ctx context.Context, img image.Image, detector string) ([]RepresentResult, error) {
	data, err := imaging.JPEGBytes(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageFormat, err)
	}

	resp, err := p.client.Represent(ctx, base64.StdEncoding.EncodeToString(data), detector)
	if err != nil {
		return nil, classify(err)
	}

	if detector == DetectorSkip {
		return resp.Results, nil
	}

	results := resp.Results[:0]
	for _, r := range resp.Results {
		if r.FaceConfidence <= 0 {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrEmbedderUnavailable.WithError(fmt.Errorf("%w: %v", ErrDeepFaceTimeout, err))
	case errors.Is(err, ErrDeepFaceUnavailable):
		return domain.ErrEmbedderUnavailable.WithError(err)
	default:
		return err
	}
}

func toBox(a FacialArea) domain.BoundingBox {
	return domain.BoundingBox{
		Top:    a.Y,
		Right:  a.X + a.W,
		Bottom: a.Y + a.H,
		Left:   a.X,
	}
}

func toEmbedding(values []float64) (domain.Embedding, error) {
	if len(values) != domain.EmbeddingDimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedDimension, len(values), domain.EmbeddingDimension)
	}
	return domain.Embedding(values), nil
}

var _ provider.RegionEmbedder = (*Provider)(nil)
