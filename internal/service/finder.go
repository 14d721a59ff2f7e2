package service

import (
	"context"
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/imaging"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

// faceFinder runs detection on a downscaled copy of the frame when the
// embedder supports two-stage operation, and on the full frame otherwise.
type faceFinder struct {
	embedder  provider.FaceEmbedder
	regions   provider.RegionEmbedder
	downscale float64
	upsample  int
}

func newFaceFinder(embedder provider.FaceEmbedder, downscale float64, upsample int) *faceFinder {
	f := &faceFinder{embedder: embedder, downscale: downscale, upsample: upsample}
	if re, ok := embedder.(provider.RegionEmbedder); ok {
		f.regions = re
	}
	if f.downscale <= 0 || f.downscale > 1 {
		f.downscale = 1
	}
	return f
}

// find returns the regions in full-resolution coordinates. Embeddings are
// filled in by embed, or already present when the embedder cannot split
// detection from embedding.
func (f *faceFinder) find(ctx context.Context, img image.Image) ([]domain.FaceObservation, error) {
	bounds := img.Bounds()

	if f.regions == nil {
		dets, err := f.embedder.DetectAndEmbed(ctx, img, f.upsample)
		if err != nil {
			return nil, fmt.Errorf("detect faces: %w", err)
		}
		out := make([]domain.FaceObservation, 0, len(dets))
		for _, d := range dets {
			box := d.Box.Clamp(bounds)
			if box.Empty() {
				continue
			}
			out = append(out, domain.FaceObservation{Box: box, Embedding: d.Embedding})
		}
		return out, nil
	}

	small := imaging.Downscale(img, f.downscale)
	boxes, err := f.regions.Detect(ctx, small, f.upsample)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	offset := small.Bounds().Min
	out := make([]domain.FaceObservation, 0, len(boxes))
	for _, b := range boxes {
		b = domain.BoundingBox{
			Top:    b.Top - offset.Y,
			Right:  b.Right - offset.X,
			Bottom: b.Bottom - offset.Y,
			Left:   b.Left - offset.X,
		}
		box := b.Scale(1 / f.downscale)
		box = domain.BoxFromRect(box.Rect().Add(bounds.Min)).Clamp(bounds)
		if box.Empty() {
			continue
		}
		out = append(out, domain.FaceObservation{Box: box})
	}
	return out, nil
}

// embed fills the embedding of the observations marked QualityOK from
// full-resolution crops.
func (f *faceFinder) embed(ctx context.Context, img image.Image, obs []domain.FaceObservation) error {
	if f.regions == nil {
		return nil
	}

	var idx []int
	for i := range obs {
		if obs[i].QualityOK {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil
	}

	boxes := make([]domain.BoundingBox, len(idx))
	for i, j := range idx {
		boxes[i] = obs[j].Box
	}

	embs, err := f.regions.EmbedRegions(ctx, img, boxes)
	if err != nil {
		return fmt.Errorf("embed faces: %w", err)
	}
	for i, j := range idx {
		if i < len(embs) {
			obs[j].Embedding = embs[i]
		}
	}
	return nil
}
