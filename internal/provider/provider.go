package provider

import (
	"context"
	"image"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Detection is one face found by an embedder: its box in the coordinate
// space of the image that was passed in, and its embedding.
type Detection struct {
	Box       domain.BoundingBox `json:"box"`
	Embedding domain.Embedding   `json:"-"`
}

// FaceEmbedder define a interface para provedores de detecção + embedding.
// upsample asks the detector to look for smaller faces at extra cost;
// implementations that cannot honor it ignore it.
type FaceEmbedder interface {
	DetectAndEmbed(ctx context.Context, img image.Image, upsample int) ([]Detection, error)
}

// RegionEmbedder splits detection from embedding so detection can run on a
// downscaled frame while embeddings are computed on full-resolution crops.
type RegionEmbedder interface {
	FaceEmbedder

	// Detect returns face boxes in img coordinates.
	Detect(ctx context.Context, img image.Image, upsample int) ([]domain.BoundingBox, error)

	// EmbedRegions returns one embedding per box, in order. A nil entry
	// means no face could be embedded in that region.
	EmbedRegions(ctx context.Context, img image.Image, boxes []domain.BoundingBox) ([]domain.Embedding, error)
}

// LivenessChecker is the single anti-spoofing hook of the pipeline.
type LivenessChecker interface {
	Live(ctx context.Context, img image.Image, box domain.BoundingBox) (bool, error)
}

// AlwaysLive accepts every region.
type AlwaysLive struct{}

func (AlwaysLive) Live(context.Context, image.Image, domain.BoundingBox) (bool, error) {
	return true, nil
}

// Largest returns the detection with the biggest box area.
func Largest(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Box.Width()*d.Box.Height() > best.Box.Width()*best.Box.Height() {
			best = d
		}
	}
	return best, true
}
