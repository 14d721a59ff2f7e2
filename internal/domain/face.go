package domain

import (
	"image"
	"math"
)

// EmbeddingDimension is the length of every face embedding handled by the service.
const EmbeddingDimension = 128

// Embedding is a face descriptor. Euclidean distance between two embeddings
// approximates identity similarity.
type Embedding []float64

// Valid reports whether the embedding has the expected dimension and no NaN/Inf values.
func (e Embedding) Valid() bool {
	if len(e) != EmbeddingDimension {
		return false
	}
	for _, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// BoundingBox is a face region given as (top, right, bottom, left) pixel
// offsets in the coordinate space of the image it was detected in.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

func (b BoundingBox) Width() int  { return b.Right - b.Left }
func (b BoundingBox) Height() int { return b.Bottom - b.Top }

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Empty reports whether the box covers no pixels.
func (b BoundingBox) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// Scale multiplies every coordinate by factor, truncating toward zero.
// Used to map boxes found on a downscaled frame back to full resolution.
func (b BoundingBox) Scale(factor float64) BoundingBox {
	return BoundingBox{
		Top:    int(float64(b.Top) * factor),
		Right:  int(float64(b.Right) * factor),
		Bottom: int(float64(b.Bottom) * factor),
		Left:   int(float64(b.Left) * factor),
	}
}

// Clamp restricts the box to bounds.
func (b BoundingBox) Clamp(bounds image.Rectangle) BoundingBox {
	r := b.Rect().Intersect(bounds)
	if r.Empty() {
		return BoundingBox{}
	}
	return BoxFromRect(r)
}

// FaceObservation is one detected region within a single processing cycle.
// QualityOK is set once the region passed the quality gate and liveness hook.
type FaceObservation struct {
	Box       BoundingBox
	Embedding Embedding
	QualityOK bool
}
