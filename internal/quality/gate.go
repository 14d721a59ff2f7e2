// Package quality decides whether a detected face region is good enough to
// be matched or enrolled.
package quality

import (
	"image"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Gate rejects undersized and blurry face regions.
type Gate struct {
	MinFaceSize  int
	MinSharpness float64
}

func NewGate(minFaceSize int, minSharpness float64) *Gate {
	return &Gate{MinFaceSize: minFaceSize, MinSharpness: minSharpness}
}

// Assessment is the verdict for one region. Sharpness is only computed once
// the size checks pass.
type Assessment struct {
	OK        bool
	Reason    domain.LowQualityReason
	Sharpness float64
}

// Assess checks box against img. The box must be in img's coordinate space.
func (g *Gate) Assess(img image.Image, box domain.BoundingBox) Assessment {
	if box.Width() < g.MinFaceSize || box.Height() < g.MinFaceSize {
		return Assessment{Reason: domain.ReasonTooSmall}
	}

	region := box.Rect().Intersect(img.Bounds())
	if region.Empty() {
		return Assessment{Reason: domain.ReasonEmptyCrop}
	}

	sharpness := regionSharpness(img, region)
	if sharpness < g.MinSharpness {
		return Assessment{Reason: domain.ReasonTooBlurry, Sharpness: sharpness}
	}

	return Assessment{OK: true, Sharpness: sharpness}
}

// Sharpness returns the focus score of the whole image.
func Sharpness(img image.Image) float64 {
	return regionSharpness(img, img.Bounds())
}

func regionSharpness(img image.Image, r image.Rectangle) float64 {
	gray := luma(img, r)
	return laplacianVariance(gray, r.Dx(), r.Dy())
}
