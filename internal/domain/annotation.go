package domain

import "time"

type AnnotationKind string

const (
	AnnotationMatched        AnnotationKind = "matched"
	AnnotationUnknown        AnnotationKind = "unknown"
	AnnotationLowQuality     AnnotationKind = "low_quality"
	AnnotationLivenessFailed AnnotationKind = "liveness_failed"
)

// LowQualityReason explains why the quality gate rejected a region.
type LowQualityReason string

const (
	ReasonNone      LowQualityReason = ""
	ReasonTooSmall  LowQualityReason = "too_small"
	ReasonTooBlurry LowQualityReason = "too_blurry"
	ReasonEmptyCrop LowQualityReason = "empty_crop"
)

// Annotation is a render-ready label for one face region.
type Annotation struct {
	Box       BoundingBox      `json:"box"`
	Kind      AnnotationKind   `json:"kind"`
	Label     string           `json:"label"`
	Name      string           `json:"name,omitempty"`
	Distance  float64          `json:"distance"`
	Reason    LowQualityReason `json:"reason,omitempty"`
	Persisted *bool            `json:"persisted,omitempty"`
}

// AnnotationSet is the result of one recognition cycle. It stays on screen
// until the next cycle replaces it.
type AnnotationSet struct {
	FrameSeq    uint64       `json:"frame_seq"`
	FrameWidth  int          `json:"frame_width"`
	FrameHeight int          `json:"frame_height"`
	ComputedAt  time.Time    `json:"computed_at"`
	Annotations []Annotation `json:"annotations"`
	Status      string       `json:"status"`
}
