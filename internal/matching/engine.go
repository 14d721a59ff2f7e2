// Package matching identifies a face embedding against the enrolled set
// using a distance threshold and a best/second-best margin.
package matching

import (
	"math"
	"sort"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

const (
	DefaultDistThreshold = 0.45
	DefaultMargin        = 0.03

	// NoCandidateDistance is reported when nothing could be compared.
	NoCandidateDistance = 1.0
	// singleCandidateGap is the gap assumed when only one identity exists,
	// which always satisfies any sensible margin.
	singleCandidateGap = 1.0
)

// Outcome is either Matched or Unknown.
type Outcome interface {
	outcome()
}

type Matched struct {
	Name string
}

type Unknown struct{}

func (Matched) outcome() {}
func (Unknown) outcome() {}

// Result is the decision for one embedding.
type Result struct {
	Outcome        Outcome
	Distance       float64
	SecondDistance float64
	MarginOK       bool
}

// Name returns the matched identity, if any.
func (r Result) Name() (string, bool) {
	m, ok := r.Outcome.(Matched)
	return m.Name, ok
}

type Engine struct {
	DistThreshold float64
	Margin        float64
}

func NewEngine(distThreshold, margin float64) *Engine {
	return &Engine{DistThreshold: distThreshold, Margin: margin}
}

type candidate struct {
	name     string
	distance float64
}

// Match compares query with every known identity that has a compatible
// embedding. It accepts the nearest one only when it is closer than the
// threshold and at least Margin closer than the runner-up.
func (e *Engine) Match(query domain.Embedding, known []domain.Identity) Result {
	candidates := make([]candidate, 0, len(known))
	for i := range known {
		d, ok := Distance(query, known[i].Embedding)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{name: known[i].Name, distance: d})
	}

	if len(candidates) == 0 {
		return Result{Outcome: Unknown{}, Distance: NoCandidateDistance, SecondDistance: NoCandidateDistance}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].distance < candidates[b].distance
	})

	best := candidates[0]
	second := best.distance + singleCandidateGap
	if len(candidates) > 1 {
		second = candidates[1].distance
	}

	marginOK := second-best.distance >= e.Margin
	res := Result{
		Outcome:        Unknown{},
		Distance:       best.distance,
		SecondDistance: second,
		MarginOK:       marginOK,
	}
	if best.distance < e.DistThreshold && marginOK {
		res.Outcome = Matched{Name: best.name}
	}
	return res
}

// Distance is the Euclidean distance between two embeddings. It reports
// false when the dimensions differ or either side is empty.
func Distance(a, b domain.Embedding) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), true
}
