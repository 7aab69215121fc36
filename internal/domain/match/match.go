// Package match implements nearest-neighbor matching of probe embeddings
// against a snapshot of stored reference vectors.
package match

import (
	"math"

	"github.com/facegate/facegate/internal/domain/model"
)

// DefaultTolerance is the maximum distance for a probe to count as known.
const DefaultTolerance = 0.45

// Ref is one stored reference vector with the label it was enrolled under.
type Ref struct {
	Label  string
	Vector model.Embedding
}

// Engine matches probe embeddings against reference vectors. It is a pure
// function of its inputs and safe for concurrent use.
type Engine struct {
	tolerance float64
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		tolerance: DefaultTolerance,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Tolerance returns the configured match tolerance.
func (e *Engine) Tolerance() float64 { return e.tolerance }

// Distance returns the Euclidean distance between two embeddings.
// Mismatched dimensions yield +Inf so the pair can never match.
func Distance(a, b model.Embedding) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Recognize scans every reference vector and returns the nearest label, or
// Unknown when the minimum distance exceeds the tolerance. The distance is
// reported for unknowns too; it is nil only when refs is empty. Ties keep
// the first reference encountered in iteration order.
func (e *Engine) Recognize(probe model.Embedding, refs []Ref) model.MatchResult {
	if len(refs) == 0 {
		return model.MatchResult{Label: model.Unknown}
	}

	best := 0
	bestDist := Distance(probe, refs[0].Vector)
	for i := 1; i < len(refs); i++ {
		if d := Distance(probe, refs[i].Vector); d < bestDist {
			best = i
			bestDist = d
		}
	}

	res := model.MatchResult{Label: model.Unknown, Distance: &bestDist}
	if bestDist <= e.tolerance {
		res.Label = refs[best].Label
	}
	return res
}

// RecognizeBatch matches every detected face against the same reference
// slice, so all faces in one frame see a single consistent view.
func (e *Engine) RecognizeBatch(faces []model.DetectedFace, refs []Ref) []model.MatchResult {
	results := make([]model.MatchResult, len(faces))
	for i, f := range faces {
		r := e.Recognize(f.Vector, refs)
		r.Box = f.Box
		results[i] = r
	}
	return results
}
