// Package model contains domain types passed between layers.
package model

// DefaultDim is the embedding dimension produced by the external encoder.
const DefaultDim = 128

// Unknown is the label reported when no stored vector is within tolerance.
const Unknown = "Unknown"

// Embedding is a fixed-dimension face embedding vector.
type Embedding []float64

// Box is a face bounding box in frame coordinates (top, right, bottom, left),
// the order used by the upstream detector.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// FrameInfo carries the dimensions of the analyzed frame.
type FrameInfo struct {
	W int `json:"w"`
	H int `json:"h"`
}

// DetectedFace is one detection from the external detector/encoder: a
// bounding box plus the embedding computed for that region.
type DetectedFace struct {
	Box    Box       `json:"box"`
	Vector Embedding `json:"embedding"`
}

// MatchResult is the outcome of matching one probe face against the store.
// Label is Unknown when no stored vector is within tolerance; Distance is
// nil only when the store held no vectors at all.
type MatchResult struct {
	Box      Box      `json:"box"`
	Label    string   `json:"label"`
	Distance *float64 `json:"distance"`
}

// Known reports whether the result identifies an enrolled label.
func (r MatchResult) Known() bool {
	return r.Label != Unknown && r.Distance != nil
}

// Sighting is one accepted-confidence observation of a student, queued for
// asynchronous attendance recording.
type Sighting struct {
	StudentID string
	TS        int64 // unix seconds
}
