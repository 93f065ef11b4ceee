// Package inference - the two-stage detection and classification pipeline:
// tensor preparation, detector output decoding with NMS, classifier output
// decoding, and per-image aggregation.
package inference

import "github.com/sawit-ai/go-grading/images"

// Detection is one surviving fruit-bunch candidate. The decoder fills the
// box, confidence and detector label; the pipeline attaches the ripeness
// classification afterwards.
type Detection struct {
	// Box is corner-form and normalized to the detector-input square.
	Box        images.Rect `json:"box"`
	Confidence float32     `json:"confidence"`
	Label      string      `json:"class"`

	// Classification is the per-bunch ripeness label, "Unknown" when the
	// crop degenerated or the classifier failed.
	Classification           string  `json:"classification"`
	ClassificationConfidence float32 `json:"classification_confidence"`
}

// ClassificationResult is the decoded output of one classifier invocation.
type ClassificationResult struct {
	// Probabilities has exactly the configured class count and sums to ~1.
	Probabilities []float32
	TopIndex      int
	TopLabel      string
	TopConfidence float32
}

// Result is the document-level verdict for one image. It is built once per
// pipeline call and handed to the caller unchanged; the pipeline keeps no
// state across calls besides the loaded models.
type Result struct {
	Bunches       []Detection    `json:"bunches"`
	TotalBunches  int            `json:"total_bunches"`
	ClassCounts   map[string]int `json:"classification_summary"`
	DominantLabel string         `json:"dominant_classification,omitempty"`
	HasBunches    bool           `json:"has_bunches"`

	// Label is the dominant classification, or a sentinel: "No Bunches
	// Detected" when nothing was classified, "Error decoding image" when
	// the input bytes could not be decoded.
	Label string `json:"label"`

	ElapsedMs int64 `json:"inferenceTime"`

	// Flattened fields kept for history records: a one-hot vector over the
	// configured classes for the dominant label.
	Predictions []float32 `json:"predictions"`
	TopClass    int       `json:"topClass"`
	Confidence  float32   `json:"confidence"`
}

// Sentinel labels reported in Result.Label.
const (
	LabelDecodeError = "Error decoding image"
	LabelNoBunches   = "No Bunches Detected"
	LabelUnknown     = "Unknown"
)
