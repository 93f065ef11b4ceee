package inference

// Config holds the tunable parameters of the pipeline. Zero values are not
// meaningful; start from DefaultConfig.
type Config struct {
	// ConfidenceThreshold discards detector candidates below it.
	ConfidenceThreshold float32
	// IoUThreshold is the greedy NMS suppression threshold.
	IoUThreshold float32
	// CropPadding expands bunch crops by this fraction of the image
	// dimension on each side before classification.
	CropPadding float32
	// ClassLabels is the ordered ripeness class list; classifier outputs
	// are padded or truncated to this cardinality.
	ClassLabels []string
	// DetectionLabel names the detector's single known class.
	DetectionLabel string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.45,
		CropPadding:         0.05,
		ClassLabels:         []string{"unripe", "ripe", "over_ripe"},
		DetectionLabel:      "FruitBunch",
	}
}
