package inference

import (
	"fmt"
	"sort"

	"gorgonia.org/tensor"

	"github.com/sawit-ai/go-grading/images"
)

// DetectorOutputKind tags the recognized packed detector output formats,
// resolved once per invocation from the output tensor shape.
type DetectorOutputKind int

const (
	// DetectorOutputUnknown means the shape matched neither format.
	DetectorOutputUnknown DetectorOutputKind = iota
	// DetectorOutputSingle is [1, 5, K]: x, y, w, h, confidence.
	DetectorOutputSingle
	// DetectorOutputMulti is [1, 4+C, K]: x, y, w, h plus C class scores.
	DetectorOutputMulti
)

// detectorKind resolves the output format from the tensor shape. The packed
// layouts are column-major over candidates: one row per field, K columns.
// The candidate count carries no format information; a sparse output with
// fewer candidates than rows is still valid.
func detectorKind(shape tensor.Shape) DetectorOutputKind {
	if len(shape) != 3 || shape[0] != 1 {
		return DetectorOutputUnknown
	}
	rows := shape[1]
	if rows < 5 {
		return DetectorOutputUnknown
	}
	if rows == 5 {
		return DetectorOutputSingle
	}
	return DetectorOutputMulti
}

// DecodeDetections interprets a raw detector output tensor into scored,
// duplicate-suppressed detections.
//
// Candidates below the confidence threshold are discarded, survivors are
// converted to corner-form normalized boxes clipped to [0,1], sorted by
// confidence descending, and filtered with greedy NMS. An unrecognized
// output shape yields an empty list, never an error: the caller treats
// "no detections" as a valid terminal state.
//
// Arguments:
//   - out: Raw detector output, shape [1,5,K] or [1,4+C,K].
//   - cfg: Thresholds and label names.
//
// Returns:
//   - []Detection: Confidence-sorted survivors, possibly empty.
func DecodeDetections(out *tensor.Dense, cfg Config) []Detection {
	if out == nil {
		return nil
	}
	kind := detectorKind(out.Shape())
	if kind == DetectorOutputUnknown {
		return nil
	}
	data, ok := out.Data().([]float32)
	if !ok {
		return nil
	}

	rows := out.Shape()[1]
	cands := out.Shape()[2]
	if len(data) < rows*cands {
		return nil
	}

	// row r of candidate k lives at data[r*cands+k]; walking k is the
	// transpose to one candidate per row.
	var detections []Detection
	for k := 0; k < cands; k++ {
		var confidence float32
		label := cfg.DetectionLabel

		switch kind {
		case DetectorOutputSingle:
			confidence = data[4*cands+k]
		case DetectorOutputMulti:
			classID := 0
			for r := 4; r < rows; r++ {
				if score := data[r*cands+k]; score > confidence {
					confidence = score
					classID = r - 4
				}
			}
			if classID != 0 {
				label = fmt.Sprintf("Class_%d", classID)
			}
		}

		if confidence < cfg.ConfidenceThreshold {
			continue
		}

		cx := data[0*cands+k]
		cy := data[1*cands+k]
		w := data[2*cands+k]
		h := data[3*cands+k]

		detections = append(detections, Detection{
			Box:        images.FromCenter(cx, cy, w, h),
			Confidence: confidence,
			Label:      label,
		})
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	return applyGreedyNMS(detections, cfg.IoUThreshold)
}

// applyGreedyNMS filters overlapping detections: the highest-confidence
// remaining candidate is kept and every candidate overlapping it at or above
// the threshold is dropped. Input must already be sorted by descending
// confidence; survivors keep that order.
func applyGreedyNMS(detections []Detection, iouThreshold float32) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) >= iouThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
