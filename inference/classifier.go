package inference

import (
	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// normalizeEpsilon guards the plain-normalization denominator against a zero
// sum.
const normalizeEpsilon = 1e-8

// DecodeClassification interprets a raw classifier output tensor into a
// label, confidence and per-class distribution.
//
// The tensor is flattened to a 1-D vector. A vector that does not already
// sum to ~1 is treated as logits and pushed through a numerically-stable
// softmax; if that produces non-finite values the decoder falls back to
// plain normalization. The distribution is then padded with zeros or
// truncated to exactly the configured class count, preserving leading
// entries positionally. Malformed output never errors: the decoder always
// produces a well-typed result.
//
// Arguments:
//   - out: Raw classifier output of any shape.
//   - labels: Ordered class names; fixes the output cardinality.
//
// Returns:
//   - ClassificationResult: Distribution, argmax index, label, confidence.
func DecodeClassification(out *tensor.Dense, labels []string) ClassificationResult {
	var preds []float32
	if out != nil {
		if data, ok := out.Data().([]float32); ok {
			preds = data
		}
	}

	probs := toProbabilities(preds)

	// Pad or truncate to the known class count, no reordering.
	fixed := make([]float32, len(labels))
	copy(fixed, probs)

	topIdx := 0
	for i, p := range fixed {
		if p > fixed[topIdx] {
			topIdx = i
		}
	}

	topLabel := LabelUnknown
	if topIdx < len(labels) {
		topLabel = labels[topIdx]
	}

	var topConf float32
	if len(fixed) > 0 {
		topConf = fixed[topIdx]
	}

	return ClassificationResult{
		Probabilities: fixed,
		TopIndex:      topIdx,
		TopLabel:      topLabel,
		TopConfidence: topConf,
	}
}

// toProbabilities returns the vector as a probability distribution: passed
// through unchanged when it already sums to ~1, otherwise softmaxed with a
// plain-normalization fallback on numeric failure.
func toProbabilities(preds []float32) []float32 {
	if len(preds) == 0 {
		return nil
	}

	var sum float32
	for _, v := range preds {
		sum += v
	}
	if sum > 0.99 && sum < 1.01 {
		return preds
	}

	if probs, ok := softmax(preds); ok {
		return probs
	}
	return normalize(preds, sum)
}

// softmax computes exp(x - max(x)) / sum. The second return is false when
// the result is not finite.
func softmax(preds []float32) ([]float32, bool) {
	maxVal := preds[0]
	for _, v := range preds[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float32, len(preds))
	var expSum float32
	for i, v := range preds {
		probs[i] = math32.Exp(v - maxVal)
		expSum += probs[i]
	}
	if expSum == 0 || math32.IsNaN(expSum) || math32.IsInf(expSum, 0) {
		return nil, false
	}
	for i := range probs {
		probs[i] /= expSum
	}
	return probs, true
}

func normalize(preds []float32, sum float32) []float32 {
	probs := make([]float32, len(preds))
	for i, v := range preds {
		probs[i] = v / (sum + normalizeEpsilon)
	}
	return probs
}
