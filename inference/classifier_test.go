package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

var testLabels = []string{"unripe", "ripe", "over_ripe"}

func classifierOutput(values []float32, shape ...int) *tensor.Dense {
	if len(shape) == 0 {
		shape = []int{1, len(values)}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(values))
}

func TestDecodeClassificationLogits(t *testing.T) {
	got := DecodeClassification(classifierOutput([]float32{2.0, 1.0, 0.1}), testLabels)

	// softmax([2.0, 1.0, 0.1])
	assert.InDelta(t, 0.6590, got.Probabilities[0], 1e-3)
	assert.InDelta(t, 0.2424, got.Probabilities[1], 1e-3)
	assert.InDelta(t, 0.0986, got.Probabilities[2], 1e-3)

	assert.Equal(t, 0, got.TopIndex)
	assert.Equal(t, "unripe", got.TopLabel)
	assert.InDelta(t, 0.6590, got.TopConfidence, 1e-3)
}

func TestDecodeClassificationPassthrough(t *testing.T) {
	got := DecodeClassification(classifierOutput([]float32{0.2, 0.5, 0.3}), testLabels)

	assert.InDelta(t, 0.2, got.Probabilities[0], 1e-6, "a distribution summing to 1 passes through unchanged")
	assert.InDelta(t, 0.5, got.Probabilities[1], 1e-6)
	assert.InDelta(t, 0.3, got.Probabilities[2], 1e-6)
	assert.Equal(t, "ripe", got.TopLabel)
	assert.Equal(t, 1, got.TopIndex)
}

func TestDecodeClassificationCardinality(t *testing.T) {
	t.Run("short vector padded with zeros", func(t *testing.T) {
		got := DecodeClassification(classifierOutput([]float32{1.0}), testLabels)

		require.Len(t, got.Probabilities, 3)
		assert.InDelta(t, 1.0, got.Probabilities[0], 1e-6)
		assert.Equal(t, float32(0), got.Probabilities[1])
		assert.Equal(t, float32(0), got.Probabilities[2])
		assert.Equal(t, "unripe", got.TopLabel)
	})

	t.Run("long vector truncated positionally", func(t *testing.T) {
		got := DecodeClassification(classifierOutput([]float32{0.1, 0.2, 0.4, 0.2, 0.1}), testLabels)

		require.Len(t, got.Probabilities, 3)
		assert.Equal(t, 2, got.TopIndex)
		assert.Equal(t, "over_ripe", got.TopLabel)
		assert.InDelta(t, 0.4, got.TopConfidence, 1e-6)
	})
}

func TestDecodeClassificationSumsToOne(t *testing.T) {
	tests := []struct {
		name   string
		values []float32
	}{
		{name: "positive logits", values: []float32{5, 3, 1}},
		{name: "negative logits", values: []float32{-1, -2, -3}},
		{name: "large logits", values: []float32{100, 99, 98}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeClassification(classifierOutput(tt.values), testLabels)

			var sum float32
			for _, p := range got.Probabilities {
				assert.GreaterOrEqual(t, p, float32(0))
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-4)
		})
	}
}

func TestDecodeClassificationHigherDimensionalOutput(t *testing.T) {
	// A [1,1,3] output flattens to the same vector as [1,3].
	got := DecodeClassification(classifierOutput([]float32{0.1, 0.7, 0.2}, 1, 1, 3), testLabels)
	assert.Equal(t, "ripe", got.TopLabel)
}

func TestDecodeClassificationDegenerate(t *testing.T) {
	t.Run("nil tensor", func(t *testing.T) {
		got := DecodeClassification(nil, testLabels)
		require.Len(t, got.Probabilities, 3)
		assert.Equal(t, "unripe", got.TopLabel, "argmax of the zero vector is index 0")
		assert.Equal(t, float32(0), got.TopConfidence)
	})

	t.Run("no labels", func(t *testing.T) {
		got := DecodeClassification(classifierOutput([]float32{0.5, 0.5}), nil)
		assert.Empty(t, got.Probabilities)
		assert.Equal(t, LabelUnknown, got.TopLabel)
	})
}
