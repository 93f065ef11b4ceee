package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grading.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tflite", settings.Models.Backend)
	assert.Equal(t, "models/detector.tflite", settings.Models.Detector)
	assert.Equal(t, "models/classifier.tflite", settings.Models.Classifier)
	assert.Zero(t, settings.Models.Threads)
	assert.InDelta(t, 0.5, settings.Inference.Confidence, 1e-6)
	assert.InDelta(t, 0.45, settings.Inference.IoU, 1e-6)
	assert.InDelta(t, 0.05, settings.Inference.CropPadding, 1e-6)
	assert.Equal(t, []string{"unripe", "ripe", "over_ripe"}, settings.Inference.Classes)
	assert.Equal(t, "FruitBunch", settings.Inference.DetectionLabel)
	assert.Equal(t, "8000", settings.Server.Port)
	assert.Equal(t, "grading.db", settings.Database.Path)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
models:
  backend: onnx
  detector: /opt/models/bunch.onnx
  classifier: /opt/models/ripeness.onnx
  onnxlibrary: /usr/lib/libonnxruntime.so
inference:
  confidence: 0.65
  iou: 0.3
  classes:
    - unripe
    - ripe
server:
  port: "9090"
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "onnx", settings.Models.Backend)
	assert.Equal(t, "/opt/models/bunch.onnx", settings.Models.Detector)
	assert.InDelta(t, 0.65, settings.Inference.Confidence, 1e-6)
	assert.InDelta(t, 0.3, settings.Inference.IoU, 1e-6)
	assert.Equal(t, []string{"unripe", "ripe"}, settings.Inference.Classes)
	assert.Equal(t, "9090", settings.Server.Port)

	// Values the file omits keep their defaults.
	assert.InDelta(t, 0.05, settings.Inference.CropPadding, 1e-6)
	assert.Equal(t, "grading.db", settings.Database.Path)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown backend",
			content: "models:\n  backend: caffe\n",
		},
		{
			name:    "confidence out of range",
			content: "inference:\n  confidence: 1.5\n",
		},
		{
			name:    "iou out of range",
			content: "inference:\n  iou: -0.1\n",
		},
		{
			name:    "empty class list",
			content: "inference:\n  classes: []\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInferenceConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	settings, err := Load("")
	require.NoError(t, err)

	cfg := settings.InferenceConfig()
	assert.InDelta(t, 0.5, cfg.ConfidenceThreshold, 1e-6)
	assert.InDelta(t, 0.45, cfg.IoUThreshold, 1e-6)
	assert.InDelta(t, 0.05, cfg.CropPadding, 1e-6)
	assert.Equal(t, []string{"unripe", "ripe", "over_ripe"}, cfg.ClassLabels)
	assert.Equal(t, "FruitBunch", cfg.DetectionLabel)
}
