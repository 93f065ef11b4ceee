// Package conf loads and validates application settings.
package conf

import (
	"log"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sawit-ai/go-grading/inference"
)

// Settings is the full application configuration, populated from defaults,
// an optional YAML config file and environment overrides.
type Settings struct {
	Models struct {
		// Backend selects the inference runtime, "tflite" or "onnx".
		Backend string `mapstructure:"backend"`
		// Detector is the bunch detector model path.
		Detector string `mapstructure:"detector"`
		// Classifier is the ripeness classifier model path.
		Classifier string `mapstructure:"classifier"`
		// OnnxLibrary is the onnxruntime shared library path, onnx only.
		OnnxLibrary string `mapstructure:"onnxlibrary"`
		// Threads caps interpreter threads; 0 means all CPUs.
		Threads int `mapstructure:"threads"`
	} `mapstructure:"models"`

	Inference struct {
		Confidence     float32  `mapstructure:"confidence"`
		IoU            float32  `mapstructure:"iou"`
		CropPadding    float32  `mapstructure:"croppadding"`
		Classes        []string `mapstructure:"classes"`
		DetectionLabel string   `mapstructure:"detectionlabel"`
	} `mapstructure:"inference"`

	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
}

// Load reads settings from the given config file path. An empty path falls
// back to grading.yaml in the working directory; a missing file is not an
// error, defaults and SAWIT_* environment variables still apply.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("grading")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("sawit")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		log.Printf("📋 No config file found, using defaults")
	} else {
		log.Printf("📋 Config loaded from %s", v.ConfigFileUsed())
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal settings")
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func setDefaults(v *viper.Viper) {
	defaults := inference.DefaultConfig()

	v.SetDefault("models.backend", "tflite")
	v.SetDefault("models.detector", "models/detector.tflite")
	v.SetDefault("models.classifier", "models/classifier.tflite")
	v.SetDefault("models.onnxlibrary", "")
	v.SetDefault("models.threads", 0)

	v.SetDefault("inference.confidence", defaults.ConfidenceThreshold)
	v.SetDefault("inference.iou", defaults.IoUThreshold)
	v.SetDefault("inference.croppadding", defaults.CropPadding)
	v.SetDefault("inference.classes", defaults.ClassLabels)
	v.SetDefault("inference.detectionlabel", defaults.DetectionLabel)

	v.SetDefault("server.port", "8000")
	v.SetDefault("database.path", "grading.db")
}

func (s *Settings) validate() error {
	switch s.Models.Backend {
	case "tflite", "onnx":
	default:
		return errors.Errorf("unknown backend %q, want tflite or onnx", s.Models.Backend)
	}
	if s.Inference.Confidence < 0 || s.Inference.Confidence > 1 {
		return errors.Errorf("confidence threshold %v out of [0,1]", s.Inference.Confidence)
	}
	if s.Inference.IoU < 0 || s.Inference.IoU > 1 {
		return errors.Errorf("iou threshold %v out of [0,1]", s.Inference.IoU)
	}
	if len(s.Inference.Classes) == 0 {
		return errors.New("at least one ripeness class is required")
	}
	return nil
}

// InferenceConfig converts settings into the pipeline config.
func (s *Settings) InferenceConfig() inference.Config {
	return inference.Config{
		ConfidenceThreshold: s.Inference.Confidence,
		IoUThreshold:        s.Inference.IoU,
		CropPadding:         s.Inference.CropPadding,
		ClassLabels:         s.Inference.Classes,
		DetectionLabel:      s.Inference.DetectionLabel,
	}
}
