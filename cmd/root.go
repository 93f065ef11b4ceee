// Package cmd - command-line entry points.
package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/sawit-ai/go-grading/conf"
	"github.com/sawit-ai/go-grading/inference"
	"github.com/sawit-ai/go-grading/model"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "go-grading",
	Short: "Palm fruit bunch detection and ripeness grading",
	Long: `go-grading runs a two-stage vision pipeline over palm fruit images:
a detector finds fruit bunches, a classifier grades each bunch's ripeness,
and the per-bunch grades are aggregated into a verdict for the image.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default grading.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inferCmd)
}

func loadSettings() (*conf.Settings, error) {
	return conf.Load(cfgFile)
}

// buildPipeline loads both models for the configured backend, warms them up
// and wires the pipeline. The returned closer releases both models.
func buildPipeline(settings *conf.Settings) (*inference.Pipeline, func(), error) {
	var detector, classifier model.Model
	var err error

	switch settings.Models.Backend {
	case "onnx":
		detector, err = model.LoadONNX(settings.Models.Detector, settings.Models.OnnxLibrary)
		if err != nil {
			return nil, nil, err
		}
		classifier, err = model.LoadONNX(settings.Models.Classifier, settings.Models.OnnxLibrary)
	default:
		detector, err = model.LoadTFLite(settings.Models.Detector, settings.Models.Threads)
		if err != nil {
			return nil, nil, err
		}
		classifier, err = model.LoadTFLite(settings.Models.Classifier, settings.Models.Threads)
	}
	if err != nil {
		detector.Close()
		return nil, nil, err
	}

	closer := func() {
		detector.Close()
		classifier.Close()
	}

	if err := model.Warmup(detector); err != nil {
		closer()
		return nil, nil, err
	}
	if err := model.Warmup(classifier); err != nil {
		closer()
		return nil, nil, err
	}
	log.Printf("🎯 Models warmed up, pipeline ready")

	return inference.NewPipeline(detector, classifier, settings.InferenceConfig()), closer, nil
}
