package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawit-ai/go-grading/inference"
	"github.com/sawit-ai/go-grading/util"
)

var inferCmd = &cobra.Command{
	Use:   "infer [image or directory]",
	Short: "Grade a single image or every image in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		pipeline, closer, err := buildPipeline(settings)
		if err != nil {
			return err
		}
		defer closer()

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}

		if info.IsDir() {
			return inferDirectory(pipeline, args[0])
		}
		return inferFile(pipeline, args[0])
	},
}

func inferFile(pipeline *inference.Pipeline, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result, err := pipeline.Process(data)
	if err != nil {
		return err
	}
	printResult(path, result)
	return nil
}

func inferDirectory(pipeline *inference.Pipeline, dir string) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Printf("⚠️ No images found in %s", dir)
		return nil
	}
	log.Printf("📋 Grading %d images from %s", len(files), dir)

	totals := make(map[string]int)
	var bunches int
	for _, f := range files {
		result, err := pipeline.Process(f.Data)
		if err != nil {
			return err
		}
		printResult(f.Path, result)

		bunches += result.TotalBunches
		for label, n := range result.ClassCounts {
			totals[label] += n
		}
	}

	fmt.Printf("\n%d images, %d bunches\n", len(files), bunches)
	for _, label := range pipeline.Config().ClassLabels {
		if totals[label] > 0 {
			fmt.Printf("  %s: %d\n", label, totals[label])
		}
	}
	return nil
}

func printResult(path string, r *inference.Result) {
	fmt.Printf("%s: %s (%d bunches, %dms)\n", path, r.Label, r.TotalBunches, r.ElapsedMs)
	for _, b := range r.Bunches {
		fmt.Printf("  %s %.2f -> %s %.2f\n", b.Label, b.Confidence, b.Classification, b.ClassificationConfidence)
	}
}
