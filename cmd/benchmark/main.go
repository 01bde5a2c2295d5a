package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/panoblur/internal/benchmark"
	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
	"github.com/MeKo-Tech/panoblur/internal/testutil"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

type modelList []string

func (m *modelList) String() string { return strings.Join(*m, ",") }

func (m *modelList) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	var models modelList
	var (
		modelsDir  = flag.String("models-dir", "", "Directory containing cascade and ONNX models")
		algorithm  = flag.String("algorithm", pipeline.AlgorithmCascade, "Detection algorithm: cascade or none")
		width      = flag.Int("gnomonic-width", 1024, "Gnomonic tile width in pixels")
		aperture   = flag.Float64("aperture", 60, "Gnomonic aperture in degrees, both axes")
		iterations = flag.Int("iterations", 3, "Number of iterations per case")
		outputFile = flag.String("output", "", "Write results as CSV to this file")
	)
	flag.Var(&models, "model", "Model spec class:file[:parent][:min:max] (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [panorama ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Compare flat and gnomonic detection on panoramas. Without arguments a\n")
		fmt.Fprintf(os.Stderr, "synthetic 2048x1024 panorama is used.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	fmt.Println("panoblur projection benchmark")
	fmt.Println("=============================")

	defaults := config.DefaultConfig()
	cfg := defaults.ToPipelineConfig()
	cfg.Algorithm = *algorithm
	cfg.Models = models
	cfg.ModelsDir = *modelsDir

	p, err := pipeline.NewBuilder().
		WithConfig(cfg).
		WithGnomonic(*width, *aperture, *aperture).
		Build()
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer func() { _ = p.Close() }()

	suite := benchmark.NewSuite()
	if flag.NArg() == 0 {
		benchmark.AddProjectionCases(suite, p, "synthetic", syntheticPanorama())
	}
	for _, path := range flag.Args() {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", path, err)
		}
		benchmark.AddProjectionCases(suite, p, filepath.Base(path), img)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Running %d cases with %d iterations each...\n\n", suite.Len(), *iterations)
	results := suite.RunAll(ctx, *iterations)
	if err := benchmark.WriteReport(os.Stdout, results); err != nil {
		log.Printf("Failed to print results: %v", err)
	}

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func syntheticPanorama() image.Image {
	cfg := testutil.DefaultPanoramaConfig()
	cfg.Width, cfg.Height = 2048, 1024
	skin := color.NRGBA{R: 230, G: 190, B: 160, A: 255}
	for i := range 8 {
		cfg.Marks = append(cfg.Marks, testutil.Mark{
			Yaw: float64(i) * 45, Pitch: float64(i%3-1) * 30, Size: 48, Color: skin,
		})
	}
	return testutil.GeneratePanorama(cfg)
}

func saveResultsToFile(filename string, results []benchmark.Result) error {
	file, err := os.Create(filename) //nolint:gosec // G304: output path chosen by the user
	if err != nil {
		return err
	}
	if err := benchmark.WriteCSV(file, results); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
