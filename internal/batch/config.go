package batch

import (
	"context"
	"image"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/overlay"
	"github.com/MeKo-Tech/panoblur/internal/store"
)

// Detector is the part of a detection pipeline batch processing drives.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]detector.DetectedObject, error)
	Document(source string, objects []detector.DetectedObject) *store.Document
}

// Config holds all configuration for batch processing.
type Config struct {
	// Workers is the number of images processed concurrently (0 = runtime.NumCPU()).
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// OutputDir receives one <image base name>.yaml detection document per image.
	OutputDir string
	// OverlayDir receives an outlined preview per image when set.
	OverlayDir string
	Overlay    overlay.Options

	// ContinueOnError records per-image failures instead of stopping the batch.
	ContinueOnError bool

	Progress ProgressCallback
}
