// Package batch runs the detection pipeline over many panoramas with a worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers images under paths and runs det on each of them.
func ProcessBatch(ctx context.Context, det Detector, paths []string, cfg *Config) (*Result, error) {
	files, err := discoverImageFiles(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	workers := effectiveWorkers(cfg.Workers)
	slog.Info("batch detection", "images", len(files), "workers", workers, "output_dir", cfg.OutputDir)

	if cfg.Progress != nil {
		cfg.Progress.OnStart(len(files))
		defer cfg.Progress.OnComplete()
	}

	start := time.Now()
	items, err := processImagesParallel(ctx, det, files, cfg)
	result := &Result{Items: items, Duration: time.Since(start), WorkerCount: workers}
	if err != nil {
		return result, fmt.Errorf("batch processing failed: %w", err)
	}
	return result, nil
}

func effectiveWorkers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
