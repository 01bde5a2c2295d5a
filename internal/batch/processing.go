package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/overlay"
	"github.com/MeKo-Tech/panoblur/internal/store"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

type imageJob struct {
	index int
	path  string
}

type imageResult struct {
	index int
	item  ItemResult
}

// outputName maps an image path to its document name inside the output directory.
func outputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".yaml"
}

// processSingleImage loads one image, detects, and writes its document and overlay.
func processSingleImage(ctx context.Context, det Detector, path string, cfg *Config) (item ItemResult) {
	start := time.Now()
	item.Path = path
	defer func() { item.Duration = time.Since(start) }()

	if !utils.IsSupportedImage(path) {
		item.Err = fmt.Errorf("unsupported image format: %s", path)
		return item
	}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		item.Err = err
		return item
	}

	objects, err := det.Detect(ctx, img)
	if err != nil {
		item.Err = fmt.Errorf("detection failed for %s: %w", path, err)
		return item
	}
	item.Objects = len(objects)
	for _, o := range objects {
		if o.AutoStatus != detector.StatusValid {
			item.Invalid++
		}
	}

	if cfg.OutputDir != "" {
		item.OutputPath = filepath.Join(cfg.OutputDir, outputName(path))
		if err := store.Save(item.OutputPath, det.Document(path, objects)); err != nil {
			item.Err = fmt.Errorf("failed to write %s: %w", item.OutputPath, err)
			return item
		}
	}

	if cfg.OverlayDir != "" {
		base := filepath.Base(path)
		out := filepath.Join(cfg.OverlayDir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
		preview := overlay.Render(img, objects, cfg.Overlay)
		if err := utils.SaveImage(preview, out, 0); err != nil {
			slog.Warn("failed to write overlay", "file", out, "error", err)
		}
	}

	return item
}

// processImagesParallel fans paths out to a worker pool and returns results in input order.
// Without ContinueOnError the first failure cancels the remaining work.
func processImagesParallel(ctx context.Context, det Detector, paths []string, cfg *Config) ([]ItemResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := min(effectiveWorkers(cfg.Workers), len(paths))
	jobs := make(chan imageJob)
	results := make(chan imageResult, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				results <- imageResult{index: job.index, item: processSingleImage(ctx, det, job.path, cfg)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- imageJob{index: i, path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	items := make([]ItemResult, len(paths))
	var firstErr error
	processed := 0
	for r := range results {
		items[r.index] = r.item
		processed++

		if r.item.Err != nil {
			slog.Debug("image failed", "file", r.item.Path, "error", r.item.Err)
			if cfg.Progress != nil {
				cfg.Progress.OnError(r.item.Path, r.item.Err)
			}
			if !cfg.ContinueOnError && firstErr == nil {
				firstErr = r.item.Err
				cancel()
			}
		}
		if cfg.Progress != nil {
			cfg.Progress.OnProgress(processed, len(paths))
		}
	}

	if firstErr != nil {
		return items, firstErr
	}
	return items, ctx.Err()
}
