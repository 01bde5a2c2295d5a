package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panoblur/internal/batch"
	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

func newDetectCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "detect [images or directories...]",
		Short: "Detect objects in equirectangular panoramas",
		Long: `Detect objects in one or more equirectangular panoramas.

Models are declared with --model as class:file[:parent][:min:max].
A .onnx file selects the text region model, anything else a pigo cascade.

With a single image the detection document is written to --output (stdout by
default). With --output-dir every image found in the arguments is processed by a
worker pool and one <name>.yaml document per image is written to that directory.

Examples:
  panoblur detect pano.jpg -m face:facefinder
  panoblur detect pano.jpg -m face:facefinder -m eye:puploc:face:1:2 --gnomonic
  panoblur detect panoramas/ -r --output-dir results/ --workers 8 --progress`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDetect(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringArrayP("model", "m", nil, "model spec class:file[:parent][:min:max] (repeatable)")
	f.String("algorithm", d.Detect.Algorithm, "detection algorithm: cascade or none")
	f.Int("threads", d.Detect.NumThreads, "intra-op threads for ONNX models (0 = runtime default)")
	f.Bool("full-invalid", d.Detect.FullInvalid, "mark every detection invalid")
	f.String("object-export-dir", "", "write a crop of every raw detection to this directory")
	f.Bool("gnomonic", d.Gnomonic.Enabled, "detect on gnomonic tiles instead of the flat panorama")
	f.Int("gnomonic-width", d.Gnomonic.Width, "tile width in pixels")
	f.Float64("aperture-x", d.Gnomonic.ApertureX, "horizontal tile aperture in degrees")
	f.Float64("aperture-y", d.Gnomonic.ApertureY, "vertical tile aperture in degrees")
	f.Bool("filters", d.Filters.Enabled, "apply the ratio and size filters")
	f.Bool("merge-valid", d.Merge.ValidObjects, "merge overlapping valid detections")
	f.Int("min-overlap", d.Merge.MinOverlap, "minimum number of overlapping detections to keep a merged object")
	f.StringP("output", "o", "", "output document for a single image (default stdout)")
	f.String("output-dir", "", "write one document per image to this directory")
	f.String("overlay-dir", "", "write an outlined preview per image to this directory (with --output-dir)")
	f.IntP("workers", "w", d.Batch.Workers, "number of images processed in parallel (0 = number of CPUs)")
	f.BoolP("recursive", "r", d.Batch.Recursive, "descend into sub-directories")
	f.StringSlice("include", nil, "glob patterns of file names to include")
	f.StringSlice("exclude", nil, "glob patterns of file names to exclude")
	f.Bool("continue-on-error", d.Batch.ContinueOnError, "keep going when an image fails")
	f.String("report", "text", "batch summary format: text, json or yaml")
	f.Bool("progress", false, "show a progress bar on stderr")

	bindFlag(cmd, "model", "detect.models")
	bindFlag(cmd, "algorithm", "detect.algorithm")
	bindFlag(cmd, "threads", "detect.num_threads")
	bindFlag(cmd, "full-invalid", "detect.full_invalid")
	bindFlag(cmd, "object-export-dir", "detect.object_export_dir")
	bindFlag(cmd, "gnomonic", "gnomonic.enabled")
	bindFlag(cmd, "gnomonic-width", "gnomonic.width")
	bindFlag(cmd, "aperture-x", "gnomonic.aperture_x")
	bindFlag(cmd, "aperture-y", "gnomonic.aperture_y")
	bindFlag(cmd, "filters", "filters.enabled")
	bindFlag(cmd, "merge-valid", "merge.valid_objects")
	bindFlag(cmd, "min-overlap", "merge.min_overlap")
	bindFlag(cmd, "workers", "batch.workers")
	bindFlag(cmd, "recursive", "batch.recursive")
	bindFlag(cmd, "include", "batch.include")
	bindFlag(cmd, "exclude", "batch.exclude")
	bindFlag(cmd, "continue-on-error", "batch.continue_on_error")
	return cmd
}

func (a *app) runDetect(cmd *cobra.Command, args []string) error {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		if len(args) != 1 {
			return errors.New("several inputs need --output-dir")
		}
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return errors.New("a directory input needs --output-dir")
		}
	}

	p, err := pipeline.NewBuilder().WithConfig(a.cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build detection pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	if outputDir == "" {
		output, _ := cmd.Flags().GetString("output")
		return a.detectSingle(cmd, p, args[0], output)
	}
	return a.detectBatch(cmd, p, args, outputDir)
}

func (a *app) detectSingle(cmd *cobra.Command, p *pipeline.Pipeline, path, output string) error {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return err
	}
	slog.Debug("Image loaded", "path", path, "width", meta.Width, "height", meta.Height)

	objects, err := p.Detect(cmd.Context(), img)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("Detection finished", "path", path, "objects", len(objects))
	return writeDocument(cmd.OutOrStdout(), output, p.Document(path, objects))
}

func (a *app) detectBatch(cmd *cobra.Command, p *pipeline.Pipeline, args []string, outputDir string) error {
	report, _ := cmd.Flags().GetString("report")
	overlayDir, _ := cmd.Flags().GetString("overlay-dir")
	showProgress, _ := cmd.Flags().GetBool("progress")

	bc := &batch.Config{
		Workers:         a.cfg.Batch.Workers,
		Recursive:       a.cfg.Batch.Recursive,
		IncludePatterns: a.cfg.Batch.Include,
		ExcludePatterns: a.cfg.Batch.Exclude,
		OutputDir:       outputDir,
		OverlayDir:      overlayDir,
		Overlay:         a.cfg.OverlayOptions(),
		ContinueOnError: a.cfg.Batch.ContinueOnError,
		Progress:        batch.NewLogProgress(slog.Default(), slog.LevelInfo, 10),
	}
	if showProgress {
		bc.Progress = batch.NewConsoleProgress(cmd.ErrOrStderr(), "detect ")
	}

	res, err := batch.ProcessBatch(cmd.Context(), p, args, bc)
	if res != nil {
		out, ferr := res.FormatResults(report)
		if ferr != nil {
			return ferr
		}
		if _, werr := fmt.Fprint(cmd.OutOrStdout(), out); werr != nil {
			return fmt.Errorf("failed to write report: %w", werr)
		}
	}
	if err != nil {
		return err
	}
	if failed := res.Stats().FailedImages; failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(res.Items))
	}
	return nil
}
