// Package pipeline builds detector trees from configuration and runs the detection
// workflow: detect, filter, invalidate and merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MeKo-Tech/panoblur/internal/classifier"
	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/metrics"
	"github.com/MeKo-Tech/panoblur/internal/models"
	"github.com/MeKo-Tech/panoblur/internal/store"
)

// Detection algorithms.
const (
	AlgorithmCascade = "cascade"
	AlgorithmNone    = "none"
)

// GnomonicConfig enables sphere tiling. Apertures are degrees.
type GnomonicConfig struct {
	Enabled   bool
	Width     int
	ApertureX float64
	ApertureY float64
}

// FilterConfig enables the post-detection shape filters.
type FilterConfig struct {
	Enabled bool
	detector.FilterConfig
}

// Config holds configuration for the detection pipeline and its components.
type Config struct {
	Algorithm  string
	ModelsDir  string
	Models     []string
	Cascade    classifier.CascadeConfig
	TextRegion classifier.TextRegionConfig
	NumThreads int

	Gnomonic GnomonicConfig
	Filters  FilterConfig

	FullInvalid bool
	MergeValid  bool
	MinOverlap  int

	// ObjectExportDir receives a crop of every raw leaf detection when set.
	ObjectExportDir string
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmCascade,
		Cascade:    classifier.DefaultCascadeConfig(),
		TextRegion: classifier.DefaultTextRegionConfig(),
		Gnomonic: GnomonicConfig{
			Width:     detector.DefaultGnomonicWidth,
			ApertureX: 60,
			ApertureY: 60,
		},
		Filters:    FilterConfig{Enabled: true, FilterConfig: detector.DefaultFilterConfig()},
		MergeValid: true,
		MinOverlap: detector.DefaultMinOverlap,
	}
}

// ClassifierFactory creates the classifier behind one leaf model.
type ClassifierFactory func(path string, cfg Config) (classifier.Classifier, io.Closer, error)

// LoadClassifier picks the classifier by file extension: ONNX models become text-region
// classifiers, anything else is read as a pigo cascade.
func LoadClassifier(path string, cfg Config) (classifier.Classifier, io.Closer, error) {
	if models.KindOf(path) == models.KindONNX {
		s, err := classifier.LoadTextRegion(path, cfg.NumThreads, cfg.TextRegion)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	c, err := classifier.LoadCascade(path, cfg.Cascade)
	if err != nil {
		return nil, nil, err
	}
	return c, nil, nil
}

// Pipeline owns a built detector tree.
type Pipeline struct {
	cfg   Config
	nodes []*ModelNode
	// flat scans the equirectangular image directly, tiled wraps it in a gnomonic
	// projection. detector is the configured one of the two.
	flat     detector.ObjectDetector
	tiled    detector.ObjectDetector
	detector detector.ObjectDetector
	closers  []io.Closer
	// running tracks detections still executing, including ones whose caller gave up.
	running sync.WaitGroup
}

// DetectOptions overrides configuration for a single run. Zero values keep the configuration.
type DetectOptions struct {
	MinOverlap int
	Gnomonic   *bool
}

func (p *Pipeline) gnomonicFor(opts DetectOptions) bool {
	if opts.Gnomonic != nil {
		return *opts.Gnomonic
	}
	return p.cfg.Gnomonic.Enabled
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	factory ClassifierFactory
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig(), factory: LoadClassifier} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithModels appends model declarations.
func (b *Builder) WithModels(specs ...string) *Builder {
	b.cfg.Models = append(b.cfg.Models, specs...)
	return b
}

// WithModelsDir sets the directory searched for relative model files.
func (b *Builder) WithModelsDir(dir string) *Builder {
	b.cfg.ModelsDir = dir
	return b
}

// WithAlgorithm selects the detection algorithm.
func (b *Builder) WithAlgorithm(name string) *Builder {
	b.cfg.Algorithm = name
	return b
}

// WithGnomonic enables sphere tiling with apertures in degrees.
func (b *Builder) WithGnomonic(width int, apertureX, apertureY float64) *Builder {
	b.cfg.Gnomonic = GnomonicConfig{Enabled: true, Width: width, ApertureX: apertureX, ApertureY: apertureY}
	return b
}

// WithMinOverlap sets the merge occurrence threshold.
func (b *Builder) WithMinOverlap(n int) *Builder {
	b.cfg.MinOverlap = n
	return b
}

// WithClassifierFactory overrides how leaf classifiers are created.
func (b *Builder) WithClassifierFactory(f ClassifierFactory) *Builder {
	if f != nil {
		b.factory = f
	}
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build resolves and loads every model and assembles the detector tree.
func (b *Builder) Build() (*Pipeline, error) {
	cfg := b.cfg
	if cfg.MinOverlap < 1 {
		return nil, fmt.Errorf("min overlap must be >= 1, got %d", cfg.MinOverlap)
	}

	p := &Pipeline{cfg: cfg}
	var root detector.ObjectDetector

	switch cfg.Algorithm {
	case AlgorithmNone:
		root = detector.NoneDetector{}
	case AlgorithmCascade, "":
		nodes, err := ParseModelSpecs(cfg.Models)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return nil, errors.New("no models configured")
		}
		p.nodes = nodes

		multi := detector.NewMulti()
		for _, n := range nodes {
			d, err := p.buildNode(n, b.factory)
			if err != nil {
				_ = p.Close()
				return nil, err
			}
			multi.Add(d)
		}
		root = multi
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", cfg.Algorithm)
	}

	if cfg.ObjectExportDir != "" {
		root.SetObjectExport(cfg.ObjectExportDir, "raw")
	}
	p.flat = root

	// The tiled variant is always prepared so requests can opt into it.
	g, err := detector.NewGnomonicProjection(root, cfg.Gnomonic.Width,
		degToRad(cfg.Gnomonic.ApertureX), degToRad(cfg.Gnomonic.ApertureY))
	switch {
	case err == nil:
		p.tiled = g
	case cfg.Gnomonic.Enabled:
		_ = p.Close()
		return nil, fmt.Errorf("gnomonic projection: %w", err)
	}

	p.detector = p.flat
	if cfg.Gnomonic.Enabled {
		p.detector = p.tiled
	}
	slog.Debug("Pipeline built", "algorithm", cfg.Algorithm, "models", len(p.nodes),
		"gnomonic", cfg.Gnomonic.Enabled)
	return p, nil
}

func (p *Pipeline) buildNode(n *ModelNode, factory ClassifierFactory) (detector.ObjectDetector, error) {
	path := models.ResolveModelPath(p.cfg.ModelsDir, n.File)
	if err := models.ValidateModelReadable(path); err != nil {
		return nil, fmt.Errorf("class %s: %w", n.ClassName, err)
	}
	c, closer, err := factory(path, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", n.ClassName, err)
	}
	if closer != nil {
		p.closers = append(p.closers, closer)
	}

	leaf := classifier.NewLeaf(n.ClassName, c)
	if len(n.Children) == 0 {
		return leaf, nil
	}

	h := detector.NewHierarchical(leaf, n.MinChildOccurrences, n.MaxChildOccurrences)
	for _, child := range n.Children {
		d, err := p.buildNode(child, factory)
		if err != nil {
			return nil, err
		}
		h.AddChild(d, child.MinOccurrences, child.MaxOccurrences)
	}
	return h, nil
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Detector returns the root of the detector tree.
func (p *Pipeline) Detector() detector.ObjectDetector { return p.detector }

// Detect runs the detector tree on img and applies the configured filters,
// invalidation and merge.
func (p *Pipeline) Detect(ctx context.Context, img image.Image) ([]detector.DetectedObject, error) {
	return p.DetectWith(ctx, img, DetectOptions{})
}

// DetectWith is Detect with per-run overrides.
func (p *Pipeline) DetectWith(ctx context.Context, img image.Image, opts DetectOptions) ([]detector.DetectedObject, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	minOverlap := p.cfg.MinOverlap
	if opts.MinOverlap != 0 {
		minOverlap = opts.MinOverlap
	}
	if minOverlap < 1 {
		return nil, fmt.Errorf("min overlap must be >= 1, got %d", minOverlap)
	}
	root := p.flat
	if p.gnomonicFor(opts) {
		if p.tiled == nil {
			return nil, errors.New("gnomonic projection is not configured")
		}
		root = p.tiled
	}

	start := time.Now()
	input := img
	if !root.SupportsColor() && !detector.IsGray(img) {
		input = detector.ToGray(img)
	}

	objects, err := p.detectCtx(ctx, root, input)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if p.cfg.Filters.Enabled && !p.cfg.FullInvalid {
		detector.ApplyFilters(objects, p.cfg.Filters.FilterConfig, b.Dx(), b.Dy())
	}
	if p.cfg.FullInvalid {
		detector.MarkInvalid(objects)
	}
	if p.cfg.MergeValid {
		objects = detector.MergeValid(objects, minOverlap)
	}

	slog.Debug("Detection finished", "objects", len(objects), "duration", time.Since(start))
	return objects, nil
}

type detectResult struct {
	objects []detector.DetectedObject
	err     error
}

// detectCtx runs the synchronous detector tree and returns early when ctx ends. An
// abandoned run finishes in the background and is awaited by Close.
func (p *Pipeline) detectCtx(
	ctx context.Context, root detector.ObjectDetector, input image.Image,
) ([]detector.DetectedObject, error) {
	done := make(chan detectResult, 1)
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		start := time.Now()
		objects, err := root.Detect(input)
		metrics.DetectDuration.Observe(time.Since(start).Seconds())
		done <- detectResult{objects: objects, err: err}
	}()

	select {
	case <-ctx.Done():
		slog.Debug("Detection abandoned", "error", ctx.Err())
		return nil, fmt.Errorf("detection aborted: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("detection failed: %w", r.err)
		}
		return r.objects, nil
	}
}

// Document wraps detection output with the run parameters.
func (p *Pipeline) Document(source string, objects []detector.DetectedObject) *store.Document {
	return p.DocumentWith(source, objects, DetectOptions{})
}

// DocumentWith records the parameters of a DetectWith run.
func (p *Pipeline) DocumentWith(source string, objects []detector.DetectedObject, opts DetectOptions) *store.Document {
	doc := &store.Document{
		Algorithm: p.cfg.Algorithm,
		Source:    source,
		Objects:   store.FromObjects(objects),
	}
	if doc.Algorithm == "" {
		doc.Algorithm = AlgorithmCascade
	}
	if doc.Algorithm == AlgorithmCascade {
		c := &store.Cascade{ScaleFactor: p.cfg.Cascade.ScaleFactor, MinQuality: float64(p.cfg.Cascade.MinQuality)}
		for _, n := range p.nodes {
			c.Models = append(c.Models, n.Record())
		}
		doc.Cascade = c
	}
	if p.gnomonicFor(opts) {
		doc.Gnomonic = &store.Gnomonic{
			Width:     p.cfg.Gnomonic.Width,
			ApertureX: p.cfg.Gnomonic.ApertureX,
			ApertureY: p.cfg.Gnomonic.ApertureY,
		}
	}
	return doc
}

// Close waits for running detections and releases model sessions.
func (p *Pipeline) Close() error {
	p.running.Wait()
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
