package classifier

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/panoblur/internal/mempool"
	"github.com/MeKo-Tech/panoblur/internal/onnx"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

// Runner executes a model on an NCHW tensor. *onnx.Session satisfies it.
type Runner interface {
	Run(t onnx.Tensor) ([]float32, []int64, error)
}

// TextRegionConfig tunes the segmentation post-process of a DB-style text model.
type TextRegionConfig struct {
	MaxSide   int
	Threshold float32
	// MinConfidence drops components whose mean probability is lower.
	MinConfidence float32
	// MinArea drops components with fewer map pixels.
	MinArea int
	Mean    [3]float32
	Std     [3]float32
}

// DefaultTextRegionConfig returns the PaddleOCR detection defaults.
func DefaultTextRegionConfig() TextRegionConfig {
	return TextRegionConfig{
		MaxSide:       960,
		Threshold:     0.3,
		MinConfidence: 0.5,
		MinArea:       4,
		Mean:          [3]float32{0.485, 0.456, 0.406},
		Std:           [3]float32{0.229, 0.224, 0.225},
	}
}

// TextRegion classifies with a segmentation model producing a probability map.
type TextRegion struct {
	cfg    TextRegionConfig
	runner Runner
}

// NewTextRegion wraps a model runner.
func NewTextRegion(r Runner, cfg TextRegionConfig) (*TextRegion, error) {
	if r == nil {
		return nil, errors.New("nil model runner")
	}
	if cfg.MaxSide < 32 {
		return nil, fmt.Errorf("max side must be >= 32, got %d", cfg.MaxSide)
	}
	return &TextRegion{cfg: cfg, runner: r}, nil
}

// LoadTextRegion opens the ONNX model at path.
func LoadTextRegion(path string, numThreads int, cfg TextRegionConfig) (*TextRegion, error) {
	s, err := onnx.NewSession(path, numThreads)
	if err != nil {
		return nil, err
	}
	return NewTextRegion(s, cfg)
}

// NeedsGray implements Classifier.
func (t *TextRegion) NeedsGray() bool { return false }

// Close releases the model runner when it holds resources.
func (t *TextRegion) Close() error {
	if c, ok := t.runner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Classify implements Classifier.
func (t *TextRegion) Classify(img image.Image) ([]image.Rectangle, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	resized, err := utils.ResizeForModel(img, utils.ImageConstraints{
		MaxWidth: t.cfg.MaxSide, MaxHeight: t.cfg.MaxSide, MinWidth: 32, MinHeight: 32,
	})
	if err != nil {
		return nil, err
	}
	data, w, h, err := utils.NormalizeImage(resized, t.cfg.Mean, t.cfg.Std)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(data)
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}

	out, shape, err := t.runner.Run(tensor)
	if err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	prob, mw, mh, err := onnx.ProbabilityMap(out, shape)
	if err != nil {
		return nil, fmt.Errorf("model output: %w", err)
	}

	comps := components(prob, mw, mh, t.cfg.Threshold)
	slog.Debug("Text components", "count", len(comps), "map_w", mw, "map_h", mh)

	sx := float64(b.Dx()) / float64(mw)
	sy := float64(b.Dy()) / float64(mh)
	var rects []image.Rectangle
	for _, c := range comps {
		if c.count < t.cfg.MinArea || c.mean() < float64(t.cfg.MinConfidence) {
			continue
		}
		r := image.Rect(
			int(float64(c.minX)*sx), int(float64(c.minY)*sy),
			int(float64(c.maxX+1)*sx+0.5), int(float64(c.maxY+1)*sy+0.5),
		).Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects, nil
}

type component struct {
	count                  int
	sum                    float64
	minX, minY, maxX, maxY int
}

func (c component) mean() float64 {
	if c.count == 0 {
		return 0
	}
	return c.sum / float64(c.count)
}

// components labels the 4-connected areas of prob at or above threshold.
func components(prob []float32, w, h int, threshold float32) []component {
	if w <= 0 || h <= 0 || len(prob) < w*h {
		return nil
	}
	visited := mempool.GetBool(w * h)
	defer mempool.PutBool(visited)
	var out []component
	var queue []int

	for start := range w * h {
		if visited[start] || prob[start] < threshold {
			continue
		}
		c := component{minX: start % w, minY: start / w, maxX: start % w, maxY: start / w}
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			x, y := i%w, i/w
			c.count++
			c.sum += float64(prob[i])
			c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
			c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)

			for _, n := range [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if !visited[ni] && prob[ni] >= threshold {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}
		out = append(out, c)
	}
	return out
}
