package classifier

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
)

// CascadeConfig tunes the pixel-intensity-comparison cascade scan.
type CascadeConfig struct {
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	// IoUThreshold clusters overlapping raw detections.
	IoUThreshold float64
	// MinQuality drops clustered detections scoring below it.
	MinQuality float32
}

// DefaultCascadeConfig returns the settings used for face cascades.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		MinSize:      10,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5,
	}
}

// Cascade classifies with a pigo cascade file.
type Cascade struct {
	cfg        CascadeConfig
	classifier *pigo.Pigo
}

// LoadCascade reads and unpacks the cascade file at path.
func LoadCascade(path string, cfg CascadeConfig) (*Cascade, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: cascade path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	c, err := NewCascade(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("cascade %s: %w", path, err)
	}
	slog.Debug("Cascade loaded", "path", path, "min_size", cfg.MinSize, "scale_factor", cfg.ScaleFactor)
	return c, nil
}

// NewCascade unpacks cascade bytes.
func NewCascade(data []byte, cfg CascadeConfig) (*Cascade, error) {
	if len(data) == 0 {
		return nil, errors.New("empty cascade data")
	}
	if cfg.ScaleFactor <= 1 {
		return nil, fmt.Errorf("scale factor must be > 1, got %v", cfg.ScaleFactor)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultCascadeConfig().MaxSize
	}
	p, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &Cascade{cfg: cfg, classifier: p}, nil
}

// NeedsGray implements Classifier.
func (c *Cascade) NeedsGray() bool { return true }

// Classify implements Classifier.
func (c *Cascade) Classify(img image.Image) ([]image.Rectangle, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	pixels, cols, rows := grayPixels(img)
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	params := pigo.CascadeParams{
		MinSize:     c.cfg.MinSize,
		MaxSize:     min(c.cfg.MaxSize, max(cols, rows)),
		ShiftFactor: c.cfg.ShiftFactor,
		ScaleFactor: c.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := c.classifier.RunCascade(params, 0.0)
	dets = c.classifier.ClusterDetections(dets, c.cfg.IoUThreshold)

	rects := make([]image.Rectangle, 0, len(dets))
	for _, d := range dets {
		if d.Q < c.cfg.MinQuality {
			continue
		}
		half := d.Scale / 2
		r := image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half).
			Intersect(image.Rect(0, 0, cols, rows))
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects, nil
}

// grayPixels returns a contiguous row-major intensity buffer for img.
func grayPixels(img image.Image) ([]uint8, int, int) {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if g, ok := img.(*image.Gray); ok {
		pixels := make([]uint8, cols*rows)
		for y := range rows {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pixels[y*cols:(y+1)*cols], g.Pix[off:off+cols])
		}
		return pixels, cols, rows
	}
	return pigo.RgbToGrayscale(imaging.Clone(img)), cols, rows
}
