// Package blur obscures detected objects in a source image.
package blur

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// Blur algorithms.
const (
	AlgorithmGaussian = "gaussian"
	AlgorithmBox      = "box"
	AlgorithmNone     = "none"
)

// Options selects the blur kernel. A Radius of zero scales the kernel with each
// rectangle: a quarter of its shorter side, at least 2 pixels.
type Options struct {
	Algorithm string
	Radius    float64
}

// DefaultOptions returns an adaptive gaussian blur.
func DefaultOptions() Options {
	return Options{Algorithm: AlgorithmGaussian}
}

// Validate checks the algorithm name and radius.
func (o Options) Validate() error {
	switch o.Algorithm {
	case AlgorithmGaussian, AlgorithmBox, AlgorithmNone:
	default:
		return fmt.Errorf("unsupported blur algorithm: %s", o.Algorithm)
	}
	if o.Radius < 0 {
		return fmt.Errorf("blur radius must be >= 0, got %v", o.Radius)
	}
	return nil
}

func (o Options) kernel() func(image.Image, float64) *image.RGBA {
	switch o.Algorithm {
	case AlgorithmBox:
		return blur.Box
	case AlgorithmNone:
		return nil
	default:
		return blur.Gaussian
	}
}

func (o Options) radiusFor(r image.Rectangle) float64 {
	if o.Radius > 0 {
		return o.Radius
	}
	return max(2, float64(min(r.Dx(), r.Dy()))/4)
}

// Apply returns a copy of src with every object that is not a false positive obscured
// over all of its pixel rectangles, and the number of rectangles blurred. Children lie
// inside their parent and are not visited.
func Apply(src image.Image, objects []detector.DetectedObject, opts Options) (*image.NRGBA, int, error) {
	if src == nil {
		return nil, 0, errors.New("nil source image")
	}
	if err := opts.Validate(); err != nil {
		return nil, 0, err
	}

	dst := imaging.Clone(src)
	kernel := opts.kernel()
	if kernel == nil {
		return dst, 0, nil
	}

	b := dst.Bounds()
	count := 0
	for _, o := range objects {
		if o.IsFalsePositive() {
			continue
		}
		for _, r := range o.Area.Rects(b.Dx(), b.Dy()) {
			if r.Empty() {
				continue
			}
			piece := imaging.Crop(dst, r)
			dst = imaging.Paste(dst, kernel(piece, opts.radiusFor(r)), r.Min)
			count++
		}
	}
	slog.Debug("Blur applied", "algorithm", opts.Algorithm, "rects", count)
	return dst, count, nil
}
