package detector

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/panoblur/internal/gnomonic"
	"github.com/MeKo-Tech/panoblur/internal/metrics"
)

// Default tiling parameters.
const (
	DefaultGnomonicWidth = 2048
	DefaultAperture      = math.Pi / 3
)

// GnomonicProjectionDetector scans an equirectangular image through a grid of tangent
// planes and reports detections as spherical boxes. Tiles overlap by half an aperture,
// so one object is usually found several times; Merge coalesces those.
type GnomonicProjectionDetector struct {
	inner  ObjectDetector
	width  int
	height int
	ax     float64
	ay     float64
}

// NewGnomonicProjection wraps inner with tiles width pixels wide covering ax x ay radians.
func NewGnomonicProjection(inner ObjectDetector, width int, ax, ay float64) (*GnomonicProjectionDetector, error) {
	if width < 2 {
		return nil, fmt.Errorf("gnomonic width must be at least 2, got %d", width)
	}
	if ax <= 0 || ax >= math.Pi || ay <= 0 || ay >= math.Pi {
		return nil, fmt.Errorf("gnomonic aperture out of range: ax=%.4f ay=%.4f", ax, ay)
	}
	height := int(float64(width) * ay / ax)
	if height < 2 {
		return nil, fmt.Errorf("gnomonic window height too small: %d", height)
	}
	return &GnomonicProjectionDetector{
		inner:  inner,
		width:  width,
		height: height,
		ax:     ax,
		ay:     ay,
	}, nil
}

// Window returns the tile size in pixels.
func (g *GnomonicProjectionDetector) Window() (int, int) { return g.width, g.height }

// Aperture returns the tile apertures in radians.
func (g *GnomonicProjectionDetector) Aperture() (float64, float64) { return g.ax, g.ay }

// Centers lists the tile centres in scan order: elevation from +π/2 down to -π/2,
// azimuth from 0 towards 2π, both stepping by half an aperture.
func (g *GnomonicProjectionDetector) Centers() [][2]float64 {
	hax, hay := g.ax/2, g.ay/2
	rows := int(math.Floor(math.Pi/hay+1e-9)) + 1
	cols := int(math.Ceil(2*math.Pi/hax - 1e-9))

	centers := make([][2]float64, 0, rows*cols)
	for r := range rows {
		theta := math.Pi/2 - float64(r)*hay
		for c := range cols {
			centers = append(centers, [2]float64{float64(c) * hax, theta})
		}
	}
	return centers
}

// Detect scans every tile. A detection whose box (or any child box) cannot be mapped
// back to the sphere is dropped; overlapping tiles are not deduplicated here.
func (g *GnomonicProjectionDetector) Detect(img image.Image) ([]DetectedObject, error) {
	if g.inner == nil {
		return nil, nil
	}
	src := inputFor(g.inner, img)

	var objects []DetectedObject
	for _, c := range g.Centers() {
		t, err := gnomonic.New(g.width, g.height, g.ax, g.ay, c[0], c[1])
		if err != nil {
			return nil, err
		}
		slog.Debug("Scanning tile", "phi", c[0], "theta", c[1])

		tile := t.Resample(src)
		found, err := g.inner.Detect(tile)
		metrics.TilesScanned.Inc()
		if err != nil {
			return nil, fmt.Errorf("tile (%.3f, %.3f): %w", c[0], c[1], err)
		}

		for _, obj := range found {
			if toSphere(t, &obj) {
				objects = append(objects, obj)
			}
		}
	}
	return objects, nil
}

// toSphere rewrites obj and its descendants into spherical coordinates.
func toSphere(t *gnomonic.Transform, obj *DetectedObject) bool {
	area, ok := t.ToEqrBox(obj.Area)
	if !ok {
		return false
	}
	obj.Area = area
	for i := range obj.Children {
		if !toSphere(t, &obj.Children[i]) {
			return false
		}
	}
	return true
}

// SupportsColor follows the inner detector; a missing inner detector accepts anything.
func (g *GnomonicProjectionDetector) SupportsColor() bool {
	return g.inner == nil || g.inner.SupportsColor()
}

// SetObjectExport forwards the export target to the inner detector.
func (g *GnomonicProjectionDetector) SetObjectExport(path, suffix string) {
	if g.inner != nil {
		g.inner.SetObjectExport(path, suffix)
	}
}
