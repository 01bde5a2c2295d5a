// Package overlay draws detections on a copy of the source image for review.
package overlay

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/utils"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Options controls the rendering.
type Options struct {
	Thickness int
	// FalsePositiveColor is used for objects flagged as false positives.
	FalsePositiveColor color.Color
}

// DefaultOptions returns 2 pixel outlines with grey false positives.
func DefaultOptions() Options {
	return Options{Thickness: 2, FalsePositiveColor: color.NRGBA{R: 128, G: 128, B: 128, A: 255}}
}

// Palette assigns one colour per class name. Classes are ordered by name and spaced
// on the hue circle by the golden angle, so the assignment only depends on the set
// of classes.
func Palette(classes []string) map[string]color.Color {
	names := append([]string(nil), classes...)
	sort.Strings(names)
	out := make(map[string]color.Color, len(names))
	i := 0
	for _, n := range names {
		if _, ok := out[n]; ok {
			continue
		}
		hue := math.Mod(float64(i)*137.508, 360)
		out[n] = colorful.Hsv(hue, 0.85, 0.95).Clamped()
		i++
	}
	return out
}

func collectClasses(objects []detector.DetectedObject, into []string) []string {
	for _, o := range objects {
		into = append(into, o.ClassName)
		into = collectClasses(o.Children, into)
	}
	return into
}

// Render returns a copy of src with every object and child outlined. Wrapped spherical
// boxes are drawn as their 2 or 4 pieces.
func Render(src image.Image, objects []detector.DetectedObject, opts Options) *image.NRGBA {
	dst := imaging.Clone(src)
	if opts.Thickness < 1 {
		opts.Thickness = 1
	}
	if opts.FalsePositiveColor == nil {
		opts.FalsePositiveColor = DefaultOptions().FalsePositiveColor
	}
	palette := Palette(collectClasses(objects, nil))
	b := dst.Bounds()

	var draw func([]detector.DetectedObject)
	draw = func(objs []detector.DetectedObject) {
		for _, o := range objs {
			col := palette[o.ClassName]
			if o.IsFalsePositive() {
				col = opts.FalsePositiveColor
			}
			for _, r := range o.Area.Rects(b.Dx(), b.Dy()) {
				utils.DrawRect(dst, r, col, opts.Thickness)
			}
			draw(o.Children)
		}
	}
	draw(objects)
	return dst
}
