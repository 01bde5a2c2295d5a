// Package detector composes object detectors over flat and equirectangular images.
//
// Leaf detectors wrap an external classifier. Composites (Multi, Hierarchical and
// GnomonicProjection) own their children and call them sequentially; a failing child
// aborts the enclosing Detect.
package detector

import (
	"image"
	"image/draw"
)

// ObjectDetector finds objects in an image.
type ObjectDetector interface {
	// Detect returns the objects found in img. Cartesian boxes are pixel offsets from
	// img.Bounds().Min.
	Detect(img image.Image) ([]DetectedObject, error)
	// SupportsColor reports whether Detect accepts multi-channel input. Detectors
	// returning false must be given a single-channel image.
	SupportsColor() bool
	// SetObjectExport enables writing a crop of every detection to path with the
	// given file name suffix. An empty path disables the export.
	SetObjectExport(path, suffix string)
}

// NoneDetector finds nothing. It backs the "none" algorithm.
type NoneDetector struct{}

// Detect implements ObjectDetector.
func (NoneDetector) Detect(image.Image) ([]DetectedObject, error) { return nil, nil }

// SupportsColor implements ObjectDetector.
func (NoneDetector) SupportsColor() bool { return true }

// SetObjectExport implements ObjectDetector.
func (NoneDetector) SetObjectExport(string, string) {}

// ToGray converts img to a single-channel image. Gray inputs are returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// IsGray reports whether img carries a single channel.
func IsGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// inputFor returns img as the detector expects it, converting to gray when needed.
func inputFor(d ObjectDetector, img image.Image) image.Image {
	if d == nil || d.SupportsColor() || IsGray(img) {
		return img
	}
	return ToGray(img)
}
