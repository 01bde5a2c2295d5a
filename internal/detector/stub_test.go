package detector

import (
	"image"

	"github.com/MeKo-Tech/panoblur/internal/geometry"
)

// stubDetector returns a fixed list of objects and records its inputs.
type stubDetector struct {
	objects []DetectedObject
	err     error
	color   bool
	inputs  []image.Image
	export  string
}

func (s *stubDetector) Detect(img image.Image) ([]DetectedObject, error) {
	s.inputs = append(s.inputs, img)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]DetectedObject, len(s.objects))
	for i, o := range s.objects {
		out[i] = o.Clone()
	}
	return out, nil
}

func (s *stubDetector) SupportsColor() bool { return s.color }

func (s *stubDetector) SetObjectExport(path, suffix string) { s.export = path + "|" + suffix }

// funcDetector derives its detections from the input image.
type funcDetector func(img image.Image) []DetectedObject

func (f funcDetector) Detect(img image.Image) ([]DetectedObject, error) { return f(img), nil }
func (f funcDetector) SupportsColor() bool                              { return true }
func (f funcDetector) SetObjectExport(string, string)                   {}

func cart(class string, x1, y1, x2, y2 float64) DetectedObject {
	return NewObject(class, geometry.NewBox(geometry.Cartesian, x1, y1, x2, y2))
}

func sph(class string, x1, y1, x2, y2 float64) DetectedObject {
	return NewObject(class, geometry.NewBox(geometry.Spherical, x1, y1, x2, y2))
}

func rgbaImage(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
