package detector

import (
	"fmt"
	"image"
)

// MultiObjectDetector runs every child on the same image and concatenates the results.
type MultiObjectDetector struct {
	children []ObjectDetector
}

// NewMulti builds a union of the given detectors. Nil detectors are skipped.
func NewMulti(children ...ObjectDetector) *MultiObjectDetector {
	m := &MultiObjectDetector{}
	for _, c := range children {
		m.Add(c)
	}
	return m
}

// Add appends a child detector.
func (m *MultiObjectDetector) Add(d ObjectDetector) {
	if d != nil {
		m.children = append(m.children, d)
	}
}

// Len returns the number of children.
func (m *MultiObjectDetector) Len() int { return len(m.children) }

// Detect runs each child in order. The gray conversion happens at most once and only
// when a child needs it.
func (m *MultiObjectDetector) Detect(img image.Image) ([]DetectedObject, error) {
	var (
		gray    image.Image
		objects []DetectedObject
	)
	for i, child := range m.children {
		in := img
		if !child.SupportsColor() && !IsGray(img) {
			if gray == nil {
				gray = ToGray(img)
			}
			in = gray
		}
		found, err := child.Detect(in)
		if err != nil {
			return nil, fmt.Errorf("detector %d: %w", i, err)
		}
		objects = append(objects, found...)
	}
	return objects, nil
}

// SupportsColor is true when any child accepts colour input.
func (m *MultiObjectDetector) SupportsColor() bool {
	for _, c := range m.children {
		if c.SupportsColor() {
			return true
		}
	}
	return false
}

// SetObjectExport forwards the export target to every child.
func (m *MultiObjectDetector) SetObjectExport(path, suffix string) {
	for _, c := range m.children {
		c.SetObjectExport(path, suffix)
	}
}
