// Package mock builds synthetic model outputs for tests.
package mock

import "image"

// ProbabilityMap is a fake [1,1,H,W] segmentation output.
type ProbabilityMap struct {
	Data   []float32
	Width  int
	Height int
}

// NewUniformMap returns a w x h map filled with value clamped to [0,1].
func NewUniformMap(w, h int, value float32) ProbabilityMap {
	if w <= 0 || h <= 0 {
		return ProbabilityMap{}
	}
	data := make([]float32, w*h)
	for i := range data {
		data[i] = clamp01(value)
	}
	return ProbabilityMap{Data: data, Width: w, Height: h}
}

// NewRectsMap returns a map that is lo everywhere and hi inside each rectangle.
func NewRectsMap(w, h int, hi, lo float32, rects ...image.Rectangle) ProbabilityMap {
	m := NewUniformMap(w, h, lo)
	bounds := image.Rect(0, 0, w, h)
	for _, r := range rects {
		r = r.Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.Data[y*w+x] = clamp01(hi)
			}
		}
	}
	return m
}

// Shape returns the NCHW shape of the map.
func (m ProbabilityMap) Shape() []int64 {
	return []int64{1, 1, int64(m.Height), int64(m.Width)}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
