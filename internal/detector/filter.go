package detector

import (
	"math"
	"slices"
)

// Auto status values assigned by the post-detection filters.
const (
	StatusValid         = "valid"
	StatusInvalid       = "invalid"
	StatusFilteredRatio = "filtered-ratio"
	StatusFilteredSize  = "filtered-size"
)

// FilterConfig bounds the shape and size of plausible detections.
type FilterConfig struct {
	RatioMin  float64
	RatioMax  float64
	MaxWidth  float64
	MaxHeight float64
}

// DefaultFilterConfig returns the stock face-sized bounds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{RatioMin: 0.7, RatioMax: 1.3, MaxWidth: 3000, MaxHeight: 3000}
}

// pixelSize converts the box extent to source pixels.
func pixelSize(obj DetectedObject, imgWidth, imgHeight int) (float64, float64) {
	w, h := obj.Area.Width(), obj.Area.Height()
	if obj.Area.IsSpherical() {
		return w / (2 * math.Pi) * float64(imgWidth), h / math.Pi * float64(imgHeight)
	}
	return w, h
}

// Classify returns the auto status the filters assign to obj. The ratio check wins
// over the size check.
func (c FilterConfig) Classify(obj DetectedObject, imgWidth, imgHeight int) string {
	w, h := obj.Area.Width(), obj.Area.Height()
	ratio := math.Inf(1)
	if h != 0 {
		ratio = w / h
	}
	if !(ratio >= c.RatioMin && ratio <= c.RatioMax) {
		return StatusFilteredRatio
	}
	pw, ph := pixelSize(obj, imgWidth, imgHeight)
	if pw > c.MaxWidth || ph > c.MaxHeight {
		return StatusFilteredSize
	}
	return StatusValid
}

// ApplyFilters sets AutoStatus on every top-level object in place.
func ApplyFilters(objects []DetectedObject, c FilterConfig, imgWidth, imgHeight int) {
	for i := range objects {
		objects[i].AutoStatus = c.Classify(objects[i], imgWidth, imgHeight)
	}
}

// MarkInvalid sets AutoStatus to invalid on every top-level object in place.
func MarkInvalid(objects []DetectedObject) {
	for i := range objects {
		objects[i].AutoStatus = StatusInvalid
	}
}

// MergeValid merges the objects whose AutoStatus is valid and returns them followed by
// the remaining objects in their original order.
func MergeValid(objects []DetectedObject, minOverlap int) []DetectedObject {
	var valid, other []DetectedObject
	for _, o := range objects {
		if o.AutoStatus == StatusValid {
			valid = append(valid, o)
		} else {
			other = append(other, o)
		}
	}
	return slices.Concat(Merge(valid, minOverlap), other)
}
