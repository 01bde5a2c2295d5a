package detector

import (
	"fmt"
	"image"
	"log/slog"
)

// Unbounded disables an occurrence upper bound.
const Unbounded = -1

// ChildConfig binds a child detector to the number of detections it must produce
// inside a parent detection to count as matched. A nil Detector always matches.
type ChildConfig struct {
	Detector       ObjectDetector
	MinOccurrences int
	MaxOccurrences int
}

func inRange(n, lo, hi int) bool {
	return n >= lo && (hi < 0 || n <= hi)
}

// HierarchicalObjectDetector keeps parent detections that contain enough matching
// child detections. Matched children are attached to the parent in source coordinates.
type HierarchicalObjectDetector struct {
	parent         ObjectDetector
	children       []ChildConfig
	minOccurrences int
	maxOccurrences int
}

// NewHierarchical builds a node around parent. A parent detection is kept when the number
// of matched children lies in [minOccurrences, maxOccurrences]; a negative maximum
// means unbounded.
func NewHierarchical(parent ObjectDetector, minOccurrences, maxOccurrences int) *HierarchicalObjectDetector {
	return &HierarchicalObjectDetector{
		parent:         parent,
		minOccurrences: minOccurrences,
		maxOccurrences: maxOccurrences,
	}
}

// AddChild registers a child detector with its own occurrence bounds.
func (h *HierarchicalObjectDetector) AddChild(d ObjectDetector, minOccurrences, maxOccurrences int) *HierarchicalObjectDetector {
	h.children = append(h.children, ChildConfig{
		Detector:       d,
		MinOccurrences: minOccurrences,
		MaxOccurrences: maxOccurrences,
	})
	return h
}

// Children returns the registered child configurations.
func (h *HierarchicalObjectDetector) Children() []ChildConfig {
	return h.children
}

// Detect runs the parent over img, then every child over each parent region.
func (h *HierarchicalObjectDetector) Detect(img image.Image) ([]DetectedObject, error) {
	if h.parent == nil {
		return nil, nil
	}
	parents, err := h.parent.Detect(inputFor(h.parent, img))
	if err != nil {
		return nil, fmt.Errorf("parent detector: %w", err)
	}

	var kept []DetectedObject
	for _, obj := range parents {
		region, err := GetRegion(img, obj, 0)
		if err != nil {
			// Nothing to search; only detector-less children can match.
			matched := 0
			for _, child := range h.children {
				if child.Detector == nil {
					matched++
				}
			}
			if inRange(matched, h.minOccurrences, h.maxOccurrences) {
				kept = append(kept, obj)
			} else {
				slog.Debug("Parent rejected, empty region", "class", obj.ClassName, "area", obj.Area.String())
			}
			continue
		}

		var gray image.Image
		matched := 0
		for i, child := range h.children {
			if child.Detector == nil {
				matched++
				continue
			}

			in := region.Image
			if !child.Detector.SupportsColor() && !IsGray(in) {
				if gray == nil {
					gray = ToGray(in)
				}
				in = gray
			}
			found, err := child.Detector.Detect(in)
			if err != nil {
				return nil, fmt.Errorf("child detector %d: %w", i, err)
			}
			if !inRange(len(found), child.MinOccurrences, child.MaxOccurrences) {
				continue
			}
			for j := range found {
				found[j].Move(float64(region.Offset.X), float64(region.Offset.Y))
			}
			obj.AddChildren(found)
			matched++
		}

		if inRange(matched, h.minOccurrences, h.maxOccurrences) {
			kept = append(kept, obj)
		} else {
			slog.Debug("Parent rejected by child constraints",
				"class", obj.ClassName, "matched", matched,
				"min", h.minOccurrences, "max", h.maxOccurrences)
		}
	}
	return kept, nil
}

// SupportsColor is true when the parent or any child accepts colour input.
func (h *HierarchicalObjectDetector) SupportsColor() bool {
	if h.parent != nil && h.parent.SupportsColor() {
		return true
	}
	for _, c := range h.children {
		if c.Detector == nil || c.Detector.SupportsColor() {
			return true
		}
	}
	return false
}

// SetObjectExport forwards the export target to the parent and every child.
func (h *HierarchicalObjectDetector) SetObjectExport(path, suffix string) {
	if h.parent != nil {
		h.parent.SetObjectExport(path, suffix)
	}
	for _, c := range h.children {
		if c.Detector != nil {
			c.Detector.SetObjectExport(path, suffix)
		}
	}
}
