package detector

import (
	"github.com/MeKo-Tech/panoblur/internal/geometry"
)

// Status values assigned to DetectedObject fields by the pipeline and reviewers.
const (
	FalsePositiveYes = "Yes"
	FalsePositiveNo  = "No"
	StatusNone       = "None"
)

// DetectedObject is a labelled detection anchored to a bounding box. Children are
// detections found inside this object by nested detectors; the tree is owned by its
// root and never shares nodes.
type DetectedObject struct {
	ClassName     string
	Area          geometry.BoundingBox
	FalsePositive string
	AutoStatus    string
	ManualStatus  string
	Children      []DetectedObject
}

// NewObject returns an object with the default review fields.
func NewObject(className string, area geometry.BoundingBox) DetectedObject {
	return DetectedObject{
		ClassName:     className,
		Area:          area,
		FalsePositive: FalsePositiveNo,
		AutoStatus:    StatusNone,
		ManualStatus:  StatusNone,
	}
}

// AddChild appends a nested detection.
func (o *DetectedObject) AddChild(child DetectedObject) {
	o.Children = append(o.Children, child)
}

// AddChildren appends nested detections in order.
func (o *DetectedObject) AddChildren(children []DetectedObject) {
	o.Children = append(o.Children, children...)
}

// Move translates the object and all of its descendants.
func (o *DetectedObject) Move(dx, dy float64) {
	o.Area.Move(dx, dy)
	for i := range o.Children {
		o.Children[i].Move(dx, dy)
	}
}

// IsFalsePositive reports whether a reviewer flagged the object.
func (o DetectedObject) IsFalsePositive() bool {
	return o.FalsePositive == FalsePositiveYes
}

// Count returns the number of objects in the tree rooted at o, including o.
func (o DetectedObject) Count() int {
	n := 1
	for _, c := range o.Children {
		n += c.Count()
	}
	return n
}

// Clone returns a deep copy of the object tree.
func (o DetectedObject) Clone() DetectedObject {
	out := o
	if o.Children != nil {
		out.Children = make([]DetectedObject, len(o.Children))
		for i, c := range o.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}
