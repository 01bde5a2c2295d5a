// Package store reads and writes persisted detection documents.
package store

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/geometry"
)

// ErrMalformedRecord is wrapped by every load error caused by document content.
var ErrMalformedRecord = errors.New("malformed detection record")

// Point is a persisted box corner.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Area is a persisted bounding box.
type Area struct {
	System int   `yaml:"system" json:"system"`
	P1     Point `yaml:"p1"     json:"p1"`
	P2     Point `yaml:"p2"     json:"p2"`
}

// Record is a persisted detection with its nested children.
type Record struct {
	ClassName     string   `yaml:"className"          json:"className"`
	Area          *Area    `yaml:"area"               json:"area"`
	FalsePositive string   `yaml:"falsePositive"      json:"falsePositive"`
	AutoStatus    string   `yaml:"autoStatus"         json:"autoStatus"`
	ManualStatus  string   `yaml:"manualStatus"       json:"manualStatus"`
	Path          string   `yaml:"path,omitempty"     json:"path,omitempty"`
	Children      []Record `yaml:"children,omitempty" json:"children,omitempty"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// FromObject converts a detection tree into its persisted form.
func FromObject(o detector.DetectedObject) Record {
	r := Record{
		ClassName: o.ClassName,
		Area: &Area{
			System: int(o.Area.System),
			P1:     Point{X: o.Area.P1.X, Y: o.Area.P1.Y},
			P2:     Point{X: o.Area.P2.X, Y: o.Area.P2.Y},
		},
		FalsePositive: orDefault(o.FalsePositive, detector.FalsePositiveNo),
		AutoStatus:    orDefault(o.AutoStatus, detector.StatusNone),
		ManualStatus:  orDefault(o.ManualStatus, detector.StatusNone),
	}
	for _, c := range o.Children {
		r.Children = append(r.Children, FromObject(c))
	}
	return r
}

// FromObjects converts a list of detections.
func FromObjects(objects []detector.DetectedObject) []Record {
	out := make([]Record, 0, len(objects))
	for _, o := range objects {
		out = append(out, FromObject(o))
	}
	return out
}

// Object converts the record back into a detection tree. Missing review fields take
// their defaults; a missing class name, area or unknown coordinate system is an error
// wrapping ErrMalformedRecord.
func (r Record) Object() (detector.DetectedObject, error) {
	if r.ClassName == "" {
		return detector.DetectedObject{}, fmt.Errorf("%w: missing className", ErrMalformedRecord)
	}
	if r.Area == nil {
		return detector.DetectedObject{}, fmt.Errorf("%w: %s: missing area", ErrMalformedRecord, r.ClassName)
	}
	system := geometry.CoordinateSystem(r.Area.System)
	if !system.Valid() {
		return detector.DetectedObject{}, fmt.Errorf("%w: %s: unknown coordinate system %d",
			ErrMalformedRecord, r.ClassName, r.Area.System)
	}

	o := detector.NewObject(r.ClassName,
		geometry.NewBox(system, r.Area.P1.X, r.Area.P1.Y, r.Area.P2.X, r.Area.P2.Y))
	o.FalsePositive = orDefault(r.FalsePositive, detector.FalsePositiveNo)
	o.AutoStatus = orDefault(r.AutoStatus, detector.StatusNone)
	o.ManualStatus = orDefault(r.ManualStatus, detector.StatusNone)

	for i, c := range r.Children {
		child, err := c.Object()
		if err != nil {
			return detector.DetectedObject{}, fmt.Errorf("%s child %d: %w", r.ClassName, i, err)
		}
		o.AddChild(child)
	}
	return o, nil
}

// Objects converts a list of records, failing on the first malformed one.
func Objects(records []Record) ([]detector.DetectedObject, error) {
	out := make([]detector.DetectedObject, 0, len(records))
	for i, r := range records {
		o, err := r.Object()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}
