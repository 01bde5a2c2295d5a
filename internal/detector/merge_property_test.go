package detector

import (
	"testing"

	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genCartesianObject() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0, 200),
		gen.Float64Range(0, 200),
		gen.Float64Range(1, 40),
		gen.Float64Range(1, 40),
		gen.OneConstOf("face", "sign", "plate"),
	).Map(func(vals []interface{}) DetectedObject {
		x, ok := vals[0].(float64)
		if !ok {
			panic("expected float64")
		}
		y, ok := vals[1].(float64)
		if !ok {
			panic("expected float64")
		}
		w, ok := vals[2].(float64)
		if !ok {
			panic("expected float64")
		}
		h, ok := vals[3].(float64)
		if !ok {
			panic("expected float64")
		}
		class, ok := vals[4].(string)
		if !ok {
			panic("expected string")
		}
		return NewObject(class, geometry.NewBox(geometry.Cartesian, x, y, x+w, y+h))
	})
}

func contains(outer, inner geometry.BoundingBox) bool {
	return outer.P1.X <= inner.P1.X && outer.P1.Y <= inner.P1.Y &&
		outer.P2.X >= inner.P2.X && outer.P2.Y >= inner.P2.Y
}

func TestMerge_NeverGrowsTheList(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("merge output is no longer than its input", prop.ForAll(
		func(objects []DetectedObject) bool {
			return len(Merge(objects, 1)) <= len(objects)
		},
		gen.SliceOf(genCartesianObject()),
	))

	properties.TestingRun(t)
}

func TestMerge_EveryInputIsCovered(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("with minOverlap 1 every input lies inside one cluster", prop.ForAll(
		func(objects []DetectedObject) bool {
			merged := Merge(objects, 1)
			for _, o := range objects {
				found := false
				for _, m := range merged {
					if contains(m.Area, o.Area) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genCartesianObject()),
	))

	properties.TestingRun(t)
}
