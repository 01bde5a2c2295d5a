package geometry

import (
	"fmt"
	"image"
	"math"
)

// CoordinateSystem tags how the corners of a BoundingBox are interpreted.
type CoordinateSystem int

const (
	// Cartesian boxes hold pixel offsets in a flat image.
	Cartesian CoordinateSystem = 1
	// Spherical boxes hold (azimuth, elevation) in radians on an equirectangular image.
	// Azimuth lies in [0, 2π) and wraps; elevation lies in [-π/2, π/2] with -π/2 on the top row.
	Spherical CoordinateSystem = 2
)

// String returns a human readable name for the coordinate system.
func (s CoordinateSystem) String() string {
	switch s {
	case Cartesian:
		return "cartesian"
	case Spherical:
		return "spherical"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Valid reports whether s is a known coordinate system.
func (s CoordinateSystem) Valid() bool {
	return s == Cartesian || s == Spherical
}

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// BoundingBox is a rectangle given by its north-west (P1) and south-east (P2) corners.
//
// For spherical boxes P1.X > P2.X (or P1.Y > P2.Y) describes a box that wraps across
// the azimuth seam (or the pole boundary); it is not an error.
type BoundingBox struct {
	System CoordinateSystem
	P1     Point
	P2     Point
}

// NewBox constructs a box in the given coordinate system without reordering corners.
func NewBox(system CoordinateSystem, x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{System: system, P1: Point{X: x1, Y: y1}, P2: Point{X: x2, Y: y2}}
}

// FromRect converts a pixel rectangle to a Cartesian box.
func FromRect(r image.Rectangle) BoundingBox {
	return NewBox(Cartesian, float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))
}

// IsCartesian reports whether the box uses pixel coordinates.
func (b BoundingBox) IsCartesian() bool { return b.System == Cartesian }

// IsSpherical reports whether the box uses spherical coordinates.
func (b BoundingBox) IsSpherical() bool { return b.System == Spherical }

// WrapsX reports whether a spherical box crosses the azimuth seam.
func (b BoundingBox) WrapsX() bool { return b.System == Spherical && b.P1.X > b.P2.X }

// WrapsY reports whether a spherical box crosses the pole boundary.
func (b BoundingBox) WrapsY() bool { return b.System == Spherical && b.P1.Y > b.P2.Y }

// Width returns the horizontal extent of the box in its own units.
func (b BoundingBox) Width() float64 {
	switch b.System {
	case Cartesian:
		return b.P2.X - b.P1.X
	case Spherical:
		if b.P1.X > b.P2.X {
			return 2*math.Pi - b.P1.X + b.P2.X
		}
		return math.Abs(b.P2.X - b.P1.X)
	}
	return 0
}

// Height returns the vertical extent of the box in its own units.
func (b BoundingBox) Height() float64 {
	switch b.System {
	case Cartesian:
		return b.P2.Y - b.P1.Y
	case Spherical:
		if b.P1.Y > b.P2.Y {
			return math.Pi - b.P1.Y + b.P2.Y
		}
		return math.Abs(b.P2.Y - b.P1.Y)
	}
	return 0
}

// Move translates both corners. Only meaningful for Cartesian boxes.
func (b *BoundingBox) Move(dx, dy float64) {
	b.P1.X += dx
	b.P1.Y += dy
	b.P2.X += dx
	b.P2.Y += dy
}

// MergeIfOverlap grows b to the union of b and other when the two boxes overlap
// and reports whether a merge happened.
func (b *BoundingBox) MergeIfOverlap(other BoundingBox) bool {
	ax1, ay1, ax2, ay2 := b.P1.X, b.P1.Y, b.P2.X, b.P2.Y
	bx1, by1, bx2, by2 := other.P1.X, other.P1.Y, other.P2.X, other.P2.Y

	switch b.System {
	case Cartesian:
		if ax1 > bx2 || ax2 < bx1 || ay1 > by2 || ay2 < by1 {
			return false
		}
		b.P1 = Point{X: math.Min(ax1, bx1), Y: math.Min(ay1, by1)}
		b.P2 = Point{X: math.Max(ax2, bx2), Y: math.Max(ay2, by2)}
		return true

	case Spherical:
		maxx := math.Max(math.Max(ax1, bx1), math.Max(ax2, bx2))
		maxy := math.Max(math.Max(ay1, by1), math.Max(ay2, by2))

		// unwrap seam-crossing boxes into a linear range
		if b.P1.X > b.P2.X {
			ax2 += maxx
		}
		if other.P1.X > other.P2.X {
			bx2 += maxx
		}
		if b.P1.Y > b.P2.Y {
			ay2 += maxy
		}
		if other.P1.Y > other.P2.Y {
			by2 += maxy
		}

		if ax1 > bx2 || ax2 < bx1 || ay1 > by2 || ay2 < by1 {
			return false
		}

		x1, y1 := math.Min(ax1, bx1), math.Min(ay1, by1)
		x2, y2 := math.Max(ax2, bx2), math.Max(ay2, by2)
		if x2 > maxx {
			x2 -= maxx
		}
		if y2 > maxy {
			y2 -= maxy
		}
		b.P1 = Point{X: x1, Y: y1}
		b.P2 = Point{X: x2, Y: y2}
		return true
	}
	return false
}

// Rects converts the box into axis-aligned pixel rectangles of an image of the given size.
//
// Cartesian boxes and non-wrapping spherical boxes yield one rectangle. A spherical box
// wrapping on one axis yields two; wrapping on both axes yields four, ordered
// bottom-right, bottom-left, top-right, top-left so that the first two (and last two)
// sit side by side when stitched.
func (b BoundingBox) Rects(width, height int) []image.Rectangle {
	switch b.System {
	case Cartesian:
		x1 := clampInt(pixel(b.P1.X), 0, width)
		y1 := clampInt(pixel(b.P1.Y), 0, height)
		x2 := clampInt(pixel(b.P2.X), 0, width)
		y2 := clampInt(pixel(b.P2.Y), 0, height)
		return []image.Rectangle{rect(x1, y1, x2, y2)}

	case Spherical:
		x1 := clampInt(pixel(b.P1.X/(2*math.Pi)*float64(width)), 0, width)
		y1 := clampInt(pixel((b.P1.Y+math.Pi/2)/math.Pi*float64(height)), 0, height)
		x2 := clampInt(pixel(b.P2.X/(2*math.Pi)*float64(width)), 0, width)
		y2 := clampInt(pixel((b.P2.Y+math.Pi/2)/math.Pi*float64(height)), 0, height)

		switch {
		case b.WrapsX() && b.WrapsY():
			return []image.Rectangle{
				rect(x1, y1, width, height),
				rect(0, y1, x2, height),
				rect(x1, 0, width, y2),
				rect(0, 0, x2, y2),
			}
		case b.WrapsX():
			return []image.Rectangle{
				rect(x1, y1, width, y2),
				rect(0, y1, x2, y2),
			}
		case b.WrapsY():
			return []image.Rectangle{
				rect(x1, y1, x2, height),
				rect(x1, 0, x2, y2),
			}
		default:
			return []image.Rectangle{rect(x1, y1, x2, y2)}
		}
	}
	return nil
}

// rect builds a rectangle without the canonicalisation image.Rect applies, so an
// empty strip keeps its position.
func rect(x1, y1, x2, y2 int) image.Rectangle {
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rectangle{Min: image.Point{X: x1, Y: y1}, Max: image.Point{X: x2, Y: y2}}
}

// pixel truncates a device coordinate, tolerating rounding noise just below an integer.
func pixel(v float64) int {
	return int(math.Floor(v + 1e-9))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// String formats the box for logs.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s[(%.4f,%.4f)-(%.4f,%.4f)]", b.System, b.P1.X, b.P1.Y, b.P2.X, b.P2.Y)
}
