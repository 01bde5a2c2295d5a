// Package gnomonic maps between an equirectangular sphere and tangent-plane tiles.
package gnomonic

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"gonum.org/v1/gonum/mat"
)

// Transform projects between spherical directions and the pixel grid of a plane
// tangent to the unit sphere at (Phi, Theta). It is immutable once built.
type Transform struct {
	width  int
	height int
	ax     float64
	ay     float64
	phi    float64
	theta  float64

	// tangents of the half apertures
	thax float64
	thay float64

	// row-major 3x3 rotations
	toPlane  [9]float64
	toSphere [9]float64
}

// New builds a transform for a width x height window with apertures ax, ay (radians)
// tangent to the sphere at azimuth phi and elevation theta.
func New(width, height int, ax, ay, phi, theta float64) (*Transform, error) {
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("gnomonic window too small: %dx%d", width, height)
	}
	if ax <= 0 || ax >= math.Pi || ay <= 0 || ay >= math.Pi {
		return nil, fmt.Errorf("gnomonic aperture out of range: ax=%.4f ay=%.4f", ax, ay)
	}

	t := &Transform{
		width:  width,
		height: height,
		ax:     ax,
		ay:     ay,
		phi:    phi,
		theta:  theta,
		thax:   math.Tan(ax / 2),
		thay:   math.Tan(ay / 2),
	}

	// sphere -> plane: rotate the tangent point onto +X (Z by -phi, then Y by theta)
	var toPlane mat.Dense
	toPlane.Mul(rotateY(theta), rotateZ(-phi))
	copy(t.toPlane[:], toPlane.RawMatrix().Data)

	// plane -> sphere: the inverse composition
	var toSphere mat.Dense
	toSphere.Mul(rotateZ(phi), rotateY(-theta))
	copy(t.toSphere[:], toSphere.RawMatrix().Data)

	return t, nil
}

func rotateZ(a float64) *mat.Dense {
	c, s := math.Cos(a), math.Sin(a)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

func rotateY(a float64) *mat.Dense {
	c, s := math.Cos(a), math.Sin(a)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

// Width returns the tile width in pixels.
func (t *Transform) Width() int { return t.width }

// Height returns the tile height in pixels.
func (t *Transform) Height() int { return t.height }

// Aperture returns the horizontal and vertical apertures in radians.
func (t *Transform) Aperture() (float64, float64) { return t.ax, t.ay }

// Center returns the azimuth and elevation the plane is tangent to.
func (t *Transform) Center() (float64, float64) { return t.phi, t.theta }

func rotate(m *[9]float64, x, y, z float64) (float64, float64, float64) {
	return m[0]*x + m[1]*y + m[2]*z,
		m[3]*x + m[4]*y + m[5]*z,
		m[6]*x + m[7]*y + m[8]*z
}

// ToGnomonic projects the direction (phi, theta) onto the tile. It returns false when
// the direction lies on the far hemisphere and has no finite projection.
func (t *Transform) ToGnomonic(phi, theta float64) (float64, float64, bool) {
	x, y, z := rotate(&t.toPlane,
		math.Cos(phi)*math.Cos(theta),
		math.Sin(phi)*math.Cos(theta),
		math.Sin(theta),
	)
	if x <= 0 {
		return 0, 0, false
	}
	gx := ((y/x/t.thax + 1.0) / 2.0) * float64(t.width-1)
	gy := ((z/x/t.thay + 1.0) / 2.0) * float64(t.height-1)
	return gx, gy, true
}

// ToEqr recovers the spherical direction of a tile pixel. Azimuth is returned in
// [0, 2π), elevation in [-π/2, π/2]. It reports false only for non-finite input.
func (t *Transform) ToEqr(gx, gy float64) (float64, float64, bool) {
	ux := (2.0*gx/float64(t.width-1) - 1.0) * t.thax
	uy := (2.0*gy/float64(t.height-1) - 1.0) * t.thay
	p := math.Cos(math.Atan(math.Sqrt(ux*ux + uy*uy)))

	x, y, z := rotate(&t.toSphere, p, ux*p, uy*p)

	phi := math.Atan2(y, x)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	if phi >= 2*math.Pi {
		phi = 0
	}
	theta := math.Asin(clamp(z, -1, 1))

	if math.IsNaN(phi) || math.IsNaN(theta) {
		return 0, 0, false
	}
	return phi, theta, true
}

// ToEqrBox maps a Cartesian tile box to a spherical box. Corners are swapped when the
// non-wrapped extent would exceed the tile aperture, which restores the orientation
// of boxes straddling the seam or a pole.
func (t *Transform) ToEqrBox(src geometry.BoundingBox) (geometry.BoundingBox, bool) {
	x1, y1, ok := t.ToEqr(math.Trunc(src.P1.X), math.Trunc(src.P1.Y))
	if !ok {
		return geometry.BoundingBox{}, false
	}
	x2, y2, ok := t.ToEqr(math.Trunc(src.P2.X), math.Trunc(src.P2.Y))
	if !ok {
		return geometry.BoundingBox{}, false
	}

	if x1 > x2 && (2*math.Pi-x1+x2) > t.ax {
		x1, x2 = x2, x1
	}
	if y1 > y2 && (math.Pi-y1+y2) > t.ay {
		y1, y2 = y2, y1
	}
	return geometry.NewBox(geometry.Spherical, x1, y1, x2, y2), true
}

// ToGnomonicRect maps the corners of a spherical box onto the tile. It returns false
// when either corner lies on the far hemisphere.
func (t *Transform) ToGnomonicRect(src geometry.BoundingBox) (image.Rectangle, bool) {
	x1, y1, ok := t.ToGnomonic(src.P1.X, src.P1.Y)
	if !ok {
		return image.Rectangle{}, false
	}
	x2, y2, ok := t.ToGnomonic(src.P2.X, src.P2.Y)
	if !ok {
		return image.Rectangle{}, false
	}
	return image.Rect(int(x1), int(y1), int(x2), int(y2)), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
