package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deg(v float64) float64 { return v * math.Pi / 180 }

func TestBoundingBox_WidthHeight(t *testing.T) {
	tests := []struct {
		name   string
		box    BoundingBox
		width  float64
		height float64
	}{
		{"cartesian", NewBox(Cartesian, 10, 20, 40, 60), 30, 40},
		{"spherical plain", NewBox(Spherical, deg(10), deg(-10), deg(30), deg(20)), deg(20), deg(30)},
		{"spherical wrapped x", NewBox(Spherical, deg(350), deg(-10), deg(10), deg(10)), deg(20), deg(20)},
		{"spherical wrapped y", NewBox(Spherical, deg(10), deg(80), deg(20), deg(-80)), deg(10), deg(20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.width, tt.box.Width(), 1e-9)
			assert.InDelta(t, tt.height, tt.box.Height(), 1e-9)
		})
	}
}

func TestBoundingBox_Move(t *testing.T) {
	b := NewBox(Cartesian, 1, 2, 3, 4)
	b.Move(10, 20)
	assert.Equal(t, Point{X: 11, Y: 22}, b.P1)
	assert.Equal(t, Point{X: 13, Y: 24}, b.P2)
}

func TestMergeIfOverlap_Cartesian(t *testing.T) {
	a := NewBox(Cartesian, 0, 0, 10, 10)
	require.True(t, a.MergeIfOverlap(NewBox(Cartesian, 5, 5, 20, 15)))
	assert.Equal(t, NewBox(Cartesian, 0, 0, 20, 15), a)

	// touching edges count as overlap
	require.True(t, a.MergeIfOverlap(NewBox(Cartesian, 20, 0, 25, 5)))
	assert.Equal(t, 25.0, a.P2.X)

	before := a
	assert.False(t, a.MergeIfOverlap(NewBox(Cartesian, 100, 100, 110, 110)))
	assert.Equal(t, before, a, "box must not change when there is no overlap")
}

func TestMergeIfOverlap_SphericalPlain(t *testing.T) {
	a := NewBox(Spherical, deg(10), deg(0), deg(30), deg(10))
	require.True(t, a.MergeIfOverlap(NewBox(Spherical, deg(25), deg(5), deg(40), deg(20))))
	assert.InDelta(t, deg(10), a.P1.X, 1e-12)
	assert.InDelta(t, deg(40), a.P2.X, 1e-12)
	assert.InDelta(t, deg(20), a.P2.Y, 1e-12)
	assert.False(t, a.WrapsX())
}

func TestMergeIfOverlap_SphericalBothWrapped(t *testing.T) {
	a := NewBox(Spherical, deg(350), deg(0), deg(10), deg(10))
	b := NewBox(Spherical, deg(340), deg(0), deg(5), deg(10))
	require.True(t, a.MergeIfOverlap(b))
	assert.InDelta(t, deg(340), a.P1.X, 1e-9)
	assert.InDelta(t, deg(10), a.P2.X, 1e-9)
	assert.True(t, a.WrapsX())
}

func TestMergeIfOverlap_SphericalWrappedWithPlain(t *testing.T) {
	wrapped := NewBox(Spherical, deg(350), deg(0), deg(10), deg(10))
	plain := NewBox(Spherical, deg(300), deg(0), deg(355), deg(10))

	a := wrapped
	require.True(t, a.MergeIfOverlap(plain))
	b := plain
	require.True(t, b.MergeIfOverlap(wrapped))

	assert.InDelta(t, a.P1.X, b.P1.X, 1e-9)
	assert.InDelta(t, a.P2.X, b.P2.X, 1e-9)
	assert.InDelta(t, deg(300), a.P1.X, 1e-9)
	assert.True(t, a.WrapsX())
	assert.InDelta(t, deg(70), a.Width(), 1e-9)
}

func TestRects_Cartesian(t *testing.T) {
	b := NewBox(Cartesian, -5, 10, 50, 500)
	rs := b.Rects(100, 200)
	require.Len(t, rs, 1)
	assert.Equal(t, image.Rect(0, 10, 50, 200), rs[0])
}

func TestRects_SphericalWrappedX(t *testing.T) {
	const w, h = 3600, 1800
	b := NewBox(Spherical, deg(350), deg(-10), deg(10), deg(10))
	rs := b.Rects(w, h)
	require.Len(t, rs, 2)

	area := 0
	for _, r := range rs {
		area += r.Dx() * r.Dy()
	}
	expected := b.Width() / (2 * math.Pi) * w * b.Height() / math.Pi * h
	assert.InDelta(t, expected, float64(area), float64(w+h))
	assert.Equal(t, w, rs[0].Max.X)
	assert.Equal(t, 0, rs[1].Min.X)
}

func TestRects_SphericalWrappedY(t *testing.T) {
	b := NewBox(Spherical, deg(10), deg(80), deg(20), deg(-80))
	rs := b.Rects(360, 180)
	require.Len(t, rs, 2)
	assert.Equal(t, 180, rs[0].Max.Y)
	assert.Equal(t, 0, rs[1].Min.Y)
	assert.Equal(t, rs[0].Dx(), rs[1].Dx())
}

func TestRects_SphericalWrappedBoth(t *testing.T) {
	b := NewBox(Spherical, deg(350), deg(80), deg(10), deg(-80))
	rs := b.Rects(360, 180)
	require.Len(t, rs, 4)
	assertRectNear(t, image.Rect(350, 170, 360, 180), rs[0])
	assertRectNear(t, image.Rect(0, 170, 10, 180), rs[1])
	assertRectNear(t, image.Rect(350, 0, 360, 10), rs[2])
	assertRectNear(t, image.Rect(0, 0, 10, 10), rs[3])
}

// assertRectNear allows one pixel of truncation error on each edge.
func assertRectNear(t *testing.T, expected, actual image.Rectangle) {
	t.Helper()
	assert.InDelta(t, expected.Min.X, actual.Min.X, 1)
	assert.InDelta(t, expected.Min.Y, actual.Min.Y, 1)
	assert.InDelta(t, expected.Max.X, actual.Max.X, 1)
	assert.InDelta(t, expected.Max.Y, actual.Max.Y, 1)
}

func TestRects_SphericalWrappedWithinOnePixel(t *testing.T) {
	// Start and end fall on the same pixel column, but the box covers the rest of the circle.
	b := NewBox(Spherical, 1.0001, -0.5, 1.0, 0.5)
	require.True(t, b.WrapsX())

	rs := b.Rects(1024, 512)
	require.Len(t, rs, 2)
	assert.Equal(t, 1024, rs[0].Max.X)
	assert.Equal(t, 0, rs[1].Min.X)
	assert.Equal(t, 1024, rs[0].Dx()+rs[1].Dx())
	assert.Equal(t, rs[0].Dy(), rs[1].Dy())
	assert.Positive(t, rs[0].Dy())
}

func TestCoordinateSystem_String(t *testing.T) {
	assert.Equal(t, "cartesian", Cartesian.String())
	assert.Equal(t, "spherical", Spherical.String())
	assert.False(t, CoordinateSystem(7).Valid())
}
