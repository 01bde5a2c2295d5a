package gnomonic

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deg(v float64) float64 { return v * math.Pi / 180 }

func mustNew(t *testing.T, w, h int, ax, ay, phi, theta float64) *Transform {
	t.Helper()
	tr, err := New(w, h, ax, ay, phi, theta)
	require.NoError(t, err)
	return tr
}

func TestNew_RejectsInvalidWindow(t *testing.T) {
	_, err := New(1, 10, deg(60), deg(60), 0, 0)
	require.Error(t, err)

	_, err = New(10, 10, 0, deg(60), 0, 0)
	require.Error(t, err)

	_, err = New(10, 10, deg(60), math.Pi, 0, 0)
	require.Error(t, err)
}

func TestToGnomonic_CenterMapsToMiddle(t *testing.T) {
	tr := mustNew(t, 101, 51, deg(60), deg(30), deg(45), deg(20))

	gx, gy, ok := tr.ToGnomonic(deg(45), deg(20))
	require.True(t, ok)
	assert.InDelta(t, 50.0, gx, 1e-9)
	assert.InDelta(t, 25.0, gy, 1e-9)
}

func TestToGnomonic_FarHemisphereFails(t *testing.T) {
	tr := mustNew(t, 64, 64, deg(60), deg(60), 0, 0)

	_, _, ok := tr.ToGnomonic(math.Pi, 0)
	assert.False(t, ok)

	_, _, ok = tr.ToGnomonic(deg(100), deg(10))
	assert.False(t, ok)
}

func TestToGnomonic_Orientation(t *testing.T) {
	tr := mustNew(t, 64, 64, deg(60), deg(60), deg(180), 0)

	// larger azimuth lies to the right, larger elevation (towards the bottom row) lies below
	lx, _, ok := tr.ToGnomonic(deg(170), 0)
	require.True(t, ok)
	rx, _, ok := tr.ToGnomonic(deg(190), 0)
	require.True(t, ok)
	assert.Less(t, lx, rx)

	_, ty, ok := tr.ToGnomonic(deg(180), deg(-10))
	require.True(t, ok)
	_, by, ok := tr.ToGnomonic(deg(180), deg(10))
	require.True(t, ok)
	assert.Less(t, ty, by)
}

func TestToEqr_RoundTripAtPoles(t *testing.T) {
	for _, theta := range []float64{deg(90), deg(-90)} {
		tr := mustNew(t, 65, 65, deg(60), deg(60), deg(30), theta)
		for _, p := range [][2]float64{{5, 5}, {60, 10}, {20, 50}, {32, 40}} {
			phi, th, ok := tr.ToEqr(p[0], p[1])
			require.True(t, ok)
			gx, gy, ok := tr.ToGnomonic(phi, th)
			require.True(t, ok)
			assert.InDelta(t, p[0], gx, 1e-5)
			assert.InDelta(t, p[1], gy, 1e-5)
		}
	}
}

func TestToEqr_AzimuthRange(t *testing.T) {
	tr := mustNew(t, 64, 64, deg(90), deg(90), 0, 0)
	for _, p := range [][2]float64{{0, 0}, {63, 63}, {0, 63}, {63, 0}, {31.5, 31.5}} {
		phi, theta, ok := tr.ToEqr(p[0], p[1])
		require.True(t, ok)
		assert.GreaterOrEqual(t, phi, 0.0)
		assert.Less(t, phi, 2*math.Pi)
		assert.GreaterOrEqual(t, theta, -math.Pi/2)
		assert.LessOrEqual(t, theta, math.Pi/2)
	}
}

func TestToEqrBox_SeamProducesWrappedBox(t *testing.T) {
	tr := mustNew(t, 64, 64, deg(60), deg(60), 0, 0)

	box, ok := tr.ToEqrBox(geometry.NewBox(geometry.Cartesian, 10, 20, 50, 40))
	require.True(t, ok)
	assert.True(t, box.IsSpherical())
	assert.True(t, box.WrapsX(), "box centred on the seam must wrap: %s", box)
	assert.False(t, box.WrapsY())
	assert.Less(t, box.Width(), deg(60))
}

func TestToEqrBox_PlainBox(t *testing.T) {
	tr := mustNew(t, 64, 64, deg(60), deg(60), math.Pi, 0)

	box, ok := tr.ToEqrBox(geometry.NewBox(geometry.Cartesian, 10, 20, 50, 40))
	require.True(t, ok)
	assert.False(t, box.WrapsX())
	assert.False(t, box.WrapsY())
	assert.Less(t, box.P1.X, math.Pi)
	assert.Greater(t, box.P2.X, math.Pi)
	assert.Less(t, box.P1.Y, 0.0)
	assert.Greater(t, box.P2.Y, 0.0)
}

func TestToGnomonicRect_InvertsToEqrBox(t *testing.T) {
	tr := mustNew(t, 128, 128, deg(60), deg(60), deg(100), deg(-30))

	src := geometry.NewBox(geometry.Cartesian, 20, 30, 90, 100)
	sph, ok := tr.ToEqrBox(src)
	require.True(t, ok)

	r, ok := tr.ToGnomonicRect(sph)
	require.True(t, ok)
	assert.InDelta(t, 20, r.Min.X, 1)
	assert.InDelta(t, 30, r.Min.Y, 1)
	assert.InDelta(t, 90, r.Max.X, 1)
	assert.InDelta(t, 100, r.Max.Y, 1)
}

func TestResample_GrayKeepsUniformColour(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 64, 32))
	for i := range src.Pix {
		src.Pix[i] = 77
	}
	tr := mustNew(t, 16, 16, deg(60), deg(60), deg(10), deg(80))

	out := tr.Resample(src)
	gray, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 16, 16), gray.Bounds())
	for _, v := range gray.Pix {
		assert.Equal(t, uint8(77), v)
	}
}

func TestResample_SamplesCorrectHemisphere(t *testing.T) {
	// left half black, right half white
	src := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := range 32 {
		for x := range 64 {
			c := color.RGBA{A: 255}
			if x >= 32 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			src.SetRGBA(x, y, c)
		}
	}

	dark := mustNew(t, 8, 8, deg(40), deg(40), deg(90), 0).Resample(src)
	light := mustNew(t, 8, 8, deg(40), deg(40), deg(270), 0).Resample(src)

	_, ok := dark.(*image.NRGBA)
	require.True(t, ok)

	r, _, _, _ := dark.At(4, 4).RGBA()
	assert.Equal(t, uint32(0), r)
	r, _, _, _ = light.At(4, 4).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestResample_WrapsAcrossSeam(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 64, 32))
	for y := range 32 {
		for x := range 64 {
			if x < 4 || x >= 60 {
				src.Pix[y*src.Stride+x] = 200
			}
		}
	}

	out := mustNew(t, 9, 9, deg(10), deg(10), 0, 0).Resample(src).(*image.Gray)
	assert.Equal(t, uint8(200), out.GrayAt(4, 4).Y)
	assert.Equal(t, uint8(200), out.GrayAt(0, 4).Y)
	assert.Equal(t, uint8(200), out.GrayAt(8, 4).Y)
}
