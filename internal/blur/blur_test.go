package blur

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkerboard alternates black and white pixels so any blur changes it.
func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestApply_BlursOnlyObjects(t *testing.T) {
	src := checkerboard(40, 40)
	obj := detector.NewObject("face", geometry.NewBox(geometry.Cartesian, 10, 10, 20, 20))

	for _, alg := range []string{AlgorithmGaussian, AlgorithmBox} {
		out, n, err := Apply(src, []detector.DetectedObject{obj}, Options{Algorithm: alg, Radius: 3})
		require.NoError(t, err, alg)
		assert.Equal(t, 1, n)

		inside := out.NRGBAAt(15, 15).R
		assert.Greater(t, inside, uint8(40), alg)
		assert.Less(t, inside, uint8(215), alg)
		assert.Equal(t, src.NRGBAAt(2, 2), out.NRGBAAt(2, 2), alg)
		assert.Equal(t, src.NRGBAAt(30, 30), out.NRGBAAt(30, 30), alg)
	}
	// source untouched
	assert.Equal(t, uint8(255), src.NRGBAAt(14, 14).R)
}

func TestApply_SkipsFalsePositives(t *testing.T) {
	src := checkerboard(20, 20)
	obj := detector.NewObject("face", geometry.NewBox(geometry.Cartesian, 2, 2, 12, 12))
	obj.FalsePositive = detector.FalsePositiveYes

	out, n, err := Apply(src, []detector.DetectedObject{obj}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestApply_SeamWrappingBox(t *testing.T) {
	src := checkerboard(64, 32)
	box := geometry.NewBox(geometry.Spherical, 2*math.Pi-0.5, -0.3, 0.5, 0.3)
	out, n, err := Apply(src, []detector.DetectedObject{detector.NewObject("face", box)}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.NotEqual(t, src.NRGBAAt(1, 16), out.NRGBAAt(1, 16))
	assert.NotEqual(t, src.NRGBAAt(62, 16), out.NRGBAAt(62, 16))
	assert.Equal(t, src.NRGBAAt(32, 16), out.NRGBAAt(32, 16))
}

func TestApply_None(t *testing.T) {
	src := checkerboard(8, 8)
	obj := detector.NewObject("face", geometry.NewBox(geometry.Cartesian, 0, 0, 8, 8))
	out, n, err := Apply(src, []detector.DetectedObject{obj}, Options{Algorithm: AlgorithmNone})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
	require.Error(t, Options{Algorithm: "radial"}.Validate())
	require.Error(t, Options{Algorithm: AlgorithmBox, Radius: -1}.Validate())

	_, _, err := Apply(nil, nil, DefaultOptions())
	require.Error(t, err)
}

func TestRadiusFor(t *testing.T) {
	assert.InDelta(t, 2.0, Options{}.radiusFor(image.Rect(0, 0, 4, 100)), 1e-9)
	assert.InDelta(t, 10.0, Options{}.radiusFor(image.Rect(0, 0, 40, 80)), 1e-9)
	assert.InDelta(t, 7.0, Options{Radius: 7}.radiusFor(image.Rect(0, 0, 40, 80)), 1e-9)
}
