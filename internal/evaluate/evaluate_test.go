package evaluate

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/geometry"
)

// maskWith returns a black w*h mask with r painted white.
func maskWith(w, h int, r image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func cartesian(x1, y1, x2, y2 float64) detector.DetectedObject {
	return detector.NewObject("face", geometry.NewBox(geometry.Cartesian, x1, y1, x2, y2))
}

func TestEvaluate_PerfectMatch(t *testing.T) {
	mask := maskWith(20, 10, image.Rect(2, 2, 6, 6))
	r, err := Evaluate([]detector.DetectedObject{cartesian(2, 2, 6, 6)}, mask)
	require.NoError(t, err)
	assert.Equal(t, 16, r.PositivePixels)
	assert.Equal(t, 16, r.DetectedPixels)
	assert.Zero(t, r.FalsePositives)
	assert.Zero(t, r.FalseNegatives)
	assert.Zero(t, r.FalsePositiveRate)
	assert.Zero(t, r.FalseNegativeRate)
}

func TestEvaluate_PartialOverlap(t *testing.T) {
	mask := maskWith(20, 10, image.Rect(0, 0, 4, 4))
	r, err := Evaluate([]detector.DetectedObject{cartesian(2, 0, 6, 4)}, mask)
	require.NoError(t, err)

	assert.Equal(t, 8, r.FalsePositives)
	assert.Equal(t, 8, r.FalseNegatives)
	assert.InDelta(t, 8.0/184.0, r.FalsePositiveRate, 1e-12)
	assert.InDelta(t, 0.5, r.FalseNegativeRate, 1e-12)
	assert.Contains(t, r.String(), "falseNegativesRatio: 50.000 %")
}

func TestEvaluate_SphericalWrap(t *testing.T) {
	// a box crossing the seam covers both image edges
	box := geometry.NewBox(geometry.Spherical, 1.9*math.Pi, -math.Pi/2, 0.1*math.Pi, math.Pi/2)
	obj := detector.NewObject("sign", box)
	mask := maskWith(20, 10, image.Rect(0, 0, 1, 10))

	r, err := Evaluate([]detector.DetectedObject{obj}, mask)
	require.NoError(t, err)
	assert.Zero(t, r.FalseNegatives)
	assert.Equal(t, 10, r.FalsePositives)
}

func TestEvaluate_EmptyInputs(t *testing.T) {
	_, err := Evaluate(nil, nil)
	require.Error(t, err)

	r, err := Evaluate(nil, maskWith(4, 4, image.Rectangle{}))
	require.NoError(t, err)
	assert.Zero(t, r.FalseNegativeRate)
	assert.Zero(t, r.FalsePositiveRate)
}

func TestPreview(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	mask := maskWith(8, 4, image.Rect(0, 0, 4, 4))
	out, err := Preview(src, []detector.DetectedObject{cartesian(2, 0, 6, 4)}, mask)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 255, A: 200}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 100, G: 255, B: 100, A: 200}, out.NRGBAAt(2, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 100, B: 100, A: 200}, out.NRGBAAt(5, 0))
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 200}, out.NRGBAAt(7, 0))

	_, err = Preview(image.NewNRGBA(image.Rect(0, 0, 3, 3)), nil, mask)
	require.Error(t, err)
}
