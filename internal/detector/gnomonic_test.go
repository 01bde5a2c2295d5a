package detector

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// centreBox reports one box covering 10% to 90% of every tile it sees.
func centreBox() funcDetector {
	return func(img image.Image) []DetectedObject {
		b := img.Bounds()
		w, h := float64(b.Dx()), float64(b.Dy())
		return []DetectedObject{cart("face", 0.1*w, 0.1*h, 0.9*w, 0.9*h)}
	}
}

func TestNewGnomonicProjection_Validates(t *testing.T) {
	_, err := NewGnomonicProjection(nil, 1, DefaultAperture, DefaultAperture)
	require.Error(t, err)
	_, err = NewGnomonicProjection(nil, 64, 0, DefaultAperture)
	require.Error(t, err)
	_, err = NewGnomonicProjection(nil, 64, DefaultAperture, math.Pi)
	require.Error(t, err)

	g, err := NewGnomonicProjection(nil, 64, DefaultAperture, DefaultAperture/2)
	require.NoError(t, err)
	w, h := g.Window()
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)
}

func TestGnomonicProjection_CentersCoverSphere(t *testing.T) {
	g, err := NewGnomonicProjection(nil, 32, DefaultAperture, DefaultAperture)
	require.NoError(t, err)

	centers := g.Centers()
	// 7 elevation rows from +90° to -90°, 12 azimuth columns
	require.Len(t, centers, 84)
	assert.InDelta(t, math.Pi/2, centers[0][1], 1e-12)
	assert.InDelta(t, -math.Pi/2, centers[len(centers)-1][1], 1e-9)
	for _, c := range centers {
		assert.GreaterOrEqual(t, c[0], 0.0)
		assert.Less(t, c[0], 2*math.Pi)
	}
}

func TestGnomonicProjection_TileDetectionsCoalesce(t *testing.T) {
	g, err := NewGnomonicProjection(centreBox(), 32, DefaultAperture, DefaultAperture)
	require.NoError(t, err)

	src := image.NewGray(image.Rect(0, 0, 64, 32))
	objects, err := g.Detect(src)
	require.NoError(t, err)

	tiles := len(g.Centers())
	require.Len(t, objects, tiles)
	for _, o := range objects {
		assert.Equal(t, geometry.Spherical, o.Area.System)
	}

	merged := Merge(objects, DefaultMinOverlap)
	assert.NotEmpty(t, merged)
	assert.Less(t, len(merged), tiles)
}

func TestGnomonicProjection_MapsChildren(t *testing.T) {
	inner := funcDetector(func(image.Image) []DetectedObject {
		face := cart("face", 4, 4, 28, 28)
		face.AddChild(cart("eye", 8, 8, 12, 12))
		return []DetectedObject{face}
	})
	g, err := NewGnomonicProjection(inner, 32, DefaultAperture, DefaultAperture)
	require.NoError(t, err)

	objects, err := g.Detect(image.NewGray(image.Rect(0, 0, 64, 32)))
	require.NoError(t, err)
	require.NotEmpty(t, objects)
	for _, o := range objects {
		require.Len(t, o.Children, 1)
		assert.True(t, o.Children[0].Area.IsSpherical())
	}
}

func TestGnomonicProjection_InnerErrorAborts(t *testing.T) {
	boom := errors.New("classifier failed")
	g, err := NewGnomonicProjection(&stubDetector{err: boom}, 16, DefaultAperture, DefaultAperture)
	require.NoError(t, err)

	_, err = g.Detect(image.NewGray(image.Rect(0, 0, 32, 16)))
	require.ErrorIs(t, err, boom)
}

func TestGnomonicProjection_GraysColourInputForGrayInner(t *testing.T) {
	inner := &stubDetector{}
	g, err := NewGnomonicProjection(inner, 16, DefaultAperture, DefaultAperture)
	require.NoError(t, err)

	_, err = g.Detect(rgbaImage(32, 16))
	require.NoError(t, err)
	require.NotEmpty(t, inner.inputs)
	_, ok := inner.inputs[0].(*image.Gray)
	assert.True(t, ok)
}

func TestGnomonicProjection_SupportsColor(t *testing.T) {
	g, err := NewGnomonicProjection(nil, 16, DefaultAperture, DefaultAperture)
	require.NoError(t, err)
	assert.True(t, g.SupportsColor())

	objects, err := g.Detect(rgbaImage(8, 4))
	require.NoError(t, err)
	assert.Empty(t, objects)

	g, err = NewGnomonicProjection(&stubDetector{}, 16, DefaultAperture, DefaultAperture)
	require.NoError(t, err)
	assert.False(t, g.SupportsColor())
}
