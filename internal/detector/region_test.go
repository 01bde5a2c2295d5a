package detector

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// columnImage encodes the column index in the red channel and the row in green.
func columnImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return img
}

func redGreen(img image.Image, x, y int) (uint8, uint8) {
	b := img.Bounds()
	r, g, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
	return uint8(r >> 8), uint8(g >> 8)
}

func TestGetRegion_Cartesian(t *testing.T) {
	src := columnImage(64, 32)

	region, err := GetRegion(src, cart("face", 10, 5, 20, 15), 0)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(10, 5), region.Offset)
	assert.Equal(t, image.Rect(0, 0, 10, 10), region.Rect)
	assert.Equal(t, 10, region.Image.Bounds().Dx())

	r, g := redGreen(region.Image, 0, 0)
	assert.Equal(t, uint8(10), r)
	assert.Equal(t, uint8(5), g)
}

func TestGetRegion_BorderIsClamped(t *testing.T) {
	src := columnImage(64, 32)

	region, err := GetRegion(src, cart("face", 2, 5, 60, 15), 4)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(0, 1), region.Offset)
	assert.Equal(t, image.Rect(2, 4, 60, 14), region.Rect)
	assert.Equal(t, 64, region.Image.Bounds().Dx())
	assert.Equal(t, 18, region.Image.Bounds().Dy())
}

func TestGetRegion_WrappedAcrossSeam(t *testing.T) {
	src := columnImage(64, 32)
	deg := math.Pi / 180
	// columns 56..64 then 0..8
	obj := sph("face", 315*deg, -45*deg, 45*deg, 0)

	region, err := GetRegion(src, obj, 0)
	require.NoError(t, err)
	assert.Equal(t, 16, region.Image.Bounds().Dx())
	assert.Equal(t, 8, region.Image.Bounds().Dy())
	assert.Equal(t, image.Pt(56, 8), region.Offset)

	r, _ := redGreen(region.Image, 0, 0)
	assert.Equal(t, uint8(56), r)
	r, _ = redGreen(region.Image, 8, 0)
	assert.Equal(t, uint8(0), r)
	r, _ = redGreen(region.Image, 15, 7)
	assert.Equal(t, uint8(7), r)
}

func TestGetRegion_WrappedBothAxes(t *testing.T) {
	src := columnImage(64, 32)
	deg := math.Pi / 180
	obj := sph("face", 315*deg, 45*deg, 45*deg, -45*deg)

	region, err := GetRegion(src, obj, 0)
	require.NoError(t, err)
	assert.Equal(t, 16, region.Image.Bounds().Dx())
	assert.Equal(t, 16, region.Image.Bounds().Dy())

	r, g := redGreen(region.Image, 0, 0)
	assert.Equal(t, uint8(56), r)
	assert.Equal(t, uint8(24), g)
	r, g = redGreen(region.Image, 15, 15)
	assert.Equal(t, uint8(7), r)
	assert.Equal(t, uint8(7), g)
}

func TestGetRegion_Empty(t *testing.T) {
	_, err := GetRegion(columnImage(8, 8), cart("face", 20, 20, 30, 30), 0)
	require.ErrorIs(t, err, ErrEmptyRegion)
}

func TestGetGnomonicRegion(t *testing.T) {
	src := columnImage(256, 128)
	deg := math.Pi / 180
	obj := sph("face", 80*deg, -10*deg, 100*deg, 20*deg)

	region, err := GetGnomonicRegion(src, obj, 128, 5*deg)
	require.NoError(t, err)
	require.NotNil(t, region.Transform)
	b := region.Image.Bounds()
	assert.Equal(t, 128, b.Dx())
	assert.Greater(t, b.Dy(), b.Dx())
	assert.False(t, region.Rect.Empty())
	assert.True(t, region.Rect.In(b))

	_, err = GetGnomonicRegion(src, cart("face", 0, 0, 1, 1), 128, 0)
	require.Error(t, err)
}
