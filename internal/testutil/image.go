package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Mark is a filled square painted onto a synthetic panorama. Yaw and Pitch are degrees,
// yaw in [0, 360) from the left edge and pitch in [-90, 90] from the top.
type Mark struct {
	Yaw   float64
	Pitch float64
	Size  int
	Color color.Color
	Label string
}

// PanoramaConfig holds configuration for generating equirectangular test images.
type PanoramaConfig struct {
	Width  int
	Height int
	// Background fills the sky half, Ground the lower half.
	Background color.Color
	Ground     color.Color
	Marks      []Mark
}

// DefaultPanoramaConfig returns a 2:1 panorama without marks.
func DefaultPanoramaConfig() PanoramaConfig {
	return PanoramaConfig{
		Width:      512,
		Height:     256,
		Background: color.NRGBA{R: 120, G: 160, B: 220, A: 255},
		Ground:     color.NRGBA{R: 90, G: 110, B: 60, A: 255},
	}
}

// MarkRect returns the pixel rectangle a mark covers before wrapping.
func (c PanoramaConfig) MarkRect(m Mark) image.Rectangle {
	cx := int(math.Round(m.Yaw / 360 * float64(c.Width)))
	cy := int(math.Round((m.Pitch + 90) / 180 * float64(c.Height)))
	half := m.Size / 2
	return image.Rect(cx-half, cy-half, cx-half+m.Size, cy-half+m.Size)
}

// GeneratePanorama renders the configured scene. Marks crossing the left or right edge
// wrap around like they would on a real 360 degree capture.
func GeneratePanorama(cfg PanoramaConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	horizon := cfg.Height / 2
	draw.Draw(img, image.Rect(0, 0, cfg.Width, horizon), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, horizon, cfg.Width, cfg.Height), &image.Uniform{cfg.Ground}, image.Point{}, draw.Src)

	for _, m := range cfg.Marks {
		r := cfg.MarkRect(m)
		src := &image.Uniform{m.Color}
		for _, dx := range []int{-cfg.Width, 0, cfg.Width} {
			draw.Draw(img, r.Add(image.Pt(dx, 0)).Intersect(img.Bounds()), src, image.Point{}, draw.Src)
		}
		if m.Label != "" {
			d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
			d.Dot = fixed.P(r.Min.X, r.Max.Y+13)
			d.DrawString(m.Label)
		}
	}
	return img
}

// CreateTestImage creates a uniform image with the given dimensions.
func CreateTestImage(width, height int, c color.Color) *image.NRGBA {
	return imaging.New(width, height, c)
}

// SaveImage writes img to path, creating parent directories. The format follows the extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save %s", path)
}

// LoadImage opens an image file written by SaveImage.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to load %s", path)
	return img
}

// CompareImages reports whether two images of equal bounds differ on average by at most
// tolerance, as a fraction of the largest possible difference.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	b := img1.Bounds()
	if b != img2.Bounds() {
		return false
	}
	if b.Empty() {
		return true
	}

	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()
			dr, dg, db, da := float64(r1)-float64(r2), float64(g1)-float64(g2), float64(b1)-float64(b2), float64(a1)-float64(a2)
			total += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
		}
	}
	avg := total / float64(b.Dx()*b.Dy())
	return avg/math.Sqrt(4*65535*65535) <= tolerance
}
