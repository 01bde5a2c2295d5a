package gnomonic

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Resample renders the tile seen through t from an equirectangular source image using
// bilinear interpolation. Single-channel sources produce *image.Gray tiles, everything
// else produces *image.NRGBA. Azimuth wraps horizontally; elevation clamps at the poles.
func (t *Transform) Resample(src image.Image) image.Image {
	if gray, ok := src.(*image.Gray); ok {
		dst := image.NewGray(image.Rect(0, 0, t.width, t.height))
		t.resample(gray.Bounds(), func(dx, dy int, sx, sy float64) {
			dst.Pix[dy*dst.Stride+dx] = sampleGray(gray, sx, sy)
		})
		return dst
	}

	nrgba, ok := src.(*image.NRGBA)
	if !ok {
		nrgba = imaging.Clone(src)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, t.width, t.height))
	t.resample(nrgba.Bounds(), func(dx, dy int, sx, sy float64) {
		off := dy*dst.Stride + dx*4
		sampleNRGBA(nrgba, sx, sy, dst.Pix[off:off+4])
	})
	return dst
}

// resample walks every tile pixel and hands its source coordinate to set.
func (t *Transform) resample(sb image.Rectangle, set func(dx, dy int, sx, sy float64)) {
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	for dy := range t.height {
		for dx := range t.width {
			phi, theta, ok := t.ToEqr(float64(dx), float64(dy))
			if !ok {
				continue
			}
			sx := phi/(2*math.Pi)*sw - 0.5
			sy := (theta+math.Pi/2)/math.Pi*sh - 0.5
			set(dx, dy, sx, sy)
		}
	}
}

// neighbours returns the two sample columns/rows around v and the interpolation weight.
func neighbours(v float64, n int, wrap bool) (int, int, float64) {
	f := math.Floor(v)
	i0 := int(f)
	i1 := i0 + 1
	w := v - f
	if wrap {
		i0 = ((i0 % n) + n) % n
		i1 = ((i1 % n) + n) % n
		return i0, i1, w
	}
	if i0 < 0 {
		i0, i1, w = 0, 0, 0
	}
	if i1 >= n {
		i1 = n - 1
		if i0 >= n {
			i0 = n - 1
		}
	}
	return i0, i1, w
}

func sampleGray(src *image.Gray, x, y float64) uint8 {
	b := src.Bounds()
	x0, x1, fx := neighbours(x, b.Dx(), true)
	y0, y1, fy := neighbours(y, b.Dy(), false)
	at := func(px, py int) float64 {
		return float64(src.Pix[py*src.Stride+px])
	}
	top := at(x0, y0)*(1-fx) + at(x1, y0)*fx
	bottom := at(x0, y1)*(1-fx) + at(x1, y1)*fx
	return uint8(math.Round(top*(1-fy) + bottom*fy))
}

func sampleNRGBA(src *image.NRGBA, x, y float64, out []uint8) {
	b := src.Bounds()
	x0, x1, fx := neighbours(x, b.Dx(), true)
	y0, y1, fy := neighbours(y, b.Dy(), false)
	o00 := y0*src.Stride + x0*4
	o10 := y0*src.Stride + x1*4
	o01 := y1*src.Stride + x0*4
	o11 := y1*src.Stride + x1*4
	for c := range 4 {
		top := float64(src.Pix[o00+c])*(1-fx) + float64(src.Pix[o10+c])*fx
		bottom := float64(src.Pix[o01+c])*(1-fx) + float64(src.Pix[o11+c])*fx
		out[c] = uint8(math.Round(top*(1-fy) + bottom*fy))
	}
}
