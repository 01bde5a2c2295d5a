package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/panoblur/internal/mempool"
)

// ImageConstraints bounds the size of images fed to a model.
type ImageConstraints struct {
	MaxWidth  int
	MaxHeight int
	MinWidth  int
	MinHeight int
}

// ResizeForModel scales img down to fit the constraints, preserving the aspect ratio
// and snapping both sides to multiples of 32. It never scales up.
func ResizeForModel(img image.Image, c ImageConstraints) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("empty image %dx%d", w, h)}
	}

	scale := math.Min(float64(c.MaxWidth)/float64(w), float64(c.MaxHeight)/float64(h))
	if scale >= 1 {
		scale = 1
	}
	nw := max((int(float64(w)*scale)/32)*32, c.MinWidth, 32)
	nh := max((int(float64(h)*scale)/32)*32, c.MinHeight, 32)

	return imaging.Resize(img, nw, nh, imaging.Lanczos), nil
}

// NormalizeImage converts img to a [3, H, W] float32 buffer scaled to [0,1], then
// applies the per-channel mean and standard deviation. The buffer comes from
// mempool and may be handed back with mempool.PutFloat32.
func NormalizeImage(img image.Image, mean, std [3]float32) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := mempool.GetFloat32(3 * plane)

	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range w {
			for c := range 3 {
				v := float32(row[x*4+c]) / 255.0
				out[c*plane+y*w+x] = (v - mean[c]) / std[c]
			}
		}
	}
	return out, w, h, nil
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.NRGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop, yBot := rect.Min.Y+t, rect.Max.Y-1-t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
		xLeft, xRight := rect.Min.X+t, rect.Max.X-1-t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}
