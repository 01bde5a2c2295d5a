// Package evaluate scores detections against a hand-drawn reference mask, where
// white pixels mark the areas that should have been detected.
package evaluate

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/panoblur/internal/detector"
)

// maskThreshold separates object (white) from background (black) mask pixels.
const maskThreshold = 128

// Report holds pixel counts and error rates of one evaluation.
type Report struct {
	Width          int `json:"width"           yaml:"width"`
	Height         int `json:"height"          yaml:"height"`
	PositivePixels int `json:"positive_pixels" yaml:"positive_pixels"`
	DetectedPixels int `json:"detected_pixels" yaml:"detected_pixels"`
	FalsePositives int `json:"false_positives" yaml:"false_positives"`
	FalseNegatives int `json:"false_negatives" yaml:"false_negatives"`
	// FalsePositiveRate is the share of background pixels covered by a detection.
	FalsePositiveRate float64 `json:"false_positive_rate" yaml:"false_positive_rate"`
	// FalseNegativeRate is the share of object pixels no detection covers.
	FalseNegativeRate float64 `json:"false_negative_rate" yaml:"false_negative_rate"`
}

func (r Report) String() string {
	return fmt.Sprintf("falsePositivesRatio: %.03f %%\nfalseNegativesRatio: %.03f %%\n",
		r.FalsePositiveRate*100, r.FalseNegativeRate*100)
}

// Coverage rasterises the pixel rectangles of every object into a w*h row-major grid.
func Coverage(objects []detector.DetectedObject, w, h int) []bool {
	covered := make([]bool, w*h)
	for _, o := range objects {
		for _, r := range o.Area.Rects(w, h) {
			r = r.Intersect(image.Rect(0, 0, w, h))
			for y := r.Min.Y; y < r.Max.Y; y++ {
				row := covered[y*w : (y+1)*w]
				for x := r.Min.X; x < r.Max.X; x++ {
					row[x] = true
				}
			}
		}
	}
	return covered
}

// binarize converts mask to a w*h grid of object pixels.
func binarize(mask image.Image) ([]bool, int, int) {
	gray := imaging.Grayscale(mask)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	out := make([]bool, w*h)
	for i := range out {
		out[i] = gray.Pix[i*4] >= maskThreshold
	}
	return out, w, h
}

// Evaluate compares the area covered by objects with mask. Rates with an empty
// denominator are reported as zero.
func Evaluate(objects []detector.DetectedObject, mask image.Image) (*Report, error) {
	if mask == nil {
		return nil, errors.New("nil mask image")
	}
	want, w, h := binarize(mask)
	if w == 0 || h == 0 {
		return nil, errors.New("empty mask image")
	}
	got := Coverage(objects, w, h)

	r := &Report{Width: w, Height: h}
	for i := range want {
		if want[i] {
			r.PositivePixels++
		}
		if got[i] {
			r.DetectedPixels++
		}
		switch {
		case got[i] && !want[i]:
			r.FalsePositives++
		case want[i] && !got[i]:
			r.FalseNegatives++
		}
	}
	if neg := w*h - r.PositivePixels; neg > 0 {
		r.FalsePositiveRate = float64(r.FalsePositives) / float64(neg)
	}
	if r.PositivePixels > 0 {
		r.FalseNegativeRate = float64(r.FalseNegatives) / float64(r.PositivePixels)
	}
	return r, nil
}

var (
	correctColor       = color.NRGBA{G: 255, A: 255}
	falsePositiveColor = color.NRGBA{R: 255, A: 255}
	falseNegativeColor = color.NRGBA{B: 255, A: 255}
)

// Preview darkens src by half and adds green where detections match the mask, red
// for false positives and blue for false negatives. src and mask must have the same size.
func Preview(src image.Image, objects []detector.DetectedObject, mask image.Image) (*image.NRGBA, error) {
	if src == nil || mask == nil {
		return nil, errors.New("nil image")
	}
	want, w, h := binarize(mask)
	if b := src.Bounds(); b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("source %dx%d does not match mask %dx%d", b.Dx(), b.Dy(), w, h)
	}
	got := Coverage(objects, w, h)

	dst := imaging.Clone(src)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			var c color.NRGBA
			switch {
			case got[i] && want[i]:
				c = correctColor
			case got[i]:
				c = falsePositiveColor
			case want[i]:
				c = falseNegativeColor
			}
			p := dst.Pix[y*dst.Stride+x*4 : y*dst.Stride+x*4+3]
			p[0] = saturate(p[0]/2, c.R)
			p[1] = saturate(p[1]/2, c.G)
			p[2] = saturate(p[2]/2, c.B)
		}
	}
	return dst, nil
}

func saturate(a, b uint8) uint8 {
	if s := int(a) + int(b); s < 255 {
		return uint8(s)
	}
	return 255
}
