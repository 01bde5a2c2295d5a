package detector

import (
	"errors"
	"image"
	"math"

	"github.com/MeKo-Tech/panoblur/internal/gnomonic"
	"github.com/disintegration/imaging"
)

// Region is the pixel content behind a detection.
//
// Image is either a sub-image of the source or, for boxes wrapping the seam or a pole,
// a composite stitched from up to four source rectangles. Offset is the source
// coordinate of Image's top-left pixel and Rect locates the box itself inside Image
// (Image may carry an extra border around it).
type Region struct {
	Image  image.Image
	Offset image.Point
	Rect   image.Rectangle
}

// ErrEmptyRegion is returned when a box covers no pixels of the source.
var ErrEmptyRegion = errors.New("empty region")

type span struct{ lo, hi int }

func (s span) size() int { return s.hi - s.lo }

// GetRegion extracts the pixels covered by obj from src, grown by up to border pixels on
// each side. Borders are clamped to the source bounds.
func GetRegion(src image.Image, obj DetectedObject, border int) (Region, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	rects := obj.Area.Rects(w, h)
	if len(rects) == 0 {
		return Region{}, ErrEmptyRegion
	}

	first, last := rects[0], rects[len(rects)-1]

	bl := min(border, first.Min.X)
	bt := min(border, first.Min.Y)
	br := min(border, w-last.Max.X)
	bb := min(border, h-last.Max.Y)

	var cols, rows []span
	if obj.Area.WrapsX() && len(rects) > 1 {
		cols = []span{{first.Min.X - bl, w}, {0, rects[1].Max.X + br}}
	} else {
		cols = []span{{first.Min.X - bl, first.Max.X + br}}
	}
	if obj.Area.WrapsY() && len(rects) > 1 {
		rows = []span{{first.Min.Y - bt, h}, {0, last.Max.Y + bb}}
	} else {
		rows = []span{{first.Min.Y - bt, first.Max.Y + bb}}
	}

	totalW, totalH := 0, 0
	for _, c := range cols {
		totalW += c.size()
	}
	for _, r := range rows {
		totalH += r.size()
	}
	if totalW <= 0 || totalH <= 0 {
		return Region{}, ErrEmptyRegion
	}

	region := Region{
		Offset: image.Pt(cols[0].lo, rows[0].lo),
		Rect:   image.Rect(bl, bt, totalW-br, totalH-bb),
	}

	if len(cols) == 1 && len(rows) == 1 {
		r := image.Rect(cols[0].lo, rows[0].lo, cols[0].hi, rows[0].hi).Add(b.Min)
		region.Image = subImage(src, r)
		return region, nil
	}

	dst := imaging.New(totalW, totalH, image.Transparent)
	y := 0
	for _, r := range rows {
		x := 0
		for _, c := range cols {
			if c.size() > 0 && r.size() > 0 {
				piece := imaging.Crop(src, image.Rect(c.lo, r.lo, c.hi, r.hi).Add(b.Min))
				dst = imaging.Paste(dst, piece, image.Pt(x, y))
			}
			x += c.size()
		}
		y += r.size()
	}
	region.Image = dst
	return region, nil
}

// subImage returns a view of src when the type allows it, a copy otherwise.
func subImage(src image.Image, r image.Rectangle) image.Image {
	if s, ok := src.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	return imaging.Crop(src, r)
}

// GnomonicRegion is a detection reprojected onto a tangent plane centred on it.
type GnomonicRegion struct {
	Image     image.Image
	Transform *gnomonic.Transform
	// Rect is the box in tile pixels; it is empty when a corner could not be projected.
	Rect image.Rectangle
}

// GetGnomonicRegion reprojects a spherical detection into a window of the given width
// whose apertures cover the box plus extraAperture radians. The window aspect never
// drops below 1:2 in either direction.
func GetGnomonicRegion(src image.Image, obj DetectedObject, width int, extraAperture float64) (GnomonicRegion, error) {
	area := obj.Area
	if !area.IsSpherical() {
		return GnomonicRegion{}, errors.New("gnomonic region requires a spherical box")
	}
	bw, bh := area.Width(), area.Height()
	if bw <= 0 || bh <= 0 {
		return GnomonicRegion{}, ErrEmptyRegion
	}

	cx := math.Mod(area.P1.X+bw/2, 2*math.Pi)
	cy := area.P1.Y + bh/2
	if cy > math.Pi/2 {
		cy -= math.Pi
	}

	var ax, ay float64
	if bw > bh {
		ax = bw + extraAperture
		ay = max(ax*bh/bw, ax/2)
	} else {
		ay = bh + extraAperture
		ax = max(ay*bw/bh, ay/2)
	}
	// apertures of π or more have no gnomonic image
	limit := math.Pi - 1e-3
	if ax > limit || ay > limit {
		scale := limit / max(ax, ay)
		ax *= scale
		ay *= scale
	}

	height := int(float64(width) * ay / ax)
	t, err := gnomonic.New(width, height, ax, ay, cx, cy)
	if err != nil {
		return GnomonicRegion{}, err
	}

	out := GnomonicRegion{Image: t.Resample(src), Transform: t}
	if r, ok := t.ToGnomonicRect(area); ok {
		out.Rect = r.Canon().Intersect(out.Image.Bounds())
	}
	return out, nil
}
