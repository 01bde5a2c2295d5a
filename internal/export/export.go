// Package export writes a crop of every detection plus a YAML descriptor.
package export

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"unicode"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/store"
	"github.com/MeKo-Tech/panoblur/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// FalsePositiveDir is the per-class sub-directory for rejected detections.
const FalsePositiveDir = "false_positives"

// Options controls the export.
type Options struct {
	// Format is png, jpeg or tiff.
	Format      string
	JPEGQuality int
	// GnomonicWidth is the reprojection window width for spherical objects.
	GnomonicWidth int
	// ExtraAperture widens the reprojection window around spherical objects, in radians.
	ExtraAperture float64
	// RunID names the descriptor and prefixes every image. Generated when empty.
	RunID string
}

// DefaultOptions returns lossless PNG export with a 1024 pixel reprojection window.
func DefaultOptions() Options {
	return Options{
		Format:        "png",
		JPEGQuality:   100,
		GnomonicWidth: 1024,
		ExtraAperture: 5 * math.Pi / 180,
	}
}

// Descriptor lists every exported object with the path of its image.
type Descriptor struct {
	Source  string         `yaml:"source,omitempty"`
	Objects []store.Record `yaml:"objects"`
}

// Result summarises an export run.
type Result struct {
	RunID          string
	DescriptorPath string
	Images         int
	Skipped        int
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeClass reduces a class name to ASCII letters, digits and '-'. Accents are
// stripped before replacement.
func SanitizeClass(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	out := []rune(stripped)
	for i, r := range out {
		if !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			out[i] = '-'
		}
	}
	return string(out)
}

type exporter struct {
	dir    string
	ext    string
	opts   Options
	src    image.Image
	result *Result
}

// Export writes every object and its children below dir and a descriptor
// dir/<run>.yaml. Objects that cover no pixels are recorded without an image.
func Export(src image.Image, source string, objects []detector.DetectedObject, dir string, opts Options) (*Result, error) {
	if src == nil {
		return nil, errors.New("nil source image")
	}
	ext, err := utils.FormatExtension(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.GnomonicWidth <= 0 {
		opts.GnomonicWidth = DefaultOptions().GnomonicWidth
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	e := &exporter{dir: dir, ext: ext, opts: opts, src: src, result: &Result{RunID: opts.RunID}}
	desc := Descriptor{Source: source, Objects: make([]store.Record, 0, len(objects))}
	for i, o := range objects {
		rec, err := e.write(o, fmt.Sprintf("%04d", i))
		if err != nil {
			return nil, err
		}
		desc.Objects = append(desc.Objects, rec)
	}

	data, err := yaml.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	e.result.DescriptorPath = filepath.Join(dir, opts.RunID+".yaml")
	if err := os.WriteFile(e.result.DescriptorPath, data, 0o644); err != nil { //nolint:gosec // G306: descriptor is shared with reviewers
		return nil, fmt.Errorf("write descriptor: %w", err)
	}

	slog.Debug("Export finished", "run", opts.RunID, "images", e.result.Images, "skipped", e.result.Skipped)
	return e.result, nil
}

// path returns where the image for obj with the given suffix is written.
func (e *exporter) path(obj detector.DetectedObject, suffix string) string {
	class := SanitizeClass(obj.ClassName)
	name := fmt.Sprintf("%s_%s_%s%s", e.opts.RunID, suffix, class, e.ext)
	if obj.IsFalsePositive() {
		return filepath.Join(e.dir, class, FalsePositiveDir, name)
	}
	return filepath.Join(e.dir, class, name)
}

func (e *exporter) write(obj detector.DetectedObject, suffix string) (store.Record, error) {
	path := e.path(obj, suffix)

	crop, err := e.crop(obj)
	switch {
	case errors.Is(err, detector.ErrEmptyRegion):
		e.result.Skipped++
		path = ""
		slog.Debug("Skipping empty object", "class", obj.ClassName, "area", obj.Area.String())
	case err != nil:
		return store.Record{}, fmt.Errorf("object %s: %w", suffix, err)
	default:
		if err := utils.SaveImage(crop, path, e.opts.JPEGQuality); err != nil {
			return store.Record{}, fmt.Errorf("object %s: %w", suffix, err)
		}
		e.result.Images++
	}

	rec := store.FromObject(detector.DetectedObject{
		ClassName:     obj.ClassName,
		Area:          obj.Area,
		FalsePositive: obj.FalsePositive,
		AutoStatus:    obj.AutoStatus,
		ManualStatus:  obj.ManualStatus,
	})
	rec.Path = path
	for i, c := range obj.Children {
		child, err := e.write(c, fmt.Sprintf("%s_%04d", suffix, i))
		if err != nil {
			return store.Record{}, err
		}
		rec.Children = append(rec.Children, child)
	}
	return rec, nil
}

// crop returns the pixels of obj: the flat region for Cartesian boxes, the tangent
// plane view for spherical ones.
func (e *exporter) crop(obj detector.DetectedObject) (image.Image, error) {
	if obj.Area.IsSpherical() {
		g, err := detector.GetGnomonicRegion(e.src, obj, e.opts.GnomonicWidth, e.opts.ExtraAperture)
		if err != nil {
			return nil, err
		}
		if g.Rect.Empty() {
			return nil, detector.ErrEmptyRegion
		}
		return imaging.Crop(g.Image, g.Rect), nil
	}

	r, err := detector.GetRegion(e.src, obj, 0)
	if err != nil {
		return nil, err
	}
	rect := r.Rect.Intersect(r.Image.Bounds().Sub(r.Image.Bounds().Min))
	if rect.Empty() {
		return nil, detector.ErrEmptyRegion
	}
	return imaging.Crop(r.Image, rect.Add(r.Image.Bounds().Min)), nil
}
