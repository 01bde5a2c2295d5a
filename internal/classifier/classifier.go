// Package classifier adapts external image classifiers into leaf object detectors.
package classifier

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/geometry"
	"github.com/MeKo-Tech/panoblur/internal/metrics"
	"github.com/MeKo-Tech/panoblur/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Classifier finds candidate rectangles in an image. Rectangles are pixel offsets
// from img.Bounds().Min.
type Classifier interface {
	Classify(img image.Image) ([]image.Rectangle, error)
	// NeedsGray reports whether Classify must be given a single-channel image.
	NeedsGray() bool
}

// Leaf turns a Classifier into an ObjectDetector that labels every rectangle with a
// fixed class name.
type Leaf struct {
	className  string
	classifier Classifier

	mu           sync.Mutex
	exportPath   string
	exportSuffix string
}

// NewLeaf wraps c. An empty class name becomes "any".
func NewLeaf(className string, c Classifier) *Leaf {
	if className == "" {
		className = "any"
	}
	return &Leaf{className: className, classifier: c}
}

// ClassName returns the label assigned to detections.
func (l *Leaf) ClassName() string { return l.className }

// Detect implements detector.ObjectDetector.
func (l *Leaf) Detect(img image.Image) ([]detector.DetectedObject, error) {
	rects, err := l.classifier.Classify(img)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", l.className, err)
	}

	objects := make([]detector.DetectedObject, 0, len(rects))
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		objects = append(objects, detector.NewObject(l.className, geometry.FromRect(r)))
	}
	metrics.Detections.WithLabelValues(l.className).Add(float64(len(objects)))

	l.mu.Lock()
	path, suffix := l.exportPath, l.exportSuffix
	l.mu.Unlock()
	if path != "" {
		l.export(img, rects, path, suffix)
	}
	return objects, nil
}

// export writes a crop of every rectangle. Failures are logged and never fail detection.
func (l *Leaf) export(img image.Image, rects []image.Rectangle, path, suffix string) {
	b := img.Bounds()
	for _, r := range rects {
		r = r.Add(b.Min).Intersect(b)
		if r.Empty() {
			continue
		}
		name := filepath.Join(path, fmt.Sprintf("%s_%s.png", uuid.NewString(), suffix))
		if err := utils.SaveImage(imaging.Crop(img, r), name, 95); err != nil {
			slog.Debug("Object export failed", "class", l.className, "path", name, "error", err)
		}
	}
}

// SupportsColor implements detector.ObjectDetector.
func (l *Leaf) SupportsColor() bool { return !l.classifier.NeedsGray() }

// SetObjectExport implements detector.ObjectDetector.
func (l *Leaf) SetObjectExport(path, suffix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exportPath, l.exportSuffix = path, suffix
}
