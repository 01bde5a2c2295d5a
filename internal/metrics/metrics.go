// Package metrics holds the Prometheus collectors shared by detection runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TilesScanned counts tangent-plane tiles handed to an inner detector.
	TilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panoblur_tiles_scanned_total",
			Help: "Total number of gnomonic tiles scanned",
		},
	)

	// Detections counts leaf classifier detections per class.
	Detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panoblur_detections_total",
			Help: "Total number of leaf classifier detections",
		},
		[]string{"class"},
	)

	// MergeClusters counts clusters emitted by the merge step.
	MergeClusters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panoblur_merge_clusters_total",
			Help: "Total number of clusters emitted by merge",
		},
	)

	// DetectDuration observes whole-image detection runs.
	DetectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panoblur_detect_duration_seconds",
			Help:    "Detection duration per image in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		},
	)
)

// WriteTextfile dumps the default registry in the text exposition format, for the
// node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
