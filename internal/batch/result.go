package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// ItemResult is the outcome for one image.
type ItemResult struct {
	Path       string        `json:"file" yaml:"file"`
	OutputPath string        `json:"output,omitempty" yaml:"output,omitempty"`
	Objects    int           `json:"objects" yaml:"objects"`
	Invalid    int           `json:"invalid" yaml:"invalid"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Err        error         `json:"-" yaml:"-"`
}

// Result holds the result of batch processing.
type Result struct {
	Items       []ItemResult
	Duration    time.Duration
	WorkerCount int
}

// Stats summarises a batch run.
type Stats struct {
	TotalImages      int           `json:"total_images" yaml:"total_images"`
	ProcessedImages  int           `json:"processed_images" yaml:"processed_images"`
	FailedImages     int           `json:"failed_images" yaml:"failed_images"`
	TotalObjects     int           `json:"total_objects" yaml:"total_objects"`
	WorkerCount      int           `json:"worker_count" yaml:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns" yaml:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns" yaml:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec" yaml:"throughput_per_sec"`
}

// Stats calculates performance statistics. Items that never ran count as failed.
func (r *Result) Stats() Stats {
	s := Stats{TotalImages: len(r.Items), WorkerCount: r.WorkerCount, TotalDuration: r.Duration}
	for _, it := range r.Items {
		if it.Path == "" || it.Err != nil {
			s.FailedImages++
			continue
		}
		s.ProcessedImages++
		s.TotalObjects += it.Objects
	}
	if s.ProcessedImages > 0 && r.Duration > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.ProcessedImages)
		s.ThroughputPerSec = float64(s.ProcessedImages) / r.Duration.Seconds()
	}
	return s
}

// Failures returns the items that did not complete.
func (r *Result) Failures() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

type report struct {
	Images []reportItem `json:"images" yaml:"images"`
	Stats  Stats        `json:"stats" yaml:"stats"`
}

type reportItem struct {
	ItemResult `yaml:",inline"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FormatResults renders the per-image summary as text, json or yaml.
func (r *Result) FormatResults(format string) (string, error) {
	rep := report{Stats: r.Stats(), Images: make([]reportItem, 0, len(r.Items))}
	for _, it := range r.Items {
		ri := reportItem{ItemResult: it}
		if it.Err != nil {
			ri.Error = it.Err.Error()
		}
		rep.Images = append(rep.Images, ri)
	}

	switch format {
	case "json":
		b, err := json.MarshalIndent(rep, "", "  ")
		return string(b), err
	case "yaml":
		b, err := yaml.Marshal(rep)
		return string(b), err
	case "text", "":
		var sb strings.Builder
		tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "FILE\tOBJECTS\tINVALID\tOUTPUT\tERROR")
		for _, ri := range rep.Images {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", ri.Path, ri.Objects, ri.Invalid, ri.OutputPath, ri.Error)
		}
		if err := tw.Flush(); err != nil {
			return "", err
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", s.TotalImages)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", s.ProcessedImages)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.FailedImages)
	_, _ = fmt.Fprintf(w, "  Objects: %d\n", s.TotalObjects)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", s.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", s.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", s.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", s.ThroughputPerSec)
}
