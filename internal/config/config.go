//nolint:lll
package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/MeKo-Tech/panoblur/internal/blur"
	"github.com/MeKo-Tech/panoblur/internal/classifier"
	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/export"
	"github.com/MeKo-Tech/panoblur/internal/models"
	"github.com/MeKo-Tech/panoblur/internal/overlay"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
)

// Config represents the complete configuration for the panoblur tools.
// It includes settings for all commands (detect, merge, export, blur, overlay, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir   string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`

	Detect     DetectConfig     `mapstructure:"detect" yaml:"detect" json:"detect"`
	Cascade    CascadeConfig    `mapstructure:"cascade" yaml:"cascade" json:"cascade"`
	TextRegion TextRegionConfig `mapstructure:"text_region" yaml:"text_region" json:"text_region"`
	Gnomonic   GnomonicConfig   `mapstructure:"gnomonic" yaml:"gnomonic" json:"gnomonic"`
	Filters    FiltersConfig    `mapstructure:"filters" yaml:"filters" json:"filters"`
	Merge      MergeConfig      `mapstructure:"merge" yaml:"merge" json:"merge"`
	Export     ExportConfig     `mapstructure:"export" yaml:"export" json:"export"`
	Blur       BlurConfig       `mapstructure:"blur" yaml:"blur" json:"blur"`
	Overlay    OverlayConfig    `mapstructure:"overlay" yaml:"overlay" json:"overlay"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectConfig selects the detection algorithm and its models.
type DetectConfig struct {
	Algorithm       string   `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`
	Models          []string `mapstructure:"models" yaml:"models" json:"models"`
	NumThreads      int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	FullInvalid     bool     `mapstructure:"full_invalid" yaml:"full_invalid" json:"full_invalid"`
	ObjectExportDir string   `mapstructure:"object_export_dir" yaml:"object_export_dir" json:"object_export_dir"`
}

// CascadeConfig tunes the pigo cascade scan.
type CascadeConfig struct {
	MinSize      int     `mapstructure:"min_size" yaml:"min_size" json:"min_size"`
	MaxSize      int     `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
	ShiftFactor  float64 `mapstructure:"shift_factor" yaml:"shift_factor" json:"shift_factor"`
	ScaleFactor  float64 `mapstructure:"scale_factor" yaml:"scale_factor" json:"scale_factor"`
	IoUThreshold float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	MinQuality   float64 `mapstructure:"min_quality" yaml:"min_quality" json:"min_quality"`
}

// TextRegionConfig tunes the ONNX text-region post-process.
type TextRegionConfig struct {
	MaxSide       int     `mapstructure:"max_side" yaml:"max_side" json:"max_side"`
	Threshold     float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	MinArea       int     `mapstructure:"min_area" yaml:"min_area" json:"min_area"`
}

// GnomonicConfig controls sphere tiling. Apertures are degrees.
type GnomonicConfig struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Width     int     `mapstructure:"width" yaml:"width" json:"width"`
	ApertureX float64 `mapstructure:"aperture_x" yaml:"aperture_x" json:"aperture_x"`
	ApertureY float64 `mapstructure:"aperture_y" yaml:"aperture_y" json:"aperture_y"`
}

// FiltersConfig bounds plausible detection shapes.
type FiltersConfig struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RatioMin  float64 `mapstructure:"ratio_min" yaml:"ratio_min" json:"ratio_min"`
	RatioMax  float64 `mapstructure:"ratio_max" yaml:"ratio_max" json:"ratio_max"`
	MaxWidth  float64 `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	MaxHeight float64 `mapstructure:"max_height" yaml:"max_height" json:"max_height"`
}

// MergeConfig controls merging of overlapping detections.
type MergeConfig struct {
	ValidObjects bool `mapstructure:"valid_objects" yaml:"valid_objects" json:"valid_objects"`
	MinOverlap   int  `mapstructure:"min_overlap" yaml:"min_overlap" json:"min_overlap"`
}

// ExportConfig controls per-object crop export.
type ExportConfig struct {
	Format        string  `mapstructure:"format" yaml:"format" json:"format"`
	JPEGQuality   int     `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	GnomonicWidth int     `mapstructure:"gnomonic_width" yaml:"gnomonic_width" json:"gnomonic_width"`
	ExtraAperture float64 `mapstructure:"extra_aperture" yaml:"extra_aperture" json:"extra_aperture"`
	Merge         bool    `mapstructure:"merge" yaml:"merge" json:"merge"`
}

// BlurConfig selects the blur kernel.
type BlurConfig struct {
	Algorithm string  `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`
	Radius    float64 `mapstructure:"radius" yaml:"radius" json:"radius"`
}

// OverlayConfig controls preview rendering.
type OverlayConfig struct {
	Thickness int `mapstructure:"thickness" yaml:"thickness" json:"thickness"`
}

// BatchConfig contains batch detection settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Rate limiting, keyed by client IP. Zero disables a limit.
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultConfig()
	filters := detector.DefaultFilterConfig()
	exp := export.DefaultOptions()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Detect: DetectConfig{
			Algorithm: pipeline.AlgorithmCascade,
		},
		Cascade: CascadeConfig{
			MinSize:      p.Cascade.MinSize,
			MaxSize:      p.Cascade.MaxSize,
			ShiftFactor:  p.Cascade.ShiftFactor,
			ScaleFactor:  p.Cascade.ScaleFactor,
			IoUThreshold: p.Cascade.IoUThreshold,
			MinQuality:   float64(p.Cascade.MinQuality),
		},
		TextRegion: TextRegionConfig{
			MaxSide:       p.TextRegion.MaxSide,
			Threshold:     float64(p.TextRegion.Threshold),
			MinConfidence: float64(p.TextRegion.MinConfidence),
			MinArea:       p.TextRegion.MinArea,
		},
		Gnomonic: GnomonicConfig{
			Width:     p.Gnomonic.Width,
			ApertureX: p.Gnomonic.ApertureX,
			ApertureY: p.Gnomonic.ApertureY,
		},
		Filters: FiltersConfig{
			Enabled:   true,
			RatioMin:  filters.RatioMin,
			RatioMax:  filters.RatioMax,
			MaxWidth:  filters.MaxWidth,
			MaxHeight: filters.MaxHeight,
		},
		Merge: MergeConfig{ValidObjects: true, MinOverlap: detector.DefaultMinOverlap},
		Export: ExportConfig{
			Format:        exp.Format,
			JPEGQuality:   exp.JPEGQuality,
			GnomonicWidth: exp.GnomonicWidth,
			ExtraAperture: 5,
			Merge:         true,
		},
		Blur:    BlurConfig{Algorithm: blur.AlgorithmGaussian},
		Overlay: OverlayConfig{Thickness: overlay.DefaultOptions().Thickness},
		Batch:   BatchConfig{Workers: 4},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     100,
			TimeoutSec:      300,
			ShutdownTimeout: 10,

			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validAlgorithms := []string{pipeline.AlgorithmCascade, pipeline.AlgorithmNone}
	if !slices.Contains(validAlgorithms, c.Detect.Algorithm) {
		return fmt.Errorf("invalid detect algorithm: %s (must be one of: %s)", c.Detect.Algorithm, strings.Join(validAlgorithms, ", "))
	}
	for _, m := range c.Detect.Models {
		if _, err := pipeline.ParseModelSpec(m); err != nil {
			return err
		}
	}

	if c.Cascade.ScaleFactor <= 1 {
		return fmt.Errorf("invalid cascade scale factor: %v (must be > 1)", c.Cascade.ScaleFactor)
	}
	if c.Cascade.MinSize <= 0 || c.Cascade.MaxSize < c.Cascade.MinSize {
		return fmt.Errorf("invalid cascade size range: [%d, %d]", c.Cascade.MinSize, c.Cascade.MaxSize)
	}
	if err := validateThreshold(c.Cascade.IoUThreshold, "cascade.iou_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.TextRegion.Threshold, "text_region.threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.TextRegion.MinConfidence, "text_region.min_confidence"); err != nil {
		return err
	}

	if c.Gnomonic.Width <= 0 {
		return fmt.Errorf("invalid gnomonic width: %d (must be positive)", c.Gnomonic.Width)
	}
	if err := validateAperture(c.Gnomonic.ApertureX, "gnomonic.aperture_x"); err != nil {
		return err
	}
	if err := validateAperture(c.Gnomonic.ApertureY, "gnomonic.aperture_y"); err != nil {
		return err
	}

	if c.Filters.RatioMin < 0 || c.Filters.RatioMax < c.Filters.RatioMin {
		return fmt.Errorf("invalid filter ratio range: [%v, %v]", c.Filters.RatioMin, c.Filters.RatioMax)
	}
	if c.Filters.MaxWidth <= 0 || c.Filters.MaxHeight <= 0 {
		return fmt.Errorf("invalid filter size limit: %vx%v (must be positive)", c.Filters.MaxWidth, c.Filters.MaxHeight)
	}
	if c.Merge.MinOverlap < 1 {
		return fmt.Errorf("invalid merge min overlap: %d (must be >= 1)", c.Merge.MinOverlap)
	}

	validFormats := []string{"png", "jpeg", "jpg", "tiff"}
	if !slices.Contains(validFormats, c.Export.Format) {
		return fmt.Errorf("invalid export format: %s (must be one of: %s)", c.Export.Format, strings.Join(validFormats, ", "))
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Export.JPEGQuality)
	}
	if err := c.BlurOptions().Validate(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 || c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDay < 0 {
		return errors.New("invalid rate limit: limits must not be negative")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	p := pipeline.DefaultConfig()
	p.Algorithm = c.Detect.Algorithm
	p.ModelsDir = c.ModelsDir
	p.Models = append([]string(nil), c.Detect.Models...)
	p.NumThreads = c.Detect.NumThreads
	p.FullInvalid = c.Detect.FullInvalid
	p.ObjectExportDir = c.Detect.ObjectExportDir
	p.Cascade = classifier.CascadeConfig{
		MinSize:      c.Cascade.MinSize,
		MaxSize:      c.Cascade.MaxSize,
		ShiftFactor:  c.Cascade.ShiftFactor,
		ScaleFactor:  c.Cascade.ScaleFactor,
		IoUThreshold: c.Cascade.IoUThreshold,
		MinQuality:   float32(c.Cascade.MinQuality),
	}
	p.TextRegion.MaxSide = c.TextRegion.MaxSide
	p.TextRegion.Threshold = float32(c.TextRegion.Threshold)
	p.TextRegion.MinConfidence = float32(c.TextRegion.MinConfidence)
	p.TextRegion.MinArea = c.TextRegion.MinArea
	p.Gnomonic = pipeline.GnomonicConfig{
		Enabled:   c.Gnomonic.Enabled,
		Width:     c.Gnomonic.Width,
		ApertureX: c.Gnomonic.ApertureX,
		ApertureY: c.Gnomonic.ApertureY,
	}
	p.Filters = pipeline.FilterConfig{
		Enabled: c.Filters.Enabled,
		FilterConfig: detector.FilterConfig{
			RatioMin:  c.Filters.RatioMin,
			RatioMax:  c.Filters.RatioMax,
			MaxWidth:  c.Filters.MaxWidth,
			MaxHeight: c.Filters.MaxHeight,
		},
	}
	p.MergeValid = c.Merge.ValidObjects
	p.MinOverlap = c.Merge.MinOverlap
	return p
}

// ExportOptions converts the export settings.
func (c *Config) ExportOptions() export.Options {
	return export.Options{
		Format:        c.Export.Format,
		JPEGQuality:   c.Export.JPEGQuality,
		GnomonicWidth: c.Export.GnomonicWidth,
		ExtraAperture: c.Export.ExtraAperture * math.Pi / 180,
	}
}

// BlurOptions converts the blur settings.
func (c *Config) BlurOptions() blur.Options {
	return blur.Options{Algorithm: c.Blur.Algorithm, Radius: c.Blur.Radius}
}

// OverlayOptions converts the overlay settings.
func (c *Config) OverlayOptions() overlay.Options {
	o := overlay.DefaultOptions()
	o.Thickness = c.Overlay.Thickness
	return o
}

// validateThreshold checks if a threshold value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

func validateAperture(deg float64, name string) error {
	if deg <= 0 || deg >= 180 {
		return fmt.Errorf("invalid %s: %v (must be between 0 and 180 degrees, exclusive)", name, deg)
	}
	return nil
}
