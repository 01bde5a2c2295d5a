package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "panoblur"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PANOBLUR"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on top of a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation loads configuration like Load but skips validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from a specific file path. An empty path searches
// the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	config, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file is fine when searching, we fall back to defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// PANOBLUR_GNOMONIC_APERTURE_X maps to gnomonic.aperture_x
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	for key, value := range defaultSettings(DefaultConfig()) {
		l.v.SetDefault(key, value)
	}
}

func defaultSettings(d Config) map[string]interface{} {
	return map[string]interface{}{
		"models_dir":   d.ModelsDir,
		"log_level":    d.LogLevel,
		"verbose":      d.Verbose,
		"metrics_file": d.MetricsFile,

		"detect.algorithm":         d.Detect.Algorithm,
		"detect.models":            d.Detect.Models,
		"detect.num_threads":       d.Detect.NumThreads,
		"detect.full_invalid":      d.Detect.FullInvalid,
		"detect.object_export_dir": d.Detect.ObjectExportDir,

		"cascade.min_size":      d.Cascade.MinSize,
		"cascade.max_size":      d.Cascade.MaxSize,
		"cascade.shift_factor":  d.Cascade.ShiftFactor,
		"cascade.scale_factor":  d.Cascade.ScaleFactor,
		"cascade.iou_threshold": d.Cascade.IoUThreshold,
		"cascade.min_quality":   d.Cascade.MinQuality,

		"text_region.max_side":       d.TextRegion.MaxSide,
		"text_region.threshold":      d.TextRegion.Threshold,
		"text_region.min_confidence": d.TextRegion.MinConfidence,
		"text_region.min_area":       d.TextRegion.MinArea,

		"gnomonic.enabled":    d.Gnomonic.Enabled,
		"gnomonic.width":      d.Gnomonic.Width,
		"gnomonic.aperture_x": d.Gnomonic.ApertureX,
		"gnomonic.aperture_y": d.Gnomonic.ApertureY,

		"filters.enabled":    d.Filters.Enabled,
		"filters.ratio_min":  d.Filters.RatioMin,
		"filters.ratio_max":  d.Filters.RatioMax,
		"filters.max_width":  d.Filters.MaxWidth,
		"filters.max_height": d.Filters.MaxHeight,

		"merge.valid_objects": d.Merge.ValidObjects,
		"merge.min_overlap":   d.Merge.MinOverlap,

		"export.format":         d.Export.Format,
		"export.jpeg_quality":   d.Export.JPEGQuality,
		"export.gnomonic_width": d.Export.GnomonicWidth,
		"export.extra_aperture": d.Export.ExtraAperture,
		"export.merge":          d.Export.Merge,

		"blur.algorithm": d.Blur.Algorithm,
		"blur.radius":    d.Blur.Radius,

		"overlay.thickness": d.Overlay.Thickness,

		"batch.workers":           d.Batch.Workers,
		"batch.recursive":         d.Batch.Recursive,
		"batch.include":           d.Batch.Include,
		"batch.exclude":           d.Batch.Exclude,
		"batch.continue_on_error": d.Batch.ContinueOnError,

		"server.host":             d.Server.Host,
		"server.port":             d.Server.Port,
		"server.cors_origin":      d.Server.CORSOrigin,
		"server.max_upload_mb":    d.Server.MaxUploadMB,
		"server.timeout_sec":      d.Server.TimeoutSec,
		"server.shutdown_timeout": d.Server.ShutdownTimeout,

		"server.rate_limit_enabled":   d.Server.RateLimitEnabled,
		"server.requests_per_minute":  d.Server.RequestsPerMinute,
		"server.requests_per_hour":    d.Server.RequestsPerHour,
		"server.max_requests_per_day": d.Server.MaxRequestsPerDay,
		"server.max_data_per_day":     d.Server.MaxDataPerDay,
	}
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}

// PrintConfigInfo prints information about configuration loading for debugging.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
