// Package server exposes the detection pipeline over HTTP.
package server

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/panoblur/internal/blur"
	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
	"github.com/MeKo-Tech/panoblur/internal/store"
)

// Detector is the part of the detection pipeline the server needs.
type Detector interface {
	DetectWith(ctx context.Context, img image.Image, opts pipeline.DetectOptions) ([]detector.DetectedObject, error)
	DocumentWith(source string, objects []detector.DetectedObject, opts pipeline.DetectOptions) *store.Document
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector    Detector
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	modelsDir   string
	blur        blur.Options
	rateLimiter *RateLimiter
	version     string
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// ModelsDir is listed by /v1/models.
	ModelsDir string
	// Blur is the default for /v1/blur, overridable per request.
	Blur      blur.Options
	RateLimit RateLimitConfig
	Version   string
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ModelInfo describes one model file found under the models directory.
type ModelInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// ModelsResponse is returned by /v1/models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a server around an already built detector. The caller keeps
// ownership of det and closes it.
func NewServer(det Detector, config Config) *Server {
	s := &Server{
		detector:    det,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
		modelsDir:   config.ModelsDir,
		blur:        config.Blur,
		version:     config.Version,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 100
	}
	if s.blur.Algorithm == "" {
		s.blur = blur.DefaultOptions()
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/v1/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/v1/blur", s.corsMiddleware(s.rateLimitMiddleware(s.blurHandler)))
}
