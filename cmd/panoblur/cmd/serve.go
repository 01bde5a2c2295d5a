package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
	"github.com/MeKo-Tech/panoblur/internal/server"
	"github.com/MeKo-Tech/panoblur/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP detection service",
		Long: `Start an HTTP server that runs the configured detection pipeline on uploaded
panoramas.

The server provides the following endpoints:
  POST /v1/detect  - Detect objects, returns the YAML (default) or JSON document
  POST /v1/blur    - Detect objects and return the blurred panorama
  GET  /v1/models  - List model files under the models directory
  GET  /health     - Health check endpoint
  GET  /metrics    - Prometheus metrics

Examples:
  panoblur serve -m face:facefinder
  panoblur serve --port 8080 --gnomonic
  panoblur serve --host 0.0.0.0 --rate-limit-enabled`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", d.Server.Host, "server host")
	f.IntP("port", "p", d.Server.Port, "server port")
	f.String("cors-origin", d.Server.CORSOrigin, "CORS allowed origins")
	f.Int("max-upload-size", d.Server.MaxUploadMB, "maximum upload size in MB")
	f.Int("timeout", d.Server.TimeoutSec, "request timeout in seconds")
	f.Int("shutdown-timeout", d.Server.ShutdownTimeout, "shutdown timeout in seconds")
	f.StringArrayP("model", "m", nil, "model spec class:file[:parent][:min:max] (repeatable)")
	f.Bool("gnomonic", d.Gnomonic.Enabled, "detect on gnomonic tiles by default")
	f.Int("min-overlap", d.Merge.MinOverlap, "default minimum number of overlapping detections")
	f.Bool("rate-limit-enabled", d.Server.RateLimitEnabled, "enable rate limiting")
	f.Int("requests-per-minute", d.Server.RequestsPerMinute, "maximum requests per minute per client")
	f.Int("requests-per-hour", d.Server.RequestsPerHour, "maximum requests per hour per client")
	f.Int("max-requests-per-day", d.Server.MaxRequestsPerDay, "maximum requests per day per client (0 = unlimited)")
	f.Int64("max-data-per-day", d.Server.MaxDataPerDay, "maximum uploaded bytes per day per client (0 = unlimited)")

	bindFlag(cmd, "host", "server.host")
	bindFlag(cmd, "port", "server.port")
	bindFlag(cmd, "cors-origin", "server.cors_origin")
	bindFlag(cmd, "max-upload-size", "server.max_upload_mb")
	bindFlag(cmd, "timeout", "server.timeout_sec")
	bindFlag(cmd, "shutdown-timeout", "server.shutdown_timeout")
	bindFlag(cmd, "model", "detect.models")
	bindFlag(cmd, "gnomonic", "gnomonic.enabled")
	bindFlag(cmd, "min-overlap", "merge.min_overlap")
	bindFlag(cmd, "rate-limit-enabled", "server.rate_limit_enabled")
	bindFlag(cmd, "requests-per-minute", "server.requests_per_minute")
	bindFlag(cmd, "requests-per-hour", "server.requests_per_hour")
	bindFlag(cmd, "max-requests-per-day", "server.max_requests_per_day")
	bindFlag(cmd, "max-data-per-day", "server.max_data_per_day")
	return cmd
}

// serverConfig maps the configuration onto the HTTP layer.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		ModelsDir:   cfg.ModelsDir,
		Blur:        cfg.BlurOptions(),
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimitEnabled,
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			RequestsPerHour:   cfg.Server.RequestsPerHour,
			MaxRequestsPerDay: cfg.Server.MaxRequestsPerDay,
			MaxDataPerDay:     cfg.Server.MaxDataPerDay,
		},
		Version: version.Version,
	}
}

func (a *app) runServe(cmd *cobra.Command) error {
	cfg := a.cfg
	p, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to initialize detection pipeline: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("Pipeline cleanup error", "error", err)
		}
	}()

	mux := http.NewServeMux()
	server.NewServer(p, serverConfig(cfg)).SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting detection server", "host", cfg.Server.Host, "port", cfg.Server.Port,
			"models", len(cfg.Detect.Models), "gnomonic", cfg.Gnomonic.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx := cmd.Context()
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
