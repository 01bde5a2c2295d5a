package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/panoblur/internal/blur"
	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/models"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
	"github.com/MeKo-Tech/panoblur/internal/store"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// modelsHandler lists the model files under the configured models directory.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos, err := models.ListAvailableModels(s.modelsDir)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to list models: %v", err), http.StatusInternalServerError)
		return
	}
	list := make([]ModelInfo, len(infos))
	for i, info := range infos {
		list[i] = ModelInfo{Name: info.Name, Kind: info.Kind, Path: info.Path}
	}
	s.writeJSON(w, http.StatusOK, ModelsResponse{Models: list, Count: len(list)})
}

// detectHandler runs detection on an uploaded panorama and returns the detection document.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := responseFormat(r)
	if format == "" {
		s.writeErrorResponse(w, "Unsupported format, use json or yaml", http.StatusBadRequest)
		return
	}

	img, name, ok := s.parseImageRequest(w, r)
	if !ok {
		requestsTotal.WithLabelValues("detect", "error").Inc()
		return
	}

	opts, err := detectOptions(r)
	if err != nil {
		requestsTotal.WithLabelValues("detect", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	objects, doc, ok := s.runDetection(w, r, img, name, opts)
	if !ok {
		requestsTotal.WithLabelValues("detect", "error").Inc()
		return
	}
	requestsTotal.WithLabelValues("detect", "success").Inc()
	objectsPerImage.WithLabelValues("detect").Observe(float64(len(objects)))

	if format == formatYAML {
		w.Header().Set("Content-Type", "application/yaml")
		if err := store.Encode(w, doc); err != nil {
			slog.Error("Failed to encode detection document", "error", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// blurHandler detects objects and returns the panorama with every object that is not a
// false positive blurred.
func (s *Server) blurHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	opts, err := s.blurOptions(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := imaging.PNG
	contentType := "image/png"
	if f := r.URL.Query().Get("output"); f == "jpeg" || f == "jpg" {
		out, contentType = imaging.JPEG, "image/jpeg"
	}

	img, name, ok := s.parseImageRequest(w, r)
	if !ok {
		requestsTotal.WithLabelValues("blur", "error").Inc()
		return
	}

	detectOpts, err := detectOptions(r)
	if err != nil {
		requestsTotal.WithLabelValues("blur", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	objects, _, ok := s.runDetection(w, r, img, name, detectOpts)
	if !ok {
		requestsTotal.WithLabelValues("blur", "error").Inc()
		return
	}

	blurred, n, err := blur.Apply(img, objects, opts)
	if err != nil {
		requestsTotal.WithLabelValues("blur", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Blur failed: %v", err), http.StatusInternalServerError)
		return
	}
	requestsTotal.WithLabelValues("blur", "success").Inc()
	objectsPerImage.WithLabelValues("blur").Observe(float64(n))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Blurred-Regions", strconv.Itoa(n))
	if err := imaging.Encode(w, blurred, out, imaging.JPEGQuality(95)); err != nil {
		slog.Error("Failed to encode blurred image", "error", err)
	}
}

// runDetection detects under the request timeout and builds the document. Errors are written to w.
func (s *Server) runDetection(
	w http.ResponseWriter, r *http.Request, img image.Image, name string, opts pipeline.DetectOptions,
) ([]detector.DetectedObject, *store.Document, bool) {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	objects, err := s.detector.DetectWith(ctx, img, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), status)
		return nil, nil, false
	}
	return objects, s.detector.DocumentWith(name, objects, opts), true
}

// parseImageRequest reads the "image" multipart field. Errors are written to w.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, string, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, "", false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, "", false
	}
	defer func(f multipart.File) { _ = f.Close() }(file)
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, "", false
	}
	return img, header.Filename, true
}

func (s *Server) blurOptions(r *http.Request) (blur.Options, error) {
	opts := s.blur
	q := r.URL.Query()
	if a := q.Get("algorithm"); a != "" {
		opts.Algorithm = a
	}
	if v := q.Get("radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid radius: %q", v)
		}
		opts.Radius = radius
	}
	return opts, opts.Validate()
}

// detectOptions reads the min_overlap and gnomonic query overrides.
func detectOptions(r *http.Request) (pipeline.DetectOptions, error) {
	var opts pipeline.DetectOptions
	q := r.URL.Query()
	if v := q.Get("min_overlap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("invalid min_overlap: %q", v)
		}
		opts.MinOverlap = n
	}
	if v := q.Get("gnomonic"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid gnomonic: %q", v)
		}
		opts.Gnomonic = &on
	}
	return opts, nil
}

// responseFormat picks yaml or json from ?format= or the Accept header. Empty means unsupported.
func responseFormat(r *http.Request) string {
	switch f := strings.ToLower(r.URL.Query().Get("format")); f {
	case "":
	case formatJSON, formatYAML:
		return f
	case "yml":
		return formatYAML
	default:
		return ""
	}
	if strings.Contains(r.Header.Get("Accept"), "json") {
		return formatJSON
	}
	return formatYAML
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
