package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers, answers preflight requests and records request metrics.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next(rw, r)
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rw.statusCode, "duration", duration)
	}
}

// rateLimitMiddleware enforces per-client rate limits and quotas when configured.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}

		dataSize := max(r.ContentLength, 0)
		if err := s.rateLimiter.CheckRateLimit(getClientIP(r), dataSize); err != nil {
			s.handleRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

// handleRateLimitError writes a 429 describing the exceeded limit.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var rateErr *RateLimitError
	var quotaErr *QuotaExceededError

	body := map[string]interface{}{"success": false, "error": err.Error()}
	status := http.StatusTooManyRequests

	switch {
	case errors.As(err, &rateErr):
		rateLimitHits.WithLabelValues(rateErr.Window).Inc()
		w.Header().Set("X-RateLimit-Type", rateErr.Window)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rateErr.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rateErr.RetryAfter.Seconds()))
		body["retry_after"] = rateErr.RetryAfter.Seconds()
	case errors.As(err, &quotaErr):
		rateLimitHits.WithLabelValues(quotaErr.Quota).Inc()
		w.Header().Set("X-Quota-Type", quotaErr.Quota)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(quotaErr.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(quotaErr.Used, 10))
		w.Header().Set("X-Quota-Resets", quotaErr.Resets.UTC().Format(http.TimeFormat))
		body["resets"] = quotaErr.Resets.Format(time.RFC3339)
	default:
		status = http.StatusInternalServerError
		body["error"] = "rate limiting check failed"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}
}

// getClientIP extracts the client IP address, honouring proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
