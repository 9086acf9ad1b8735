package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/quipkit/quipkit/internal/core/engine"
	apperrors "github.com/quipkit/quipkit/internal/errors"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.healthHandler)
	s.router.Get("/version", s.versionHandler)
	s.router.Get("/ratelimit", s.rateLimitHandler)

	if s.opts.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}
	if s.opts.Progress != nil {
		s.router.Get("/export", s.exportHandler)
	}
}

// HealthResponse reports whether requests can currently proceed.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.opts.Coordinator.IsExhausted() {
		status = "degraded"
	}

	writeJSON(w, HealthResponse{
		Status:    status,
		Version:   s.opts.Version.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// VersionResponse represents the version information response
type VersionResponse struct {
	App          VersionInfo `json:"app"`
	GoVersion    string      `json:"go_version"`
	Gofulmen     string      `json:"gofulmen"`
	Platform     string      `json:"platform"`
	NumGoroutine int         `json:"num_goroutines"`
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, VersionResponse{
		App:          s.opts.Version,
		GoVersion:    runtime.Version(),
		Gofulmen:     crucible.GetVersion().Gofulmen,
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
	})
}

// RateLimitResponse is the coordinator state of every window.
type RateLimitResponse struct {
	Exhausted bool                  `json:"exhausted"`
	Delay     string                `json:"required_delay"`
	Windows   []engine.WindowStatus `json:"windows"`
}

func (s *Server) rateLimitHandler(w http.ResponseWriter, r *http.Request) {
	coordinator := s.opts.Coordinator
	if coordinator == nil {
		HandleError(w, r, apperrors.NewNotFoundError("no rate limit coordinator attached"))
		return
	}

	writeJSON(w, RateLimitResponse{
		Exhausted: coordinator.IsExhausted(),
		Delay:     coordinator.RequiredDelay().String(),
		Windows:   coordinator.Status(),
	})
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.opts.Progress())
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
