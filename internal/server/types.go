package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/lensmap/internal/config"
	"github.com/MeKo-Tech/lensmap/internal/lens"
)

// Server holds the HTTP bake service state.
type Server struct {
	corsOrigin string
	maxBodyMB  int64
	timeoutSec int
}

// NewServer creates a bake server from the server section of the config.
func NewServer(cfg config.ServerConfig) *Server {
	return &Server{
		corsOrigin: cfg.CORSOrigin,
		maxBodyMB:  cfg.MaxBodyMB,
		timeoutSec: cfg.TimeoutSec,
	}
}

// BakeRequest is the JSON body of POST /bake and of websocket bake messages.
// Camera and coefficient fields reuse the calibration-file schema.
type BakeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	Coefficients      lens.Coefficients `json:"coefficients"`
	DistortedCamera   lens.Intrinsics   `json:"distorted_camera"`
	UndistortedCamera lens.Intrinsics   `json:"undistorted_camera"`

	GridX int `json:"grid_x,omitempty"`
	GridY int `json:"grid_y,omitempty"`

	Multiply float64 `json:"multiply,omitempty"`
	Add      float64 `json:"add,omitempty"`

	ExactInverse bool `json:"exact_inverse,omitempty"`

	// Format selects the response encoding: "f32" (default) or "png".
	Format string `json:"format,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the uniform JSON error body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/bake", s.corsMiddleware(s.bakeHandler))
	mux.HandleFunc("/ws/bake", s.bakeWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
