package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/lensmap/internal/baker"
	"github.com/MeKo-Tech/lensmap/internal/dispmap"
	"github.com/MeKo-Tech/lensmap/internal/version"
)

// maxBakeDimension caps server-side bakes; larger targets belong in the CLI.
const maxBakeDimension = 8192

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// bakeHandler bakes a displacement map from a JSON calibration and streams
// the encoded result back.
func (s *Server) bakeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyMB*1024*1024)

	var req BakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid bake request: %v", err), http.StatusBadRequest)
		return
	}

	opts, err := req.options()
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	m, err := baker.Bake(ctx, opts)
	if err != nil {
		bakeRequestsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Bake failed: %v", err), http.StatusInternalServerError)
		return
	}
	bakeRequestsTotal.WithLabelValues("ok").Inc()
	bakeDuration.Observe(time.Since(start).Seconds())
	bakeTexelsTotal.Add(float64(m.Width * m.Height))

	switch req.Format {
	case "", "f32":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="displacement.f32"`)
		if err := dispmap.Encode(w, m); err != nil {
			slog.Error("Failed to stream displacement map", "error", err)
		}
	case "png":
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, m.ToImage16()); err != nil {
			slog.Error("Failed to stream displacement png", "error", err)
		}
	default:
		s.writeErrorResponse(w, fmt.Sprintf("Unknown format %q", req.Format), http.StatusBadRequest)
	}
}

// options translates a request into validated bake options.
func (req BakeRequest) options() (baker.Options, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return baker.Options{}, fmt.Errorf("bake size must be positive, got %dx%d", req.Width, req.Height)
	}
	if req.Width > maxBakeDimension || req.Height > maxBakeDimension {
		return baker.Options{}, fmt.Errorf("bake size %dx%d exceeds server limit %d", req.Width, req.Height, maxBakeDimension)
	}
	if err := req.DistortedCamera.CheckValid(); err != nil {
		return baker.Options{}, fmt.Errorf("distorted camera: %w", err)
	}
	if err := req.UndistortedCamera.CheckValid(); err != nil {
		return baker.Options{}, fmt.Errorf("undistorted camera: %w", err)
	}
	return baker.Options{
		Width:             req.Width,
		Height:            req.Height,
		Model:             req.Coefficients,
		DistortedCamera:   req.DistortedCamera,
		UndistortedCamera: req.UndistortedCamera,
		GridX:             req.GridX,
		GridY:             req.GridY,
		Multiply:          req.Multiply,
		Add:               req.Add,
		ExactInverse:      req.ExactInverse,
	}, nil
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
