package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lensmap/internal/config"
	"github.com/MeKo-Tech/lensmap/internal/dispmap"
	"github.com/MeKo-Tech/lensmap/internal/lens"
)

func newTestServer() *Server {
	return NewServer(config.ServerConfig{
		CORSOrigin: "*",
		MaxBodyMB:  1,
		TimeoutSec: 30,
	})
}

func validBakeRequest() BakeRequest {
	return BakeRequest{
		Width:             16,
		Height:            16,
		Coefficients:      lens.Coefficients{K1: 0.1},
		DistortedCamera:   lens.Intrinsics{Fx: 1, Fy: 1, Cx: 0.5, Cy: 0.5},
		UndistortedCamera: lens.Intrinsics{Fx: 1, Fy: 1, Cx: 0.5, Cy: 0.5},
	}
}

func postBake(t *testing.T, s *Server, req BakeRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/bake", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.bakeHandler(w, r)
	return w
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.healthHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.healthHandler(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestBakeHandlerRawFormat(t *testing.T) {
	s := newTestServer()
	w := postBake(t, s, validBakeRequest())

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))

	m, err := dispmap.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 16, m.Width)
	assert.Equal(t, 16, m.Height)
}

func TestBakeHandlerPNGFormat(t *testing.T) {
	s := newTestServer()
	req := validBakeRequest()
	req.Format = "png"
	req.Multiply = 0.5
	req.Add = 0.5
	w := postBake(t, s, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestBakeHandlerRejectsBadJSON(t *testing.T) {
	s := newTestServer()
	r := httptest.NewRequest(http.MethodPost, "/bake", strings.NewReader("{nope"))
	w := httptest.NewRecorder()
	s.bakeHandler(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBakeHandlerRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BakeRequest)
	}{
		{"zero size", func(r *BakeRequest) { r.Width = 0 }},
		{"oversized", func(r *BakeRequest) { r.Width = maxBakeDimension + 1 }},
		{"zero focal scale", func(r *BakeRequest) { r.DistortedCamera.Fx = 0 }},
		{"unknown format", func(r *BakeRequest) { r.Format = "exr" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			req := validBakeRequest()
			tt.mutate(&req)
			w := postBake(t, s, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestBakeHandlerMethodNotAllowed(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.bakeHandler(w, httptest.NewRequest(http.MethodGet, "/bake", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSetupRoutes(t *testing.T) {
	s := newTestServer()
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = metrics.Body.Close() }()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestCORSPreflights(t *testing.T) {
	s := newTestServer()
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	r := httptest.NewRequest(http.MethodOptions, "/bake", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
