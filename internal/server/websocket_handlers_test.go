package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lensmap/internal/dispmap"
)

func dialBakeSocket(t *testing.T) (*websocket.Conn, func()) {
	t.Helper()
	s := newTestServer()
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	srv := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/bake"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestBakeWebSocketStreamsProgressAndResult(t *testing.T) {
	conn, cleanup := dialBakeSocket(t)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(validBakeRequest()))

	sawProgress := false
	sawCompleted := false
	for {
		mt, data, err := conn.ReadMessage()
		require.NoError(t, err)

		if mt == websocket.BinaryMessage {
			m, err := dispmap.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 16, m.Width)
			assert.Equal(t, 16, m.Height)
			break
		}

		var st WebSocketBakeStatus
		require.NoError(t, json.Unmarshal(data, &st))
		require.NotEqual(t, "error", st.Type, "unexpected error frame: %s", st.Error)
		switch st.Type {
		case "progress":
			sawProgress = true
			assert.GreaterOrEqual(t, st.Progress, 0.0)
			assert.LessOrEqual(t, st.Progress, 1.0)
		case "completed":
			sawCompleted = true
		}
	}
	assert.True(t, sawProgress, "expected at least one progress frame")
	assert.True(t, sawCompleted, "expected a completed frame before the binary payload")
}

func TestBakeWebSocketRejectsMalformedRequest(t *testing.T) {
	conn, cleanup := dialBakeSocket(t)
	defer cleanup()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var st WebSocketBakeStatus
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "error", st.Type)
	assert.NotEmpty(t, st.Error)
}

func TestBakeWebSocketRejectsInvalidCalibration(t *testing.T) {
	conn, cleanup := dialBakeSocket(t)
	defer cleanup()

	req := validBakeRequest()
	req.UndistortedCamera.Fy = 0
	require.NoError(t, conn.WriteJSON(req))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var st WebSocketBakeStatus
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "error", st.Type)
}
