package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videochat/signaling/internal/app"
	"github.com/videochat/signaling/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Mode:            "release",
		ReadLimit:       32768,
		SendBuffer:      8,
		PingPeriod:      time.Minute,
		Secret:          "test-secret",
		EvictDuplicates: true,
	}
	metrics := app.NewMetrics(prometheus.NewRegistry())
	registry := app.NewRegistry(cfg.EvictDuplicates)
	rooms := app.NewRoomTable()
	hub := &app.Hub{
		Registry: registry,
		Rooms:    rooms,
		Presence: app.NewBroadcaster(rooms, registry, metrics),
		Limiter:  app.NewJoinLimiter(100, time.Minute),
		Metrics:  metrics,
	}
	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, hub))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var v map[string]any
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestSignalingRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	alice := dial(t, srv)
	require.NoError(t, alice.WriteJSON(map[string]string{
		"type": "join", "userId": "1", "roomId": "r1", "username": "alice",
	}))
	env := readEnvelope(t, alice)
	assert.Equal(t, "room_users", env["type"])
	assert.Empty(t, env["users"])

	bob := dial(t, srv)
	require.NoError(t, bob.WriteJSON(map[string]string{
		"type": "join", "userId": "2", "roomId": "r1", "username": "bob",
	}))
	env = readEnvelope(t, bob)
	assert.Equal(t, "room_users", env["type"])
	assert.Equal(t, []any{"1"}, env["users"])

	env = readEnvelope(t, alice)
	assert.Equal(t, "user_joined", env["type"])
	assert.Equal(t, "2", env["userId"])

	// Opaque signal relay from alice to bob.
	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "signal", "target": "2",
		"signal": map[string]string{"sdp": "v=0"},
	}))
	env = readEnvelope(t, bob)
	assert.Equal(t, "signal", env["type"])
	assert.Equal(t, "1", env["from"])
	assert.Equal(t, map[string]any{"sdp": "v=0"}, env["signal"])

	// Abrupt disconnect of bob surfaces as user_left for alice.
	bob.Close()
	env = readEnvelope(t, alice)
	assert.Equal(t, "user_left", env["type"])
	assert.Equal(t, "2", env["userId"])
}

func TestHealthAndRoomsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	alice := dial(t, srv)
	require.NoError(t, alice.WriteJSON(map[string]string{
		"type": "join", "userId": "1", "roomId": "r1",
	}))
	readEnvelope(t, alice)

	resp, err = http.Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Rooms   []app.RoomInfo `json:"rooms"`
		Clients int            `json:"clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Rooms, 1)
	assert.Equal(t, 1, body.Rooms[0].MemberCount)
	assert.Equal(t, 1, body.Clients)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
