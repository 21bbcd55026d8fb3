package app

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/videochat/signaling/internal/core"
)

type mockConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrConnClosed
	}
	if m.full {
		return core.ErrBackpressure
	}
	cp := make(core.Frame, len(f))
	copy(cp, f)
	m.frames = append(m.frames, cp)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// envelopes decodes every received frame into a generic map.
func (m *mockConn) envelopes(t *testing.T) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.frames))
	for _, f := range m.frames {
		var v map[string]any
		require.NoError(t, json.Unmarshal(f, &v))
		out = append(out, v)
	}
	return out
}

func (m *mockConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, env := range m.envelopes(t) {
		if env["type"] == typ {
			out = append(out, env)
		}
	}
	return out
}

const domainTestWindow = time.Minute

func newTestHub() *Hub {
	metrics := NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry(true)
	rooms := NewRoomTable()
	return &Hub{
		Registry: registry,
		Rooms:    rooms,
		Presence: NewBroadcaster(rooms, registry, metrics),
		Limiter:  NewJoinLimiter(100, time.Minute),
		Metrics:  metrics,
	}
}

func join(h *Hub, s *Session, userID, roomID, username string) {
	env := map[string]string{"type": "join", "userId": userID, "roomId": roomID}
	if username != "" {
		env["username"] = username
	}
	b, _ := json.Marshal(env)
	h.HandleFrame(s, b)
}
