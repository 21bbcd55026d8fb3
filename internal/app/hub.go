package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/videochat/signaling/internal/core"
	"github.com/videochat/signaling/internal/domain"
)

// Session is the hub's view of one live connection. The adapter creates
// it on accept and hands it back on every inbound frame. Identity fields
// are bound by the first join and are mutated only under the hub's lock.
type Session struct {
	ConnID string
	conn   core.SignalConnection

	userID   domain.UserID
	roomID   domain.RoomID
	username string
	gone     bool
}

// Hub routes inbound envelopes and owns every membership transition.
// A single coarse mutex serializes transitions so "check, mutate,
// broadcast" never interleaves with another transition on the same
// room; all sends inside the critical section are non-blocking.
type Hub struct {
	Registry *Registry
	Rooms    *RoomTable
	Presence *Broadcaster
	Limiter  *JoinLimiter
	Metrics  *Metrics

	mu sync.Mutex
}

func (h *Hub) NewSession(connID string, conn core.SignalConnection) *Session {
	h.Metrics.Connections.Inc()
	return &Session{ConnID: connID, conn: conn}
}

// HandleFrame dispatches one inbound envelope. Malformed or unknown
// envelopes are logged and dropped; the connection always stays open.
func (h *Hub) HandleFrame(s *Session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("conn", s.ConnID).Msg("malformed envelope")
		return
	}
	h.Metrics.Envelopes.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case "join":
		h.handleJoin(s, data)
	case "leave":
		h.handleLeave(s)
	case "announce":
		h.handleAnnounce(s, data)
	case "signal":
		h.handleSignal(s, data)
	case "ping":
		h.handlePing(s)
	default:
		log.Warn().Str("module", "app.hub").Str("type", env.Type).Str("conn", s.ConnID).Msg("unknown envelope type")
	}
}

func (h *Hub) handleJoin(s *Session, data []byte) {
	var p struct {
		UserID   string `json:"userId"`
		RoomID   string `json:"roomId"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" || p.RoomID == "" {
		log.Warn().Err(err).Str("module", "app.hub").Str("conn", s.ConnID).Msg("bad join payload")
		return
	}
	uid := domain.UserID(p.UserID)
	rid := domain.RoomID(p.RoomID)
	username := domain.ClampUsername(p.Username)
	if username == "" {
		username = domain.DefaultUsername(uid)
	}

	if !h.Limiter.Allow(uid) {
		log.Warn().Str("module", "app.hub").Str("user", p.UserID).Msg("join rate limited")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// A connection carries one identity in one room at a time; joining
	// again under a different room or user id implicitly leaves first.
	if s.roomID != "" && (s.roomID != rid || s.userID != uid) {
		h.leaveLocked(s)
	}
	if s.userID != "" && s.userID != uid {
		h.Registry.Unregister(s.userID, s.conn)
	}

	if err := h.Registry.Register(uid, s.conn); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("user", p.UserID).Msg("join rejected")
		return
	}

	// Registering may have evicted the user's prior connection, whose
	// close will now skip cleanup as superseded. Any membership that
	// connection held in another room is released here instead.
	for _, prev := range h.Rooms.LeaveAllExcept(uid, rid) {
		log.Info().Str("module", "app.hub").Str("user", p.UserID).Str("room", string(prev.Room)).Msg("user left room")
		h.Presence.UserLeft(prev.Room, uid, prev.Username)
	}

	s.userID = uid
	s.roomID = rid
	s.username = username

	fresh := h.Rooms.Join(rid, uid, username)
	if fresh {
		log.Info().Str("module", "app.hub").Str("user", p.UserID).Str("room", p.RoomID).Str("username", username).Msg("user joined room")
		h.Presence.UserJoined(rid, uid, username)
	} else {
		log.Info().Str("module", "app.hub").Str("user", p.UserID).Str("room", p.RoomID).Msg("duplicate join, metadata refreshed")
	}
	// The roster reply goes out even on a duplicate join so client-side
	// retries converge.
	h.Presence.SendRoster(rid, uid)
	h.Metrics.Rooms.Set(float64(h.Rooms.Len()))
}

func (h *Hub) handleLeave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s)
	h.Metrics.Rooms.Set(float64(h.Rooms.Len()))
}

// leaveLocked runs the member -> absent transition. Idempotent: callers
// may race an explicit leave against a transport close.
func (h *Hub) leaveLocked(s *Session) {
	if s.roomID == "" || s.userID == "" {
		return
	}
	rid := s.roomID
	username, removed := h.Rooms.Leave(rid, s.userID)
	s.roomID = ""
	if !removed {
		return
	}
	log.Info().Str("module", "app.hub").Str("user", string(s.userID)).Str("room", string(rid)).Msg("user left room")
	h.Presence.UserLeft(rid, s.userID, username)
}

func (h *Hub) handleAnnounce(s *Session, data []byte) {
	var p struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Username == "" {
		log.Warn().Err(err).Str("module", "app.hub").Str("conn", s.ConnID).Msg("bad announce payload")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s.userID == "" {
		return
	}
	username := domain.ClampUsername(p.Username)
	s.username = username
	if s.roomID == "" {
		return
	}
	if h.Rooms.Rename(s.roomID, s.userID, username) {
		log.Info().Str("module", "app.hub").Str("user", string(s.userID)).Str("username", username).Msg("user renamed")
		h.Presence.UserUpdated(s.roomID, s.userID, username)
	}
}

func (h *Hub) handleSignal(s *Session, data []byte) {
	var p struct {
		Target string          `json:"target"`
		Signal json.RawMessage `json:"signal"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" {
		log.Warn().Err(err).Str("module", "app.hub").Str("conn", s.ConnID).Msg("bad signal payload")
		return
	}
	// A sender without an identity would forward as from:"", which the
	// target cannot answer. Require a join first.
	if s.userID == "" {
		log.Warn().Str("module", "app.hub").Str("conn", s.ConnID).Msg("signal from unbound connection")
		return
	}
	h.Presence.ForwardSignal(domain.UserID(p.Target), p.Signal, s.userID, s.username)
}

func (h *Hub) handlePing(s *Session) {
	b, err := json.Marshal(pongEnvelope{Type: "pong", Timestamp: nowMillis()})
	if err != nil {
		return
	}
	_ = s.conn.TrySend(core.Frame(b))
}

// Disconnect runs close-time cleanup for a session: unregister the
// connection and leave whatever room it was in. Safe to call more than
// once, and a no-op when a newer connection has already evicted this one
// and taken over the membership.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.gone {
		return
	}
	s.gone = true
	h.Metrics.Connections.Dec()

	if s.userID == "" {
		return
	}
	if !h.Registry.Unregister(s.userID, s.conn) {
		// Superseded: the user reconnected and the membership now
		// belongs to the new connection.
		log.Debug().Str("module", "app.hub").Str("user", string(s.userID)).Msg("stale connection closed")
		return
	}
	h.Limiter.Forget(s.userID)
	h.leaveLocked(s)
	h.Metrics.Rooms.Set(float64(h.Rooms.Len()))
}
