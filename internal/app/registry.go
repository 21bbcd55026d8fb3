package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/videochat/signaling/internal/core"
	"github.com/videochat/signaling/internal/domain"
)

// Registry maps a client's user id to its live signaling connection.
// It owns nothing beyond that mapping; rooms reference users by id only.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]core.SignalConnection

	// evict selects the duplicate-registration policy: when true the
	// prior connection is closed and replaced (last writer wins),
	// when false the new registration is rejected.
	evict bool
}

func NewRegistry(evictDuplicates bool) *Registry {
	return &Registry{
		conns: make(map[domain.UserID]core.SignalConnection),
		evict: evictDuplicates,
	}
}

// Register binds uid to conn. Re-registering the same connection is a no-op.
func (r *Registry) Register(uid domain.UserID, conn core.SignalConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[uid]; ok && old != conn {
		if !r.evict {
			return core.ErrDuplicateClient
		}
		old.Close()
		log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("evicted prior connection")
	}
	r.conns[uid] = conn
	return nil
}

func (r *Registry) Lookup(uid domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[uid]
	return c, ok
}

// Unregister removes uid only if conn is still the registered connection,
// so an evicted connection's close cannot unbind its replacement.
// It reports whether the entry was removed; safe to call repeatedly.
func (r *Registry) Unregister(uid domain.UserID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[uid]; !ok || cur != conn {
		return false
	}
	delete(r.conns, uid)
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("unregistered")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send serializes v and hands it to the target's connection without blocking.
func (r *Registry) Send(uid domain.UserID, v any) error {
	conn, ok := r.Lookup(uid)
	if !ok {
		return core.ErrConnClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("marshal envelope")
		return err
	}
	return conn.TrySend(core.Frame(b))
}
