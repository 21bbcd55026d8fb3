package app

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/videochat/signaling/internal/core"
	"github.com/videochat/signaling/internal/domain"
)

// Broadcaster formats membership events and fans them out to room members.
// Delivery is best-effort: a member whose connection is missing or whose
// buffer is full is skipped, never an error.
type Broadcaster struct {
	rooms    *RoomTable
	registry *Registry
	metrics  *Metrics
}

func NewBroadcaster(rooms *RoomTable, registry *Registry, metrics *Metrics) *Broadcaster {
	return &Broadcaster{rooms: rooms, registry: registry, metrics: metrics}
}

// BroadcastToRoom sends v to every current member of rid except exclude.
func (b *Broadcaster) BroadcastToRoom(rid domain.RoomID, v any, exclude domain.UserID) {
	sent := 0
	for _, uid := range b.rooms.MemberIDs(rid, exclude) {
		if err := b.registry.Send(uid, v); err != nil {
			// A registry miss is expected in the window between a
			// connection closing and its leave-cleanup running.
			if errors.Is(err, core.ErrBackpressure) {
				b.metrics.DroppedSends.Inc()
			}
			log.Debug().Err(err).Str("module", "app.presence").Str("room", string(rid)).Str("user", string(uid)).Msg("skipped member")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.presence").Str("room", string(rid)).Int("sent_to", sent).Msg("broadcast")
}

func (b *Broadcaster) UserJoined(rid domain.RoomID, uid domain.UserID, username string) {
	b.BroadcastToRoom(rid, presenceEvent{
		Type:      "user_joined",
		UserID:    string(uid),
		Username:  username,
		Timestamp: nowMillis(),
	}, uid)
}

func (b *Broadcaster) UserLeft(rid domain.RoomID, uid domain.UserID, username string) {
	b.BroadcastToRoom(rid, presenceEvent{
		Type:      "user_left",
		UserID:    string(uid),
		Username:  username,
		Timestamp: nowMillis(),
	}, uid)
}

func (b *Broadcaster) UserUpdated(rid domain.RoomID, uid domain.UserID, username string) {
	b.BroadcastToRoom(rid, presenceEvent{
		Type:      "user_updated",
		UserID:    string(uid),
		Username:  username,
		Timestamp: nowMillis(),
	}, uid)
}

// SendRoster replies to uid with the current room roster, excluding uid
// itself.
func (b *Broadcaster) SendRoster(rid domain.RoomID, uid domain.UserID) {
	ids, names := b.rooms.Roster(rid, uid)
	env := rosterEnvelope{
		Type:      "room_users",
		Users:     ids,
		Usernames: names,
		Timestamp: nowMillis(),
	}
	if err := b.registry.Send(uid, env); err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Str("user", string(uid)).Msg("roster reply failed")
	}
}

// ForwardSignal relays an opaque handshake payload to target, wrapped
// with the sender's identity. The payload is never inspected. A target
// with no live connection is dropped silently.
func (b *Broadcaster) ForwardSignal(target domain.UserID, signal json.RawMessage, from domain.UserID, fromUsername string) {
	env := signalEnvelope{
		Type:         "signal",
		Signal:       signal,
		From:         string(from),
		FromUsername: fromUsername,
		Timestamp:    nowMillis(),
	}
	if err := b.registry.Send(target, env); err != nil {
		if errors.Is(err, core.ErrBackpressure) {
			b.metrics.DroppedSends.Inc()
		}
		log.Debug().Err(err).Str("module", "app.presence").Str("target", string(target)).Msg("signal dropped")
	}
}
