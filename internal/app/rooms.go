package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/videochat/signaling/internal/domain"
)

// RoomTable owns every room and membership record. A room exists iff it
// has at least one member: created on first join, dropped on last leave.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
}

type room struct {
	members map[domain.UserID]*domain.Membership
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[domain.RoomID]*room)}
}

// Join moves the (room, user) pair to member state. A second join for a
// pair already in member state refreshes the username in place; fresh
// reports whether a new membership was actually created.
func (t *RoomTable) Join(rid domain.RoomID, uid domain.UserID, username string) (fresh bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rooms[rid]
	if !ok {
		r = &room{members: make(map[domain.UserID]*domain.Membership)}
		t.rooms[rid] = r
		log.Info().Str("module", "app.rooms").Str("room", string(rid)).Msg("room created")
	}
	if m, ok := r.members[uid]; ok {
		m.Username = username
		return false
	}
	r.members[uid] = &domain.Membership{
		UserID:   uid,
		Username: username,
		JoinedAt: time.Now(),
	}
	return true
}

// Leave moves the pair back to absent state. Idempotent: leaving while
// absent reports removed=false and changes nothing. The room is dropped
// the moment its last member leaves.
func (t *RoomTable) Leave(rid domain.RoomID, uid domain.UserID) (username string, removed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rooms[rid]
	if !ok {
		return "", false
	}
	m, ok := r.members[uid]
	if !ok {
		return "", false
	}
	delete(r.members, uid)
	if len(r.members) == 0 {
		delete(t.rooms, rid)
		log.Info().Str("module", "app.rooms").Str("room", string(rid)).Msg("room empty, removed")
	}
	return m.Username, true
}

// PriorMembership identifies a room a user was removed from.
type PriorMembership struct {
	Room     domain.RoomID
	Username string
}

// LeaveAllExcept removes uid from every room other than keep and reports
// the rooms it was removed from. Rooms emptied by the removal are
// dropped. Used when a replacement connection takes over a user whose
// old connection was parked in a different room.
func (t *RoomTable) LeaveAllExcept(uid domain.UserID, keep domain.RoomID) []PriorMembership {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []PriorMembership
	for rid, r := range t.rooms {
		if rid == keep {
			continue
		}
		m, ok := r.members[uid]
		if !ok {
			continue
		}
		delete(r.members, uid)
		if len(r.members) == 0 {
			delete(t.rooms, rid)
			log.Info().Str("module", "app.rooms").Str("room", string(rid)).Msg("room empty, removed")
		}
		out = append(out, PriorMembership{Room: rid, Username: m.Username})
	}
	return out
}

// Rename updates a member's display name and reports whether it changed.
// A rename for an absent pair is a no-op.
func (t *RoomTable) Rename(rid domain.RoomID, uid domain.UserID, username string) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rooms[rid]
	if !ok {
		return false
	}
	m, ok := r.members[uid]
	if !ok {
		return false
	}
	if m.Username == username {
		return false
	}
	m.Username = username
	return true
}

func (t *RoomTable) IsMember(rid domain.RoomID, uid domain.UserID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rooms[rid]
	if !ok {
		return false
	}
	_, ok = r.members[uid]
	return ok
}

// MemberIDs returns the ids of current members, excluding exclude if set.
func (t *RoomTable) MemberIDs(rid domain.RoomID, exclude domain.UserID) []domain.UserID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rooms[rid]
	if !ok {
		return nil
	}
	out := make([]domain.UserID, 0, len(r.members))
	for uid := range r.members {
		if uid == exclude {
			continue
		}
		out = append(out, uid)
	}
	return out
}

// Roster returns the ids and display names of everyone in the room other
// than the requesting user, the shape a joining client is sent.
func (t *RoomTable) Roster(rid domain.RoomID, exclude domain.UserID) ([]string, map[string]string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0)
	names := make(map[string]string)
	r, ok := t.rooms[rid]
	if !ok {
		return ids, names
	}
	for uid, m := range r.members {
		if uid == exclude {
			continue
		}
		ids = append(ids, string(uid))
		names[string(uid)] = m.Username
	}
	return ids, names
}

func (t *RoomTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

func (t *RoomTable) List() []RoomInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RoomInfo, 0, len(t.rooms))
	for rid, r := range t.rooms {
		out = append(out, RoomInfo{ID: rid, MemberCount: len(r.members)})
	}
	return out
}
