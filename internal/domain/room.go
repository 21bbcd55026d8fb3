package domain

import "time"

type RoomID string

// Membership is one user's presence in one room.
// At most one active membership exists per (room, user) pair.
type Membership struct {
	UserID   UserID
	Username string
	JoinedAt time.Time
}
