package app

import (
	"encoding/json"
	"time"
)

// Outbound envelope shapes. Timestamps are epoch milliseconds to match
// what the browser clients already expect.

type presenceEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

type rosterEnvelope struct {
	Type      string            `json:"type"`
	Users     []string          `json:"users"`
	Usernames map[string]string `json:"usernames"`
	Timestamp int64             `json:"timestamp"`
}

type signalEnvelope struct {
	Type         string          `json:"type"`
	Signal       json.RawMessage `json:"signal"`
	From         string          `json:"from"`
	FromUsername string          `json:"fromUsername,omitempty"`
	Timestamp    int64           `json:"timestamp"`
}

type pongEnvelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
