package app

import (
	"sync"
	"time"

	"github.com/videochat/signaling/internal/domain"
)

// JoinLimiter bounds how often one user may issue join envelopes,
// using a sliding window over recent attempts.
type JoinLimiter struct {
	mu        sync.Mutex
	history   map[domain.UserID][]time.Time
	limit     int
	interval  time.Duration
	lastSweep time.Time
}

func NewJoinLimiter(limit int, interval time.Duration) *JoinLimiter {
	return &JoinLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (l *JoinLimiter) Allow(uid domain.UserID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.interval)
	l.sweepLocked(now, windowStart)

	attempts := l.history[uid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.history[uid] = fresh
		return false
	}

	fresh = append(fresh, now)
	l.history[uid] = fresh
	return true
}

// sweepLocked drops ids whose attempts all fell out of the window, at
// most once per interval, so abandoned ids do not accumulate. A
// connection may issue joins under several user ids and Forget only
// covers the last one.
func (l *JoinLimiter) sweepLocked(now, windowStart time.Time) {
	if now.Sub(l.lastSweep) < l.interval {
		return
	}
	l.lastSweep = now
	for uid, attempts := range l.history {
		live := false
		for _, t := range attempts {
			if t.After(windowStart) {
				live = true
				break
			}
		}
		if !live {
			delete(l.history, uid)
		}
	}
}

// Forget drops a user's attempt history, called when their connection goes away.
func (l *JoinLimiter) Forget(uid domain.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.history, uid)
}
