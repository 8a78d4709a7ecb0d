package models

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
)

type Session struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	EventID    string     `json:"event_id"`
	EnteredAt  time.Time  `json:"entered_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"` // nil while open
	TotalSpent float64    `json:"total_spent"`
}

func SessionFromRecord(r *core.Record) *Session {
	s := &Session{
		ID:         r.Id,
		UserID:     r.GetString("user"),
		EventID:    r.GetString("event"),
		EnteredAt:  r.GetDateTime("entered_at").Time(),
		ExpiresAt:  r.GetDateTime("expires_at").Time(),
		TotalSpent: r.GetFloat("total_spent"),
	}

	if left := r.GetDateTime("left_at"); !left.IsZero() {
		v := left.Time()
		s.LeftAt = &v
	}

	return s
}

// Open reports whether the session is still usable: not closed and not
// past its expiry.
func (s *Session) Open(now time.Time) bool {
	return s.LeftAt == nil && s.ExpiresAt.After(now)
}

// RemainingTime returns how long the session has left, zero if expired.
func (s *Session) RemainingTime(now time.Time) time.Duration {
	if remaining := s.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}
