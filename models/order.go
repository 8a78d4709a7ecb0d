package models

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
)

const (
	PaidWithPoints = "points"
	PaidWithCash   = "cash"
	PaidWithMixed  = "mixed"
)

// Order is an append-only purchase record tagged with the session it was
// made under. Creating an order does not touch the session's total_spent;
// the caller sums its own orders before closing the session.
type Order struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	PaidWith  string    `json:"paid_with"` // points, cash, mixed
	CreatedAt time.Time `json:"created_at"`
}

func OrderFromRecord(r *core.Record) *Order {
	return &Order{
		ID:        r.Id,
		SessionID: r.GetString("session"),
		EventID:   r.GetString("event"),
		UserID:    r.GetString("user"),
		Amount:    r.GetFloat("amount"),
		PaidWith:  r.GetString("paid_with"),
		CreatedAt: r.GetDateTime("created").Time(),
	}
}
