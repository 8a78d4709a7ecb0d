package models

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
)

type Ticket struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	Code         string     `json:"code"`
	MaxUse       int        `json:"max_use"`
	PerUserLimit int        `json:"per_user_limit"`
	IsPersonal   bool       `json:"is_personal"`
	OwnerUser    string     `json:"owner_user,omitempty"` // set iff IsPersonal
	Expiry       *time.Time `json:"expiry,omitempty"`
	IsActive     bool       `json:"is_active"`
}

func TicketFromRecord(r *core.Record) *Ticket {
	t := &Ticket{
		ID:           r.Id,
		EventID:      r.GetString("event"),
		Code:         r.GetString("code"),
		MaxUse:       r.GetInt("max_use"),
		PerUserLimit: r.GetInt("per_user_limit"),
		IsPersonal:   r.GetBool("is_personal"),
		OwnerUser:    r.GetString("owner_user"),
		IsActive:     r.GetBool("is_active"),
	}

	if expiry := r.GetDateTime("expiry"); !expiry.IsZero() {
		v := expiry.Time()
		t.Expiry = &v
	}

	return t
}

// TicketValidation is the tagged result of a ticket check. Callers must
// inspect Valid; an invalid ticket is not an error.
type TicketValidation struct {
	Valid   bool   `json:"valid"`
	Event   *Event `json:"event,omitempty"`
	Message string `json:"message,omitempty"`
}
