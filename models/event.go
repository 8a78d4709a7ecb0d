package models

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// Collection names used by the cave admission feature.
const (
	CollectionEvents   = "cave_events"
	CollectionTickets  = "cave_tickets"
	CollectionSessions = "cave_sessions"
	CollectionOrders   = "cave_orders"
)

const (
	EventKindScheduled = "scheduled"
	EventKindTicketed  = "ticketed"
)

const (
	PayPoints = "points"
	PayCash   = "cash"
	PayBoth   = "both"
)

type Event struct {
	ID                       string    `json:"id"`
	Title                    string    `json:"title"`
	Kind                     string    `json:"kind"` // scheduled, ticketed
	StartTime                time.Time `json:"start_time"`
	EndTime                  time.Time `json:"end_time"`
	IsActive                 bool      `json:"is_active"`
	MaxConcurrent            int       `json:"max_concurrent"`
	UserTimeLimit            int       `json:"user_time_limit"` // minutes
	PurchaseCap              float64   `json:"purchase_cap"`
	MaxParticipationsPerUser int       `json:"max_participations_per_user"`
	AllowedPay               string    `json:"allowed_pay"` // points, cash, both
}

func EventFromRecord(r *core.Record) *Event {
	return &Event{
		ID:                       r.Id,
		Title:                    r.GetString("title"),
		Kind:                     r.GetString("kind"),
		StartTime:                r.GetDateTime("start_time").Time(),
		EndTime:                  r.GetDateTime("end_time").Time(),
		IsActive:                 r.GetBool("is_active"),
		MaxConcurrent:            r.GetInt("max_concurrent"),
		UserTimeLimit:            r.GetInt("user_time_limit"),
		PurchaseCap:              r.GetFloat("purchase_cap"),
		MaxParticipationsPerUser: r.GetInt("max_participations_per_user"),
		AllowedPay:               r.GetString("allowed_pay"),
	}
}

// Window reports whether the event's time window contains now.
func (e *Event) Window(now time.Time) bool {
	return !e.StartTime.After(now) && now.Before(e.EndTime)
}
