package models

import "time"

// EventStats is the per-event rollup produced by the stats aggregator.
type EventStats struct {
	EventID       string `json:"event_id"`
	Title         string `json:"title"`
	Kind          string `json:"kind"`
	IsActive      bool   `json:"is_active"`
	TotalSessions int    `json:"total_sessions"`
	OpenSessions  int    `json:"open_sessions"`
	MaxConcurrent int    `json:"max_concurrent"` // declared ceiling, reported only
	TotalOrders   int    `json:"total_orders"`
	Revenue       string `json:"revenue"`
	RevenuePoints string `json:"revenue_points"`
	RevenueCash   string `json:"revenue_cash"`
	AvgSpent      string `json:"avg_spent"`
}

// CaveStats is the full dashboard payload.
type CaveStats struct {
	Events       []EventStats `json:"events"`
	TotalEvents  int          `json:"total_events"`
	ActiveEvents int          `json:"active_events"`
	OpenSessions int          `json:"open_sessions"`
	TotalRevenue string       `json:"total_revenue"`
	GeneratedAt  time.Time    `json:"generated_at"`
}
