package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cave-store/models"
	"cave-store/monitoring"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const redisStatsKey = "cave:stats"

// StatsService is the read-only rollup behind the operator dashboard. It
// fetches every event, session and order and reduces them in memory: fine
// at operator scale, not built for pagination or large datasets.
type StatsService struct {
	store    Store
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewStatsService(store Store, redisClient *redis.Client, cacheTTL time.Duration) *StatsService {
	return &StatsService{store: store, redis: redisClient, cacheTTL: cacheTTL}
}

// Collect computes the dashboard rollup, refreshing the Redis cache and the
// Prometheus gauges as a side effect.
func (s *StatsService) Collect(ctx context.Context) (*models.CaveStats, error) {
	events, err := s.store.FindAllRecords(models.CollectionEvents)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	sessions, err := s.store.FindAllRecords(models.CollectionSessions)
	if err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	orders, err := s.store.FindAllRecords(models.CollectionOrders)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	now := time.Now().UTC()
	perEvent := make(map[string]*models.EventStats, len(events))
	revenue := make(map[string]decimal.Decimal, len(events))
	revenuePoints := make(map[string]decimal.Decimal, len(events))
	revenueCash := make(map[string]decimal.Decimal, len(events))

	stats := &models.CaveStats{GeneratedAt: now}

	for _, rec := range events {
		event := models.EventFromRecord(rec)
		perEvent[event.ID] = &models.EventStats{
			EventID:       event.ID,
			Title:         event.Title,
			Kind:          event.Kind,
			IsActive:      event.IsActive,
			MaxConcurrent: event.MaxConcurrent,
		}
		if event.IsActive {
			stats.ActiveEvents++
		}
	}
	stats.TotalEvents = len(events)

	for _, rec := range sessions {
		session := models.SessionFromRecord(rec)
		es, ok := perEvent[session.EventID]
		if !ok {
			continue
		}
		es.TotalSessions++
		if session.Open(now) {
			es.OpenSessions++
			stats.OpenSessions++
		}
	}

	for _, rec := range orders {
		order := models.OrderFromRecord(rec)
		es, ok := perEvent[order.EventID]
		if !ok {
			continue
		}
		es.TotalOrders++
		amount := decimal.NewFromFloat(order.Amount)
		revenue[order.EventID] = revenue[order.EventID].Add(amount)
		switch order.PaidWith {
		case models.PaidWithPoints:
			revenuePoints[order.EventID] = revenuePoints[order.EventID].Add(amount)
		case models.PaidWithCash:
			revenueCash[order.EventID] = revenueCash[order.EventID].Add(amount)
		}
	}

	total := decimal.Zero
	for id, es := range perEvent {
		es.Revenue = revenue[id].StringFixed(2)
		es.RevenuePoints = revenuePoints[id].StringFixed(2)
		es.RevenueCash = revenueCash[id].StringFixed(2)
		if es.TotalSessions > 0 {
			es.AvgSpent = revenue[id].Div(decimal.NewFromInt(int64(es.TotalSessions))).StringFixed(2)
		} else {
			es.AvgSpent = "0.00"
		}
		total = total.Add(revenue[id])

		stats.Events = append(stats.Events, *es)
		monitoring.SetOpenSessions(id, es.OpenSessions)
	}
	stats.TotalRevenue = total.StringFixed(2)

	sort.Slice(stats.Events, func(i, j int) bool {
		return stats.Events[i].Title < stats.Events[j].Title
	})

	s.cache(ctx, stats)

	return stats, nil
}

// Cached returns the last rollup from Redis, falling back to a fresh
// Collect on a miss.
func (s *StatsService) Cached(ctx context.Context) (*models.CaveStats, error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, redisStatsKey).Result()
		if err == nil {
			var stats models.CaveStats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	return s.Collect(ctx)
}

func (s *StatsService) cache(ctx context.Context, stats *models.CaveStats) {
	if s.redis == nil {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, redisStatsKey, raw, s.cacheTTL).Err(); err != nil {
		slog.Warn("failed to cache cave stats", "error", err)
	}
}

// RunCollector refreshes the rollup on a fixed interval until ctx is done.
func (s *StatsService) RunCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Collect(ctx); err != nil {
				slog.Error("cave stats collection failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
