package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cave-store/internal/status"
	"cave-store/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// redisActiveEventsKey mirrors the ids of active cave events so the rate
// limiter and admin dashboard can read them without hitting the store.
const redisActiveEventsKey = "cave:active_events"

// EventService is the cave event registry. Events are plain operator CRUD;
// overlapping time windows across events are allowed, nothing here enforces
// mutual exclusion between events.
type EventService struct {
	store Store
	redis *redis.Client
}

func NewEventService(store Store, redisClient *redis.Client) *EventService {
	return &EventService{store: store, redis: redisClient}
}

// GetActiveEvents returns active events whose window contains now,
// ordered by start time.
func (s *EventService) GetActiveEvents() ([]*models.Event, error) {
	return s.windowedEvents(func(e *models.Event, now time.Time) bool {
		return e.Window(now)
	})
}

// GetUpcomingEvents returns active events that have not started yet,
// ordered by start time.
func (s *EventService) GetUpcomingEvents() ([]*models.Event, error) {
	return s.windowedEvents(func(e *models.Event, now time.Time) bool {
		return e.StartTime.After(now)
	})
}

func (s *EventService) windowedEvents(keep func(*models.Event, time.Time) bool) ([]*models.Event, error) {
	records, err := s.store.FindAllRecords(models.CollectionEvents,
		dbx.HashExp{"is_active": true},
	)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}

	now := time.Now().UTC()
	events := make([]*models.Event, 0, len(records))
	for _, rec := range records {
		event := models.EventFromRecord(rec)
		if keep(event, now) {
			events = append(events, event)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})

	return events, nil
}

// GetEventByID returns an event regardless of its active flag.
func (s *EventService) GetEventByID(eventID string) (*models.Event, error) {
	rec, err := s.store.FindRecordById(models.CollectionEvents, eventID)
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", eventID, notFound(err))
	}
	return models.EventFromRecord(rec), nil
}

// CreateEvent inserts a new event definition. The only structural check is
// the window invariant end_time > start_time.
func (s *EventService) CreateEvent(input *models.Event) (*models.Event, error) {
	if !input.EndTime.After(input.StartTime) {
		return nil, fmt.Errorf("event window must end after it starts: %w", status.ErrForbidden)
	}

	collection, err := s.store.FindCollectionByNameOrId(models.CollectionEvents)
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(collection)
	applyEvent(rec, input)

	if err := s.store.Save(rec); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	return models.EventFromRecord(rec), nil
}

// UpdateEvent overwrites an event definition.
func (s *EventService) UpdateEvent(eventID string, input *models.Event) (*models.Event, error) {
	if !input.EndTime.After(input.StartTime) {
		return nil, fmt.Errorf("event window must end after it starts: %w", status.ErrForbidden)
	}

	rec, err := s.store.FindRecordById(models.CollectionEvents, eventID)
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", eventID, notFound(err))
	}

	applyEvent(rec, input)

	if err := s.store.Save(rec); err != nil {
		return nil, fmt.Errorf("update event %s: %w", eventID, err)
	}

	return models.EventFromRecord(rec), nil
}

// DeleteEvent removes an event that no session references. Referenced
// events can only be deactivated.
func (s *EventService) DeleteEvent(eventID string) error {
	rec, err := s.store.FindRecordById(models.CollectionEvents, eventID)
	if err != nil {
		return fmt.Errorf("find event %s: %w", eventID, notFound(err))
	}

	count, err := s.store.CountRecords(models.CollectionSessions,
		dbx.HashExp{"event": eventID},
	)
	if err != nil {
		return fmt.Errorf("count event sessions: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("event %s has %d sessions: %w", eventID, count, status.ErrEventReferenced)
	}

	if err := s.store.Delete(rec); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}

	return nil
}

// SyncActiveEvents rebuilds the Redis mirror of active event ids. Called on
// startup and from the event record hooks.
func (s *EventService) SyncActiveEvents(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}

	records, err := s.store.FindAllRecords(models.CollectionEvents,
		dbx.HashExp{"is_active": true},
	)
	if err != nil {
		return fmt.Errorf("find active events: %w", err)
	}

	if err := s.redis.Del(ctx, redisActiveEventsKey).Err(); err != nil {
		return fmt.Errorf("clear active events mirror: %w", err)
	}

	if len(records) == 0 {
		return nil
	}

	ids := make([]interface{}, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Id)
	}

	if err := s.redis.SAdd(ctx, redisActiveEventsKey, ids...).Err(); err != nil {
		return fmt.Errorf("sync active events mirror: %w", err)
	}

	slog.Info("synced active cave events to redis", "count", len(ids))
	return nil
}

// MarkEventActive keeps the Redis mirror in step after a single record
// change. Mirror failures are logged, never surfaced: the store stays the
// source of truth.
func (s *EventService) MarkEventActive(ctx context.Context, eventID string, active bool) {
	if s.redis == nil {
		return
	}

	var err error
	if active {
		err = s.redis.SAdd(ctx, redisActiveEventsKey, eventID).Err()
	} else {
		err = s.redis.SRem(ctx, redisActiveEventsKey, eventID).Err()
	}
	if err != nil {
		slog.Error("failed to update active events mirror",
			"event", eventID, "active", active, "error", err)
	}
}

// ActiveEventIDs reads the Redis mirror.
func (s *EventService) ActiveEventIDs(ctx context.Context) ([]string, error) {
	if s.redis == nil {
		return nil, nil
	}
	return s.redis.SMembers(ctx, redisActiveEventsKey).Result()
}

func applyEvent(rec *core.Record, input *models.Event) {
	rec.Set("title", input.Title)
	rec.Set("kind", input.Kind)
	rec.Set("start_time", input.StartTime.UTC())
	rec.Set("end_time", input.EndTime.UTC())
	rec.Set("is_active", input.IsActive)
	rec.Set("max_concurrent", input.MaxConcurrent)
	rec.Set("user_time_limit", input.UserTimeLimit)
	rec.Set("purchase_cap", input.PurchaseCap)
	rec.Set("max_participations_per_user", input.MaxParticipationsPerUser)
	rec.Set("allowed_pay", input.AllowedPay)
}
