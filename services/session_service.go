package services

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cave-store/internal/status"
	"cave-store/models"
	"cave-store/monitoring"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// SessionService owns the cave session lifecycle. A session is a time-boxed
// visit of one user to one event; at most one session per user may be open
// at any instant. That invariant is guaranteed by a partial unique index on
// cave_sessions(user) for rows with left_at = '', not by anything in this
// process: the pre-insert check below is an optimization, the index is the
// authority, and a lost race is resolved by re-fetching the winning row.
type SessionService struct {
	store          Store
	notifier       *Notifier
	defaultMinutes int
}

func NewSessionService(store Store, notifier *Notifier, defaultMinutes int) *SessionService {
	if defaultMinutes <= 0 {
		defaultMinutes = 30
	}
	return &SessionService{
		store:          store,
		notifier:       notifier,
		defaultMinutes: defaultMinutes,
	}
}

// CreateSession opens a session for the user against the event, or returns
// the user's already-open session. It fails with status.ErrCapacityExceeded
// once the user has used up the event's participation allowance.
//
// The event's declared max_concurrent (a global ceiling on simultaneous
// open sessions) is advisory and not consulted here.
func (s *SessionService) CreateSession(userID, eventID string) (*models.Session, error) {
	now := time.Now().UTC()

	// One round-trip fetches everything the sweep and the fast path need:
	// all of the user's sessions that were never explicitly closed.
	open, err := s.store.FindAllRecords(models.CollectionSessions,
		dbx.HashExp{"user": userID, "left_at": ""},
	)
	if err != nil {
		return nil, fmt.Errorf("find open sessions: %w", err)
	}

	// Corrective sweep: expired-but-unclosed sessions get a recorded
	// left_at. This also frees the unique open-session slot, so a user
	// whose previous visit timed out can come back.
	for _, rec := range open {
		if !rec.GetDateTime("expires_at").Time().After(now) {
			rec.Set("left_at", now)
			if err := s.store.Save(rec); err != nil {
				return nil, fmt.Errorf("sweep session %s: %w", rec.Id, err)
			}
			s.notifier.SessionExpired(userID, rec.Id)
			monitoring.TrackAdmission("sweep", rec.GetString("event"), "success")
		}
	}

	// Fast path: an open, unexpired session is returned as-is, whatever
	// event it belongs to. createSession is idempotent in that case.
	for _, rec := range open {
		if rec.GetDateTime("expires_at").Time().After(now) {
			monitoring.TrackAdmission("create", eventID, "fast_path")
			return models.SessionFromRecord(rec), nil
		}
	}

	event, err := s.store.FindRecordById(models.CollectionEvents, eventID)
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", eventID, notFound(err))
	}

	limit := event.GetInt("user_time_limit")
	if limit <= 0 {
		limit = s.defaultMinutes
	}

	// Participation ceiling counts every session the user ever had for
	// this event, open or closed.
	maxParticipations := event.GetInt("max_participations_per_user")
	if maxParticipations > 0 {
		count, err := s.store.CountRecords(models.CollectionSessions,
			dbx.HashExp{"user": userID, "event": eventID},
		)
		if err != nil {
			return nil, fmt.Errorf("count participations: %w", err)
		}
		if count >= int64(maxParticipations) {
			monitoring.TrackAdmission("create", eventID, "capacity_exceeded")
			return nil, fmt.Errorf("event %s: %w", eventID, status.ErrCapacityExceeded)
		}
	}

	collection, err := s.store.FindCollectionByNameOrId(models.CollectionSessions)
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(collection)
	rec.Set("user", userID)
	rec.Set("event", eventID)
	rec.Set("entered_at", now)
	rec.Set("expires_at", now.Add(time.Duration(limit)*time.Minute))
	rec.Set("left_at", "")
	rec.Set("total_spent", 0)

	if err := s.store.Save(rec); err != nil {
		if isUniqueViolation(err) {
			// A concurrent caller inserted between our check and our
			// insert. Converge on the winning row instead of failing.
			return s.resolveConflict(userID, eventID, now, err)
		}
		monitoring.TrackAdmission("create", eventID, "error")
		return nil, fmt.Errorf("insert session: %w", err)
	}

	monitoring.TrackAdmission("create", eventID, "success")
	session := models.SessionFromRecord(rec)
	s.notifier.SessionOpened(userID, session)

	return session, nil
}

func (s *SessionService) resolveConflict(userID, eventID string, now time.Time, insertErr error) (*models.Session, error) {
	monitoring.TrackSessionConflict(eventID)
	slog.Info("session insert lost the open-slot race, re-fetching winner",
		"user", userID, "event", eventID)

	open, err := s.store.FindAllRecords(models.CollectionSessions,
		dbx.HashExp{"user": userID, "left_at": ""},
	)
	if err != nil {
		return nil, fmt.Errorf("re-fetch after conflict: %w", err)
	}

	for _, rec := range open {
		if rec.GetDateTime("expires_at").Time().After(now) {
			return models.SessionFromRecord(rec), nil
		}
	}

	// The winner vanished before we could read it; surface the original
	// failure rather than inventing a session.
	return nil, fmt.Errorf("insert session: %w", insertErr)
}

// EndSession closes the session and records the caller-computed spend
// total. The write is last-write-wins: a second close overwrites both
// left_at and total_spent, it does not accumulate.
func (s *SessionService) EndSession(sessionID string, totalSpent float64) (*models.Session, error) {
	rec, err := s.store.FindRecordById(models.CollectionSessions, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session %s: %w", sessionID, notFound(err))
	}

	now := time.Now().UTC()
	rec.Set("left_at", now)
	rec.Set("total_spent", totalSpent)

	if err := s.store.Save(rec); err != nil {
		return nil, fmt.Errorf("close session %s: %w", sessionID, err)
	}

	monitoring.TrackAdmission("end", rec.GetString("event"), "success")
	monitoring.ObserveSessionDuration(rec.GetString("event"),
		now.Sub(rec.GetDateTime("entered_at").Time()).Seconds())
	session := models.SessionFromRecord(rec)
	s.notifier.SessionClosed(rec.GetString("user"), session)

	return session, nil
}

// GetSessionByID returns the session only while it is open and unexpired.
// Unlike the sweep in CreateSession this is a read-time check: an expired
// session is reported as not found but nothing is written back.
func (s *SessionService) GetSessionByID(sessionID string) (*models.Session, error) {
	rec, err := s.store.FindRecordById(models.CollectionSessions, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session %s: %w", sessionID, notFound(err))
	}

	session := models.SessionFromRecord(rec)
	if !session.Open(time.Now().UTC()) {
		return nil, fmt.Errorf("session %s: %w", sessionID, status.ErrNotFound)
	}

	return session, nil
}

// GetOpenSession returns the user's currently open session, if any.
func (s *SessionService) GetOpenSession(userID string) (*models.Session, error) {
	open, err := s.store.FindAllRecords(models.CollectionSessions,
		dbx.HashExp{"user": userID, "left_at": ""},
	)
	if err != nil {
		return nil, fmt.Errorf("find open sessions: %w", err)
	}

	now := time.Now().UTC()
	for _, rec := range open {
		if rec.GetDateTime("expires_at").Time().After(now) {
			return models.SessionFromRecord(rec), nil
		}
	}

	return nil, fmt.Errorf("user %s: %w", userID, status.ErrNotFound)
}

// ListUserSessions returns the user's visit history, newest first.
func (s *SessionService) ListUserSessions(userID string) ([]*models.Session, error) {
	records, err := s.store.FindAllRecords(models.CollectionSessions,
		dbx.HashExp{"user": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]*models.Session, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, models.SessionFromRecord(rec))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].EnteredAt.After(sessions[j].EnteredAt)
	})

	return sessions, nil
}
