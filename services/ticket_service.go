package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cave-store/internal/status"
	"cave-store/models"
	"cave-store/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// TicketService checks admission credentials for ticketed cave events.
//
// Unlike the session and order services it reports outcomes as a tagged
// TicketValidation value instead of an error: an unknown, foreign or
// expired ticket is a regular answer, not a failure. Only store errors
// come back through the error return.
type TicketService struct {
	store     Store
	codeBytes int
}

func NewTicketService(store Store, codeBytes int) *TicketService {
	if codeBytes <= 0 {
		codeBytes = 6
	}
	return &TicketService{store: store, codeBytes: codeBytes}
}

// ValidateTicket resolves a presented code for the given user. Ownership of
// a personal ticket is checked before expiry, so a foreign ticket reads as
// "not yours" even when it is also stale.
//
// max_use and per_user_limit are stored on the ticket but deliberately not
// checked or decremented here; validation leaves no trace on the ticket.
func (s *TicketService) ValidateTicket(code, userID string) (*models.TicketValidation, error) {
	records, err := s.store.FindAllRecords(models.CollectionTickets,
		dbx.HashExp{"code": code, "is_active": true},
	)
	if err != nil {
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	if len(records) == 0 {
		return &models.TicketValidation{Valid: false, Message: "ticket not found"}, nil
	}

	ticket := models.TicketFromRecord(records[0])

	if ticket.IsPersonal && ticket.OwnerUser != userID {
		return &models.TicketValidation{Valid: false, Message: "ticket belongs to another user"}, nil
	}

	if ticket.Expiry != nil && !ticket.Expiry.After(time.Now().UTC()) {
		return &models.TicketValidation{Valid: false, Message: "ticket has expired"}, nil
	}

	eventRec, err := s.store.FindRecordById(models.CollectionEvents, ticket.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.TicketValidation{Valid: false, Message: "event no longer exists"}, nil
		}
		return nil, fmt.Errorf("find event %s: %w", ticket.EventID, err)
	}

	return &models.TicketValidation{Valid: true, Event: models.EventFromRecord(eventRec)}, nil
}

// IssueTicket creates a ticket with a freshly generated code for an active,
// ticketed event. ownerUser must be set iff personal.
func (s *TicketService) IssueTicket(eventID string, maxUse, perUserLimit int, personal bool, ownerUser string, expiry *time.Time) (*models.Ticket, error) {
	if personal && ownerUser == "" {
		return nil, fmt.Errorf("personal ticket without owner: %w", status.ErrForbidden)
	}
	if !personal && ownerUser != "" {
		return nil, fmt.Errorf("owner on a non-personal ticket: %w", status.ErrForbidden)
	}

	eventRec, err := s.store.FindRecordById(models.CollectionEvents, eventID)
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", eventID, notFound(err))
	}
	if !eventRec.GetBool("is_active") || eventRec.GetString("kind") != models.EventKindTicketed {
		return nil, fmt.Errorf("event %s: %w", eventID, status.ErrEventInactive)
	}

	code, err := utils.GenerateCode(s.codeBytes)
	if err != nil {
		return nil, fmt.Errorf("generate ticket code: %w", err)
	}

	collection, err := s.store.FindCollectionByNameOrId(models.CollectionTickets)
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(collection)
	rec.Set("event", eventID)
	rec.Set("code", code)
	rec.Set("max_use", maxUse)
	rec.Set("per_user_limit", perUserLimit)
	rec.Set("is_personal", personal)
	rec.Set("owner_user", ownerUser)
	rec.Set("is_active", true)
	if expiry != nil {
		rec.Set("expiry", expiry.UTC())
	}

	if err := s.store.Save(rec); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}

	return models.TicketFromRecord(rec), nil
}

// RevokeTicket deactivates a ticket. The record stays around so past
// admissions keep their reference.
func (s *TicketService) RevokeTicket(ticketID string) error {
	rec, err := s.store.FindRecordById(models.CollectionTickets, ticketID)
	if err != nil {
		return fmt.Errorf("find ticket %s: %w", ticketID, notFound(err))
	}

	rec.Set("is_active", false)

	if err := s.store.Save(rec); err != nil {
		return fmt.Errorf("revoke ticket %s: %w", ticketID, err)
	}

	return nil
}

// ListEventTickets returns all tickets of one event for the admin console.
func (s *TicketService) ListEventTickets(eventID string) ([]*models.Ticket, error) {
	records, err := s.store.FindAllRecords(models.CollectionTickets,
		dbx.HashExp{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, rec := range records {
		tickets = append(tickets, models.TicketFromRecord(rec))
	}

	return tickets, nil
}
