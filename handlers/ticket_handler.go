package handlers

import (
	"errors"
	"net/http"
	"time"

	"cave-store/internal/status"
	"cave-store/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// Validate answers whether a code admits the caller, as a tagged result.
// An invalid ticket is a 200 with valid=false, not an error response.
func (h *TicketHandler) Validate(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Authentication required", nil)
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Code == "" {
		return apis.NewBadRequestError("code is required", nil)
	}

	validation, err := h.ticketService.ValidateTicket(req.Code, e.Auth.Id)
	if err != nil {
		return apis.NewBadRequestError("Ticket check failed", err)
	}

	return e.JSON(http.StatusOK, validation)
}

// Issue creates a ticket for a ticketed event (admin).
func (h *TicketHandler) Issue(e *core.RequestEvent) error {
	var req struct {
		EventID      string     `json:"event_id"`
		MaxUse       int        `json:"max_use"`
		PerUserLimit int        `json:"per_user_limit"`
		IsPersonal   bool       `json:"is_personal"`
		OwnerUser    string     `json:"owner_user"`
		Expiry       *time.Time `json:"expiry"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.ticketService.IssueTicket(
		req.EventID, req.MaxUse, req.PerUserLimit, req.IsPersonal, req.OwnerUser, req.Expiry)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrNotFound):
			return apis.NewNotFoundError("Event not found", err)
		case errors.Is(err, status.ErrEventInactive):
			return apis.NewBadRequestError("Tickets can only be issued for active ticketed events", err)
		default:
			return apis.NewBadRequestError("Failed to issue ticket", err)
		}
	}

	return e.JSON(http.StatusOK, ticket)
}

// Revoke deactivates a ticket (admin).
func (h *TicketHandler) Revoke(e *core.RequestEvent) error {
	ticketID := e.Request.PathValue("ticketId")

	if err := h.ticketService.RevokeTicket(ticketID); err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return apis.NewNotFoundError("Ticket not found", err)
		}
		return apis.NewBadRequestError("Failed to revoke ticket", err)
	}

	return e.JSON(http.StatusOK, map[string]string{"status": "revoked"})
}

// ListByEvent returns an event's tickets (admin).
func (h *TicketHandler) ListByEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	tickets, err := h.ticketService.ListEventTickets(eventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to load tickets", err)
	}

	return e.JSON(http.StatusOK, tickets)
}
