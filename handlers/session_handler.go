package handlers

import (
	"errors"
	"net/http"

	"cave-store/internal/status"
	"cave-store/models"
	"cave-store/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// SessionHandler carries the cave admission flow: entry is resolved either
// by the event's time window (scheduled events) or by a ticket code
// (ticketed events), then handed to the session manager.
type SessionHandler struct {
	eventService   *services.EventService
	ticketService  *services.TicketService
	sessionService *services.SessionService
	orderService   *services.OrderService
}

func NewSessionHandler(
	eventService *services.EventService,
	ticketService *services.TicketService,
	sessionService *services.SessionService,
	orderService *services.OrderService,
) *SessionHandler {
	return &SessionHandler{
		eventService:   eventService,
		ticketService:  ticketService,
		sessionService: sessionService,
		orderService:   orderService,
	}
}

// Enter opens (or returns) the caller's cave session.
func (h *SessionHandler) Enter(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Authentication required", nil)
	}

	var req struct {
		EventID    string `json:"event_id"`
		TicketCode string `json:"ticket_code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	eventID := req.EventID

	if req.TicketCode != "" {
		validation, err := h.ticketService.ValidateTicket(req.TicketCode, e.Auth.Id)
		if err != nil {
			return apis.NewBadRequestError("Ticket check failed", err)
		}
		if !validation.Valid {
			return apis.NewBadRequestError(validation.Message, nil)
		}
		if eventID != "" && eventID != validation.Event.ID {
			return apis.NewBadRequestError("Ticket is for a different event", nil)
		}
		eventID = validation.Event.ID
	} else {
		if eventID == "" {
			return apis.NewBadRequestError("event_id or ticket_code is required", nil)
		}
		event, err := h.eventService.GetEventByID(eventID)
		if err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return apis.NewNotFoundError("Event not found", err)
			}
			return apis.NewBadRequestError("Failed to load event", err)
		}
		if event.Kind == models.EventKindTicketed {
			return apis.NewBadRequestError("This event requires a ticket code", nil)
		}
		if !event.IsActive || !event.Window(nowUTC()) {
			return apis.NewBadRequestError("The cave is closed for this event right now", nil)
		}
	}

	session, err := h.sessionService.CreateSession(e.Auth.Id, eventID)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrCapacityExceeded):
			return apis.NewApiError(http.StatusConflict,
				"You have already used your allotted visits for this event", err)
		case errors.Is(err, status.ErrNotFound):
			return apis.NewNotFoundError("Event not found", err)
		default:
			return apis.NewBadRequestError("Failed to open session", err)
		}
	}

	return e.JSON(http.StatusOK, session)
}

// Leave closes the caller's session. total_spent is caller-computed; when
// omitted the ledger sum is used on the caller's behalf.
func (h *SessionHandler) Leave(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Authentication required", nil)
	}

	var req struct {
		SessionID  string   `json:"session_id"`
		TotalSpent *float64 `json:"total_spent"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.SessionID == "" {
		return apis.NewBadRequestError("session_id is required", nil)
	}

	session, err := h.sessionService.GetSessionByID(req.SessionID)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return apis.NewNotFoundError("Session not found", err)
		}
		return apis.NewBadRequestError("Failed to load session", err)
	}
	if session.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Not your session", nil)
	}

	totalSpent := 0.0
	if req.TotalSpent != nil {
		totalSpent = *req.TotalSpent
	} else {
		totalSpent, err = h.orderService.SumSessionOrders(req.SessionID)
		if err != nil {
			return apis.NewBadRequestError("Failed to sum session orders", err)
		}
	}

	closed, err := h.sessionService.EndSession(req.SessionID, totalSpent)
	if err != nil {
		return apis.NewBadRequestError("Failed to close session", err)
	}

	return e.JSON(http.StatusOK, closed)
}

// Current returns the caller's open session, if any.
func (h *SessionHandler) Current(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Authentication required", nil)
	}

	session, err := h.sessionService.GetOpenSession(e.Auth.Id)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return apis.NewNotFoundError("No open session", err)
		}
		return apis.NewBadRequestError("Failed to load session", err)
	}

	return e.JSON(http.StatusOK, session)
}

// History returns the caller's past and present sessions, newest first.
func (h *SessionHandler) History(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Authentication required", nil)
	}

	sessions, err := h.sessionService.ListUserSessions(e.Auth.Id)
	if err != nil {
		return apis.NewBadRequestError("Failed to load sessions", err)
	}

	return e.JSON(http.StatusOK, sessions)
}
