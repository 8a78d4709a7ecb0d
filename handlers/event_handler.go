package handlers

import (
	"errors"
	"net/http"
	"time"

	"cave-store/internal/status"
	"cave-store/models"
	"cave-store/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

type EventHandler struct {
	eventService *services.EventService
}

func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// GetActive lists events whose window is open right now.
func (h *EventHandler) GetActive(e *core.RequestEvent) error {
	events, err := h.eventService.GetActiveEvents()
	if err != nil {
		return apis.NewBadRequestError("Failed to load events", err)
	}
	return e.JSON(http.StatusOK, events)
}

// GetUpcoming lists active events that have not started yet.
func (h *EventHandler) GetUpcoming(e *core.RequestEvent) error {
	events, err := h.eventService.GetUpcomingEvents()
	if err != nil {
		return apis.NewBadRequestError("Failed to load events", err)
	}
	return e.JSON(http.StatusOK, events)
}

type eventRequest struct {
	Title                    string    `json:"title"`
	Kind                     string    `json:"kind"`
	StartTime                time.Time `json:"start_time"`
	EndTime                  time.Time `json:"end_time"`
	IsActive                 bool      `json:"is_active"`
	MaxConcurrent            int       `json:"max_concurrent"`
	UserTimeLimit            int       `json:"user_time_limit"`
	PurchaseCap              float64   `json:"purchase_cap"`
	MaxParticipationsPerUser int       `json:"max_participations_per_user"`
	AllowedPay               string    `json:"allowed_pay"`
}

func (r *eventRequest) toModel() *models.Event {
	return &models.Event{
		Title:                    r.Title,
		Kind:                     r.Kind,
		StartTime:                r.StartTime,
		EndTime:                  r.EndTime,
		IsActive:                 r.IsActive,
		MaxConcurrent:            r.MaxConcurrent,
		UserTimeLimit:            r.UserTimeLimit,
		PurchaseCap:              r.PurchaseCap,
		MaxParticipationsPerUser: r.MaxParticipationsPerUser,
		AllowedPay:               r.AllowedPay,
	}
}

// Create registers a new event definition (admin).
func (h *EventHandler) Create(e *core.RequestEvent) error {
	var req eventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	event, err := h.eventService.CreateEvent(req.toModel())
	if err != nil {
		return apis.NewBadRequestError("Failed to create event", err)
	}

	h.eventService.MarkEventActive(e.Request.Context(), event.ID, event.IsActive)

	return e.JSON(http.StatusOK, event)
}

// Update overwrites an event definition (admin).
func (h *EventHandler) Update(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	var req eventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	event, err := h.eventService.UpdateEvent(eventID, req.toModel())
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return apis.NewNotFoundError("Event not found", err)
		}
		return apis.NewBadRequestError("Failed to update event", err)
	}

	h.eventService.MarkEventActive(e.Request.Context(), event.ID, event.IsActive)

	return e.JSON(http.StatusOK, event)
}

// Delete removes an event no session references (admin).
func (h *EventHandler) Delete(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	if err := h.eventService.DeleteEvent(eventID); err != nil {
		switch {
		case errors.Is(err, status.ErrNotFound):
			return apis.NewNotFoundError("Event not found", err)
		case errors.Is(err, status.ErrEventReferenced):
			return apis.NewApiError(http.StatusConflict,
				"Event has sessions and can only be deactivated", err)
		default:
			return apis.NewBadRequestError("Failed to delete event", err)
		}
	}

	h.eventService.MarkEventActive(e.Request.Context(), eventID, false)

	return e.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
