package handlers

import (
	"errors"
	"net/http"

	"cave-store/internal/status"
	"cave-store/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// AdminHandler serves the operator dashboard endpoints. All routes are
// mounted behind superuser auth in cmd.
type AdminHandler struct {
	eventService   *services.EventService
	sessionService *services.SessionService
	statsService   *services.StatsService
}

func NewAdminHandler(
	eventService *services.EventService,
	sessionService *services.SessionService,
	statsService *services.StatsService,
) *AdminHandler {
	return &AdminHandler{
		eventService:   eventService,
		sessionService: sessionService,
		statsService:   statsService,
	}
}

// Stats returns the cached cave rollup.
func (h *AdminHandler) Stats(e *core.RequestEvent) error {
	stats, err := h.statsService.Cached(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to collect stats", err)
	}

	return e.JSON(http.StatusOK, stats)
}

// RefreshStats forces a fresh rollup, bypassing the cache.
func (h *AdminHandler) RefreshStats(e *core.RequestEvent) error {
	stats, err := h.statsService.Collect(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to collect stats", err)
	}

	return e.JSON(http.StatusOK, stats)
}

// ActiveEvents reads the Redis mirror of active event ids.
func (h *AdminHandler) ActiveEvents(e *core.RequestEvent) error {
	ids, err := h.eventService.ActiveEventIDs(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to read active events", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"event_ids": ids})
}

// ForceCloseSession closes a session on a user's behalf. Spend is the
// ledger sum at close time.
func (h *AdminHandler) ForceCloseSession(e *core.RequestEvent) error {
	var req struct {
		SessionID  string  `json:"session_id"`
		TotalSpent float64 `json:"total_spent"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.SessionID == "" {
		return apis.NewBadRequestError("session_id is required", nil)
	}

	session, err := h.sessionService.EndSession(req.SessionID, req.TotalSpent)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return apis.NewNotFoundError("Session not found", err)
		}
		return apis.NewBadRequestError("Failed to close session", err)
	}

	return e.JSON(http.StatusOK, session)
}
