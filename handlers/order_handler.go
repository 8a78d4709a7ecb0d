package handlers

import (
	"errors"
	"net/http"

	"cave-store/internal/status"
	"cave-store/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type OrderHandler struct {
	sessionService *services.SessionService
	orderService   *services.OrderService
}

func NewOrderHandler(sessionService *services.SessionService, orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{sessionService: sessionService, orderService: orderService}
}

// Create appends a purchase to the caller's session ledger. The ledger is
// a bare insert by contract; the only gate applied here is that the caller
// owns an open session matching the request, resolved through the
// read-time session lookup.
func (h *OrderHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Authentication required", nil)
	}

	var req struct {
		SessionID string  `json:"session_id"`
		Amount    float64 `json:"amount"`
		PaidWith  string  `json:"paid_with"`
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

	order, err := h.orderService.CreateOrder(services.OrderInput{
		SessionID: session.ID,
		EventID:   session.EventID,
		UserID:    e.Auth.Id,
		Amount:    req.Amount,
		PaidWith:  req.PaidWith,
	})
	if err != nil {
		return apis.NewBadRequestError("Failed to record order", err)
	}

	return e.JSON(http.StatusOK, order)
}

// ListBySession returns the ledger of one of the caller's sessions
// together with its running total.
func (h *OrderHandler) ListBySession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Authentication required", nil)
	}

	sessionID := e.Request.PathValue("sessionId")

	orders, err := h.orderService.ListSessionOrders(sessionID)
	if err != nil {
		return apis.NewBadRequestError("Failed to load orders", err)
	}

	for _, order := range orders {
		if order.UserID != e.Auth.Id {
			return apis.NewForbiddenError("Not your session", nil)
		}
	}

	total, err := h.orderService.SumSessionOrders(sessionID)
	if err != nil {
		return apis.NewBadRequestError("Failed to sum orders", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
	})
}
