package services

import (
	"fmt"

	"cave-store/models"
	"cave-store/monitoring"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// OrderService is the append-only purchase ledger for cave sessions.
//
// CreateOrder is a bare insert: it does not check the session's open or
// closed state, remaining time or the event's purchase_cap, and it never
// writes back to the session's total_spent. Callers sum their own orders
// (SumSessionOrders) and hand the result to SessionService.EndSession.
type OrderService struct {
	store Store
}

func NewOrderService(store Store) *OrderService {
	return &OrderService{store: store}
}

type OrderInput struct {
	SessionID string  `json:"session_id"`
	EventID   string  `json:"event_id"`
	UserID    string  `json:"user_id"`
	Amount    float64 `json:"amount"`
	PaidWith  string  `json:"paid_with"`
}

func (s *OrderService) CreateOrder(input OrderInput) (*models.Order, error) {
	collection, err := s.store.FindCollectionByNameOrId(models.CollectionOrders)
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(collection)
	rec.Set("session", input.SessionID)
	rec.Set("event", input.EventID)
	rec.Set("user", input.UserID)
	rec.Set("amount", input.Amount)
	rec.Set("paid_with", input.PaidWith)

	if err := s.store.Save(rec); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	monitoring.TrackOrder(input.EventID, input.PaidWith, input.Amount)

	return models.OrderFromRecord(rec), nil
}

// ListSessionOrders returns every order recorded under one session.
func (s *OrderService) ListSessionOrders(sessionID string) ([]*models.Order, error) {
	records, err := s.store.FindAllRecords(models.CollectionOrders,
		dbx.HashExp{"session": sessionID},
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]*models.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, models.OrderFromRecord(rec))
	}

	return orders, nil
}

// SumSessionOrders totals a session's ledger with exact decimal arithmetic.
// This is the value a caller passes to EndSession; the ledger and the
// session total are linked only through this two-step workflow.
func (s *OrderService) SumSessionOrders(sessionID string) (float64, error) {
	orders, err := s.ListSessionOrders(sessionID)
	if err != nil {
		return 0, err
	}

	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(decimal.NewFromFloat(order.Amount))
	}

	return total.InexactFloat64(), nil
}
