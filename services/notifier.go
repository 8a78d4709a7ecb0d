package services

import (
	"log/slog"

	"cave-store/models"
	"cave-store/utils"

	pubnub "github.com/pubnub/go"
)

// Notifier pushes session lifecycle messages to the user's realtime
// channel. Delivery is best effort: failures are logged and counted by the
// circuit breaker, they never fail the admission operation that triggered
// them. A nil Notifier is a no-op so tests and minimal deployments can
// skip PubNub entirely.
type Notifier struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewNotifier(pn *pubnub.PubNub) *Notifier {
	if pn == nil {
		return nil
	}
	return &Notifier{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func (n *Notifier) SessionOpened(userID string, session *models.Session) {
	n.publish(userID, map[string]any{
		"type":       "cave_session",
		"status":     "opened",
		"session_id": session.ID,
		"event_id":   session.EventID,
		"expires_at": session.ExpiresAt,
	})
}

func (n *Notifier) SessionClosed(userID string, session *models.Session) {
	n.publish(userID, map[string]any{
		"type":        "cave_session",
		"status":      "closed",
		"session_id":  session.ID,
		"event_id":    session.EventID,
		"total_spent": session.TotalSpent,
	})
}

func (n *Notifier) SessionExpired(userID, sessionID string) {
	n.publish(userID, map[string]any{
		"type":       "cave_session",
		"status":     "expired",
		"session_id": sessionID,
	})
}

func (n *Notifier) publish(userID string, message map[string]any) {
	if n == nil {
		return
	}

	err := n.breaker.Do(func() error {
		_, _, err := n.pubnub.Publish().
			Channel("user-" + userID).
			Message(message).
			Execute()
		return err
	})
	if err != nil {
		slog.Warn("cave notification dropped", "user", userID, "error", err)
	}
}
