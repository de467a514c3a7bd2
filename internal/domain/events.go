package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeCashSessionClosed = "cash_session.closed"
)

// Aggregate types
const (
	AggregateTypeCashSession = "cash_session"
)

// OutboxEvent is a closing waiting to be delivered to the backend.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool

	// Delivery retry state
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	Failed        bool
	FailedAt      *time.Time
}

// CashSessionClosedEvent payload
type CashSessionClosedEvent struct {
	ClosingID       string `json:"closing_id"`
	SessionID       string `json:"session_id"`
	CountedClosing  string `json:"counted_closing"`
	ExpectedClosing string `json:"expected_closing"`
	Variance        string `json:"variance"`
	Severity        string `json:"severity"`
	Notes           string `json:"notes,omitempty"`
	ClosedAt        string `json:"closed_at"`
}

// NewCashSessionClosedEvent wraps a closing into an outbox event.
func NewCashSessionClosedEvent(id string, closing *SessionClosing) *OutboxEvent {
	payload := CashSessionClosedEvent{
		ClosingID:       closing.ID,
		SessionID:       closing.SessionID,
		CountedClosing:  closing.CountedClosing.StringFixed(2),
		ExpectedClosing: closing.ExpectedClosing.StringFixed(2),
		Variance:        closing.Variance.StringFixed(2),
		Severity:        string(closing.Severity),
		Notes:           closing.Notes,
		ClosedAt:        closing.ClosedAt.UTC().Format(time.RFC3339Nano),
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   closing.SessionID,
		AggregateType: AggregateTypeCashSession,
		EventType:     EventTypeCashSessionClosed,
		Payload:       toPayload(payload),
		CreatedAt:     closing.ClosedAt,
	}
}

// SessionClosing decodes the event payload back into a closing, carrying the
// event's delivery state.
func (e *OutboxEvent) SessionClosing() (*SessionClosing, error) {
	if e.EventType != EventTypeCashSessionClosed {
		return nil, fmt.Errorf("%w: unexpected event type %q", ErrInvalidClosing, e.EventType)
	}
	if e.Payload == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidClosing)
	}

	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClosing, err)
	}

	var p CashSessionClosedEvent
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClosing, err)
	}

	closing := &SessionClosing{
		ID:          p.ClosingID,
		SessionID:   p.SessionID,
		Severity:    Severity(p.Severity),
		Notes:       p.Notes,
		Delivered:         e.Published,
		DeliveredAt:       e.PublishedAt,
		DeliveryAttempts:  e.Attempts,
		LastDeliveryError: e.LastError,
		DeliveryFailed:    e.Failed,
	}

	amounts := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&closing.CountedClosing, p.CountedClosing},
		{&closing.ExpectedClosing, p.ExpectedClosing},
		{&closing.Variance, p.Variance},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.src)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid amount %q: %v", ErrInvalidClosing, a.src, err)
		}
		*a.dst = d
	}

	closing.ClosedAt, err = time.Parse(time.RFC3339Nano, p.ClosedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid closed_at: %v", ErrInvalidClosing, err)
	}

	return closing, nil
}

func toPayload(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": "failed to marshal payload"}
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]any{"error": "failed to unmarshal payload"}
	}

	return result
}
