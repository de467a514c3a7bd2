package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the backend lifecycle state of a register session.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "OPEN"
	SessionStatusClosed SessionStatus = "CLOSED"
)

// SessionSnapshot is the backend's authoritative view of a register session.
type SessionSnapshot struct {
	ID           string
	RegisterID   string
	Operator     string
	Status       SessionStatus
	OpenedAt     time.Time
	OpeningFloat decimal.Decimal
	CashSales    decimal.Decimal
	Supplements  decimal.Decimal
	Withdrawals  decimal.Decimal
}

// ValidateOpen checks the session can still be closed.
func (s *SessionSnapshot) ValidateOpen() error {
	if s.Status != SessionStatusOpen {
		return ErrSessionNotOpen
	}
	return nil
}

// CashSession pairs the snapshot totals with the operator's counted amount.
func (s *SessionSnapshot) CashSession(counted decimal.Decimal) CashSession {
	return CashSession{
		OpeningFloat:   s.OpeningFloat,
		CashSales:      s.CashSales,
		Supplements:    s.Supplements,
		Withdrawals:    s.Withdrawals,
		CountedClosing: decimal.NewNullDecimal(counted),
	}
}

// SessionClosing is the record submitted to the backend when a session closes.
type SessionClosing struct {
	ID              string
	SessionID       string
	CountedClosing  decimal.Decimal
	ExpectedClosing decimal.Decimal
	Variance        decimal.Decimal
	Severity        Severity
	Notes           string
	ClosedAt        time.Time

	// Delivery state, tracked by the closing outbox.
	Delivered         bool
	DeliveredAt       *time.Time
	DeliveryAttempts  int
	LastDeliveryError string
	DeliveryFailed    bool
}

// DeliveryStatus values
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// DeliveryStatus reports where the closing is in its delivery to the backend.
// A failed closing was rejected too many times and is no longer retried.
func (c *SessionClosing) DeliveryStatus() DeliveryStatus {
	switch {
	case c.Delivered:
		return DeliveryDelivered
	case c.DeliveryFailed:
		return DeliveryFailed
	default:
		return DeliveryPending
	}
}

// NewSessionClosing builds the closing record from a reconciliation result.
func NewSessionClosing(id, sessionID string, result ReconciliationResult, notes string, closedAt time.Time) *SessionClosing {
	return &SessionClosing{
		ID:              id,
		SessionID:       sessionID,
		CountedClosing:  result.CountedClosing,
		ExpectedClosing: result.ExpectedClosing,
		Variance:        result.Variance,
		Severity:        result.Severity,
		Notes:           notes,
		ClosedAt:        closedAt,
	}
}
