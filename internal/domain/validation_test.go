package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateCountedClosing(t *testing.T) {
	t.Parallel()

	t.Run("missing value rejected", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "R$", ",", "abc", "٣", "١٢,٥٠"} {
			if _, err := ValidateCountedClosing(raw); !errors.Is(err, ErrCountedClosingRequired) {
				t.Fatalf("expected ErrCountedClosingRequired for %q, got %v", raw, err)
			}
		}
	})

	t.Run("zero is a valid count", func(t *testing.T) {
		amount, err := ValidateCountedClosing("0,00")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !amount.IsZero() {
			t.Fatalf("expected zero, got %s", amount)
		}
	})

	t.Run("localized value parsed", func(t *testing.T) {
		amount, err := ValidateCountedClosing("R$ 1.550,25")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !amount.Equal(d("1550.25")) {
			t.Fatalf("expected 1550.25, got %s", amount)
		}
	})

	t.Run("too large rejected", func(t *testing.T) {
		if _, err := ValidateCountedClosing("99.999.999.999,00"); !errors.Is(err, ErrAmountTooLarge) {
			t.Fatalf("expected ErrAmountTooLarge, got %v", err)
		}
	})
}

func TestValidatePricingField(t *testing.T) {
	t.Parallel()

	for _, f := range []PricingField{PricingFieldCost, PricingFieldSalePrice, PricingFieldMarkup} {
		if err := ValidatePricingField(f); err != nil {
			t.Fatalf("expected %s to be editable, got %v", f, err)
		}
	}

	if err := ValidatePricingField(PricingFieldMargin); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField for margin, got %v", err)
	}

	if err := ValidatePricingField("tax"); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField for unknown field, got %v", err)
	}
}

func TestValidateSessionID(t *testing.T) {
	t.Parallel()

	if err := ValidateSessionID("01HZX3-caixa_7"); err != nil {
		t.Fatalf("expected valid ID, got %v", err)
	}

	if err := ValidateSessionID(""); !errors.Is(err, ErrInvalidSessionID) {
		t.Fatalf("expected ErrInvalidSessionID for empty ID, got %v", err)
	}

	if err := ValidateSessionID(strings.Repeat("a", MaxSessionIDLength+1)); !errors.Is(err, ErrInvalidSessionID) {
		t.Fatalf("expected ErrInvalidSessionID for long ID, got %v", err)
	}

	if err := ValidateSessionID("../etc/passwd"); !errors.Is(err, ErrInvalidSessionID) {
		t.Fatalf("expected ErrInvalidSessionID for path traversal, got %v", err)
	}
}

func TestValidateNotes(t *testing.T) {
	t.Parallel()

	if err := ValidateNotes(strings.Repeat("ã", MaxNotesLength)); err != nil {
		t.Fatalf("expected notes at the limit to pass, got %v", err)
	}

	if err := ValidateNotes(strings.Repeat("x", MaxNotesLength+1)); !errors.Is(err, ErrNotesTooLong) {
		t.Fatalf("expected ErrNotesTooLong, got %v", err)
	}
}

func TestCashSessionClosedEvent_RoundTrip(t *testing.T) {
	t.Parallel()

	closedAt := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	closing := NewSessionClosing("cl-1", "s-1", ReconciliationResult{
		ExpectedClosing: d("600"),
		CountedClosing:  d("500"),
		Variance:        d("-100"),
		Severity:        SeverityCriticalShortage,
	}, "gaveta conferida duas vezes", closedAt)

	event := NewCashSessionClosedEvent("evt-1", closing)
	if event.AggregateID != "s-1" || event.AggregateType != AggregateTypeCashSession {
		t.Fatalf("unexpected aggregate %s/%s", event.AggregateType, event.AggregateID)
	}
	if event.Payload["variance"] != "-100.00" {
		t.Fatalf("expected variance -100.00 in payload, got %v", event.Payload["variance"])
	}

	decoded, err := event.SessionClosing()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decoded.ID != "cl-1" || decoded.SessionID != "s-1" {
		t.Fatalf("unexpected IDs %+v", decoded)
	}
	if !decoded.Variance.Equal(closing.Variance) || !decoded.ExpectedClosing.Equal(closing.ExpectedClosing) {
		t.Fatalf("amounts did not survive payload: %+v", decoded)
	}
	if decoded.Severity != SeverityCriticalShortage {
		t.Fatalf("expected severity to survive, got %s", decoded.Severity)
	}
	if !decoded.ClosedAt.Equal(closedAt) {
		t.Fatalf("expected closedAt %s, got %s", closedAt, decoded.ClosedAt)
	}
	if decoded.Delivered {
		t.Fatal("expected undelivered closing")
	}
}

func TestOutboxEvent_SessionClosingRejectsOtherTypes(t *testing.T) {
	t.Parallel()

	event := &OutboxEvent{EventType: "something.else"}
	if _, err := event.SessionClosing(); !errors.Is(err, ErrInvalidClosing) {
		t.Fatalf("expected ErrInvalidClosing, got %v", err)
	}
}

func TestOutboxEvent_SessionClosingRejectsBadPayload(t *testing.T) {
	t.Parallel()

	payloads := map[string]map[string]any{
		"missing":    nil,
		"bad amount": {"closing_id": "cl-1", "session_id": "s-1", "counted_closing": "n/a", "expected_closing": "1", "variance": "0", "closed_at": "2026-03-14T18:30:00Z"},
		"bad time":   {"closing_id": "cl-1", "session_id": "s-1", "counted_closing": "1", "expected_closing": "1", "variance": "0", "closed_at": "ontem"},
	}

	for name, payload := range payloads {
		event := &OutboxEvent{EventType: EventTypeCashSessionClosed, Payload: payload}
		if _, err := event.SessionClosing(); !errors.Is(err, ErrInvalidClosing) {
			t.Fatalf("%s: expected ErrInvalidClosing, got %v", name, err)
		}
	}
}

func TestOutboxEvent_SessionClosingCarriesDeliveryState(t *testing.T) {
	t.Parallel()

	closing := NewSessionClosing("cl-1", "s-1", ReconciliationResult{
		ExpectedClosing: d("100"),
		CountedClosing:  d("100"),
		Variance:        d("0"),
		Severity:        SeverityMatch,
	}, "", time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC))

	event := NewCashSessionClosedEvent("evt-1", closing)
	event.Attempts = 5
	event.LastError = "backend rejected closing: status 422"
	event.Failed = true

	decoded, err := event.SessionClosing()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.DeliveryAttempts != 5 || decoded.LastDeliveryError != event.LastError {
		t.Fatalf("delivery state not carried: %+v", decoded)
	}
	if decoded.DeliveryStatus() != DeliveryFailed {
		t.Fatalf("expected FAILED, got %s", decoded.DeliveryStatus())
	}
}

func TestSessionClosing_DeliveryStatus(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		closing SessionClosing
		want    DeliveryStatus
	}{
		{SessionClosing{}, DeliveryPending},
		{SessionClosing{DeliveryAttempts: 2, LastDeliveryError: "status 422"}, DeliveryPending},
		{SessionClosing{Delivered: true, DeliveredAt: &now}, DeliveryDelivered},
		{SessionClosing{DeliveryFailed: true, DeliveryAttempts: 5}, DeliveryFailed},
	}

	for _, tt := range tests {
		if got := tt.closing.DeliveryStatus(); got != tt.want {
			t.Fatalf("expected %s for %+v, got %s", tt.want, tt.closing, got)
		}
	}
}
