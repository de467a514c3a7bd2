package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PricingResponse represents the product form after a recompute.
type PricingResponse struct {
	Cost                 decimal.Decimal     `json:"cost"`
	SalePrice            decimal.Decimal     `json:"sale_price"`
	MarkupPercent        decimal.NullDecimal `json:"markup_percent"`
	MarginPercent        decimal.NullDecimal `json:"margin_percent"`
	CostDisplay          string              `json:"cost_display"`
	SalePriceDisplay     string              `json:"sale_price_display"`
	MarkupPercentDisplay string              `json:"markup_percent_display"`
	MarginPercentDisplay string              `json:"margin_percent_display"`
}

// PricingFromDomain converts domain pricing to response.
func PricingFromDomain(p domain.PricingResult) *PricingResponse {
	display := p.Display()

	return &PricingResponse{
		Cost:                 p.Cost,
		SalePrice:            p.SalePrice,
		MarkupPercent:        p.MarkupPercent,
		MarginPercent:        p.MarginPercent,
		CostDisplay:          display.Cost,
		SalePriceDisplay:     display.SalePrice,
		MarkupPercentDisplay: display.MarkupPercent,
		MarginPercentDisplay: display.MarginPercent,
	}
}

// MaskResponse is the live-masked input.
type MaskResponse struct {
	Masked string          `json:"masked"`
	Amount decimal.Decimal `json:"amount"`
}

// MaskFromUseCase converts a mask result to response.
func MaskFromUseCase(m usecase.MaskResult) *MaskResponse {
	return &MaskResponse{Masked: m.Masked, Amount: m.Amount}
}

// ReconciliationResponse represents a reconciliation in API responses.
type ReconciliationResponse struct {
	ExpectedClosing        decimal.Decimal `json:"expected_closing"`
	CountedClosing         decimal.Decimal `json:"counted_closing"`
	Variance               decimal.Decimal `json:"variance"`
	ExpectedClosingDisplay string          `json:"expected_closing_display"`
	CountedClosingDisplay  string          `json:"counted_closing_display"`
	VarianceDisplay        string          `json:"variance_display"`
	Severity               domain.Severity `json:"severity"`
	SeverityLabel          string          `json:"severity_label"`
	Critical               bool            `json:"critical"`
}

// ReconciliationFromDomain converts a domain reconciliation to response.
func ReconciliationFromDomain(r domain.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		ExpectedClosing:        r.ExpectedClosing,
		CountedClosing:         r.CountedClosing,
		Variance:               r.Variance,
		ExpectedClosingDisplay: domain.FormatAmount(r.ExpectedClosing),
		CountedClosingDisplay:  domain.FormatAmount(r.CountedClosing),
		VarianceDisplay:        domain.FormatAmount(r.Variance),
		Severity:               r.Severity,
		SeverityLabel:          r.Severity.Label(),
		Critical:               r.Severity.IsCritical(),
	}
}

// SessionResponse represents a backend session snapshot.
type SessionResponse struct {
	ID                     string               `json:"id"`
	RegisterID             string               `json:"register_id,omitempty"`
	Operator               string               `json:"operator,omitempty"`
	Status                 domain.SessionStatus `json:"status"`
	OpenedAt               *time.Time           `json:"opened_at,omitempty"`
	OpeningFloat           decimal.Decimal      `json:"opening_float"`
	CashSales              decimal.Decimal      `json:"cash_sales"`
	Supplements            decimal.Decimal      `json:"supplements"`
	Withdrawals            decimal.Decimal      `json:"withdrawals"`
	ExpectedClosing        decimal.Decimal      `json:"expected_closing"`
	ExpectedClosingDisplay string               `json:"expected_closing_display"`
}

// SessionFromDomain converts a session snapshot to response.
func SessionFromDomain(s *domain.SessionSnapshot) *SessionResponse {
	expected := s.CashSession(decimal.Zero).ExpectedClosing()

	resp := &SessionResponse{
		ID:                     s.ID,
		RegisterID:             s.RegisterID,
		Operator:               s.Operator,
		Status:                 s.Status,
		OpeningFloat:           s.OpeningFloat,
		CashSales:              s.CashSales,
		Supplements:            s.Supplements,
		Withdrawals:            s.Withdrawals,
		ExpectedClosing:        expected,
		ExpectedClosingDisplay: domain.FormatAmount(expected),
	}
	if !s.OpenedAt.IsZero() {
		openedAt := s.OpenedAt
		resp.OpenedAt = &openedAt
	}

	return resp
}

// SessionPreviewResponse pairs a session with its would-be reconciliation.
type SessionPreviewResponse struct {
	Session        *SessionResponse        `json:"session"`
	Reconciliation *ReconciliationResponse `json:"reconciliation"`
}

// SessionPreviewFromUseCase converts a preview to response.
func SessionPreviewFromUseCase(p *usecase.SessionPreview) *SessionPreviewResponse {
	return &SessionPreviewResponse{
		Session:        SessionFromDomain(p.Session),
		Reconciliation: ReconciliationFromDomain(p.Result),
	}
}

// ClosingResponse represents a session closing in API responses.
type ClosingResponse struct {
	ID                     string          `json:"id"`
	SessionID              string          `json:"session_id"`
	CountedClosing         decimal.Decimal `json:"counted_closing"`
	ExpectedClosing        decimal.Decimal `json:"expected_closing"`
	Variance               decimal.Decimal `json:"variance"`
	CountedClosingDisplay  string          `json:"counted_closing_display"`
	ExpectedClosingDisplay string          `json:"expected_closing_display"`
	VarianceDisplay        string          `json:"variance_display"`
	Severity               domain.Severity `json:"severity"`
	SeverityLabel          string          `json:"severity_label"`
	Notes                  string          `json:"notes,omitempty"`
	ClosedAt               time.Time       `json:"closed_at"`
	Delivered              bool            `json:"delivered"`
	DeliveredAt            *time.Time      `json:"delivered_at,omitempty"`
	DeliveryStatus         string          `json:"delivery_status"`
	DeliveryAttempts       int             `json:"delivery_attempts"`
	LastDeliveryError      string          `json:"last_delivery_error,omitempty"`
}

// ClosingFromDomain converts a domain closing to response.
func ClosingFromDomain(c *domain.SessionClosing) *ClosingResponse {
	return &ClosingResponse{
		ID:                     c.ID,
		SessionID:              c.SessionID,
		CountedClosing:         c.CountedClosing,
		ExpectedClosing:        c.ExpectedClosing,
		Variance:               c.Variance,
		CountedClosingDisplay:  domain.FormatAmount(c.CountedClosing),
		ExpectedClosingDisplay: domain.FormatAmount(c.ExpectedClosing),
		VarianceDisplay:        domain.FormatAmount(c.Variance),
		Severity:               c.Severity,
		SeverityLabel:          c.Severity.Label(),
		Notes:                  c.Notes,
		ClosedAt:               c.ClosedAt,
		Delivered:              c.Delivered,
		DeliveredAt:            c.DeliveredAt,
		DeliveryStatus:         string(c.DeliveryStatus()),
		DeliveryAttempts:       c.DeliveryAttempts,
		LastDeliveryError:      c.LastDeliveryError,
	}
}
