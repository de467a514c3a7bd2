package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

// PricingState is the product form as the client currently holds it.
// Markup and margin are null when they are blank on the form.
type PricingState struct {
	Cost          decimal.Decimal     `json:"cost"`
	SalePrice     decimal.Decimal     `json:"sale_price"`
	MarkupPercent decimal.NullDecimal `json:"markup_percent"`
	MarginPercent decimal.NullDecimal `json:"margin_percent"`
}

// ToDomain converts to the domain pricing value.
func (s PricingState) ToDomain() domain.PricingResult {
	return domain.PricingResult{
		Cost:          s.Cost,
		SalePrice:     s.SalePrice,
		MarkupPercent: s.MarkupPercent,
		MarginPercent: s.MarginPercent,
	}
}

// RecomputePricingRequest represents one edit on the product form.
type RecomputePricingRequest struct {
	Current PricingState `json:"current"`
	Field   string       `json:"field"`
	Input   string       `json:"input"`
}

// ToUseCaseInput converts to use case input.
func (r *RecomputePricingRequest) ToUseCaseInput() usecase.RecomputePricingInput {
	return usecase.RecomputePricingInput{
		Current: r.Current.ToDomain(),
		Field:   domain.PricingField(r.Field),
		Input:   r.Input,
	}
}

// MaskRequest carries raw keystrokes from a currency input.
type MaskRequest struct {
	Input string `json:"input"`
}

// ReconcileRequest carries localized totals typed by the operator.
type ReconcileRequest struct {
	OpeningFloat   string `json:"opening_float"`
	CashSales      string `json:"cash_sales"`
	Supplements    string `json:"supplements"`
	Withdrawals    string `json:"withdrawals"`
	CountedClosing string `json:"counted_closing"`
}

// ToUseCaseInput converts to use case input.
func (r *ReconcileRequest) ToUseCaseInput() usecase.ReconcileInput {
	return usecase.ReconcileInput{
		OpeningFloat:   r.OpeningFloat,
		CashSales:      r.CashSales,
		Supplements:    r.Supplements,
		Withdrawals:    r.Withdrawals,
		CountedClosing: r.CountedClosing,
	}
}

// PreviewCloseRequest carries the counted amount for a close preview.
type PreviewCloseRequest struct {
	CountedClosing string `json:"counted_closing"`
}

// CloseSessionRequest represents a request to close a register session.
type CloseSessionRequest struct {
	CountedClosing string `json:"counted_closing"`
	Notes          string `json:"notes,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CloseSessionRequest) ToUseCaseInput(sessionID string) usecase.CloseSessionInput {
	return usecase.CloseSessionInput{
		SessionID:      sessionID,
		CountedClosing: r.CountedClosing,
		Notes:          r.Notes,
	}
}
