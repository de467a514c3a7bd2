package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
)

// PricingUseCase serves the price form: recomputing the cost/price/markup/margin
// quadruple and masking currency keystrokes.
type PricingUseCase struct {
	metrics MetricsRecorder
	logger  zerolog.Logger
}

// NewPricingUseCase creates a new PricingUseCase.
func NewPricingUseCase(metrics MetricsRecorder, logger zerolog.Logger) *PricingUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &PricingUseCase{
		metrics: metrics,
		logger:  logger.With().Str("component", "pricing").Logger(),
	}
}

// RecomputePricingInput represents one edit on the price form.
type RecomputePricingInput struct {
	Current domain.PricingResult
	Field   domain.PricingField
	Input   string
}

// Recompute applies an edit to the current pricing. Margin and unknown fields are
// rejected so a client bug surfaces instead of silently doing nothing.
func (uc *PricingUseCase) Recompute(ctx context.Context, input RecomputePricingInput) (domain.PricingResult, error) {
	if err := domain.ValidatePricingField(input.Field); err != nil {
		return input.Current, err
	}

	result := domain.RecomputePricing(input.Current, input.Field, input.Input)
	uc.metrics.PricingRecomputed(input.Field)

	uc.logger.Debug().
		Str("field", string(input.Field)).
		Str("cost", result.Cost.StringFixed(2)).
		Str("sale_price", result.SalePrice.StringFixed(2)).
		Msg("pricing recomputed")

	return result, nil
}

// MaskResult is the live-masked text together with the amount it represents.
type MaskResult struct {
	Masked string
	Amount decimal.Decimal
}

// Mask reformats raw keystrokes as a currency amount with two implied decimals.
func (uc *PricingUseCase) Mask(raw string) MaskResult {
	masked := domain.ApplyLiveMask(raw)

	return MaskResult{
		Masked: masked,
		Amount: domain.ParseLocalizedAmount(masked),
	}
}
