package handler

import (
	"context"
	"net/http"

	"github.com/iho/pdv/internal/adapter/http/dto"
	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

// PricingService describes the pricing use case consumed by the handler.
type PricingService interface {
	Recompute(ctx context.Context, input usecase.RecomputePricingInput) (domain.PricingResult, error)
	Mask(raw string) usecase.MaskResult
}

// PricingHandler handles product pricing requests.
type PricingHandler struct {
	pricingUC PricingService
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(pricingUC PricingService) *PricingHandler {
	return &PricingHandler{pricingUC: pricingUC}
}

// Recompute applies one field edit to the product form.
func (h *PricingHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req dto.RecomputePricingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.pricingUC.Recompute(r.Context(), req.ToUseCaseInput())
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to recompute pricing", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.PricingFromDomain(result))
}

// Mask formats raw currency keystrokes.
func (h *PricingHandler) Mask(w http.ResponseWriter, r *http.Request) {
	var req dto.MaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.MaskFromUseCase(h.pricingUC.Mask(req.Input)))
}
