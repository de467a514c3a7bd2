package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/pdv/internal/adapter/http/dto"
	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

// CashSessionService describes the cash session use case consumed by the handler.
type CashSessionService interface {
	Reconcile(ctx context.Context, input usecase.ReconcileInput) (domain.ReconciliationResult, error)
	GetSession(ctx context.Context, id string) (*domain.SessionSnapshot, error)
	PreviewClose(ctx context.Context, id, countedRaw string) (*usecase.SessionPreview, error)
	CloseSession(ctx context.Context, input usecase.CloseSessionInput) (*domain.SessionClosing, error)
	GetClosing(ctx context.Context, sessionID string) (*domain.SessionClosing, error)
}

// CashSessionHandler handles register session requests.
type CashSessionHandler struct {
	sessionUC CashSessionService
}

// NewCashSessionHandler creates a new CashSessionHandler.
func NewCashSessionHandler(sessionUC CashSessionService) *CashSessionHandler {
	return &CashSessionHandler{sessionUC: sessionUC}
}

// Reconcile reconciles totals supplied by the caller.
func (h *CashSessionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.sessionUC.Reconcile(r.Context(), req.ToUseCaseInput())
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to reconcile", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromDomain(result))
}

// Get retrieves a session snapshot by ID.
func (h *CashSessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session ID", "")
		return
	}

	session, err := h.sessionUC.GetSession(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get session", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.SessionFromDomain(session))
}

// Preview reconciles a counted amount against the session without closing it.
func (h *CashSessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.PreviewCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	preview, err := h.sessionUC.PreviewClose(r.Context(), id, req.CountedClosing)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to preview closing", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.SessionPreviewFromUseCase(preview))
}

// Close queues the session closing for delivery to the backend.
func (h *CashSessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.CloseSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	closing, err := h.sessionUC.CloseSession(r.Context(), req.ToUseCaseInput(id))
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to close session", err.Error())

		return
	}

	writeJSON(w, http.StatusAccepted, dto.ClosingFromDomain(closing))
}

// GetClosing returns the queued closing and its delivery state.
func (h *CashSessionHandler) GetClosing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	closing, err := h.sessionUC.GetClosing(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get closing", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.ClosingFromDomain(closing))
}
