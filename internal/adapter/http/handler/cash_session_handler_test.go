package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/adapter/http/dto"
	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

type cashSessionServiceStub struct {
	reconcileFn  func(ctx context.Context, input usecase.ReconcileInput) (domain.ReconciliationResult, error)
	getFn        func(ctx context.Context, id string) (*domain.SessionSnapshot, error)
	previewFn    func(ctx context.Context, id, countedRaw string) (*usecase.SessionPreview, error)
	closeFn      func(ctx context.Context, input usecase.CloseSessionInput) (*domain.SessionClosing, error)
	getClosingFn func(ctx context.Context, sessionID string) (*domain.SessionClosing, error)
}

func (s *cashSessionServiceStub) Reconcile(ctx context.Context, input usecase.ReconcileInput) (domain.ReconciliationResult, error) {
	return s.reconcileFn(ctx, input)
}

func (s *cashSessionServiceStub) GetSession(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	return s.getFn(ctx, id)
}

func (s *cashSessionServiceStub) PreviewClose(ctx context.Context, id, countedRaw string) (*usecase.SessionPreview, error) {
	return s.previewFn(ctx, id, countedRaw)
}

func (s *cashSessionServiceStub) CloseSession(ctx context.Context, input usecase.CloseSessionInput) (*domain.SessionClosing, error) {
	return s.closeFn(ctx, input)
}

func (s *cashSessionServiceStub) GetClosing(ctx context.Context, sessionID string) (*domain.SessionClosing, error) {
	return s.getClosingFn(ctx, sessionID)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func openSnapshot(id string) *domain.SessionSnapshot {
	return &domain.SessionSnapshot{
		ID:           id,
		Status:       domain.SessionStatusOpen,
		OpeningFloat: decimal.NewFromInt(100),
		CashSales:    decimal.NewFromInt(500),
		Withdrawals:  decimal.NewFromInt(50),
	}
}

func TestCashSessionHandler_Reconcile(t *testing.T) {
	var captured usecase.ReconcileInput
	handler := NewCashSessionHandler(&cashSessionServiceStub{
		reconcileFn: func(ctx context.Context, input usecase.ReconcileInput) (domain.ReconciliationResult, error) {
			captured = input
			return domain.Reconcile(domain.CashSession{
				OpeningFloat:   decimal.NewFromInt(100),
				CashSales:      decimal.NewFromInt(500),
				Withdrawals:    decimal.NewFromInt(50),
				CountedClosing: decimal.NewNullDecimal(decimal.NewFromInt(550)),
			}), nil
		},
	})

	body := `{"opening_float":"100,00","cash_sales":"500,00","supplements":"","withdrawals":"50,00","counted_closing":"550,00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliations", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Reconcile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.CountedClosing != "550,00" {
		t.Fatalf("expected raw counted closing to pass through, got %q", captured.CountedClosing)
	}

	var resp dto.ReconciliationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Severity != domain.SeverityMatch || resp.ExpectedClosingDisplay != "550,00" || resp.VarianceDisplay != "0,00" {
		t.Fatalf("unexpected reconciliation %+v", resp)
	}
}

func TestCashSessionHandler_Reconcile_MissingCounted(t *testing.T) {
	handler := NewCashSessionHandler(&cashSessionServiceStub{
		reconcileFn: func(ctx context.Context, input usecase.ReconcileInput) (domain.ReconciliationResult, error) {
			return domain.ReconciliationResult{}, domain.ErrCountedClosingRequired
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliations", strings.NewReader(`{"opening_float":"100"}`))
	rec := httptest.NewRecorder()

	handler.Reconcile(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCashSessionHandler_Get(t *testing.T) {
	handler := NewCashSessionHandler(&cashSessionServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
			if id == "missing" {
				return nil, domain.ErrSessionNotFound
			}
			return openSnapshot(id), nil
		},
	})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/cash-sessions/s-1", nil), "id", "s-1")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "s-1" || resp.ExpectedClosingDisplay != "550,00" {
		t.Fatalf("unexpected session %+v", resp)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/cash-sessions/missing", nil), "id", "missing")
	rec = httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCashSessionHandler_Get_MissingID(t *testing.T) {
	handler := NewCashSessionHandler(&cashSessionServiceStub{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/cash-sessions/", nil), "id", "")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCashSessionHandler_Preview(t *testing.T) {
	handler := NewCashSessionHandler(&cashSessionServiceStub{
		previewFn: func(ctx context.Context, id, countedRaw string) (*usecase.SessionPreview, error) {
			snapshot := openSnapshot(id)
			counted := domain.ParseLocalizedAmount(countedRaw)
			return &usecase.SessionPreview{
				Session: snapshot,
				Result:  domain.Reconcile(snapshot.CashSession(counted)),
			}, nil
		},
	})

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/cash-sessions/s-1/preview",
		strings.NewReader(`{"counted_closing":"450,00"}`)), "id", "s-1")
	rec := httptest.NewRecorder()
	handler.Preview(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.SessionPreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reconciliation.Severity != domain.SeverityCriticalShortage || !resp.Reconciliation.Critical {
		t.Fatalf("expected critical shortage, got %+v", resp.Reconciliation)
	}
	if resp.Session.ID != "s-1" {
		t.Fatalf("expected session s-1, got %s", resp.Session.ID)
	}
}

func TestCashSessionHandler_Close(t *testing.T) {
	var captured usecase.CloseSessionInput
	handler := NewCashSessionHandler(&cashSessionServiceStub{
		closeFn: func(ctx context.Context, input usecase.CloseSessionInput) (*domain.SessionClosing, error) {
			captured = input
			return &domain.SessionClosing{
				ID:              "cl-1",
				SessionID:       input.SessionID,
				CountedClosing:  decimal.NewFromInt(550),
				ExpectedClosing: decimal.NewFromInt(550),
				Variance:        decimal.Zero,
				Severity:        domain.SeverityMatch,
				Notes:           input.Notes,
				ClosedAt:        time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
			}, nil
		},
	})

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/cash-sessions/s-1/close",
		strings.NewReader(`{"counted_closing":"550,00","notes":"ok"}`)), "id", "s-1")
	rec := httptest.NewRecorder()
	handler.Close(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if captured.SessionID != "s-1" || captured.CountedClosing != "550,00" || captured.Notes != "ok" {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.ClosingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "cl-1" || resp.Delivered {
		t.Fatalf("expected queued closing, got %+v", resp)
	}
}

func TestCashSessionHandler_Close_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already closed", domain.ErrSessionAlreadyClosed, http.StatusConflict},
		{"not open", domain.ErrSessionNotOpen, http.StatusConflict},
		{"backend down", domain.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{"backend credentials", domain.ErrBackendUnauthorized, http.StatusBadGateway},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCashSessionHandler(&cashSessionServiceStub{
				closeFn: func(ctx context.Context, input usecase.CloseSessionInput) (*domain.SessionClosing, error) {
					return nil, tt.err
				},
			})

			req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/cash-sessions/s-1/close",
				strings.NewReader(`{"counted_closing":"1"}`)), "id", "s-1")
			rec := httptest.NewRecorder()
			handler.Close(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}

			var resp dto.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if resp.Message != tt.err.Error() {
				t.Fatalf("expected message %q, got %q", tt.err.Error(), resp.Message)
			}
		})
	}
}

func TestCashSessionHandler_GetClosing(t *testing.T) {
	handler := NewCashSessionHandler(&cashSessionServiceStub{
		getClosingFn: func(ctx context.Context, sessionID string) (*domain.SessionClosing, error) {
			return nil, domain.ErrClosingNotFound
		},
	})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/cash-sessions/s-1/closing", nil), "id", "s-1")
	rec := httptest.NewRecorder()
	handler.GetClosing(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
