package dto

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
)

func TestRecomputePricingRequest_ToUseCaseInput(t *testing.T) {
	var req RecomputePricingRequest
	body := `{"current":{"cost":"100","sale_price":150,"markup_percent":"50","margin_percent":null},"field":"cost","input":"80,00"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	input := req.ToUseCaseInput()

	if input.Field != domain.PricingFieldCost {
		t.Fatalf("expected cost field, got %s", input.Field)
	}
	if input.Input != "80,00" {
		t.Fatalf("expected raw input to pass through, got %q", input.Input)
	}
	if !input.Current.Cost.Equal(decimal.NewFromInt(100)) || !input.Current.SalePrice.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected current pricing %+v", input.Current)
	}
	if !input.Current.MarkupPercent.Valid || !input.Current.MarkupPercent.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected markup 50, got %+v", input.Current.MarkupPercent)
	}
	if input.Current.MarginPercent.Valid {
		t.Fatal("expected blank margin")
	}
}

func TestReconcileRequest_ToUseCaseInput(t *testing.T) {
	req := ReconcileRequest{
		OpeningFloat:   "100,00",
		CashSales:      "500,00",
		Supplements:    "0",
		Withdrawals:    "50,00",
		CountedClosing: "550,00",
	}

	input := req.ToUseCaseInput()
	if input.OpeningFloat != "100,00" || input.Withdrawals != "50,00" || input.CountedClosing != "550,00" {
		t.Fatalf("unexpected input %+v", input)
	}
}

func TestCloseSessionRequest_ToUseCaseInput(t *testing.T) {
	req := CloseSessionRequest{CountedClosing: "500,00", Notes: "troco conferido"}

	input := req.ToUseCaseInput("s-1")
	if input.SessionID != "s-1" || input.CountedClosing != "500,00" || input.Notes != "troco conferido" {
		t.Fatalf("unexpected input %+v", input)
	}
}
