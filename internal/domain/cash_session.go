package domain

import (
	"github.com/shopspring/decimal"
)

// CriticalVarianceThreshold is the absolute variance, in currency units, above
// which a closing discrepancy is critical.
const CriticalVarianceThreshold = "50.00"

var criticalVariance = decimal.RequireFromString(CriticalVarianceThreshold)

// Severity classifies a cash-drawer variance.
type Severity string

const (
	SeverityMatch            Severity = "MATCH"
	SeveritySurplus          Severity = "SURPLUS"
	SeverityShortage         Severity = "SHORTAGE"
	SeverityCriticalShortage Severity = "CRITICAL_SHORTAGE"
	SeverityCriticalSurplus  Severity = "CRITICAL_SURPLUS"
)

var severityLabels = map[Severity]string{
	SeverityMatch:            "Conferido",
	SeveritySurplus:          "Sobra",
	SeverityShortage:         "Falta",
	SeverityCriticalShortage: "Falta crítica",
	SeverityCriticalSurplus:  "Sobra crítica",
}

// IsValid checks if the severity is a known value.
func (s Severity) IsValid() bool {
	_, ok := severityLabels[s]
	return ok
}

// IsCritical reports whether the variance exceeded the critical threshold.
func (s Severity) IsCritical() bool {
	return s == SeverityCriticalShortage || s == SeverityCriticalSurplus
}

// Label returns the operator-facing label.
func (s Severity) Label() string {
	return severityLabels[s]
}

// CashSession holds the totals of one register session. Opening float, sales,
// supplements (suprimentos) and withdrawals (sangrias) come from the backend;
// CountedClosing is what the operator counted in the drawer.
type CashSession struct {
	OpeningFloat   decimal.Decimal
	CashSales      decimal.Decimal
	Supplements    decimal.Decimal
	Withdrawals    decimal.Decimal
	CountedClosing decimal.NullDecimal
}

// ExpectedClosing is opening + sales + supplements - withdrawals. It may be
// negative when withdrawals exceed everything else.
func (s CashSession) ExpectedClosing() decimal.Decimal {
	return s.OpeningFloat.
		Add(s.CashSales).
		Add(s.Supplements).
		Sub(s.Withdrawals)
}

// ReconciliationResult is the outcome of comparing counted and expected cash.
type ReconciliationResult struct {
	ExpectedClosing decimal.Decimal
	CountedClosing  decimal.Decimal
	Variance        decimal.Decimal
	Severity        Severity
}

// Reconcile computes the expected closing balance and the signed variance
// (positive = surplus, negative = shortage). Callers validate that a counted
// amount is present; a missing one counts as zero.
func Reconcile(session CashSession) ReconciliationResult {
	expected := session.ExpectedClosing()
	counted := session.CountedClosing.Decimal
	variance := counted.Sub(expected)

	return ReconciliationResult{
		ExpectedClosing: expected,
		CountedClosing:  counted,
		Variance:        variance,
		Severity:        ClassifyVariance(variance),
	}
}

// ClassifyVariance maps a signed variance to its severity.
func ClassifyVariance(variance decimal.Decimal) Severity {
	switch {
	case variance.IsZero():
		return SeverityMatch
	case variance.Abs().GreaterThan(criticalVariance):
		if variance.IsNegative() {
			return SeverityCriticalShortage
		}
		return SeverityCriticalSurplus
	case variance.IsNegative():
		return SeverityShortage
	default:
		return SeveritySurplus
	}
}
