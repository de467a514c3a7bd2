package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
)

var jsonNull = []byte("null")

// FlexibleTime accepts the date shapes the backend emits: ISO-8601 strings with or
// without zone, plain dates, and Jackson-style [y, m, d, h, mi, s, nanos] arrays.
type FlexibleTime struct {
	time.Time
}

var flexibleTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *FlexibleTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		t.Time = time.Time{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return t.parseString(s)
	case '[':
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("invalid date array %s: %w", data, err)
		}
		return t.fromParts(parts)
	default:
		return fmt.Errorf("unsupported date value %s", data)
	}
}

func (t *FlexibleTime) parseString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range flexibleTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}

	return fmt.Errorf("unsupported date format %q", s)
}

func (t *FlexibleTime) fromParts(parts []int) error {
	if len(parts) < 3 {
		return fmt.Errorf("date array needs at least year, month and day, got %d values", len(parts))
	}

	// year, month, day, hour, minute, second, nanosecond
	v := make([]int, 7)
	copy(v, parts)

	t.Time = time.Date(v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], v[6], time.UTC)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t FlexibleTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return jsonNull, nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Amount accepts JSON numbers, numeric strings and pt-BR formatted strings.
// null and blank decode to zero.
type Amount struct {
	decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		a.Decimal = decimal.Zero
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	}

	if raw == "" {
		a.Decimal = decimal.Zero
		return nil
	}

	if d, err := decimal.NewFromString(raw); err == nil {
		a.Decimal = d
		return nil
	}

	// "1.234,56" and "R$ 10,00" style values
	if strings.ContainsAny(raw, "0123456789") {
		a.Decimal = domain.ParseLocalizedAmount(raw)
		return nil
	}

	return fmt.Errorf("invalid amount %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// FlexibleID accepts numeric or string identifiers.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid identifier %s: %w", data, err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("invalid identifier %s: %w", data, err)
	}

	*id = FlexibleID(n.String())
	return nil
}

// sessionPayload is the backend's cash session representation.
type sessionPayload struct {
	ID           FlexibleID   `json:"id"`
	RegisterID   FlexibleID   `json:"caixaId"`
	Operator     string       `json:"operador"`
	Status       string       `json:"status"`
	OpenedAt     FlexibleTime `json:"dataAbertura"`
	OpeningFloat Amount       `json:"valorAbertura"`
	CashSales    Amount       `json:"totalVendasDinheiro"`
	Supplements  Amount       `json:"totalSuprimentos"`
	Withdrawals  Amount       `json:"totalSangrias"`
}

func (p *sessionPayload) toDomain() *domain.SessionSnapshot {
	return &domain.SessionSnapshot{
		ID:           string(p.ID),
		RegisterID:   string(p.RegisterID),
		Operator:     p.Operator,
		Status:       normalizeStatus(p.Status),
		OpenedAt:     p.OpenedAt.Time,
		OpeningFloat: p.OpeningFloat.Decimal,
		CashSales:    p.CashSales.Decimal,
		Supplements:  p.Supplements.Decimal,
		Withdrawals:  p.Withdrawals.Decimal,
	}
}

func normalizeStatus(raw string) domain.SessionStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OPEN", "ABERTO", "ABERTA":
		return domain.SessionStatusOpen
	case "CLOSED", "FECHADO", "FECHADA":
		return domain.SessionStatusClosed
	default:
		return domain.SessionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	}
}

// closingPayload is the body submitted to close a session on the backend.
type closingPayload struct {
	ClosingID       string       `json:"fechamentoId"`
	SessionID       string       `json:"sessaoId"`
	CountedClosing  Amount       `json:"valorContado"`
	ExpectedClosing Amount       `json:"valorEsperado"`
	Variance        Amount       `json:"diferenca"`
	Severity        string       `json:"classificacao"`
	Notes           string       `json:"observacoes,omitempty"`
	ClosedAt        FlexibleTime `json:"dataFechamento"`
}

func closingPayloadFromDomain(c *domain.SessionClosing) closingPayload {
	return closingPayload{
		ClosingID:       c.ID,
		SessionID:       c.SessionID,
		CountedClosing:  Amount{c.CountedClosing},
		ExpectedClosing: Amount{c.ExpectedClosing},
		Variance:        Amount{c.Variance},
		Severity:        string(c.Severity),
		Notes:           c.Notes,
		ClosedAt:        FlexibleTime{c.ClosedAt},
	}
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (p errorPayload) text() string {
	if p.Message != "" {
		return p.Message
	}
	return p.Error
}
