package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Locale conventions for amounts typed and displayed in the PDV (pt-BR).
const (
	ThousandsSeparator = '.'
	DecimalSeparator   = ','
)

var hundred = decimal.NewFromInt(100)

// ParseLocalizedAmount converts a pt-BR formatted string ("1.234,56", "R$ 10,00")
// into an amount. Empty or malformed input yields zero; a minus sign is ignored.
func ParseLocalizedAmount(input string) decimal.Decimal {
	return parseLocalized(input, false)
}

// ParseLocalizedPercent parses like ParseLocalizedAmount but honours a leading
// minus sign, so discounts ("-20") survive.
func ParseLocalizedPercent(input string) decimal.Decimal {
	return parseLocalized(input, true)
}

func parseLocalized(input string, signed bool) decimal.Decimal {
	var (
		b         strings.Builder
		negative  bool
		seenDigit bool
	)

	for _, r := range input {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == DecimalSeparator:
			b.WriteByte('.')
		case r == '-' && signed && !seenDigit:
			negative = true
		}
	}

	s := b.String()
	if !seenDigit {
		return decimal.Zero
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}

	if negative {
		return d.Neg()
	}

	return d
}

// FormatAmount renders value with two decimals, "," as decimal separator and
// "." grouping thousands. No currency symbol is added.
func FormatAmount(value decimal.Decimal) string {
	fixed := value.StringFixed(2)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	out := groupThousands(intPart) + string(DecimalSeparator) + frac

	if negative && out != "0,00" {
		return "-" + out
	}

	return out
}

// FormatPercent renders a derived percentage, or "" when it is undefined.
func FormatPercent(value decimal.NullDecimal) string {
	if !value.Valid {
		return ""
	}
	return FormatAmount(value.Decimal)
}

// ApplyLiveMask treats every digit in raw as part of a cents stream, so the last
// two digits typed are always the decimals: "150" -> "1,50", "5" -> "0,05".
func ApplyLiveMask(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if digits == "" {
		return ""
	}

	digits = strings.TrimLeft(digits, "0")
	for len(digits) < 3 {
		digits = "0" + digits
	}

	cut := len(digits) - 2
	return groupThousands(digits[:cut]) + string(DecimalSeparator) + digits[cut:]
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)

	rem := len(digits) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(digits[:rem])
	for i := rem; i < len(digits); i += 3 {
		b.WriteByte(ThousandsSeparator)
		b.WriteString(digits[i : i+3])
	}

	return b.String()
}
