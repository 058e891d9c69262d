package views

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholder is shown for values that are not available.
const Placeholder = "—"

// FormatPrice renders a USD amount like "$1,234.56".
func FormatPrice(p *float64) string {
	if p == nil {
		return Placeholder
	}
	return usd(decimal.NewFromFloat(*p))
}

// FormatPct renders "+2.50%" or "-0.40%". Zero is shown with a plus sign.
func FormatPct(p *float64) string {
	if p == nil {
		return Placeholder
	}
	d := decimal.NewFromFloat(*p).Round(2)
	sign := ""
	if !d.IsNegative() {
		sign = "+"
	}
	return sign + d.StringFixed(2) + "%"
}

// FormatPL renders a signed amount like "+$200.00".
func FormatPL(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-" + usd(d.Abs())
	}
	return "+" + usd(d)
}

func usd(d decimal.Decimal) string {
	neg := d.Round(2).IsNegative()
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
