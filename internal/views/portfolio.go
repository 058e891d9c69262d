// Package views computes the read-only projections shown to the user from
// the latest polled data. Nothing here performs I/O.
package views

import (
	"fmt"

	"github.com/shopspring/decimal"

	"WhaleWatch/internal/domain/models"
)

// PricePolicy decides how holdings without a resolved price are treated.
// The same policy applies to per-row and aggregate figures.
type PricePolicy int

const (
	// PriceUnavailable shows no P&L for the row and leaves it out of totals.
	PriceUnavailable PricePolicy = iota
	// PriceFallbackToCost values the row at its average cost, so its P&L is zero.
	PriceFallbackToCost
)

// ParsePricePolicy maps the config values "unavailable" and "cost".
func ParsePricePolicy(s string) (PricePolicy, error) {
	switch s {
	case "", "unavailable":
		return PriceUnavailable, nil
	case "cost":
		return PriceFallbackToCost, nil
	}
	return PriceUnavailable, fmt.Errorf("unknown price policy %q", s)
}

type HoldingRow struct {
	models.Holding
	Price         *float64 `json:"price,omitempty"`
	Fallback      bool     `json:"price_fallback,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	MarketValue   *float64 `json:"market_value,omitempty"`
	PL            *float64 `json:"pl,omitempty"`
	PLPercent     *float64 `json:"pl_percent,omitempty"`
}

type Portfolio struct {
	Rows        []HoldingRow `json:"rows"`
	TotalPL     float64      `json:"total_pl"`
	TotalValue  float64      `json:"total_value"`
	TotalCost   float64      `json:"total_cost"`
	Unresolved  int          `json:"unresolved"`
	TotalPLText string       `json:"total_pl_text"`
}

// PL returns (price - avgCost) * shares.
func PL(h models.Holding, price float64) float64 {
	return plDecimal(h, price).InexactFloat64()
}

// PLPercent returns (price - avgCost) / avgCost * 100. ok is false when the
// average cost is zero.
func PLPercent(h models.Holding, price float64) (float64, bool) {
	if h.AvgCost == 0 {
		return 0, false
	}
	cost := decimal.NewFromFloat(h.AvgCost)
	pct := decimal.NewFromFloat(price).Sub(cost).Div(cost).Mul(decimal.NewFromInt(100))
	return pct.InexactFloat64(), true
}

func plDecimal(h models.Holding, price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(h.AvgCost)).
		Mul(decimal.NewFromFloat(h.Shares))
}

// Holdings builds one row per holding, in input order.
func Holdings(holdings []models.Holding, quotes models.QuoteMap, policy PricePolicy) []HoldingRow {
	rows := make([]HoldingRow, 0, len(holdings))
	for _, h := range holdings {
		sym := models.NormalizeSymbol(h.Symbol)
		row := HoldingRow{Holding: h}
		row.Symbol = sym

		if ch, ok := quotes.ChangePercent(sym); ok {
			row.ChangePercent = models.Float64(ch)
		}

		price, ok := quotes.Price(sym)
		if !ok {
			if policy != PriceFallbackToCost {
				rows = append(rows, row)
				continue
			}
			price = h.AvgCost
			row.Fallback = true
		}

		row.Price = models.Float64(price)
		row.MarketValue = models.Float64(decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(h.Shares)).InexactFloat64())
		row.PL = models.Float64(PL(h, price))
		if pct, ok := PLPercent(h, price); ok {
			row.PLPercent = models.Float64(pct)
		}
		rows = append(rows, row)
	}
	return rows
}

// TotalPL sums the P&L of rows that have one.
func TotalPL(rows []HoldingRow) float64 {
	total := decimal.Zero
	for _, r := range rows {
		if r.PL != nil {
			total = total.Add(decimal.NewFromFloat(*r.PL))
		}
	}
	return total.InexactFloat64()
}

// BuildPortfolio computes rows and totals under one policy.
func BuildPortfolio(holdings []models.Holding, quotes models.QuoteMap, policy PricePolicy) Portfolio {
	rows := Holdings(holdings, quotes, policy)

	value, cost := decimal.Zero, decimal.Zero
	unresolved := 0
	for _, r := range rows {
		if r.Price == nil || r.Fallback {
			unresolved++
		}
		if r.MarketValue == nil {
			continue
		}
		value = value.Add(decimal.NewFromFloat(*r.MarketValue))
		cost = cost.Add(decimal.NewFromFloat(r.AvgCost).Mul(decimal.NewFromFloat(r.Shares)))
	}

	total := TotalPL(rows)
	return Portfolio{
		Rows:        rows,
		TotalPL:     total,
		TotalValue:  value.InexactFloat64(),
		TotalCost:   cost.InexactFloat64(),
		Unresolved:  unresolved,
		TotalPLText: FormatPL(total),
	}
}
