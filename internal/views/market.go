package views

import (
	"github.com/shopspring/decimal"

	"WhaleWatch/internal/domain/models"
)

// HeatLevel buckets a percent change for color coding.
type HeatLevel string

const (
	HeatNone       HeatLevel = "none"
	HeatStrongUp   HeatLevel = "strong-up"
	HeatUp         HeatLevel = "up"
	HeatSlightUp   HeatLevel = "slight-up"
	HeatSlightDown HeatLevel = "slight-down"
	HeatDown       HeatLevel = "down"
	HeatStrongDown HeatLevel = "strong-down"
)

// Heat buckets at >3, >1, >0, >-1, >-3.
func Heat(change *float64) HeatLevel {
	if change == nil {
		return HeatNone
	}
	switch c := *change; {
	case c > 3:
		return HeatStrongUp
	case c > 1:
		return HeatUp
	case c > 0:
		return HeatSlightUp
	case c > -1:
		return HeatSlightDown
	case c > -3:
		return HeatDown
	default:
		return HeatStrongDown
	}
}

type Sector struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

// DefaultSectors is the built-in grouping used for the sector heat map.
var DefaultSectors = []Sector{
	{Name: "Tech", Symbols: []string{"AAPL", "MSFT", "NVDA", "GOOG", "META", "AMZN"}},
	{Name: "Energy", Symbols: []string{"XOM", "CVX", "OXY", "SLB", "XLE"}},
	{Name: "Defense", Symbols: []string{"LMT", "RTX", "NOC", "GD", "BA"}},
	{Name: "Crypto", Symbols: []string{"BTC-USD", "ETH-USD", "COIN", "MARA", "MSTR"}},
	{Name: "ETFs", Symbols: []string{"SPY", "QQQ", "IWM", "DIA", "VTI"}},
	{Name: "Speculative", Symbols: []string{"GME", "AMC", "PLTR", "SOFI", "RIVN"}},
}

type SectorView struct {
	Name      string    `json:"name"`
	Symbols   []string  `json:"symbols"`
	Resolved  int       `json:"resolved"`
	AvgChange *float64  `json:"avg_change,omitempty"`
	Heat      HeatLevel `json:"heat"`
}

// SectorAverages averages ChangePercent over the symbols of each sector that
// have one. A sector with no resolved symbol has no average.
func SectorAverages(sectors []Sector, quotes models.QuoteMap) []SectorView {
	out := make([]SectorView, 0, len(sectors))
	for _, s := range sectors {
		sum := decimal.Zero
		n := 0
		for _, sym := range s.Symbols {
			if ch, ok := quotes.ChangePercent(models.NormalizeSymbol(sym)); ok {
				sum = sum.Add(decimal.NewFromFloat(ch))
				n++
			}
		}

		view := SectorView{Name: s.Name, Symbols: s.Symbols, Resolved: n}
		if n > 0 {
			view.AvgChange = models.Float64(sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64())
		}
		view.Heat = Heat(view.AvgChange)
		out = append(out, view)
	}
	return out
}

type WatchRow struct {
	Symbol        string    `json:"symbol"`
	Price         *float64  `json:"price,omitempty"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	Series        []float64 `json:"series,omitempty"`
	HasSparkline  bool      `json:"has_sparkline"`
	Heat          HeatLevel `json:"heat"`
	PriceText     string    `json:"price_text"`
	ChangeText    string    `json:"change_text"`
}

// Watchlist joins watchlist entries with quotes, keeping server order.
func Watchlist(entries []models.WatchlistEntry, quotes models.QuoteMap) []WatchRow {
	rows := make([]WatchRow, 0, len(entries))
	for _, e := range entries {
		sym := models.NormalizeSymbol(string(e))
		q := quotes[sym]
		row := WatchRow{
			Symbol:        sym,
			Price:         q.Price,
			ChangePercent: q.ChangePercent,
			Series:        q.Series,
			HasSparkline:  len(q.Series) >= 2,
			Heat:          Heat(q.ChangePercent),
			PriceText:     FormatPrice(q.Price),
			ChangeText:    FormatPct(q.ChangePercent),
		}
		rows = append(rows, row)
	}
	return rows
}

type AlertRow struct {
	models.Alert
	Price           *float64 `json:"price,omitempty"`
	DistancePercent *float64 `json:"distance_percent,omitempty"`
	Triggered       bool     `json:"triggered"`
}

// Alerts joins alerts with current prices. DistancePercent is how far the
// target is from the price, relative to the price.
func Alerts(alerts []models.Alert, quotes models.QuoteMap) []AlertRow {
	rows := make([]AlertRow, 0, len(alerts))
	for _, a := range alerts {
		row := AlertRow{Alert: a}
		price, ok := quotes.Price(models.NormalizeSymbol(a.Symbol))
		if ok {
			row.Price = models.Float64(price)
			if price != 0 {
				p := decimal.NewFromFloat(price)
				dist := decimal.NewFromFloat(a.TargetPrice).Sub(p).Div(p).Mul(decimal.NewFromInt(100))
				row.DistancePercent = models.Float64(dist.InexactFloat64())
			}
			switch a.Condition {
			case models.AlertAbove:
				row.Triggered = price >= a.TargetPrice
			case models.AlertBelow:
				row.Triggered = price <= a.TargetPrice
			}
		}
		rows = append(rows, row)
	}
	return rows
}
