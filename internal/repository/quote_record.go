// Package repository holds the QuoteSink implementations.
package repository

import (
	"sort"
	"time"

	"WhaleWatch/internal/domain/models"
)

// QuoteRecord is the flattened, externally published form of one quote.
type QuoteRecord struct {
	Symbol        string    `json:"symbol"`
	Price         *float64  `json:"price"`
	ChangePercent *float64  `json:"change_percent"`
	At            time.Time `json:"at"`
}

// records flattens quotes in symbol order so batches are deterministic.
func records(at time.Time, quotes models.QuoteMap) []QuoteRecord {
	syms := make([]string, 0, len(quotes))
	for sym := range quotes {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	out := make([]QuoteRecord, 0, len(syms))
	for _, sym := range syms {
		q := quotes[sym]
		out = append(out, QuoteRecord{Symbol: sym, Price: q.Price, ChangePercent: q.ChangePercent, At: at.UTC()})
	}
	return out
}
