package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexFloat decodes a JSON number or a numeric string. Empty and "N/A"
// strings decode to zero.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexFloat(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("cannot unmarshal %q into float64", s)
		}
		*f = FlexFloat(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// NormalizeSymbol trims and uppercases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// WatchlistEntry is a symbol on the user's watchlist. The server may send
// either a bare string or an object with a "symbol" field.
type WatchlistEntry string

func (w *WatchlistEntry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*w = WatchlistEntry(NormalizeSymbol(s))
		return nil
	}
	var obj struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("watchlist entry: %w", err)
	}
	*w = WatchlistEntry(NormalizeSymbol(obj.Symbol))
	return nil
}

// Holding is a position in the user's portfolio.
type Holding struct {
	Symbol      string  `json:"symbol"`
	Shares      float64 `json:"shares"`
	AvgCost     float64 `json:"avg_cost"`
	TargetPrice float64 `json:"target_price,omitempty"`
	Thesis      string  `json:"thesis,omitempty"`
}

func (h *Holding) UnmarshalJSON(b []byte) error {
	var raw struct {
		Symbol      string    `json:"symbol"`
		Shares      FlexFloat `json:"shares"`
		AvgCost     FlexFloat `json:"avg_cost"`
		TargetPrice FlexFloat `json:"target_price"`
		Thesis      string    `json:"thesis"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*h = Holding{
		Symbol:      NormalizeSymbol(raw.Symbol),
		Shares:      float64(raw.Shares),
		AvgCost:     float64(raw.AvgCost),
		TargetPrice: float64(raw.TargetPrice),
		Thesis:      raw.Thesis,
	}
	return nil
}

type AlertCondition string

const (
	AlertAbove   AlertCondition = "above"
	AlertBelow   AlertCondition = "below"
	AlertCrosses AlertCondition = "crosses"
)

// Alert is a price alert. Some backends name the identifier "_id".
type Alert struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Condition   AlertCondition `json:"condition"`
	TargetPrice float64        `json:"target_price"`
}

func (a *Alert) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		MongoID     json.RawMessage `json:"_id"`
		Symbol      string          `json:"symbol"`
		Condition   AlertCondition  `json:"condition"`
		TargetPrice FlexFloat       `json:"target_price"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	a.ID = rawID(raw.ID)
	if a.ID == "" {
		a.ID = rawID(raw.MongoID)
	}
	a.Symbol = NormalizeSymbol(raw.Symbol)
	a.Condition = raw.Condition
	a.TargetPrice = float64(raw.TargetPrice)
	return nil
}

// rawID accepts string or numeric identifiers.
func rawID(b json.RawMessage) string {
	if len(b) == 0 || string(b) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		return n.String()
	}
	return ""
}

// AddSymbolsRequest is the bulk watchlist add body. Symbols may be separated
// by commas and/or whitespace.
type AddSymbolsRequest struct {
	Symbols string `json:"symbols" validate:"required"`
}

// HoldingRequest creates or replaces a holding.
type HoldingRequest struct {
	Symbol      string  `json:"symbol" validate:"required,max=16"`
	Shares      float64 `json:"shares" validate:"gt=0"`
	AvgCost     float64 `json:"avg_cost" validate:"gte=0"`
	TargetPrice float64 `json:"target_price,omitempty" validate:"gte=0"`
	Thesis      string  `json:"thesis,omitempty" validate:"max=2000"`
}

// AlertRequest creates a price alert.
type AlertRequest struct {
	Symbol      string         `json:"symbol" validate:"required,max=16"`
	Condition   AlertCondition `json:"condition" default:"above" validate:"oneof=above below crosses"`
	TargetPrice float64        `json:"target_price" validate:"gt=0"`
}

// SymbolResult reports the outcome of one symbol in a bulk operation.
type SymbolResult struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error,omitempty"`
}
