// Package quotes turns the heterogeneous /quotes payloads into a single
// symbol-keyed map.
package quotes

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"WhaleWatch/internal/domain/models"
)

// Field aliases, tried in order. The first present, non-null value wins.
var (
	symbolKeys = []string{"symbol", "ticker"}
	priceKeys  = []string{"price", "latestPrice", "last"}
	changeKeys = []string{"changePercent", "change_pct"}
	seriesKeys = []string{"sparkline", "series"}

	// sparkline endpoint payloads and their points
	sparklineKeys = []string{"sparkline", "series", "points", "prices"}
	pointKeys     = []string{"price", "latestPrice", "last", "close", "c", "value"}
)

// NormalizeJSON decodes a raw response body and normalizes it.
func NormalizeJSON(body []byte) (models.QuoteMap, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	return Normalize(raw), nil
}

// Normalize accepts either a sequence of quote objects or a mapping from
// symbol to quote object. Any other shape yields an empty map.
//
// In a sequence, elements without a symbol are skipped and a repeated symbol
// takes the later element. In a mapping, keys are uppercased and, when two
// keys collide after uppercasing, the already-uppercase key is kept.
func Normalize(raw any) models.QuoteMap {
	out := make(models.QuoteMap)

	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sym := models.NormalizeSymbol(firstString(obj, symbolKeys))
			if sym == "" {
				continue
			}
			out[sym] = fromObject(sym, obj)
		}

	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		// an all-uppercase key sorts before any mixed-case variant of itself
		sort.Strings(keys)
		for _, k := range keys {
			sym := models.NormalizeSymbol(k)
			if sym == "" {
				continue
			}
			if _, seen := out[sym]; seen {
				continue
			}
			obj, _ := v[k].(map[string]any)
			out[sym] = fromObject(sym, obj)
		}
	}

	return out
}

// Series extracts a numeric series from a sparkline response, which is
// either a bare array or an object carrying one of the series aliases.
func Series(raw any) []float64 {
	switch v := raw.(type) {
	case []any:
		return toSeries(v)
	case map[string]any:
		for _, k := range sparklineKeys {
			if arr, ok := v[k].([]any); ok {
				return toSeries(arr)
			}
		}
	}
	return nil
}

func fromObject(sym string, obj map[string]any) models.Quote {
	q := models.Quote{Symbol: sym}
	if obj == nil {
		return q
	}
	q.Price = firstNumber(obj, priceKeys)
	q.ChangePercent = firstNumber(obj, changeKeys)
	for _, k := range seriesKeys {
		if arr, ok := obj[k].([]any); ok {
			q.Series = toSeries(arr)
			break
		}
	}
	return q
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstNumber(obj map[string]any, keys []string) *float64 {
	for _, k := range keys {
		v, present := obj[k]
		if !present || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return &f
		}
	}
	return nil
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toSeries(arr []any) []float64 {
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			if f := firstNumber(obj, pointKeys); f != nil {
				out = append(out, *f)
			}
			continue
		}
		if f, ok := toFloat(item); ok {
			out = append(out, f)
		}
	}
	return out
}
