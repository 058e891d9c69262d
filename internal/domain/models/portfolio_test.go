package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlistEntry_StringOrObject(t *testing.T) {
	var entries []WatchlistEntry
	require.NoError(t, json.Unmarshal([]byte(`["aapl", {"symbol": " tsla "}, "AAPL"]`), &entries))
	assert.Equal(t, []WatchlistEntry{"AAPL", "TSLA", "AAPL"}, entries)
}

func TestAlert_IDFallback(t *testing.T) {
	var alerts []Alert
	body := `[
		{"id": "a1", "symbol": "nvda", "condition": "above", "target_price": 900},
		{"_id": "m2", "symbol": "AMD", "condition": "below", "target_price": 100},
		{"id": 7, "symbol": "SPY", "condition": "crosses", "target_price": 500}
	]`
	require.NoError(t, json.Unmarshal([]byte(body), &alerts))
	require.Len(t, alerts, 3)

	assert.Equal(t, "a1", alerts[0].ID)
	assert.Equal(t, "NVDA", alerts[0].Symbol)
	assert.Equal(t, "m2", alerts[1].ID)
	assert.Equal(t, AlertBelow, alerts[1].Condition)
	assert.Equal(t, "7", alerts[2].ID)
}

func TestQuoteMap_Lookups(t *testing.T) {
	m := QuoteMap{
		"AAPL": {Symbol: "AAPL", Price: Float64(190), ChangePercent: Float64(1.5)},
		"XYZ":  {Symbol: "XYZ"},
	}

	p, ok := m.Price("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 190.0, p)

	_, ok = m.Price("XYZ")
	assert.False(t, ok)
	_, ok = m.ChangePercent("MISSING")
	assert.False(t, ok)
}

func TestIdentity_NumericID(t *testing.T) {
	var resp AuthResponse
	require.NoError(t, json.Unmarshal([]byte(`{"user":{"id":42,"email":"a@b.co","role":"admin"},"token":"t"}`), &resp))
	assert.Equal(t, "42", resp.User.ID)
	assert.Equal(t, "admin", resp.User.Role)
	assert.True(t, resp.User.Valid())

	var empty Identity
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	assert.False(t, empty.Valid())
}

func TestHolding_FlexibleNumbers(t *testing.T) {
	var holdings []Holding
	body := `[{"symbol":"tsla","shares":"10.0000","avg_cost":200,"target_price":null,"thesis":"robotaxi"}]`
	require.NoError(t, json.Unmarshal([]byte(body), &holdings))
	require.Len(t, holdings, 1)

	h := holdings[0]
	assert.Equal(t, "TSLA", h.Symbol)
	assert.Equal(t, 10.0, h.Shares)
	assert.Equal(t, 200.0, h.AvgCost)
	assert.Zero(t, h.TargetPrice)

	var bad Holding
	assert.Error(t, json.Unmarshal([]byte(`{"shares":"ten"}`), &bad))
}
