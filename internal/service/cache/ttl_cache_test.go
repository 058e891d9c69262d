package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[[]float64]()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set("AAPL:30", []float64{1, 2}, time.Minute)
	c.Set("forever", nil, 0)

	v, ok := c.Get("AAPL:30")
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2}, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("AAPL:30")
	assert.False(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok)

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestTTLCache_SetSweepsExpired(t *testing.T) {
	c := NewTTLCache[int]()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	for _, k := range []string{"AAPL:30", "TSLA:30", "MSFT:30"} {
		c.Set(k, 1, time.Minute)
	}
	assert.Equal(t, 3, c.Len())

	now = now.Add(2 * time.Minute)
	c.Set("NVDA:30", 1, time.Minute)
	assert.Equal(t, 1, c.Len(), "expired keys are dropped without being read")
}

func TestTTLCache_MaxEntries(t *testing.T) {
	c := NewTTLCache[int](WithMaxEntries(2))
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set("soon", 1, time.Second)
	c.Set("later", 2, time.Hour)
	c.Set("new", 3, time.Minute)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("soon")
	assert.False(t, ok)
	_, ok = c.Get("later")
	assert.True(t, ok)

	c.Set("later", 4, time.Hour)
	assert.Equal(t, 2, c.Len(), "overwriting a key does not evict")
}
