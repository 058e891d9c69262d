package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/gateway"
	"WhaleWatch/internal/service/marketapi"
	"WhaleWatch/internal/session"
	"WhaleWatch/internal/views"
	"WhaleWatch/pkg/cache"
)

var slow = Intervals{
	Quotes:    time.Hour,
	Watchlist: time.Hour,
	Holdings:  time.Hour,
	Alerts:    time.Hour,
	Health:    time.Hour,
}

// fakeBackend serves the remote API from memory.
type fakeBackend struct {
	mu        sync.Mutex
	watchlist []string
	reject    atomic.Bool
	failAdd   map[string]bool
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if b.reject.Load() || r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/quotes", guard(func(w http.ResponseWriter, r *http.Request) {
		write(w, []map[string]any{
			{"symbol": "TSLA", "price": 220, "changePercent": 4},
			{"symbol": "AAPL", "changePercent": 1},
		})
	}))
	mux.HandleFunc("/watchlist", guard(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if r.Method == http.MethodPost {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if b.failAdd[body["symbol"]] {
				w.WriteHeader(http.StatusBadRequest)
				write(w, map[string]string{"error": "unknown symbol"})
				return
			}
			b.watchlist = append(b.watchlist, body["symbol"])
			write(w, map[string]bool{"ok": true})
			return
		}
		write(w, b.watchlist)
	}))
	mux.HandleFunc("/holdings", guard(func(w http.ResponseWriter, r *http.Request) {
		write(w, []map[string]any{
			{"symbol": "TSLA", "shares": 10, "avg_cost": 200},
			{"symbol": "AAPL", "shares": 5, "avg_cost": 150},
		})
	}))
	mux.HandleFunc("/alerts", guard(func(w http.ResponseWriter, r *http.Request) {
		write(w, []map[string]any{{"_id": "a1", "symbol": "TSLA", "condition": "above", "target_price": 200}})
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]any{"status": "ok"})
	})
	return mux
}

type recordingSink struct {
	got chan models.QuoteMap
}

func (s *recordingSink) Init(context.Context) error { return nil }
func (s *recordingSink) Close() error { return nil }
func (s *recordingSink) Publish(_ context.Context, _ time.Time, q models.QuoteMap) error {
	select {
	case s.got <- q:
	default:
	}
	return nil
}

func newDashboard(t *testing.T, backend *fakeBackend, opts ...DashboardOption) (*DashboardUseCase, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	store := session.NewStore(cache.NewMemoryCache())
	require.NoError(t, store.Set(context.Background(), models.Identity{ID: "u1", Email: "a@b.co"}, "tok"))

	api := marketapi.New(gateway.New(srv.URL, store))
	d := NewDashboardUseCase(api, store, append([]DashboardOption{WithIntervals(slow)}, opts...)...)
	t.Cleanup(d.Stop)
	return d, store
}

func waitLoaded(t *testing.T, d *DashboardUseCase) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = d.Snapshot()
		return !snap.Loading
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestDashboard_RequiresSession(t *testing.T) {
	store := session.NewStore(cache.NewMemoryCache())
	d := NewDashboardUseCase(nil, store)

	assert.ErrorIs(t, d.Start(context.Background()), ErrNotAuthenticated)
	assert.False(t, d.Running())
}

func TestDashboard_SnapshotJoinsSources(t *testing.T) {
	backend := &fakeBackend{watchlist: []string{"TSLA", "AAPL"}}
	sink := &recordingSink{got: make(chan models.QuoteMap, 1)}
	d, _ := newDashboard(t, backend, WithSink(sink))

	require.NoError(t, d.Start(context.Background()))
	snap := waitLoaded(t, d)

	assert.True(t, snap.Authenticated)
	assert.Empty(t, snap.Errors)
	assert.Equal(t, 2, snap.QuoteCount)

	require.Len(t, snap.Watchlist, 2)
	assert.Equal(t, "$220.00", snap.Watchlist[0].PriceText)
	assert.Nil(t, snap.Watchlist[1].Price, "AAPL has no price")

	assert.Equal(t, 200.0, snap.Portfolio.TotalPL)
	assert.Nil(t, snap.Portfolio.Rows[1].PL)

	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, "a1", snap.Alerts[0].ID)
	assert.True(t, snap.Alerts[0].Triggered)

	assert.Equal(t, "Tech", snap.Sectors[0].Name)
	assert.Equal(t, 1, snap.Sectors[0].Resolved)
	assert.Equal(t, views.HeatSlightUp, snap.Sectors[0].Heat)

	select {
	case q := <-sink.got:
		assert.Contains(t, q, "TSLA")
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received quotes")
	}
}

func TestDashboard_UnauthorizedStopsEverything(t *testing.T) {
	backend := &fakeBackend{watchlist: []string{"TSLA"}}
	d, store := newDashboard(t, backend)

	require.NoError(t, d.Start(context.Background()))
	waitLoaded(t, d)

	var snaps []Snapshot
	var mu sync.Mutex
	d.Subscribe(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	backend.reject.Store(true)
	snap, _ := d.Refresh(context.Background())

	assert.False(t, store.Current().Authenticated())
	assert.False(t, d.Running())
	assert.False(t, snap.Authenticated)
	assert.Equal(t, "unauthorized", snap.Errors["session"])

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snaps)
	assert.False(t, snaps[len(snaps)-1].Authenticated)
}

func TestDashboard_UnauthorizedDuringStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		backend := &fakeBackend{}
		backend.reject.Store(true)
		d, store := newDashboard(t, backend)

		err := d.Start(context.Background())
		if err != nil {
			assert.ErrorIs(t, err, ErrNotAuthenticated)
		}
		require.Eventually(t, func() bool {
			return !d.Running() && !store.Current().Authenticated()
		}, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, "unauthorized", d.Snapshot().Errors["session"])
	}
}

func TestDashboard_AddSymbols(t *testing.T) {
	backend := &fakeBackend{failAdd: map[string]bool{"NOPE": true}}
	d, _ := newDashboard(t, backend)
	require.NoError(t, d.Start(context.Background()))
	waitLoaded(t, d)

	results, err := d.AddSymbols(context.Background(), "nvda, nope\tamd,,NVDA")
	require.NoError(t, err)
	assert.Equal(t, []models.SymbolResult{
		{Symbol: "NVDA"},
		{Symbol: "NOPE", Error: "unknown symbol"},
		{Symbol: "AMD"},
	}, results)

	var syms []string
	for _, r := range d.Snapshot().Watchlist {
		syms = append(syms, r.Symbol)
	}
	assert.Equal(t, []string{"NVDA", "AMD"}, syms, "watchlist refreshed after the add")

	_, err = d.AddSymbols(context.Background(), " , ")
	assert.ErrorIs(t, err, ErrNoSymbols)
}

func TestDashboard_MutationErrorsSurface(t *testing.T) {
	backend := &fakeBackend{}
	d, _ := newDashboard(t, backend)

	err := d.RemoveSymbol(context.Background(), "")
	assert.ErrorIs(t, err, marketapi.ErrEmptySymbol)

	backend.reject.Store(true)
	err = d.CreateAlert(context.Background(), models.AlertRequest{Symbol: "TSLA", Condition: models.AlertAbove, TargetPrice: 1})
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestParseSymbols(t *testing.T) {
	tests := map[string][]string{
		"aapl":                 {"AAPL"},
		"aapl, msft":           {"AAPL", "MSFT"},
		"  btc-usd\neth-usd  ": {"BTC-USD", "ETH-USD"},
		"spy,spy SPY":          {"SPY"},
		"":                     nil,
		" ,, ":                 nil,
	}
	for in, want := range tests {
		t.Run(strings.TrimSpace(in), func(t *testing.T) {
			assert.Equal(t, want, ParseSymbols(in))
		})
	}
}
