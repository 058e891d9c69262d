package usecase

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/domain/repository"
	"WhaleWatch/internal/gateway"
	"WhaleWatch/internal/poller"
	"WhaleWatch/internal/views"
	"WhaleWatch/pkg/logger"
)

var ErrNoSymbols = errors.New("no symbols given")

// MarketAPI is the part of the market API the dashboard polls and mutates.
type MarketAPI interface {
	Quotes(ctx context.Context) (models.QuoteMap, error)
	Watchlist(ctx context.Context) ([]models.WatchlistEntry, error)
	Holdings(ctx context.Context) ([]models.Holding, error)
	Alerts(ctx context.Context) ([]models.Alert, error)
	Health(ctx context.Context) (map[string]any, error)

	AddToWatchlist(ctx context.Context, symbol string) error
	RemoveFromWatchlist(ctx context.Context, symbol string) error
	AddHolding(ctx context.Context, req models.HoldingRequest) error
	DeleteHolding(ctx context.Context, symbol string) error
	CreateAlert(ctx context.Context, req models.AlertRequest) error
	DeleteAlert(ctx context.Context, id string) error

	Trades(ctx context.Context, symbol string, limit int) ([]map[string]any, error)
	Sparkline(ctx context.Context, symbol string, points int) ([]float64, error)
}

// Intervals are the polling cadences per source.
type Intervals struct {
	Quotes    time.Duration
	Watchlist time.Duration
	Holdings  time.Duration
	Alerts    time.Duration
	Health    time.Duration
}

// DefaultIntervals matches what the dashboard needs to feel live without
// hammering the server.
var DefaultIntervals = Intervals{
	Quotes:    15 * time.Second,
	Watchlist: 30 * time.Second,
	Holdings:  30 * time.Second,
	Alerts:    30 * time.Second,
	Health:    60 * time.Second,
}

// Source names, used as poller names and error keys.
const (
	SourceQuotes    = "quotes"
	SourceWatchlist = "watchlist"
	SourceHoldings  = "holdings"
	SourceAlerts    = "alerts"
	SourceHealth    = "health"
)

// Snapshot is everything the presentation layer shows, derived from the
// latest poll results.
type Snapshot struct {
	Authenticated bool               `json:"authenticated"`
	User          *models.Identity   `json:"user,omitempty"`
	Loading       bool               `json:"loading"`
	Watchlist     []views.WatchRow   `json:"watchlist"`
	Portfolio     views.Portfolio    `json:"portfolio"`
	Sectors       []views.SectorView `json:"sectors"`
	Alerts        []views.AlertRow   `json:"alerts"`
	QuoteCount    int                `json:"quote_count"`
	Health        map[string]any     `json:"health,omitempty"`
	Errors        map[string]string  `json:"errors,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type pollers struct {
	quotes    *poller.Poller[models.QuoteMap]
	watchlist *poller.Poller[[]models.WatchlistEntry]
	holdings  *poller.Poller[[]models.Holding]
	alerts    *poller.Poller[[]models.Alert]
	health    *poller.Poller[map[string]any]
}

func (p *pollers) stop() {
	p.quotes.Stop()
	p.watchlist.Stop()
	p.holdings.Stop()
	p.alerts.Stop()
	p.health.Stop()
}

type sinkBatch struct {
	at     time.Time
	quotes models.QuoteMap
}

// DashboardUseCase owns one poller per data source for as long as a session
// is active and recomputes the snapshot whenever any of them updates.
type DashboardUseCase struct {
	api       MarketAPI
	sessions  SessionManager
	sink      repository.QuoteSink
	metrics   repository.Metrics
	logger    *logger.Logger
	policy    views.PricePolicy
	sectors   []views.Sector
	intervals Intervals

	mu        sync.Mutex
	active    *pollers
	cancel    context.CancelFunc
	sinkCh    chan sinkBatch
	unsubs    []func()
	listeners map[int]func(Snapshot)
	nextID    int
	lost      bool
}

type DashboardOption func(*DashboardUseCase)

func WithIntervals(iv Intervals) DashboardOption {
	return func(d *DashboardUseCase) { d.intervals = iv }
}

func WithPricePolicy(p views.PricePolicy) DashboardOption {
	return func(d *DashboardUseCase) { d.policy = p }
}

func WithSectors(s []views.Sector) DashboardOption {
	return func(d *DashboardUseCase) { d.sectors = s }
}

func WithSink(s repository.QuoteSink) DashboardOption {
	return func(d *DashboardUseCase) { d.sink = s }
}

func WithDashboardMetrics(m repository.Metrics) DashboardOption {
	return func(d *DashboardUseCase) { d.metrics = m }
}

func WithDashboardLogger(l *logger.Logger) DashboardOption {
	return func(d *DashboardUseCase) { d.logger = l }
}

func NewDashboardUseCase(api MarketAPI, sessions SessionManager, opts ...DashboardOption) *DashboardUseCase {
	d := &DashboardUseCase{
		api:       api,
		sessions:  sessions,
		sink:      repository.NopSink{},
		metrics:   repository.NopMetrics{},
		logger:    logger.Nop(),
		policy:    views.PriceUnavailable,
		sectors:   views.DefaultSectors,
		intervals: DefaultIntervals,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins polling every source. It requires an authenticated session
// and is a no-op when already running.
func (d *DashboardUseCase) Start(ctx context.Context) error {
	if !d.sessions.Current().Authenticated() {
		return ErrNotAuthenticated
	}

	d.mu.Lock()
	if d.active != nil {
		d.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	popts := []poller.Option{poller.WithLogger(d.logger), poller.WithMetrics(d.metrics)}
	p := &pollers{
		quotes:    poller.New(SourceQuotes, d.api.Quotes, d.intervals.Quotes, popts...),
		watchlist: poller.New(SourceWatchlist, d.api.Watchlist, d.intervals.Watchlist, popts...),
		holdings:  poller.New(SourceHoldings, d.api.Holdings, d.intervals.Holdings, popts...),
		alerts:    poller.New(SourceAlerts, d.api.Alerts, d.intervals.Alerts, popts...),
		health:    poller.New(SourceHealth, d.api.Health, d.intervals.Health, popts...),
	}

	d.active = p
	d.cancel = cancel
	d.lost = false
	d.sinkCh = make(chan sinkBatch, 8)
	d.unsubs = []func(){
		p.quotes.Subscribe(func(r poller.Result[models.QuoteMap]) {
			if r.Err == nil && r.HasValue {
				d.forward(r.Value, r.UpdatedAt)
			}
			d.publish()
		}),
		p.watchlist.Subscribe(func(poller.Result[[]models.WatchlistEntry]) { d.publish() }),
		p.holdings.Subscribe(func(poller.Result[[]models.Holding]) { d.publish() }),
		p.alerts.Subscribe(func(poller.Result[[]models.Alert]) { d.publish() }),
		p.health.Subscribe(func(poller.Result[map[string]any]) { d.publish() }),
		d.sessions.Subscribe(d.onSession),
	}
	go d.runSink(runCtx, d.sinkCh)

	// A 401 on the first fetch tears the pollers down through onSession,
	// which waits on d.mu until every poller has been started.
	for _, start := range []func(context.Context) error{
		p.quotes.Start, p.watchlist.Start, p.holdings.Start, p.alerts.Start, p.health.Start,
	} {
		if err := start(runCtx); err != nil {
			d.mu.Unlock()
			d.Stop()
			return err
		}
	}
	d.mu.Unlock()

	if d.sessionLost() {
		return ErrNotAuthenticated
	}
	d.logger.Info("dashboard polling started")
	return nil
}

func (d *DashboardUseCase) sessionLost() bool {
	d.mu.Lock()
	lost := d.lost
	d.mu.Unlock()
	return lost || !d.sessions.Current().Authenticated()
}

// Stop halts every poller. Results still in flight are discarded.
func (d *DashboardUseCase) Stop() {
	d.mu.Lock()
	p := d.active
	cancel := d.cancel
	unsubs := d.unsubs
	d.active = nil
	d.cancel = nil
	d.unsubs = nil
	d.mu.Unlock()

	if p == nil {
		return
	}
	for _, u := range unsubs {
		u()
	}
	p.stop()
	cancel()
	d.logger.Info("dashboard polling stopped")
}

// Running reports whether the pollers are active.
func (d *DashboardUseCase) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != nil
}

func (d *DashboardUseCase) onSession(s models.Session) {
	if s.Authenticated() {
		return
	}
	d.mu.Lock()
	d.lost = true
	d.mu.Unlock()

	d.logger.Warn("session ended, stopping dashboard")
	d.Stop()
	d.publish()
}

// Snapshot derives the current view from the latest poll results.
func (d *DashboardUseCase) Snapshot() Snapshot {
	sess := d.sessions.Current()
	snap := Snapshot{
		Authenticated: sess.Authenticated(),
		User:          sess.Identity,
		Errors:        map[string]string{},
		UpdatedAt:     time.Now(),
		Watchlist:     []views.WatchRow{},
		Alerts:        []views.AlertRow{},
	}

	d.mu.Lock()
	p := d.active
	lost := d.lost
	d.mu.Unlock()

	if p == nil {
		if lost {
			snap.Errors["session"] = gateway.ErrUnauthorized.Error()
		}
		snap.Portfolio = views.BuildPortfolio(nil, nil, d.policy)
		snap.Sectors = views.SectorAverages(d.sectors, nil)
		return snap
	}

	q := p.quotes.Result()
	w := p.watchlist.Result()
	h := p.holdings.Result()
	a := p.alerts.Result()
	hl := p.health.Result()

	snap.Loading = q.Loading || w.Loading || h.Loading || a.Loading
	for name, msg := range map[string]string{
		SourceQuotes:    q.ErrMessage(),
		SourceWatchlist: w.ErrMessage(),
		SourceHoldings:  h.ErrMessage(),
		SourceAlerts:    a.ErrMessage(),
		SourceHealth:    hl.ErrMessage(),
	} {
		if msg != "" {
			snap.Errors[name] = msg
		}
	}

	quotes := q.Value
	snap.QuoteCount = len(quotes)
	snap.Watchlist = views.Watchlist(w.Value, quotes)
	snap.Portfolio = views.BuildPortfolio(h.Value, quotes, d.policy)
	snap.Sectors = views.SectorAverages(d.sectors, quotes)
	snap.Alerts = views.Alerts(a.Value, quotes)
	snap.Health = hl.Value
	return snap
}

// Subscribe registers fn to receive a fresh snapshot after every update.
func (d *DashboardUseCase) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *DashboardUseCase) publish() {
	d.mu.Lock()
	if len(d.listeners) == 0 {
		d.mu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(d.listeners))
	for i := 0; i < d.nextID; i++ {
		if fn, ok := d.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	d.mu.Unlock()

	snap := d.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// Refresh re-fetches every source concurrently and returns the resulting
// snapshot.
func (d *DashboardUseCase) Refresh(ctx context.Context) (Snapshot, error) {
	d.mu.Lock()
	p := d.active
	d.mu.Unlock()
	if p == nil {
		return d.Snapshot(), ErrNotAuthenticated
	}

	var wg sync.WaitGroup
	for _, refresh := range []func(context.Context){
		func(ctx context.Context) { p.quotes.Refresh(ctx) },
		func(ctx context.Context) { p.watchlist.Refresh(ctx) },
		func(ctx context.Context) { p.holdings.Refresh(ctx) },
		func(ctx context.Context) { p.alerts.Refresh(ctx) },
		func(ctx context.Context) { p.health.Refresh(ctx) },
	} {
		wg.Add(1)
		go func(fn func(context.Context)) {
			defer wg.Done()
			fn(ctx)
		}(refresh)
	}
	wg.Wait()

	return d.Snapshot(), nil
}

func (d *DashboardUseCase) refreshSource(ctx context.Context, sources ...string) {
	d.mu.Lock()
	p := d.active
	d.mu.Unlock()
	if p == nil {
		return
	}
	for _, s := range sources {
		switch s {
		case SourceQuotes:
			p.quotes.Refresh(ctx)
		case SourceWatchlist:
			p.watchlist.Refresh(ctx)
		case SourceHoldings:
			p.holdings.Refresh(ctx)
		case SourceAlerts:
			p.alerts.Refresh(ctx)
		}
	}
}

var symbolSeparators = regexp.MustCompile(`[\s,]+`)

// ParseSymbols splits free text on commas and whitespace, uppercases each
// symbol and drops empties and repeats.
func ParseSymbols(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range symbolSeparators.Split(raw, -1) {
		sym := models.NormalizeSymbol(part)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// AddSymbols adds each symbol in raw to the watchlist and reports the outcome
// per symbol. It stops at the first rejected credential.
func (d *DashboardUseCase) AddSymbols(ctx context.Context, raw string) ([]models.SymbolResult, error) {
	syms := ParseSymbols(raw)
	if len(syms) == 0 {
		return nil, ErrNoSymbols
	}

	results := make([]models.SymbolResult, 0, len(syms))
	added := 0
	for _, sym := range syms {
		err := d.api.AddToWatchlist(ctx, sym)
		if gateway.IsUnauthorized(err) {
			return results, err
		}
		res := models.SymbolResult{Symbol: sym}
		if err != nil {
			res.Error = err.Error()
			d.logger.Warn("watchlist add failed", logger.String("symbol", sym), logger.Error(err))
		} else {
			added++
		}
		results = append(results, res)
	}

	if added > 0 {
		d.refreshSource(ctx, SourceWatchlist, SourceQuotes)
	}
	return results, nil
}

func (d *DashboardUseCase) RemoveSymbol(ctx context.Context, symbol string) error {
	if err := d.api.RemoveFromWatchlist(ctx, symbol); err != nil {
		return err
	}
	d.refreshSource(ctx, SourceWatchlist)
	return nil
}

func (d *DashboardUseCase) AddHolding(ctx context.Context, req models.HoldingRequest) error {
	if err := d.api.AddHolding(ctx, req); err != nil {
		return err
	}
	d.refreshSource(ctx, SourceHoldings)
	return nil
}

func (d *DashboardUseCase) RemoveHolding(ctx context.Context, symbol string) error {
	if err := d.api.DeleteHolding(ctx, symbol); err != nil {
		return err
	}
	d.refreshSource(ctx, SourceHoldings)
	return nil
}

func (d *DashboardUseCase) CreateAlert(ctx context.Context, req models.AlertRequest) error {
	if err := d.api.CreateAlert(ctx, req); err != nil {
		return err
	}
	d.refreshSource(ctx, SourceAlerts)
	return nil
}

func (d *DashboardUseCase) DeleteAlert(ctx context.Context, id string) error {
	if err := d.api.DeleteAlert(ctx, id); err != nil {
		return err
	}
	d.refreshSource(ctx, SourceAlerts)
	return nil
}

func (d *DashboardUseCase) Trades(ctx context.Context, symbol string, limit int) ([]map[string]any, error) {
	return d.api.Trades(ctx, symbol, limit)
}

func (d *DashboardUseCase) Sparkline(ctx context.Context, symbol string, points int) ([]float64, error) {
	return d.api.Sparkline(ctx, symbol, points)
}

// forward hands a quote snapshot to the sink without blocking the poller.
func (d *DashboardUseCase) forward(quotes models.QuoteMap, at time.Time) {
	for sym, q := range quotes {
		if q.Price != nil {
			d.metrics.RecordLastPrice(sym, *q.Price)
		}
	}

	d.mu.Lock()
	ch := d.sinkCh
	d.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- sinkBatch{at: at, quotes: quotes}:
	default:
		d.metrics.RecordError("sink_backlog")
		d.logger.Warn("quote sink backlog full, dropping snapshot")
	}
}

func (d *DashboardUseCase) runSink(ctx context.Context, ch <-chan sinkBatch) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-ch:
			if err := d.sink.Publish(ctx, b.at, b.quotes); err != nil && ctx.Err() == nil {
				d.metrics.RecordError("sink_publish")
				d.logger.Error("quote sink publish failed", logger.Error(err))
			}
		}
	}
}
