package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"WhaleWatch/internal/domain/repository"
	"WhaleWatch/pkg/logger"
)

var (
	ErrAlreadyStarted = errors.New("poller: already started")
	ErrStopped        = errors.New("poller: stopped")
)

// FetchFunc retrieves one value of the polled resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Result is the observable state of a poller. Value holds the last
// successful fetch and survives later failures; Err describes the most
// recent completed fetch when it failed.
type Result[T any] struct {
	Value     T
	HasValue  bool
	Err       error
	Loading   bool
	UpdatedAt time.Time
}

// ErrMessage returns the error text, or "" when the last fetch succeeded.
func (r Result[T]) ErrMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Poller keeps the latest value of one remote resource fresh.
//
// Every fetch is numbered when issued. A completion is applied only if no
// later-issued fetch has been applied already, and only if the poller has not
// been stopped since the fetch was issued.
type Poller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	interval time.Duration
	logger   *logger.Logger
	metrics  repository.Metrics

	// life is cancelled by Stop and bounds every fetch context.
	life   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	result   Result[T]
	issued   uint64
	applied  uint64
	gen      uint64
	started  bool
	stopped  bool
	loopDone chan struct{}

	// notifyMu orders listener calls the same way results are applied.
	notifyMu  sync.Mutex
	listeners map[int]func(Result[T])
	nextID    int

	inflight sync.WaitGroup
}

type Option func(*options)

type options struct {
	logger  *logger.Logger
	metrics repository.Metrics
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a poller. It does nothing until Start or Refresh is called.
func New[T any](name string, fetch FetchFunc[T], interval time.Duration, opts ...Option) *Poller[T] {
	o := options{logger: logger.Nop(), metrics: repository.NopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}

	life, cancel := context.WithCancel(context.Background())
	return &Poller[T]{
		name:      name,
		fetch:     fetch,
		interval:  interval,
		logger:    o.logger.With(logger.String("poller", name)),
		metrics:   o.metrics,
		life:      life,
		cancel:    cancel,
		result:    Result[T]{Loading: true},
		listeners: make(map[int]func(Result[T])),
	}
}

func (p *Poller[T]) Name() string { return p.name }

// Start performs an immediate fetch and then one per interval until ctx is
// done or Stop is called. Each tick fetches in its own goroutine, so a slow
// fetch never delays the next tick.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.stopped:
		p.mu.Unlock()
		return ErrStopped
	case p.started:
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.loopDone = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
	return nil
}

func (p *Poller[T]) loop(ctx context.Context) {
	defer close(p.loopDone)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.life.Done():
			return
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

func (p *Poller[T]) spawn(ctx context.Context) {
	seq, gen, ok := p.issue()
	if !ok {
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.run(ctx, seq, gen)
	}()
}

// Refresh fetches immediately, independent of the schedule, and returns the
// poller's state once this fetch has completed. Overlapping refreshes are
// allowed; the last issued one wins. After Stop it returns the final state
// without fetching.
func (p *Poller[T]) Refresh(ctx context.Context) Result[T] {
	seq, gen, ok := p.issue()
	if !ok {
		return p.Result()
	}
	p.inflight.Add(1)
	defer p.inflight.Done()
	p.run(ctx, seq, gen)
	return p.Result()
}

func (p *Poller[T]) issue() (seq, gen uint64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0, 0, false
	}
	p.issued++
	return p.issued, p.gen, true
}

func (p *Poller[T]) run(parent context.Context, seq, gen uint64) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stopWatch := context.AfterFunc(p.life, cancel)
	defer stopWatch()

	start := time.Now()
	value, err := p.fetch(ctx)
	elapsed := time.Since(start)

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.stopped || gen != p.gen || seq < p.applied {
		p.mu.Unlock()
		p.logger.Debug("discarding stale fetch", logger.Uint64("seq", seq))
		return
	}
	p.applied = seq
	p.result.Loading = false
	p.result.UpdatedAt = time.Now()
	if err != nil {
		p.result.Err = err
	} else {
		p.result.Value = value
		p.result.HasValue = true
		p.result.Err = nil
	}
	snapshot := p.result
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	if err != nil {
		p.metrics.RecordPoll(p.name, "error", elapsed.Seconds())
		p.logger.Warn("poll failed", logger.Error(err), logger.Duration("elapsed_ms", elapsed))
	} else {
		p.metrics.RecordPoll(p.name, "ok", elapsed.Seconds())
	}

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Stop cancels the schedule and every in-flight fetch. Completions that
// arrive afterwards are discarded. Stop is idempotent and does not wait for
// fetches that ignore cancellation, but it does wait for listeners already
// being notified, so none runs once Stop has returned. Listeners must not
// call Stop on their own poller.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.gen++
	done := p.loopDone
	p.mu.Unlock()

	p.cancel()
	if done != nil {
		<-done
	}

	// wait out notifications already in progress
	p.notifyMu.Lock()
	p.notifyMu.Unlock()
}

// Result returns a snapshot of the current state.
func (p *Poller[T]) Result() Result[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Subscribe registers fn to receive each applied result, in apply order.
// fn runs on the fetching goroutine and must not call Refresh synchronously.
func (p *Poller[T]) Subscribe(fn func(Result[T])) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Poller[T]) snapshotListeners() []func(Result[T]) {
	out := make([]func(Result[T]), 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
