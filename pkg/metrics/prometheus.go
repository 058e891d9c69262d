package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	polls         *prometheus.CounterVec
	pollTime      *prometheus.HistogramVec
	sessionClears *prometheus.CounterVec
	messagesSent  *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a recorder registered on reg. Pass prometheus.DefaultRegisterer
// to expose the metrics on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whalewatch_api_requests_total",
				Help: "Remote API calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		requestTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whalewatch_api_request_duration_seconds",
				Help:    "Remote API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		polls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whalewatch_polls_total",
				Help: "Completed poll fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		pollTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whalewatch_poll_duration_seconds",
				Help:    "Poll fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		sessionClears: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whalewatch_session_cleared_total",
				Help: "Session tear-downs by reason",
			},
			[]string{"reason"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whalewatch_sink_messages_total",
				Help: "Quote records forwarded to a sink",
			},
			[]string{"backend", "symbol"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "whalewatch_last_price",
				Help: "Last normalized price for a symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whalewatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordRequest(op, outcome string, seconds float64) {
	r.requests.WithLabelValues(op, outcome).Inc()
	r.requestTime.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordPoll(source, outcome string, seconds float64) {
	r.polls.WithLabelValues(source, outcome).Inc()
	r.pollTime.WithLabelValues(source).Observe(seconds)
}

func (r *Recorder) RecordSessionCleared(reason string) {
	r.sessionClears.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
