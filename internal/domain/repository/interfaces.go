package repository

import (
	"context"
	"time"

	"WhaleWatch/internal/domain/models"
)

// QuoteSink receives every normalized quote snapshot. Implementations forward
// it to an external system (message broker, analytical store).
type QuoteSink interface {
	Init(ctx context.Context) error
	Publish(ctx context.Context, at time.Time, quotes models.QuoteMap) error
	Close() error
}

type Metrics interface {
	RecordRequest(op, outcome string, seconds float64)
	RecordPoll(source, outcome string, seconds float64)
	RecordSessionCleared(reason string)
	RecordMessageSent(backend, symbol string)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(string, string, float64) {}
func (NopMetrics) RecordPoll(string, string, float64) {}
func (NopMetrics) RecordSessionCleared(string) {}
func (NopMetrics) RecordMessageSent(string, string) {}
func (NopMetrics) RecordLastPrice(string, float64) {}
func (NopMetrics) RecordError(string) {}

// NopSink drops snapshots. Used when no sink is configured.
type NopSink struct{}

func (NopSink) Init(context.Context) error { return nil }
func (NopSink) Publish(context.Context, time.Time, models.QuoteMap) error { return nil }
func (NopSink) Close() error { return nil }
