package repository

import (
	"context"
	"time"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/domain/repository"
	pkgkafka "WhaleWatch/pkg/kafka"
	"WhaleWatch/pkg/logger"
)

type MessageSender interface {
	Send(ctx context.Context, msgs ...pkgkafka.Message) error
	Close() error
}

// KafkaQuoteSink publishes one message per symbol, keyed by symbol.
type KafkaQuoteSink struct {
	producer MessageSender
	metrics  repository.Metrics
	logger   *logger.Logger
}

func NewKafkaQuoteSink(producer MessageSender, m repository.Metrics, l *logger.Logger) *KafkaQuoteSink {
	if m == nil {
		m = repository.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &KafkaQuoteSink{producer: producer, metrics: m, logger: l}
}

func (s *KafkaQuoteSink) Init(context.Context) error { return nil }

func (s *KafkaQuoteSink) Publish(ctx context.Context, at time.Time, quotes models.QuoteMap) error {
	recs := records(at, quotes)
	if len(recs) == 0 {
		return nil
	}

	msgs := make([]pkgkafka.Message, len(recs))
	for i, r := range recs {
		msgs[i] = pkgkafka.Message{Key: r.Symbol, Value: r, Time: r.At}
	}
	if err := s.producer.Send(ctx, msgs...); err != nil {
		return err
	}

	for _, r := range recs {
		s.metrics.RecordMessageSent("kafka", r.Symbol)
	}
	s.logger.Debug("published quotes to kafka", logger.Int("count", len(recs)))
	return nil
}

func (s *KafkaQuoteSink) Close() error {
	return s.producer.Close()
}
