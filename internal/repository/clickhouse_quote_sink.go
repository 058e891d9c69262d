package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"WhaleWatch/internal/domain/models"
	"WhaleWatch/internal/domain/repository"
)

// Execer is satisfied by *sql.DB. A db that also implements io.Closer is
// closed with the sink.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const quoteSnapshotsDDL = `CREATE TABLE IF NOT EXISTS %s (
	ts             DateTime64(3, 'UTC'),
	symbol         LowCardinality(String),
	price          Nullable(Float64),
	change_percent Nullable(Float64)
) ENGINE = MergeTree
ORDER BY (symbol, ts)`

// ClickHouseQuoteSink appends each snapshot to a MergeTree table, one row
// per symbol.
type ClickHouseQuoteSink struct {
	db      Execer
	table   string
	metrics repository.Metrics
}

func NewClickHouseQuoteSink(db Execer, table string, m repository.Metrics) *ClickHouseQuoteSink {
	if table == "" {
		table = "quote_snapshots"
	}
	if m == nil {
		m = repository.NopMetrics{}
	}
	return &ClickHouseQuoteSink{db: db, table: table, metrics: m}
}

func (s *ClickHouseQuoteSink) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(quoteSnapshotsDDL, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Publish writes the snapshot in chunks of multi-row VALUES inserts.
func (s *ClickHouseQuoteSink) Publish(ctx context.Context, at time.Time, quotes models.QuoteMap) error {
	const chunkSize = 1000

	recs := records(at, quotes)
	for start := 0; start < len(recs); start += chunkSize {
		end := min(start+chunkSize, len(recs))
		chunk := recs[start:end]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*4)
		for i, r := range chunk {
			values[i] = "(?, ?, ?, ?)"
			args = append(args, r.At, r.Symbol, r.Price, r.ChangePercent)
		}

		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, change_percent) VALUES %s", s.table, strings.Join(values, ", "))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", s.table, err)
		}
		for _, r := range chunk {
			s.metrics.RecordMessageSent("clickhouse", r.Symbol)
		}
	}
	return nil
}

// Close releases db when the sink was handed ownership of it.
func (s *ClickHouseQuoteSink) Close() error {
	if c, ok := s.db.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
