package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"WhaleWatch/internal/domain/repository"
	"WhaleWatch/internal/gateway"
	"WhaleWatch/internal/handler/api"
	internalrepo "WhaleWatch/internal/repository"
	"WhaleWatch/internal/service/marketapi"
	"WhaleWatch/internal/service/ratelimit"
	"WhaleWatch/internal/session"
	"WhaleWatch/internal/usecase"
	"WhaleWatch/internal/views"
	"WhaleWatch/pkg/cache"
	pkgch "WhaleWatch/pkg/clickhouse"
	"WhaleWatch/pkg/config"
	xhttp "WhaleWatch/pkg/http"
	pkgkafka "WhaleWatch/pkg/kafka"
	"WhaleWatch/pkg/logger"
	"WhaleWatch/pkg/metrics"
	"WhaleWatch/pkg/server"
)

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, err
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry returns a private registry with the Go runtime and process
// collectors attached.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return repository.NopMetrics{}
	}
	return metrics.New(reg)
}

// ProvideSessionBackend opens the store the session is persisted in.
func ProvideSessionBackend(cfg *config.Config) (cache.Service, error) {
	s := cfg.Session
	switch s.Backend {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		return cache.NewRedisCache(
			cache.WithRedisHost(s.Redis.Host),
			cache.WithRedisPort(s.Redis.Port),
			cache.WithRedisPassword(s.Redis.Password),
			cache.WithRedisDB(s.Redis.DB),
			cache.WithRedisPrefix(s.Redis.Prefix),
		)
	case "file":
		return cache.NewBoltCache(s.Path, cache.WithBoltOpenTimeout(2*time.Second))
	default:
		return nil, fmt.Errorf("unknown session backend %q", s.Backend)
	}
}

func ProvideSessionStore(cfg *config.Config, backend cache.Service, l *logger.Logger, m repository.Metrics) *session.Store {
	return session.NewStore(backend,
		session.WithLogger(l),
		session.WithMetrics(m),
		session.WithRejectExpired(cfg.Session.RejectExpired),
	)
}

func ProvideGateway(cfg *config.Config, store *session.Store, l *logger.Logger, m repository.Metrics) *gateway.Gateway {
	return gateway.New(cfg.API.BaseURL, store,
		gateway.WithClient(xhttp.NewClient(xhttp.WithTimeout(cfg.API.Timeout))),
		gateway.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
		gateway.WithLogger(l),
		gateway.WithMetrics(m),
	)
}

func ProvideMarketAPI(cfg *config.Config, gw *gateway.Gateway, l *logger.Logger) *marketapi.Client {
	return marketapi.New(gw,
		marketapi.WithSparklineTTL(cfg.Polling.SparklineTTL),
		marketapi.WithLogger(l),
	)
}

// ProvideQuoteSink builds the configured sink. The ClickHouse pool is owned
// by the sink and closed with it.
func ProvideQuoteSink(cfg *config.Config, reg *prometheus.Registry, m repository.Metrics, l *logger.Logger) (repository.QuoteSink, error) {
	switch cfg.Sink.Type {
	case "kafka":
		k := cfg.Sink.Kafka
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(k.Brokers...),
			pkgkafka.WithTopic(k.Topic),
			pkgkafka.WithRequiredAcks(k.RequiredAcks),
			pkgkafka.WithCompression(k.Compression),
			pkgkafka.WithMaxAttempts(k.MaxAttempts),
			pkgkafka.WithBatching(k.BatchSize, k.BatchTimeout),
			pkgkafka.WithWriteTimeout(k.WriteTimeout),
			pkgkafka.WithAsync(k.Async),
			pkgkafka.WithRegisterer(reg),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		l.Info("publishing quotes to kafka", logger.Strings("brokers", k.Brokers), logger.String("topic", k.Topic))
		return internalrepo.NewKafkaQuoteSink(producer, m, l), nil

	case "clickhouse":
		ch := cfg.Sink.ClickHouse
		ctx, cancel := context.WithTimeout(context.Background(), ch.DialTimeout+time.Second)
		defer cancel()
		client, err := pkgch.NewClient(ctx,
			pkgch.WithAddr(ch.Host, ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithDialTimeout(ch.DialTimeout),
			pkgch.WithHTTP(ch.UseHTTP),
			pkgch.WithAsyncInsert(ch.AsyncInsert),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		l.Info("storing quotes in clickhouse", logger.String("database", ch.Database))
		return internalrepo.NewClickHouseQuoteSink(client.DB(), "quote_snapshots", m), nil

	default:
		return repository.NopSink{}, nil
	}
}

func ProvideAuthUseCase(cfg *config.Config, apiClient *marketapi.Client, store *session.Store, l *logger.Logger) *usecase.AuthUseCase {
	return usecase.NewAuthUseCase(apiClient, store, cfg.API.AdminEmails, l)
}

func ProvideDashboardUseCase(
	cfg *config.Config,
	apiClient *marketapi.Client,
	store *session.Store,
	sink repository.QuoteSink,
	m repository.Metrics,
	l *logger.Logger,
) (*usecase.DashboardUseCase, error) {
	policy, err := views.ParsePricePolicy(cfg.Polling.PricePolicy)
	if err != nil {
		return nil, err
	}
	p := cfg.Polling
	return usecase.NewDashboardUseCase(apiClient, store,
		usecase.WithIntervals(usecase.Intervals{
			Quotes:    p.Quotes,
			Watchlist: p.Watchlist,
			Holdings:  p.Holdings,
			Alerts:    p.Alerts,
			Health:    p.Management,
		}),
		usecase.WithPricePolicy(policy),
		usecase.WithSink(sink),
		usecase.WithDashboardMetrics(m),
		usecase.WithDashboardLogger(l),
	), nil
}

func ProvideMutationLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.MutationBurst, cfg.Server.MutationRate, 10*time.Minute)
}

func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	reg *prometheus.Registry,
	auth *usecase.AuthUseCase,
	dash *usecase.DashboardUseCase,
	limiter *ratelimit.Limiter,
) *xhttp.Server {
	s := cfg.Server
	handlers := []xhttp.Handler{
		api.NewDashboardHandler(l, auth, dash, limiter),
		api.NewStreamHandler(l, dash, s.CORSOrigins),
	}

	opts := []xhttp.ServerOption{
		xhttp.WithAddr(s.Host, s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithSlowRequest(s.SlowRequest),
		xhttp.WithCORS(s.CORSOrigins...),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	}
	return xhttp.NewServer(l, handlers, opts...)
}

func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	backend cache.Service,
	auth *usecase.AuthUseCase,
	dash *usecase.DashboardUseCase,
	sink repository.QuoteSink,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, backend, auth, dash, sink, httpServer)
}
