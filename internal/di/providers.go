package di

import (
	"fmt"

	"NarraPulse/internal/catalog"
	"NarraPulse/internal/domain/repository"
	"NarraPulse/internal/handler/api"
	internalrepo "NarraPulse/internal/repository"
	"NarraPulse/internal/service/backend"
	"NarraPulse/internal/services/analytics"
	"NarraPulse/internal/usecase"
	"NarraPulse/pkg/cache"
	"NarraPulse/pkg/config"
	xhttp "NarraPulse/pkg/http"
	pkgkafka "NarraPulse/pkg/kafka"
	applogger "NarraPulse/pkg/logger"
	"NarraPulse/pkg/metrics"
	"NarraPulse/pkg/server"
	"NarraPulse/pkg/util"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCatalog builds the static narrative taxonomy.
func ProvideCatalog() *catalog.Catalog {
	return catalog.New()
}

// ProvideEngine creates the derived-metrics engine.
func ProvideEngine() *analytics.Engine {
	return analytics.NewEngine()
}

// ProvideCache selects the configured cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Type {
	case "redis":
		c, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return c, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}

// ProvideAlertPublisher creates the Kafka alert publisher when enabled;
// otherwise alert shipping is off and the publisher is nil.
func ProvideAlertPublisher(cfg *config.Config) (repository.AlertPublisher, error) {
	if !cfg.Alerts.KafkaEnabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Alerts.Brokers),
		pkgkafka.WithCompression(cfg.Alerts.Compression),
		pkgkafka.WithWriteTimeout(cfg.Alerts.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Alerts.Topic)
}

// ProvideMetricsSource creates the resilient backend client.
func ProvideMetricsSource(
	cfg *config.Config,
	cat *catalog.Catalog,
	store cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) (repository.MetricsSource, error) {
	earliest, ok := util.ParseDate(cfg.Backend.EarliestDate)
	if !ok {
		return nil, fmt.Errorf("backend.earliest_date %q is not YYYY-MM-DD", cfg.Backend.EarliestDate)
	}
	return backend.New(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Token:         cfg.Backend.Token,
		Timeout:       cfg.Backend.Timeout,
		TimeoutPerDay: cfg.Backend.TimeoutPerDay,
		TimeoutCap:    cfg.Backend.TimeoutCap,
		MaxAttempts:   cfg.Backend.MaxAttempts,
		BackoffBase:   cfg.Backend.BackoffBase,
		BackoffCap:    cfg.Backend.BackoffCap,
		CacheTTL:      cfg.Cache.TTL,
		EarliestDate:  earliest,
	}, cat, store, m, l), nil
}

// ProvideOrchestrator creates the batch analysis orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	source repository.MetricsSource,
	engine *analytics.Engine,
	publisher repository.AlertPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.AnalysisOrchestrator {
	return usecase.NewAnalysisOrchestrator(source, engine, publisher, m, l, usecase.Options{
		Pacing:           cfg.Analysis.Pacing,
		Parallelism:      cfg.Analysis.Parallelism,
		Window:           cfg.Analysis.Window,
		PercentileWindow: cfg.Analysis.PercentileWindow,
		Horizons:         cfg.Analysis.Horizons,
		Threshold:        cfg.Analysis.AlertThreshold,
	})
}

// ProvideHTTPHandler aggregates the API route groups.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	cat *catalog.Catalog,
	orch *usecase.AnalysisOrchestrator,
	source repository.MetricsSource,
) xhttp.Handler {
	earliest, _ := util.ParseDate(cfg.Backend.EarliestDate)
	return xhttp.Handlers{
		api.NewNarrativesHandler(cat),
		api.NewAnalysisHandler(l, cat, orch, source, earliest),
		api.NewProgressWSHandler(l, orch),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	orch *usecase.AnalysisOrchestrator,
	store cache.Service,
	publisher repository.AlertPublisher,
) *server.App {
	return server.New(cfg, l, handler, orch, store, publisher)
}
