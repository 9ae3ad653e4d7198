package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"weather-insight/api"
	"weather-insight/cache"
	"weather-insight/collector"
	"weather-insight/config"
	"weather-insight/datasource"
	"weather-insight/history"
	"weather-insight/observability"
	"weather-insight/orchestrator"
	"weather-insight/publisher"
	"weather-insight/realtime"

	"github.com/joho/godotenv"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const serviceName = "weather-insight"

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("error loading .env file", "error", err)
	}

	port := flag.Int("port", 0, "Port to run the server on (overrides config)")
	configFile := flag.String("config", "", "Path to configuration file (json, yaml or toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, promHandler, tracer, err := observability.Setup(ctx, serviceName)
	if err != nil {
		logger.Error("failed to set up observability", "error", err)
		os.Exit(1)
	}

	weatherSource, forecastSource, closeSources := buildSources(ctx, cfg, tracer, logger)
	defer closeSources()

	controller := orchestrator.New(weatherSource, forecastSource,
		orchestrator.WithLogger(logger),
		orchestrator.WithTracer(tracer),
	)

	hub := realtime.NewHub(controller.Snapshot, logger)
	controller.Subscribe(hub.Broadcast)

	if cycles, err := observability.NewCycleMetrics(nil); err != nil {
		logger.Warn("query cycle metrics unavailable", "error", err)
	} else {
		controller.Subscribe(cycles.Listen)
	}

	var historyStore api.HistoryStore
	if cfg.History.Enabled {
		db, err := history.OpenSQLite(cfg.History.DSN)
		if err != nil {
			logger.Error("failed to open history database", "dsn", cfg.History.DSN, "error", err)
			os.Exit(1)
		}
		repo, err := history.New(db)
		if err != nil {
			logger.Error("failed to migrate history database", "error", err)
			os.Exit(1)
		}
		recorder := orchestrator.NewAsyncListener("history", history.NewRecorder(repo, logger).Listen, 0, logger)
		defer recorder.Close()
		controller.Subscribe(recorder.Listen)
		historyStore = repo
		logger.Info("recording query history", "dsn", cfg.History.DSN)
	}

	if cfg.MQTT.BrokerURL != "" {
		client, err := publisher.Connect(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID)
		if err != nil {
			logger.Warn("mqtt unavailable, snapshots will not be published", "broker", cfg.MQTT.BrokerURL, "error", err)
		} else {
			defer client.Close()
			pub := publisher.New(client, cfg.MQTT.TopicPrefix, logger)
			publishing := orchestrator.NewAsyncListener("mqtt", pub.Listen, 0, logger)
			defer publishing.Close()
			controller.Subscribe(publishing.Listen)
			logger.Info("publishing snapshots", "topic", pub.Topic())
		}
	}

	server := api.NewServer(controller, api.Options{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		History:     historyStore,
		Realtime:    hub,
		Metrics:     promHandler,
		Middleware:  []func(http.Handler) http.Handler{observability.MetricsAndTracingMiddleware(tracer, serviceName)},
		Logger:      logger,
	})

	stopRefresh := func() {}
	if cfg.Refresh.Enabled {
		refresher, err := collector.NewRefresher(controller, cfg.Refresh.DefaultCity, cfg.Refresh.Schedule, logger)
		if err != nil {
			logger.Error("failed to create refresher", "error", err)
			os.Exit(1)
		}
		if stopRefresh, err = refresher.Start(ctx); err != nil {
			logger.Error("failed to start refresher", "error", err)
			os.Exit(1)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case err := <-serverErr:
		if err != nil {
			logger.Error("server stopped", "error", err)
		}
	}

	stopRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// buildSources layers the upstream provider: instrumentation around the raw
// client, rate limiting above it, then the response cache.
func buildSources(ctx context.Context, cfg *config.Config, tracer oteltrace.Tracer, logger *slog.Logger) (datasource.WeatherProvider, datasource.ForecastSource, func()) {
	owm := datasource.NewOpenWeatherMapProvider(cfg.OpenWeatherMap.APIKey,
		datasource.WithBaseURL(cfg.OpenWeatherMap.BaseURL),
		datasource.WithHTTPClient(&http.Client{Timeout: cfg.OpenWeatherMap.Timeout}),
	)

	var provider datasource.Provider = observability.NewInstrumentedProvider(owm, tracer)
	if rl := cfg.OpenWeatherMap.RateLimit; rl.Enabled {
		provider = datasource.NewRateLimitedProvider(provider, rl.WeatherRPS, rl.ForecastRPS, rl.Burst)
		logger.Info("applied rate limiting", "provider", owm.Name(), "weather_rps", rl.WeatherRPS, "forecast_rps", rl.ForecastRPS, "burst", rl.Burst)
	}

	if !cfg.Cache.Enabled {
		return provider, provider, func() {}
	}

	var backend cache.Backend = cache.NewMemoryBackend()
	closeBackend := func() {}
	if cfg.Cache.RedisAddr != "" {
		rb, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, caching in memory", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			backend = rb
			closeBackend = func() { _ = rb.Close() }
			logger.Info("caching in redis", "addr", cfg.Cache.RedisAddr)
		}
	}

	weather := cache.NewCachedWeatherProvider(provider, backend, cfg.Cache.TTL, logger)
	forecast := cache.NewCachedForecastSource(provider, backend, cfg.Cache.TTL, logger)
	return weather, forecast, closeBackend
}
