package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"seatflow/internal/audit"
	"seatflow/internal/config"
	"seatflow/internal/events"
	"seatflow/internal/extension"
	"seatflow/internal/handler"
	"seatflow/internal/ledger"
	"seatflow/internal/metrics"
	"seatflow/internal/registry"
	"seatflow/internal/reservation"
	"seatflow/internal/router"
	"seatflow/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	configPath := os.Getenv("SEATFLOW_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Server.JWTSecret == "" {
		logger.Fatal().Msg("set server.jwt_secret in config")
	}

	st, err := store.NewSQLite(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store error")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules, err := config.WatchRules(ctx, configPath, 30*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("watch rules error")
	}

	reg := registry.New(st, &logger)
	led := ledger.New(st, &logger)

	created, err := reg.EnsureSeats(ctx, cfg.Seats())
	if err != nil {
		logger.Fatal().Err(err).Msg("facility setup error")
	}
	logger.Info().Int("created", created).Msg("facility seats ensured")
	go reg.StartStatusGauge(ctx)

	bus := events.NewBus()
	if cfg.AMQP.Enabled && cfg.AMQP.URL != "" {
		events.NewForwarder(cfg.AMQP.URL, cfg.AMQP.Queue, &logger).Attach(bus)
	}

	recorder := audit.NewStoreRecorder(st, &logger)
	engine := reservation.New(reg, led, st, rules, bus, recorder, &logger)
	extensions := extension.New(reg, led, st, rules, bus, &logger)

	sweeper := reservation.NewSweeper(engine, cfg.SweepInterval(), &logger)
	go sweeper.Start(ctx)
	defer sweeper.Stop()

	if cfg.Backup.Enabled {
		dir := cfg.Backup.StoragePath
		if dir == "" {
			dir = "data/backups"
		}
		backups := store.NewBackupService(cfg.Database.Path, dir, cfg.Backup.Interval(), cfg.Backup.RetentionDays, &logger)
		go backups.Start(ctx)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	h := &handler.Handler{
		Registry:   reg,
		Ledger:     led,
		Engine:     engine,
		Extensions: extensions,
		Sweeper:    sweeper,
		Exporter:   audit.NewExporter(led, recorder),
		Logger:     &logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.Register(e, h, router.Options{
		JWTSecret:     cfg.Server.JWTSecret,
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
		Cache:         rdb,
		CacheTTL:      cfg.RedisTTL(),
	})

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, st, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", port).Msg("seatflow started")
	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func startHealthServer(ctx context.Context, port int, st *store.SQLite, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := st.Ping(ctxPing); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
