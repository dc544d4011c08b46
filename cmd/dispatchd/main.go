package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brandwell/dispatch/internal/api"
	"github.com/brandwell/dispatch/internal/audit"
	"github.com/brandwell/dispatch/internal/config"
	"github.com/brandwell/dispatch/internal/content"
	"github.com/brandwell/dispatch/internal/dispatch"
	"github.com/brandwell/dispatch/internal/domain"
	"github.com/brandwell/dispatch/internal/oauth"
	"github.com/brandwell/dispatch/internal/outbox"
	"github.com/brandwell/dispatch/internal/providers"
	"github.com/brandwell/dispatch/internal/resolver"
	"github.com/brandwell/dispatch/internal/runner"
	"github.com/brandwell/dispatch/internal/vault"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("create database pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("connected to database")

	v, err := vault.New(cfg.VaultSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize vault")
	}

	clock := clockwork.NewRealClock()

	credStore := resolver.NewPostgresCredentialStore(pool)
	outboxStore := outbox.NewPostgresStore(pool)

	googleOAuth := providers.NewGoogleOAuth(
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		cfg.Google.RedirectURI,
		cfg.Providers.GoogleToken,
	)

	res := resolver.New(credStore, v, googleOAuth, clock, log.Logger)
	res.SetEndpoints(resolver.Endpoints{
		Buffer:         cfg.Providers.Buffer,
		Twilio:         cfg.Providers.Twilio,
		GoogleBusiness: cfg.Providers.GoogleBusiness,
		Sendgrid:       cfg.Providers.Sendgrid,
	})

	connectSvc := oauth.NewService(v, credStore, googleOAuth, nil, clock, log.Logger)

	// Audit fans out to Postgres always, JetStream when configured.
	trails := audit.MultiTrail{audit.NewPostgresTrail(pool)}
	var jsTrail *audit.JetStreamTrail
	if cfg.NATSEnabled {
		jsCfg := audit.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		jsTrail, err = audit.NewJetStreamTrail(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create JetStream audit trail")
		}
		defer jsTrail.Close()
		trails = append(trails, jsTrail)
		log.Info().Str("url", cfg.NATSURL).Msg("audit events publishing to NATS")
	}

	dispatcher := dispatch.New(
		res,
		domain.NewPostgresRecorder(pool),
		content.NewDigestRenderer(),
		trails,
		log.Logger,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := outbox.NewPrometheusMetrics(registry)

	processor := outbox.NewProcessor(outboxStore, dispatcher, clock, metrics, log.Logger)

	run := runner.New(processor, clock, runner.Config{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
	}, log.Logger)
	if err := run.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start outbox runner")
	}

	health := map[string]api.Pinger{
		"database": func(ctx context.Context) error { return pool.Ping(ctx) },
	}
	if jsTrail != nil {
		health["nats"] = func(ctx context.Context) error {
			if !jsTrail.Connected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}
	}

	server := api.NewServer(api.Deps{
		Store:      outboxStore,
		Runner:     run,
		Connect:    connectSvc,
		CronSecret: cfg.CronSecret,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Health:     health,
		Clock:      clock,
		Logger:     log.Logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server exited unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := run.Stop(); err != nil {
		log.Error().Err(err).Msg("stop outbox runner")
	}

	log.Info().Msg("graceful shutdown complete")
}
