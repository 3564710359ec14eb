package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/crypto/bcrypt"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/config"
	"insurance-management/backend/internal/db"
	"insurance-management/backend/internal/platform/rbac"
	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/security"
	"insurance-management/backend/internal/server"
	"insurance-management/backend/internal/session/repository"
	"insurance-management/backend/internal/session/service"
	"insurance-management/backend/internal/telemetry"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "insurance-backend").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	mode, err := service.ParseMode(cfg.OperatingMode)
	if err != nil {
		log.Fatal().Err(err).Msg("parse operating mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	meterProvider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(meterProvider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = meterProvider.Shutdown(shutdownCtx)
	}()
	metrics, err := telemetry.NewAuthMetrics(meterProvider.Meter("insurance-management/backend"))
	if err != nil {
		log.Fatal().Err(err).Msg("register metrics")
	}

	tokens, err := security.NewTokenProvider(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("configure token provider")
	}

	procs := procedure.NewClient(procedure.NewSQLCaller(pool))
	sessions := repository.NewMySQLRepository(pool, procs)
	auditor := audit.NewLogger(log.With().Str("component", "audit").Logger(), procs)
	validator := service.NewValidator(tokens, sessions, auditor, metrics, mode)

	checker, err := rbac.NewOPACheckerFromSource(ctx, procs)
	if err != nil {
		log.Fatal().Err(err).Msg("compile authorization policy")
	}
	gate := rbac.NewGate(checker, auditor, metrics)

	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:    log,
		Procs:     procs,
		Tokens:    tokens,
		Hasher:    security.NewHasher(bcrypt.DefaultCost),
		Sessions:  sessions,
		Validator: validator,
		Gate:      gate,
		Auditor:   auditor,
		Mode:      mode,
		DB:        pool,
	})

	go expireIdleSessions(ctx, log, sessions, cfg.SessionTTLDuration())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().Str("mode", string(mode)).Str("env", cfg.Env).Msg("service started")

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
		}
	}
}

// expireIdleSessions periodically deactivates sessions idle past ttl.
func expireIdleSessions(ctx context.Context, log zerolog.Logger, sessions *repository.MySQLRepository, ttl time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.ExpireIdle(ctx, ttl)
			if err != nil {
				log.Warn().Err(err).Msg("session cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("expired", n).Msg("idle sessions deactivated")
			}
		}
	}
}
