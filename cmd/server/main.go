// Binary server runs the session control plane HTTP API: login and session
// issuance, trust evaluation, device verification, and the background expiry
// sweeper. Configuration comes from the environment or a .env file; see
// .env.example.
package main

import (
	"context"
	"crypto"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaini88088/expert-pancake/internal/audit"
	auditrepo "github.com/gaini88088/expert-pancake/internal/audit/repository"
	"github.com/gaini88088/expert-pancake/internal/config"
	"github.com/gaini88088/expert-pancake/internal/coordinator"
	"github.com/gaini88088/expert-pancake/internal/db"
	identityrepo "github.com/gaini88088/expert-pancake/internal/identity/repository"
	identityservice "github.com/gaini88088/expert-pancake/internal/identity/service"
	"github.com/gaini88088/expert-pancake/internal/notify"
	"github.com/gaini88088/expert-pancake/internal/notify/producer"
	"github.com/gaini88088/expert-pancake/internal/platform/userlock"
	"github.com/gaini88088/expert-pancake/internal/security"
	"github.com/gaini88088/expert-pancake/internal/server"
	"github.com/gaini88088/expert-pancake/internal/server/handler"
	"github.com/gaini88088/expert-pancake/internal/server/middleware"
	sessiondomain "github.com/gaini88088/expert-pancake/internal/session/domain"
	sessionrepo "github.com/gaini88088/expert-pancake/internal/session/repository"
	sessionservice "github.com/gaini88088/expert-pancake/internal/session/service"
	"github.com/gaini88088/expert-pancake/internal/session/sweeper"
	otelsetup "github.com/gaini88088/expert-pancake/internal/telemetry/otel"
	"github.com/gaini88088/expert-pancake/internal/trust/engine"
	trustrepo "github.com/gaini88088/expert-pancake/internal/trust/repository"
	trustservice "github.com/gaini88088/expert-pancake/internal/trust/service"
	verificationrepo "github.com/gaini88088/expert-pancake/internal/verification/repository"
	verificationservice "github.com/gaini88088/expert-pancake/internal/verification/service"
)

const shutdownTimeout = 15 * time.Second

var errJWTKeysRequired = errors.New("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required in production")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "expert-pancake", false)
	if err != nil {
		fatal("telemetry setup failed", err)
	}
	providers.SetGlobal()

	// Stores. With no DATABASE_URL everything lives in memory, which is the
	// dev mode: nothing survives a restart.
	var (
		sessions      sessionStore
		trustStore    trustservice.TrustRepo
		userStore     identityservice.UserRepo
		challengeRepo verificationservice.ChallengeRepo
		auditStore    auditrepo.Repository
		healthDB      handler.Pinger
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			fatal("database connect failed", err)
		}
		defer pool.Close()
		sessions = sessionrepo.NewPostgresRepository(pool)
		trustStore = trustrepo.NewPostgresRepository(pool)
		userStore = identityrepo.NewPostgresRepository(pool)
		challengeRepo = verificationrepo.NewPostgresRepository(pool)
		auditStore = auditrepo.NewPostgresRepository(pool)
		healthDB = pool
		logger.Info("connected to postgres")
	} else {
		logger.Warn("DATABASE_URL is empty; running on in-memory stores (dev mode)")
		sessions = sessionrepo.NewMemoryRepository()
		trustStore = trustrepo.NewMemoryRepository()
		userStore = identityrepo.NewMemoryRepository()
		challengeRepo = verificationrepo.NewMemoryRepository()
		auditStore = auditrepo.NewMemoryRepository()
	}

	// Trust policy engine. A Rego file on disk overrides the embedded policy.
	eng := engine.NewOPAEvaluator(logger)
	if cfg.TrustPolicyPath != "" {
		src, err := os.ReadFile(cfg.TrustPolicyPath)
		if err != nil {
			fatal("trust policy read failed", err)
		}
		eng = engine.NewOPAEvaluatorWithPolicy(string(src), logger)
	}
	if err := eng.HealthCheck(ctx); err != nil {
		fatal("trust policy compile failed", err)
	}

	tokens, err := newTokenProvider(cfg, logger)
	if err != nil {
		fatal("token setup failed", err)
	}

	evaluator := trustservice.NewEvaluator(trustStore, sessions, eng, cfg.GeoDistanceThresholdKm, logger)
	manager := sessionservice.NewManager(sessions, evaluator, userlock.NewManager(), cfg.LockTimeout(), logger)
	verifier := identityservice.NewVerifier(userStore, security.NewHasher(cfg.BcryptCost), cfg.JWTIssuer)

	auditLog := audit.NewLogger(auditStore, middleware.ClientIP, logger)

	// Events go to Kafka when brokers are configured, to the structured log
	// otherwise, and additionally to the OTLP log pipeline when telemetry is on.
	var channel notify.Notifier = notify.NewLogNotifier(logger)
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.NotifyKafkaTopic, logger)
	if err != nil {
		fatal("kafka producer setup failed", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		channel = notify.NewProducerNotifier(kafkaProducer)
		logger.Info("publishing session events to kafka", "topic", cfg.NotifyKafkaTopic)
	}
	dispatcher := notify.NewDispatcher(
		notify.NewMultiNotifier(channel, otelsetup.NewEventNotifier(providers.LoggerProvider)),
		logger)

	flows := coordinator.New(manager, dispatcher, auditLog, logger)

	verification := verificationservice.New(challengeRepo, manager, evaluator, verifier,
		dispatcher, auditLog,
		verificationservice.Config{
			CodeTTL:            cfg.CodeTTL(),
			MaxAttempts:        int32(cfg.VerificationMaxAttempts),
			CodeReturnToClient: cfg.CodeReturnToClient,
		}, logger)
	if cfg.CodeReturnToClient {
		logger.Warn("CODE_RETURN_TO_CLIENT is on; verification codes are returned in API responses")
	}

	var limiter *middleware.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = middleware.NewRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, logger)
		logger.Info("rate limiting enabled", "redis", cfg.RedisAddr)
	}

	sweep := sweeper.New(sessions, manager, dispatcher, auditLog,
		sessiondomain.ExpiryPolicy{
			Web:     cfg.ExpiryWeb(),
			Mobile:  cfg.ExpiryMobile(),
			Desktop: cfg.ExpiryDesktop(),
			Default: cfg.ExpiryDefault(),
		},
		cfg.RevokedRetentionFor(), cfg.SweepEvery(), logger)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go sweep.Run(sweepCtx)

	srv := server.New(cfg.HTTPAddr, server.Deps{
		Verifier:      verifier,
		Sessions:      manager,
		Flows:         flows,
		Verification:  verification,
		Trust:         evaluator,
		Tokens:        tokens,
		SessionSource: sessions,
		AuditLog:      auditLog,
		AuditRepo:     auditStore,
		RateLimiter:   limiter,
		HealthDB:      healthDB,
		HealthPolicy:  eng,
		Logger:        logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			fatal("server failed", err)
		}
		return
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Let in-flight notifications and audit writes land before the process exits.
	drainCtx, cancelDrain := context.WithTimeout(ctx, notify.ShutdownDrainDuration)
	defer cancelDrain()
	if err := dispatcher.Drain(drainCtx); err != nil {
		logger.Warn("notification drain incomplete", "error", err)
	}
	if err := auditLog.Drain(drainCtx); err != nil {
		logger.Warn("audit drain incomplete", "error", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

// sessionStore is the union of session repository roles main wires up: the
// manager's store, the trust evaluator's history source, the auth
// middleware's session lookup, and the sweeper's candidate lister.
type sessionStore interface {
	sessionservice.SessionRepo
	trustservice.SessionHistory
	middleware.SessionSource
	sweeper.StaleLister
}

// newLogger builds the process logger: compact text in development, JSON in
// anything else.
func newLogger(env string) *slog.Logger {
	if env == "development" || env == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// newTokenProvider builds the signing token provider from configured PEM keys,
// or generates a throwaway keypair in development so the server can run
// without key material on disk.
func newTokenProvider(cfg *config.Config, logger *slog.Logger) (*security.TokenProvider, error) {
	var (
		signer crypto.Signer
		pub    crypto.PublicKey
		err    error
	)
	switch {
	case cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "":
		signer, err = security.ParsePrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err = security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
	case cfg.Env == "production":
		return nil, errJWTKeysRequired
	default:
		logger.Warn("JWT keys not configured; generating a throwaway keypair (dev mode)")
		signer, pub, err = security.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
	}
	return security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL()), nil
}
