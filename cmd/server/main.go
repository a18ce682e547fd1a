package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	accesshandler "instantverify/internal/access/handler"
	accessservice "instantverify/internal/access/service"
	accessstore "instantverify/internal/access/store"
	"instantverify/internal/admin"
	credithandler "instantverify/internal/credits/handler"
	creditservice "instantverify/internal/credits/service"
	creditstore "instantverify/internal/credits/store"
	httpapi "instantverify/internal/http"
	jwttoken "instantverify/internal/jwt_token"
	paymenthandler "instantverify/internal/payments/handler"
	paymentservice "instantverify/internal/payments/service"
	paymentstore "instantverify/internal/payments/store"
	phonehandler "instantverify/internal/phone/handler"
	phoneservice "instantverify/internal/phone/service"
	phonestore "instantverify/internal/phone/store"
	"instantverify/internal/platform/config"
	"instantverify/internal/platform/httpserver"
	"instantverify/internal/platform/logger"
	"instantverify/internal/platform/metrics"
	"instantverify/internal/platform/postgres"
	redisclient "instantverify/internal/platform/redis"
	"instantverify/internal/providers"
	"instantverify/internal/providers/payment"
	"instantverify/internal/providers/sms"
	provider "instantverify/internal/providers/verification"
	"instantverify/internal/ratelimit"
	userstore "instantverify/internal/users/store"
	verificationhandler "instantverify/internal/verification/handler"
	verificationservice "instantverify/internal/verification/service"
	verificationstore "instantverify/internal/verification/store"
	audit "instantverify/pkg/platform/audit"
	"instantverify/pkg/platform/audit/publisher"
	kafkastore "instantverify/pkg/platform/audit/store/kafka"
	auditmemory "instantverify/pkg/platform/audit/store/memory"
	auditpostgres "instantverify/pkg/platform/audit/store/postgres"
	txcontext "instantverify/pkg/platform/tx"
)

const auditBufferSize = 1024

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, logCloser, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until SIGINT/SIGTERM or a fatal server error.
func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDefaultSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY outside local development")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	probes := map[string]httpapi.Probe{}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()
	if st.db != nil {
		probes["postgres"] = st.db.PingContext
	}

	ephemeral, err := openEphemeralStores(ctx, cfg.Redis, log, probes)
	if err != nil {
		return err
	}
	defer ephemeral.close()

	auditStore, closeAudit, err := openAuditStore(ctx, cfg.Kafka, st.db, log, probes)
	if err != nil {
		return err
	}
	defer closeAudit()
	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)

	verifier, sender, gateway := newProviders(cfg.Providers, log, m)

	credits := creditservice.New(st.credits,
		creditservice.WithLogger(log),
		creditservice.WithAuditPublisher(auditPublisher),
		creditservice.WithMetrics(m),
	)
	access := accessservice.New(st.access,
		accessservice.WithLogger(log),
		accessservice.WithAuditPublisher(auditPublisher),
		accessservice.WithMetrics(m),
	)
	receipts, err := snowflake.NewNode(cfg.Server.NodeID)
	if err != nil {
		return fmt.Errorf("receipt node: %w", err)
	}
	payments, err := paymentservice.New(st.payments, gateway, credits, st.tx,
		paymentservice.WithReceiptNode(receipts),
		paymentservice.WithLogger(log),
		paymentservice.WithAuditPublisher(auditPublisher),
		paymentservice.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("payment service: %w", err)
	}
	verifications := verificationservice.New(st.verifications, credits, st.tx, verifier,
		verificationservice.WithLogger(log),
		verificationservice.WithAuditPublisher(auditPublisher),
		verificationservice.WithMetrics(m),
	)
	phone := phoneservice.New(ephemeral.otp, sender, st.users,
		phoneservice.WithConfig(phoneservice.Config{
			Length:      cfg.OTP.Length,
			TTL:         cfg.OTP.TTL,
			MaxAttempts: cfg.OTP.MaxAttempts,
			SendLimit:   cfg.OTP.SendLimit,
			SendWindow:  cfg.OTP.SendWindow,
		}),
		phoneservice.WithLogger(log),
		phoneservice.WithAuditPublisher(auditPublisher),
		phoneservice.WithMetrics(m),
	)

	creditHandler := credithandler.New(credits, log)
	verificationHandler := verificationhandler.New(verifications, log)
	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	router := httpapi.NewRouter(log, httpapi.Dependencies{
		Validator:   jwttoken.NewJWTServiceAdapter(jwt),
		AdminToken:  cfg.Auth.AdminToken,
		Metrics:     m,
		Gatherer:    prometheus.DefaultGatherer,
		Probes:      probes,
		RateLimiter: ratelimit.New(ephemeral.limits, log),
		IPLimit: ratelimit.Limit{
			Requests: cfg.RateLimit.IPRequests,
			Window:   cfg.RateLimit.Window,
		},
		UserLimit: ratelimit.Limit{
			Requests: cfg.RateLimit.UserRequests,
			Window:   cfg.RateLimit.Window,
		},
		Public: []httpapi.PublicRegistrar{creditHandler, verificationHandler},
		Authenticated: []httpapi.Registrar{
			accesshandler.New(access, log),
			creditHandler,
			paymenthandler.New(payments, log),
			verificationHandler,
			phonehandler.New(phone, log),
		},
		Admin: []httpapi.Registrar{
			admin.New(admin.NewService(st.users, access, credits, log), log),
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting instantverify", "addr", cfg.Server.Addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown failed", "error", err)
		}
		// Close drains buffered audit events before the sink is closed.
		auditPublisher.Close()
		return nil
	})

	return g.Wait()
}

// userStore is what the admin, phone and access layers need from users.
type userStore interface {
	admin.UserStore
	phoneservice.Users
	accessstore.UserReader
}

// stores is the persistence layer for one storage backend.
type stores struct {
	db            *sql.DB
	tx            paymentservice.TxRunner
	users         userStore
	access        accessservice.Store
	credits       creditservice.Store
	payments      paymentservice.Store
	verifications verificationservice.Store
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		users := userstore.NewInMemoryStore()
		return &stores{
			tx:            txcontext.NewMemoryRunner(),
			users:         users,
			access:        accessstore.NewInMemoryStore(users),
			credits:       creditstore.NewInMemoryStore(),
			payments:      paymentstore.NewInMemoryStore(),
			verifications: verificationstore.NewInMemoryStore(),
		}, nil
	}

	db, err := postgres.Connect(postgres.Config{
		DSN:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	log.Info("postgres ready")
	return &stores{
		db:            db,
		tx:            txcontext.NewPostgresRunner(db),
		users:         userstore.NewPostgres(db),
		access:        accessstore.NewPostgres(db),
		credits:       creditstore.NewPostgres(db),
		payments:      paymentstore.NewPostgres(db),
		verifications: verificationstore.NewPostgres(db),
	}, nil
}

// ephemeralStores hold short-lived state: OTP challenges and rate limit windows.
type ephemeralStores struct {
	otp    phoneservice.Store
	limits ratelimit.Store
	close  func()
}

// openEphemeralStores uses Redis when configured and falls back to process
// memory, which only suits a single instance.
func openEphemeralStores(ctx context.Context, cfg config.RedisConfig, log *slog.Logger, probes map[string]httpapi.Probe) (*ephemeralStores, error) {
	rc, err := redisclient.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc == nil {
		log.Warn("REDIS_URL not set; OTP challenges and rate limits are kept in memory")
		return &ephemeralStores{
			otp:    phonestore.NewInMemoryStore(),
			limits: ratelimit.NewInMemoryStore(),
			close:  func() {},
		}, nil
	}
	probes["redis"] = rc.Health
	return &ephemeralStores{
		otp:    phonestore.NewRedis(rc.Client),
		limits: ratelimit.NewRedis(rc.Client),
		close:  func() { _ = rc.Close() },
	}, nil
}

// openAuditStore prefers Kafka, then the audit_events table, then memory.
func openAuditStore(ctx context.Context, cfg config.KafkaConfig, db *sql.DB, log *slog.Logger, probes map[string]httpapi.Probe) (audit.Store, func(), error) {
	if len(cfg.Brokers) == 0 {
		if db != nil {
			log.Info("audit events go to postgres")
			return auditpostgres.New(db), func() {}, nil
		}
		log.Warn("KAFKA_BROKERS not set; audit events are kept in memory")
		return auditmemory.NewInMemoryStore(), func() {}, nil
	}
	ks, err := kafkastore.New(cfg.Brokers, cfg.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := ks.EnsureTopic(ensureCtx, 3, 1); err != nil {
		ks.Close()
		return nil, nil, err
	}
	log.Info("audit events go to kafka", "topic", cfg.AuditTopic)
	probes["kafka"] = ks.Health
	return ks, ks.Close, nil
}

// newProviders returns HTTP adapters for configured vendors and in-process
// mocks for the rest.
func newProviders(cfg config.ProvidersConfig, log *slog.Logger, m *metrics.Metrics) (provider.Provider, sms.Sender, payment.Gateway) {
	observe := providers.WithObserver(m)

	var verifier provider.Provider = provider.NewMockProvider()
	if cfg.VerificationURL != "" {
		verifier = provider.NewHTTPProvider("idv", cfg.VerificationURL, cfg.VerificationKey, cfg.Timeout, observe)
	} else {
		log.Warn("VERIFICATION_PROVIDER_URL not set; using the mock verification provider")
	}

	var sender sms.Sender = sms.NewMockSender(log)
	if cfg.SMSURL != "" {
		sender = sms.NewHTTPSender(cfg.SMSURL, cfg.SMSKey, cfg.Timeout, observe)
	} else {
		log.Warn("SMS_PROVIDER_URL not set; OTPs are logged instead of sent")
	}

	var gateway payment.Gateway = payment.NewMockGateway(cfg.PaymentSecret)
	if cfg.PaymentURL != "" {
		gateway = payment.NewHTTPGateway(cfg.PaymentURL, cfg.PaymentKeyID, cfg.PaymentSecret, cfg.Timeout, observe)
	} else {
		log.Warn("PAYMENT_GATEWAY_URL not set; using the mock payment gateway")
	}

	return verifier, sender, gateway
}
