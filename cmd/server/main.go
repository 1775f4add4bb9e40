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

	"golang.org/x/sync/errgroup"

	blocklisthandler "senderguard/internal/blocklist/handler"
	"senderguard/internal/blocklist/matching"
	blmetrics "senderguard/internal/blocklist/metrics"
	"senderguard/internal/blocklist/ports"
	blservice "senderguard/internal/blocklist/service"
	"senderguard/internal/blocklist/store/entry"
	"senderguard/internal/blocklist/store/traffic"
	"senderguard/internal/platform/config"
	"senderguard/internal/platform/httpserver"
	"senderguard/internal/platform/kafka"
	"senderguard/internal/platform/logger"
	"senderguard/internal/platform/metrics"
	"senderguard/internal/platform/mongo"
	"senderguard/internal/platform/postgres"
	"senderguard/internal/platform/redis"
	rlmetrics "senderguard/internal/ratelimit/metrics"
	rlmiddleware "senderguard/internal/ratelimit/middleware"
	rlmodels "senderguard/internal/ratelimit/models"
	rlports "senderguard/internal/ratelimit/ports"
	rlservice "senderguard/internal/ratelimit/service"
	"senderguard/internal/ratelimit/store/counter"
	"senderguard/migrations"
	id "senderguard/pkg/domain"
	"senderguard/pkg/platform/audit"
	"senderguard/pkg/platform/audit/publishers/stream"
	auditmemory "senderguard/pkg/platform/audit/store/memory"
	auditpostgres "senderguard/pkg/platform/audit/store/postgres"
	"senderguard/pkg/platform/middleware/auth"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()
	health := map[string]func(r *http.Request) error{}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Apply(ctx, db); err != nil {
			return err
		}
		health["postgres"] = func(r *http.Request) error { return db.PingContext(r.Context()) }
	}

	counterStore, err := buildCounterStore(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	limiter, err := rlservice.New(counterStore,
		rlservice.WithLogger(log),
		rlservice.WithMetrics(rlmetrics.New(m.Registry)),
		rlservice.WithStoreTimeout(cfg.RateLimit.StoreTimeout),
		rlservice.WithPolicies(policiesFrom(cfg.RateLimit.Policies)),
	)
	if err != nil {
		return err
	}
	rateLimit := rlmiddleware.New(limiter, log, rlmiddleware.WithDisabled(cfg.RateLimit.Disabled))

	entries, auditLog, tx := buildBlocklistStores(db)
	trafficReader, closeMongo, err := buildTrafficReader(ctx, cfg, db, health)
	if err != nil {
		return err
	}
	defer closeMongo()

	mirror, closeKafka, err := buildAuditMirror(ctx, cfg, auditLog, m, log, health)
	if err != nil {
		return err
	}
	defer closeKafka()
	if mirror != nil {
		auditLog = mirror
	}

	roles, err := parseRoles(cfg.Blocklist.AllowedRoles)
	if err != nil {
		return err
	}
	blMetrics := blmetrics.New(m.Registry)
	svcOpts := []blservice.Option{
		blservice.WithLogger(log),
		blservice.WithMetrics(blMetrics),
		blservice.WithStoreTimeout(cfg.Blocklist.StoreTimeout),
		blservice.WithAllowedRoles(roles...),
	}
	if cfg.Blocklist.AuditMode == string(blservice.AuditModeTransactional) {
		svcOpts = append(svcOpts, blservice.WithTransactor(tx))
	}
	blocklist, err := blservice.New(entries, auditLog, svcOpts...)
	if err != nil {
		return err
	}
	engine, err := matching.New(entries, trafficReader,
		matching.WithLogger(log),
		matching.WithMetrics(blMetrics),
		matching.WithConcurrency(cfg.Blocklist.MatchConcurrency),
		matching.WithStoreTimeout(cfg.Blocklist.StoreTimeout),
	)
	if err != nil {
		return err
	}
	scheduler, err := matching.NewScheduler(engine, cfg.Blocklist.MatchInterval, log)
	if err != nil {
		return err
	}

	validator, err := auth.NewValidator(cfg.Server.JWTSigningKey)
	if err != nil {
		return err
	}
	handler := blocklisthandler.New(blocklist, engine, log,
		blocklisthandler.WithMatchMiddleware(matchRouteMiddleware(rateLimit, roles, log)...),
	)
	router := newRouter(routerDeps{
		logger:       log,
		metrics:      m,
		validator:    validator,
		rateLimit:    rateLimit,
		blocklist:    handler,
		healthChecks: health,
	})
	srv := httpserver.New(cfg.Server.Addr, router, httpserver.Timeouts{
		Write:    cfg.Server.WriteTimeout,
		Shutdown: cfg.Server.ShutdownTimeout,
	})

	log.Info("starting senderguard",
		"addr", cfg.Server.Addr,
		"audit_mode", blocklist.Mode(),
		"postgres", db != nil,
		"redis", health["redis"] != nil,
		"mongo", health["mongo"] != nil,
		"kafka", mirror != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

func buildCounterStore(ctx context.Context, cfg *config.Config, log *slog.Logger, health map[string]func(*http.Request) error) (rlports.CounterStore, error) {
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		log.Warn("redis not configured, rate-limit counters are process-local")
		return counter.NewInMemory(), nil
	}
	health["redis"] = func(r *http.Request) error { return rc.Health(r.Context()) }
	return counter.NewRedis(rc.Client), nil
}

func buildBlocklistStores(db *sql.DB) (ports.EntryStore, audit.Store, blservice.StoreTx) {
	if db == nil {
		return entry.NewInMemory(), auditmemory.NewInMemoryStore(), nil
	}
	return entry.NewPostgres(db), auditpostgres.New(db), newBlocklistPostgresTx(db, 0)
}

// buildTrafficReader prefers MongoDB when configured, then the postgres
// sender_traffic table, then an empty in-memory reader.
func buildTrafficReader(ctx context.Context, cfg *config.Config, db *sql.DB, health map[string]func(*http.Request) error) (ports.TrafficReader, func(), error) {
	mc, err := mongo.New(ctx, cfg.Mongo)
	if err != nil {
		return nil, nil, err
	}
	if mc != nil {
		health["mongo"] = func(r *http.Request) error { return mc.Ping(r.Context()) }
		closeFn := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = mc.Disconnect(shutdownCtx)
		}
		return traffic.NewMongo(mc.Collection(cfg.Mongo.TrafficCollection)), closeFn, nil
	}
	if db != nil {
		return traffic.NewPostgres(db), func() {}, nil
	}
	return traffic.NewInMemory(), func() {}, nil
}

// buildAuditMirror wraps store with the Kafka mirror when brokers are
// configured. The returned func drains the mirror before closing the client.
func buildAuditMirror(ctx context.Context, cfg *config.Config, store audit.Store, m *metrics.Metrics, log *slog.Logger, health map[string]func(*http.Request) error) (*stream.Mirror, func(), error) {
	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if kc == nil {
		return nil, func() {}, nil
	}
	if err := kc.EnsureTopic(ctx, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
		kc.Close()
		return nil, nil, err
	}
	health["kafka"] = func(r *http.Request) error { return kc.Health(r.Context()) }
	mirror := stream.New(store, kc, cfg.Kafka.AuditTopic,
		stream.WithLogger(log),
		stream.WithMetrics(stream.NewMetrics(m.Registry)),
	)
	mirror.Start()
	return mirror, func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		mirror.Close(drainCtx)
		kc.Close()
	}, nil
}

func policiesFrom(cfg map[string]config.PolicyConfig) map[rlmodels.Policy]rlmodels.Window {
	out := make(map[rlmodels.Policy]rlmodels.Window, len(cfg))
	for name, p := range cfg {
		out[rlmodels.Policy(name)] = rlmodels.Window{MaxRequests: p.MaxRequests, WindowSeconds: p.WindowSeconds}
	}
	return out
}

func parseRoles(values []string) ([]id.Role, error) {
	roles := make([]id.Role, 0, len(values))
	for _, v := range values {
		role, err := id.ParseRole(v)
		if err != nil {
			return nil, fmt.Errorf("blocklist.allowedroles: %q: %w", v, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}
