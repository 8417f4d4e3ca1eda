// Package main is the entry point of the course service. It wires the
// stores, the progression engine and the view session tracker behind the
// JSON API.
//
// Layers:
//   - Domain: catalog, wallet ledger, progress store and unlock policy
//   - Application: progression engine, read queries, view sessions
//   - Infrastructure: postgres or in-memory storage, redis catalog cache,
//     event bus, scheduler, catalog seeding
//   - Interface: HTTP handlers
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/coursequest/config"
	"github.com/alem-hub/coursequest/internal/application/progression"
	"github.com/alem-hub/coursequest/internal/application/query"
	"github.com/alem-hub/coursequest/internal/application/session"
	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
	"github.com/alem-hub/coursequest/internal/infrastructure/messaging"
	"github.com/alem-hub/coursequest/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/coursequest/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/coursequest/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/coursequest/internal/infrastructure/scheduler"
	"github.com/alem-hub/coursequest/internal/infrastructure/seed"
	httpserver "github.com/alem-hub/coursequest/internal/interface/http"
	"github.com/alem-hub/coursequest/pkg/logger"
	"github.com/alem-hub/coursequest/pkg/retry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// catalogStore is a catalog that can also be written, as seeding needs.
type catalogStore interface {
	catalog.Repository
	catalog.Writer
}

// backend is the selected storage.
type backend struct {
	catalog  catalogStore
	wallets  wallet.Repository
	progress progress.Repository
	tx       shared.Transactor
	pinger   httpserver.Pinger
	close    func()
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	}).With(logger.String("service", cfg.App.Name))
	defer func() { _ = log.Sync() }()

	log.Info("starting course service",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	health := httpserver.NewCompositeHealthChecker(cfg.App.Version)
	if store.pinger != nil {
		health.AddCheck("database", httpserver.PingCheck(store.pinger))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. CATALOG CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var catalogRepo catalog.Repository = store.catalog
	var catalogCache *redis.CatalogCache
	if !cfg.Redis.Disabled {
		cache, err := openCache(ctx, cfg, log)
		if err != nil {
			log.Warn("redis unavailable, catalog cache disabled", logger.Err(err))
		} else {
			defer func() { _ = cache.Close() }()
			catalogCache = redis.NewCatalogCache(store.catalog, cache, cfg.Catalog.CacheTTL, log)
			catalogRepo = catalogCache
			health.AddCheck("redis", httpserver.PingCheck(cache))
			log.Info("catalog cache enabled", logger.String("addr", cfg.Redis.Addr()))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. CATALOG SEED
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Catalog.SeedFile != "" {
		var summary seed.Summary
		err := store.tx.InTx(ctx, func(ctx context.Context) error {
			var err error
			summary, err = seed.LoadFile(ctx, cfg.Catalog.SeedFile, store.catalog)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		if catalogCache != nil {
			if err := catalogCache.Invalidate(ctx); err != nil {
				log.Warn("failed to invalidate catalog cache", logger.Err(err))
			}
		}
		log.Info("catalog seeded",
			logger.String("file", cfg.Catalog.SeedFile),
			logger.Int("tags", summary.Tags),
			logger.Int("courses", summary.Courses),
			logger.Int("modules", summary.Modules),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. DOMAIN & APPLICATION
	// ─────────────────────────────────────────────────────────────────────────
	clock := shared.SystemClock{}
	ledger := wallet.NewLedger(store.wallets, store.tx, clock, cfg.App.Location)
	progressStore := progress.NewStore(store.progress, catalogRepo, clock)

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.AsyncMode = false
	bus := messaging.NewInMemoryEventBus(busCfg)
	health.AddCheck("event_bus", httpserver.PingCheck(bus))
	if m := bus.Metrics(); m != nil {
		health.AddStats("event_bus", func() any { return m.Snapshot() })
	}
	if err := bus.SubscribeAll(func(ev shared.Event) error {
		log.Debug("event published",
			logger.String("event_type", string(ev.EventType())),
			logger.Time("occurred_at", ev.OccurredAt()),
		)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to subscribe event trace: %w", err)
	}

	engine := progression.NewEngine(progression.Dependencies{
		Catalog:  catalogRepo,
		Progress: progressStore,
		Ledger:   ledger,
		Tx:       store.tx,
		Clock:    clock,
		Events:   bus,
		Logger:   log,
	}, progression.Config{
		CompletionReward: cfg.Economy.CompletionReward,
		TimedReward:      cfg.Economy.TimedReward,
		ImageClickReward: cfg.Economy.ImageClickReward,
		DailyLoginBonus:  cfg.Economy.DailyLoginBonus,
	})

	sessions := session.NewManager(engine,
		func(d time.Duration, onTick func()) session.Timer { return scheduler.NewIntervalTimer(d, onTick) },
		clock,
		session.Config{
			TickInterval:   cfg.Session.TickInterval,
			SaveEveryTicks: cfg.Session.SaveEveryTicks,
			NoticeTTL:      cfg.Session.NoticeTTL,
			IdleTimeout:    cfg.Session.IdleTimeout,
		},
		log,
	)
	if err := bus.Subscribe(shared.EventCourseEnrolled, sessions.OnCourseEnrolled); err != nil {
		return fmt.Errorf("failed to subscribe session tracker: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. BACKGROUND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	jobs := scheduler.NewScheduler(log)
	err = jobs.Register(scheduler.JobFunc{
		JobName: "reap-idle-sessions",
		Fn: func(ctx context.Context) error {
			_, err := sessions.ReapIdle(ctx)
			return err
		},
	}, scheduler.Every(cfg.Session.SweepInterval))
	if err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.DefaultUserID = cfg.HTTP.DefaultUserID
	httpCfg.Version = cfg.App.Version

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Engine:   engine,
		Sessions: sessions,
		Progress: progressStore,
		Courses:  query.NewGetFilteredCoursesHandler(catalogRepo, progressStore),
		Roadmap:  query.NewGetRoadmapHandler(catalogRepo, progressStore),
		Wallet:   query.NewGetWalletHandler(ledger, clock),
		Health:   health,
		Logger:   log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. RUN & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := jobs.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
		// Flush the seconds still pending in open views.
		if err := sessions.CloseAll(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("close sessions: %w", err))
		}
		if err := bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus close: %w", err))
		}
		return errors.Join(errs...)
	})

	log.Info("course service is running", logger.String("http_address", httpCfg.Address()))
	if err := g.Wait(); err != nil {
		log.Error("shutdown finished with errors", logger.Err(err))
		return err
	}
	log.Info("course service stopped")
	return nil
}

// openBackend selects postgres when a database URL is configured and the
// in-memory store otherwise.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if !cfg.UsesDatabase() {
		log.Warn("DATABASE_URL not set, using in-memory store")
		mem := memory.New()
		return &backend{
			catalog:  mem.Catalog(),
			wallets:  mem.Wallets(),
			progress: mem.Progress(),
			tx:       mem,
			close:    func() {},
		}, nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	policy := retry.StartupPolicy(cfg.Database.ConnectAttempts)
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("backoff", next),
			logger.Err(err),
		)
	}

	var conn *postgres.Connection
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		conn, err = postgres.NewConnection(ctx, pgCfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.RunMigrations {
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if status, err := migrator.Status(ctx); err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
		}
	}

	return &backend{
		catalog:  postgres.NewCatalogRepository(conn),
		wallets:  postgres.NewWalletRepository(conn),
		progress: postgres.NewProgressRepository(conn),
		tx:       conn,
		pinger:   conn,
		close: func() {
			log.Info("closing database connection")
			conn.Close()
		},
	}, nil
}

func openCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	rc := redis.DefaultConfig()
	rc.Addr = cfg.Redis.Addr()
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout

	var cache *redis.Cache
	policy := retry.StartupPolicy(3)
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		log.Warn("redis not ready, retrying", logger.Int("attempt", attempt), logger.Err(err))
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		cache, err = redis.NewCache(ctx, rc)
		return err
	})
	return cache, err
}
