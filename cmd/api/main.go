package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audit-trail/db"
	"audit-trail/internal/audit"
	"audit-trail/internal/auth"
	"audit-trail/internal/config"
	"audit-trail/internal/dedup"
	"audit-trail/internal/httpapi"
	"audit-trail/internal/ingest"
	"audit-trail/internal/metrics"
	"audit-trail/internal/narrative"
	"audit-trail/pkg/logger"
	"audit-trail/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, stop, cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	pg, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer pg.Close()

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(pg); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	repo := audit.NewPostgresRepo(pg)
	if cfg.App.SeedActionTypes {
		types, err := audit.ParseActionTypes(db.ActionTypesYAML())
		if err != nil {
			return err
		}
		if err := audit.SeedActionTypes(ctx, repo, types); err != nil {
			return err
		}
		log.Info("action types seeded", "count", len(types))
	}

	catalog, err := audit.LoadCatalog(ctx, repo)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore, err := openDedupStore(ctx, cfg, pg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := audit.NewService(repo, catalog)
	gate := dedup.NewGate(store, cfg.Dedup.TTL, log, m)
	proc := ingest.NewProcessor(svc, gate, log, m)

	builder := narrative.NewBuilder(cfg.NarrativeLocation(), log)
	builder.OnFallback = m.NarrativeFallback

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())

	registerRoutes(r, routeDeps{
		db:       pg,
		registry: reg,
		authMW:   auth.RequireAccessToken(authManager),
		handlers: httpapi.Handlers{Audit: svc, Ingest: proc, Narrative: builder},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dedup.Sweep(gctx, gate, cfg.Dedup.SweepInterval)
		return nil
	})

	if cfg.Kafka.Enabled() {
		consumer, err := ingest.NewConsumer(cfg.Kafka, proc, log)
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error {
			log.Info("kafka consumer started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.Group)
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				stop()
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		return nil
	})

	return g.Wait()
}

// openDedupStore returns the configured dedup backend and a func releasing it.
func openDedupStore(ctx context.Context, cfg config.Config, pg *sql.DB) (dedup.Store, func(), error) {
	switch cfg.Dedup.Backend {
	case config.DedupBackendRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, nil, err
		}
		return dedup.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
	default:
		return dedup.NewPostgresStore(pg), func() {}, nil
	}
}
