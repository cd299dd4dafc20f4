// Command server runs the territory exclusivity engine: the resolved
// territory catalog, checkout leases, the billing webhook reconciler, and
// the ownership-change feed behind one HTTP listener.
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

	"golang.org/x/sync/errgroup"

	"turf/internal/billing"
	catalogservice "turf/internal/catalog/service"
	catalogstore "turf/internal/catalog/store"
	claimshandler "turf/internal/claims/handler"
	claimsservice "turf/internal/claims/service"
	"turf/internal/feed"
	leasemetrics "turf/internal/lease/metrics"
	"turf/internal/lease/reaper"
	leaseservice "turf/internal/lease/service"
	leasestore "turf/internal/lease/store"
	"turf/internal/ownership"
	ownershiphandler "turf/internal/ownership/handler"
	ownershipmetrics "turf/internal/ownership/metrics"
	"turf/internal/ownership/resolver"
	ownershipstore "turf/internal/ownership/store"
	"turf/internal/platform/config"
	"turf/internal/platform/httpserver"
	"turf/internal/platform/logger"
	"turf/internal/platform/postgres"
	platformredis "turf/internal/platform/redis"
	pricinghandler "turf/internal/pricing/handler"
	pricingmetrics "turf/internal/pricing/metrics"
	pricingservice "turf/internal/pricing/service"
	reconcilerhandler "turf/internal/reconciler/handler"
	reconcilermetrics "turf/internal/reconciler/metrics"
	reconcilerservice "turf/internal/reconciler/service"
	pendingstore "turf/internal/reconciler/store/pending"
	httptransport "turf/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres + redis in production, in-memory for dev.
	var (
		db        *sql.DB
		catalogSt catalogservice.Store
		ledger    ownership.Store
		pending   reconcilerservice.PendingStore
		leaseSt   leaseservice.Store

		pgHealth, redisHealth httptransport.HealthChecker
	)

	if cfg.PostgresURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		catalogSt = catalogstore.NewPostgres(db)
		ledger = ownershipstore.NewPostgres(db)
		pending = pendingstore.NewPostgres(db)
		pgHealth = dbHealth{db}
		log.Info("using postgres stores")
	} else {
		catalogSt = catalogstore.NewInMemory()
		ledger = ownershipstore.NewInMemory()
		pending = pendingstore.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		leaseSt = leasestore.NewRedis(redisClient)
		redisHealth = redisClient
		log.Info("using redis lease store")
	} else {
		leaseSt = leasestore.NewInMemory()
		log.Warn("REDIS_URL not set, using in-memory lease store")
	}

	var publisher feed.Publisher
	if len(cfg.Feed.Brokers) > 0 {
		kafka, err := feed.NewKafka(cfg.Feed.Brokers, cfg.Feed.Topic, log)
		if err != nil {
			return err
		}
		publisher = kafka
	} else {
		publisher = feed.NewInMemory()
		log.Warn("KAFKA_BROKERS not set, ownership changes stay in process")
	}
	defer publisher.Close()

	catalog := catalogservice.New(catalogSt)
	res := resolver.New(catalog, ledger, leaseSt, log, ownershipmetrics.New())
	leases := leaseservice.New(leaseSt, res, catalog, log,
		leaseservice.WithTTL(cfg.LeaseTTL),
		leaseservice.WithMetrics(leasemetrics.New()))

	provider := billing.NewClient(cfg.Billing)
	pricing := pricingservice.New(catalog, res, ledger, provider, publisher,
		cfg.Billing.StandardPriceID, log, pricingmetrics.New())

	reconciler := reconcilerservice.New(ledger, pending, catalog, leases, pricing, publisher,
		reconcilerservice.PriceTable{
			StandardPriceID: cfg.Billing.StandardPriceID,
			DiscountPriceID: cfg.Billing.DiscountPriceID,
		}, log, reconcilermetrics.New())

	claims := claimsservice.New(leases, pricing, ledger, provider,
		claimsservice.Prices{
			StandardPriceID: cfg.Billing.StandardPriceID,
			DiscountPriceID: cfg.Billing.DiscountPriceID,
		}, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Ownership:      ownershiphandler.New(res, catalog, log),
		Pricing:        pricinghandler.New(pricing, log),
		Claims:         claimshandler.New(claims, log),
		Reconciler:     reconcilerhandler.New(reconciler, cfg.Billing.WebhookSecret, log),
		AuthSigningKey: cfg.AuthSigningKey,
		Logger:         log,
		Postgres:       pgHealth,
		Redis:          redisHealth,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		reaper.New(leases, cfg.ReapInterval, log).Run(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// dbHealth adapts the package-level postgres health check to the router's
// checker interface.
type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error { return postgres.Health(ctx, h.db) }
