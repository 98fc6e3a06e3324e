package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/slot-booking/internal/cache"
	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/database"
	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/repository/memory"
	"github.com/iliyamo/slot-booking/internal/service"
)

// storage is what the commands need from a store beyond the service's
// Repository: catalog writes for seeding and a Close.
type storage interface {
	service.Repository
	CreateMerchant(ctx context.Context, m *model.MerchantProfile) error
	CreateServiceItem(ctx context.Context, it *model.ServiceItem) error
	CreateTask(ctx context.Context, t *model.Task) error
	Close() error
}

var (
	_ storage = (*repository.Store)(nil)
	_ storage = (*memory.Store)(nil)
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg       config.Config
	log       *logger.Logger
	store     storage
	rdb       *redis.Client
	publisher queue.Publisher
	metrics   *metrics.Metrics
	svc       *service.BookingService
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "slot-booking",
		Short:         "Capacity-bounded appointment booking API",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSweepCommand(),
		newSeedCommand(),
		newTokenCommand(),
	)
	return root
}

// loadConfig reads the environment and builds the logger.
func loadConfig() (config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: cfg.Service})
	return cfg, log, nil
}

// openStorage opens the configured store, migrating SQL schemas when
// migrate is set or DB_AUTO_MIGRATE is on.
func openStorage(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (storage, error) {
	if cfg.Driver == "memory" {
		return memory.New(), nil
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if migrate || cfg.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.Driver); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return repository.NewStore(db), nil
}

// newApp wires the store, Redis, the event publisher, metrics and the
// booking service. Redis is optional: without it the cache and the rate
// limiter are off.
func newApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*app, error) {
	store, err := openStorage(ctx, cfg.DB, false)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: store, metrics: metrics.New()}

	if cfg.Cache.Enabled || cfg.RateLimit.Enabled {
		a.rdb = config.NewRedisClient(cfg.Redis)
		if a.rdb == nil {
			log.Warn("redis unavailable, cache and rate limiting disabled", "addr", cfg.Redis.Address())
		}
	}

	a.publisher, err = queue.NewPublisher(cfg.Broker, log.With("component", "publisher"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(log.With("component", "booking")),
		service.WithMetrics(a.metrics),
		service.WithPublisher(a.publisher),
		service.WithConflictRetries(cfg.Booking.ConflictRetries),
	}
	if c := cache.NewAvailability(cfg.Cache, a.rdb); c != nil {
		opts = append(opts, service.WithCache(c))
	}
	a.svc = service.New(store, opts...)
	return a, nil
}

// Close releases every resource the app opened.
func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
