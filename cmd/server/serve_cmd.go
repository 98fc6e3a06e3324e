package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/router"
	"github.com/iliyamo/slot-booking/internal/signedlink"
	"github.com/iliyamo/slot-booking/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	var seedDemo bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the expiry sweeper and the optional event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.Service)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(sctx); err != nil {
					log.Warn("tracer shutdown failed", "error", err)
				}
			}()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("close failed", "error", err)
				}
			}()

			if seedDemo {
				res, err := seed(ctx, a.store, defaultSeedOptions(time.Now()))
				if err != nil {
					return err
				}
				log.Info("seeded demo catalog", "merchant_id", res.MerchantID, "task_id", res.TaskID, "slots", len(res.SlotIDs))
			}

			var signer *signedlink.Signer
			if cfg.Booking.LinkSecret != "" {
				signer, err = signedlink.NewSigner(cfg.Booking.LinkSecret, cfg.Booking.LinkTTL, cfg.Booking.LinkBaseURL, nil)
				if err != nil {
					return err
				}
			} else {
				log.Info("SIGNED_LINK_SECRET not set, signed booking links disabled")
			}

			if cfg.Booking.SweepEnabled {
				sweeper := a.svc.NewSweeper(cfg.Booking.AutoCompleteAfter)
				go sweeper.Run(ctx, cfg.Booking.SweepInterval)
			}
			if cfg.Broker.ConsumerEnabled && cfg.Broker.Kind == "rabbitmq" {
				consumer := queue.NewConsumer(cfg.Broker.RabbitURL, cfg.Broker.RabbitQueue,
					queue.LogNotifier{Log: log.With("component", "notifier")}, log.With("component", "consumer"))
				go func() {
					if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error("event consumer stopped", "error", err)
					}
				}()
			}

			e := newEcho(log)
			router.Register(e, router.Deps{
				Service:   a.svc,
				Signer:    signer,
				JWTSecret: cfg.JWTSecret,
				RateLimit: middleware.NewTokenBucket(cfg.RateLimit, a.rdb, log.With("component", "ratelimit")),
				Metrics:   a.metrics.Handler(),
			})
			return serveHTTP(ctx, e, ":"+cfg.Port, log)
		},
	}
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "create a demo merchant, task and slots on startup")
	return cmd
}

// newEcho builds the Echo instance with panic recovery and request logging.
func newEcho(log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	return e
}

// serveHTTP runs e until ctx is cancelled, then drains for up to ten
// seconds.
func serveHTTP(ctx context.Context, e *echo.Echo, addr string, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(sctx)
}
