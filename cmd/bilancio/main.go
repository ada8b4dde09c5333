package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	ctx := context.Background()
	store := cli.OpenBackend(ctx, cfg, logger)

	dash := services.NewDashboardService(store.Store, services.DashboardConfig{
		CashflowWindow:     cfg.CashflowWindow,
		UpcomingLimit:      cfg.UpcomingLimit,
		CacheTTL:           cfg.DashboardCacheTTL,
		ExpansionCacheSize: cfg.ExpansionCacheSize,
	}, logger)

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache))
	for _, c := range dash.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(time.Minute)

	// A nil *amqp.Client must not become a non-nil ChangePublisher.
	var publisher services.ChangePublisher
	amqpClient := cli.ConnectAMQP(cfg, logger)
	if amqpClient != nil {
		publisher = amqpClient
	}
	data := services.NewDataService(store.Store, dash, publisher, logger)

	srv := apphttp.NewServer(":"+cfg.Port, dash, data, apphttp.Options{
		Logger: logger,
		Ready: func(ctx context.Context) error {
			_, err := store.Store.ListWallets(ctx)
			return err
		},
		RateLimit:       ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		BlockSuspicious: cfg.BlockSuspicious,
		TrustedProxies:  cfg.TrustedProxies,
		AllowReset:      cfg.AllowReset,
	})

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		caches.Stop()
		if amqpClient != nil {
			err = errors.Join(err, amqpClient.Close())
		}
		return errors.Join(err, store.Cleanup())
	})

	// Other instances publish their writes too; drop cached views on any change.
	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeDataChanged(runCtx, func(ctx context.Context, msg *amqp.DataChangedMessage) error {
				logger.DebugContext(ctx, "Data changed, invalidating dashboard",
					"event", msg.Event,
					applog.FieldEntity, msg.Entity,
					applog.FieldOperation, msg.Operation)
				dash.Invalidate()
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Data change consumer stopped", applog.FieldError, err.Error())
			}
		}()
	}

	logger.Info("Starting bilancio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
