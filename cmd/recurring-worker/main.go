package main

import (
	"context"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

// logPublisher stands in for the broker when AMQP is disabled: due
// occurrences are only logged.
type logPublisher struct {
	logger *applog.Logger
}

func (p logPublisher) PublishOccurrenceDue(ctx context.Context, msg *amqp.OccurrenceDueMessage) error {
	p.logger.InfoContext(ctx, "Occurrence due",
		applog.FieldKind, msg.Kind,
		applog.FieldEntryID, msg.EntryID,
		applog.FieldEntryName, msg.Name,
		applog.FieldAmount, msg.Amount.Cents,
		applog.FieldDate, msg.Date.String())
	return nil
}

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentWorker)

	logger.Info("Starting recurring-worker")
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is private to this process; the worker will only see seeded data")
	}

	store := cli.OpenBackend(context.Background(), cfg, logger)

	var publisher services.DuePublisher = logPublisher{logger: logger}
	amqpClient := cli.ConnectAMQP(cfg, logger)
	if amqpClient != nil {
		publisher = amqpClient
	}

	notifier := services.NewRecurringNotifier(store.Store, publisher,
		services.NotifierConfig{CatchUpDays: cfg.CatchUpDays}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) error {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				return err
			}
		}
		return store.Cleanup()
	})

	logger.Info("Recurring notifier configured",
		"interval", cfg.RecurringInterval.String(),
		"catch_up_days", cfg.CatchUpDays,
		"backend", cfg.DataBackend)

	run := func(now time.Time) {
		res, err := notifier.ProcessDue(ctx, core.DateOf(now))
		if err != nil {
			logger.Error("Processing due occurrences failed", applog.FieldError, err.Error())
			return
		}
		logger.Info("Processing complete",
			"checked", res.Checked,
			"notified", res.Notified,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
	}

	run(time.Now())

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Recurring-worker stopped")
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
