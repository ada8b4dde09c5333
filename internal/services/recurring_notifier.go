package services

import (
	"context"
	"errors"
	"fmt"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/finance"
	applog "bilancio/internal/log"
	"bilancio/internal/ports"
)

// DuePublisher announces occurrences that fall due.
type DuePublisher interface {
	PublishOccurrenceDue(ctx context.Context, msg *amqp.OccurrenceDueMessage) error
}

// NotifierConfig tunes the recurring notifier.
type NotifierConfig struct {
	// CatchUpDays also announces occurrences up to this many days before
	// today that were never notified, e.g. after the worker was down.
	CatchUpDays int
}

func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{CatchUpDays: 0}
}

// ProcessResult summarises one ProcessDue run.
type ProcessResult struct {
	Checked  int
	Notified int
	Skipped  int
	Failed   int
}

// RecurringNotifier publishes an occurrence.due message for every entry
// occurrence falling due, at most once per (entry, date).
type RecurringNotifier struct {
	store     ports.Store
	agg       *finance.Aggregator
	publisher DuePublisher
	config    NotifierConfig
	logger    *applog.Logger
}

func NewRecurringNotifier(store ports.Store, publisher DuePublisher, config NotifierConfig, logger *applog.Logger) *RecurringNotifier {
	if logger == nil {
		logger = applog.Discard()
	}
	if config.CatchUpDays < 0 {
		config.CatchUpDays = 0
	}
	return &RecurringNotifier{
		store:     store,
		agg:       finance.New(nil),
		publisher: publisher,
		config:    config,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// ProcessDue announces the occurrences on today, plus the catch-up window,
// that were not announced before. A publish failure leaves the entry's
// marker untouched so the next run retries it.
func (n *RecurringNotifier) ProcessDue(ctx context.Context, today core.Date) (ProcessResult, error) {
	var res ProcessResult
	if n.store == nil || n.publisher == nil {
		return res, errors.New("notifier not properly initialized")
	}

	var entries []core.Entry
	for _, kind := range []core.Kind{core.Income, core.Expense} {
		list, err := n.store.ListEntries(ctx, kind)
		if err != nil {
			return res, fmt.Errorf("list %s entries: %w", kind, err)
		}
		entries = append(entries, list...)
	}

	n.logger.InfoContext(ctx, "Processing due occurrences",
		"total_entries", len(entries),
		applog.FieldToday, today.String())

	windowStart := today.AddDays(-n.config.CatchUpDays)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !e.Active {
			continue
		}
		res.Checked++

		due := n.agg.ListOccurrencesInRange([]core.Entry{e}, windowStart, today)
		if len(due) == 0 {
			continue
		}

		last, seen, err := n.store.LastNotified(ctx, e.Kind, e.ID)
		if err != nil {
			n.logger.ErrorContext(ctx, "Failed to read notification marker",
				applog.FieldKind, e.Kind, applog.FieldEntryID, e.ID, applog.FieldError, err)
			res.Failed++
			continue
		}

		pending := due[:0]
		for _, o := range due {
			if !seen || o.Date.After(last) {
				pending = append(pending, o)
			}
		}
		if len(pending) == 0 {
			res.Skipped++
			continue
		}

		for _, o := range pending {
			if err := n.notify(ctx, o); err != nil {
				n.logger.ErrorContext(ctx, "Failed to notify due occurrence",
					applog.FieldKind, o.Kind,
					applog.FieldEntryID, o.EntryID,
					applog.FieldDate, o.Date.String(),
					applog.FieldError, err)
				res.Failed++
				break
			}
			res.Notified++
		}
	}

	n.logger.InfoContext(ctx, "Due occurrence processing complete",
		"notified", res.Notified,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"total_checked", res.Checked)
	return res, nil
}

func (n *RecurringNotifier) notify(ctx context.Context, o core.Occurrence) error {
	if err := n.publisher.PublishOccurrenceDue(ctx, amqp.NewOccurrenceDueMessage(o)); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := n.store.MarkNotified(ctx, o.Kind, o.EntryID, o.Date); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	n.logger.InfoContext(ctx, "Occurrence due",
		applog.FieldKind, o.Kind,
		applog.FieldEntryID, o.EntryID,
		applog.FieldEntryName, o.Name,
		applog.FieldDate, o.Date.String(),
		applog.FieldAmount, o.Amount.Cents)
	return nil
}
