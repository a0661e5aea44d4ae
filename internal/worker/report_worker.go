package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pesantren/internal/amqp"
	"pesantren/internal/services"
	"pesantren/internal/storage"
)

type (
	ReportRefresher interface {
		Refresh(ctx context.Context, year, month int) (services.MonthlyReport, error)
	}

	// ReportExporter publishes a refreshed report outside the database.
	ReportExporter interface {
		ExportMonthlyReport(ctx context.Context, r services.MonthlyReport) error
	}

	PaymentSyncer interface {
		Sync(ctx context.Context, year int) (int, error)
	}
)

// ReportWorker keeps monthly report snapshots, the exported copy and the
// payment monitoring grid in step with the ledger.
type ReportWorker struct {
	reports  ReportRefresher
	exporter ReportExporter
	payments PaymentSyncer
	logger   *slog.Logger
	now      func() time.Time
}

// NewReportWorker creates a worker. exporter and payments may be nil.
func NewReportWorker(reports ReportRefresher, exporter ReportExporter, payments PaymentSyncer, logger *slog.Logger) *ReportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWorker{
		reports:  reports,
		exporter: exporter,
		payments: payments,
		logger:   logger.With("component", "report_worker"),
		now:      time.Now,
	}
}

// touchesPayments reports whether a collection feeds the monitoring grid.
func touchesPayments(collection string) bool {
	switch collection {
	case storage.Transactions, storage.CashTransactions, storage.Students, "":
		return true
	}
	return false
}

// HandleLedgerEvent processes a single ledger event from AMQP. A returned
// error requeues the message.
func (w *ReportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"collection", ev.Collection,
		"record_id", ev.RecordID,
		"year", ev.Year,
		"month", ev.Month)

	if err := w.RefreshMonth(ctx, ev.Year, ev.Month); err != nil {
		return err
	}
	if w.payments != nil && touchesPayments(ev.Collection) {
		if _, err := w.payments.Sync(ctx, ev.Year); err != nil {
			return fmt.Errorf("sync payment status %d: %w", ev.Year, err)
		}
	}
	return nil
}

// RefreshMonth recomputes and exports one month.
func (w *ReportWorker) RefreshMonth(ctx context.Context, year, month int) error {
	report, err := w.reports.Refresh(ctx, year, month)
	if err != nil {
		return fmt.Errorf("refresh report %04d-%02d: %w", year, month, err)
	}
	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.ExportMonthlyReport(ctx, report); err != nil {
		return fmt.Errorf("export report %s: %w", report.Key(), err)
	}
	return nil
}

// RefreshCurrent refreshes the current and the previous month, so late
// entries dated last month still reach the snapshot.
func (w *ReportWorker) RefreshCurrent(ctx context.Context) error {
	now := w.now()
	prev := now.AddDate(0, 0, -now.Day())
	for _, t := range []time.Time{prev, now} {
		if err := w.RefreshMonth(ctx, t.Year(), int(t.Month())); err != nil {
			return err
		}
	}
	if w.payments != nil {
		n, err := w.payments.Sync(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("sync payment status %d: %w", now.Year(), err)
		}
		w.logger.InfoContext(ctx, "Periodic refresh completed", "payment_rows", n)
	}
	return nil
}

// Run refreshes on every tick until ctx is done. It catches up on events
// lost while the broker or the worker was down.
func (w *ReportWorker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Periodic refresh stopped")
			return
		case <-ticker.C:
			if err := w.RefreshCurrent(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic refresh failed", "error", err)
			}
		}
	}
}
