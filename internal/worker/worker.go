package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"transaction-service/internal/broker"
	"transaction-service/internal/models"
	"transaction-service/internal/util"

	"go.uber.org/zap"
)

// DiscrepancyRecorder persists orphaned deduction reports
type DiscrepancyRecorder interface {
	RecordDiscrepancy(ctx context.Context, d *models.Discrepancy) error
}

// StatsInvalidator drops cached dashboard stats
type StatsInvalidator interface {
	InvalidateDashboardStats(ctx context.Context) error
}

// ReconciliationWorker turns transaction events into ledger-side
// bookkeeping: orphaned deductions become discrepancy rows and paid
// transactions from any replica invalidate the stats cache.
type ReconciliationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	recorder     DiscrepancyRecorder
	cache        StatsInvalidator
	logger       *zap.Logger
}

// NewReconciliationWorker creates a new reconciliation worker. cache may be nil.
func NewReconciliationWorker(consumer *broker.Consumer, recorder DiscrepancyRecorder, cache StatsInvalidator) *ReconciliationWorker {
	w := &ReconciliationWorker{
		consumer: consumer,
		recorder: recorder,
		cache:    cache,
		logger:   util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnStockOrphaned(w.HandleStockOrphaned)
	w.eventHandler.OnTransactionPaid(w.HandleTransactionPaid)
	return w
}

// Start starts the worker
func (w *ReconciliationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconciliation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconciliationWorker) Stop() error {
	w.logger.Info("Stopping reconciliation worker")
	return w.consumer.Close()
}

// HandleStockOrphaned records a discrepancy for stock deducted without a
// ledger row
func (w *ReconciliationWorker) HandleStockOrphaned(ctx context.Context, event *models.StockDeductionOrphanedEvent) error {
	ctx, span := util.StartSpan(ctx, "ReconciliationWorker.HandleStockOrphaned")
	defer span.End()

	items, err := json.Marshal(event.Applied)
	if err != nil {
		return fmt.Errorf("failed to encode applied movements: %w", err)
	}

	d := &models.Discrepancy{
		EventID:        event.EventID,
		PrescriptionID: event.PrescriptionID,
		Reason:         event.Reason,
		Items:          string(items),
	}
	if err := w.recorder.RecordDiscrepancy(ctx, d); err != nil {
		util.FailSpan(span, err)
		return fmt.Errorf("failed to record discrepancy: %w", err)
	}

	w.logger.Warn("Discrepancy recorded",
		zap.String("event_id", event.EventID),
		zap.String("prescription_id", event.PrescriptionID),
		zap.String("reason", event.Reason))
	return nil
}

// HandleTransactionPaid invalidates the dashboard stats cache
func (w *ReconciliationWorker) HandleTransactionPaid(ctx context.Context, event *models.TransactionPaidEvent) error {
	if w.cache == nil {
		return nil
	}
	if err := w.cache.InvalidateDashboardStats(ctx); err != nil {
		w.logger.Warn("Failed to invalidate stats cache",
			zap.Int64("transaction_id", event.TransactionID),
			zap.Error(err))
	}
	return nil
}
