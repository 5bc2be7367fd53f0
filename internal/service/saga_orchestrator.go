package service

import (
	"context"

	"transaction-service/internal/models"
	"transaction-service/internal/util"

	"go.uber.org/zap"
)

// SagaOrchestrator settles commits under a saga log. A PENDING row is
// written before the first deduction; if any later step fails every applied
// deduction is reversed once, with no retries.
type SagaOrchestrator struct {
	catalog   Catalog
	ledger    Ledger
	publisher EventPublisher
	logger    *zap.Logger
}

// NewSagaOrchestrator creates a new saga orchestrator
func NewSagaOrchestrator(catalog Catalog, ledger Ledger, publisher EventPublisher) *SagaOrchestrator {
	return &SagaOrchestrator{
		catalog:   catalog,
		ledger:    ledger,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

func (so *SagaOrchestrator) settle(ctx context.Context, prescriptionID string, items []models.PricedItem, record *models.TransactionRecord) *models.Failure {
	ctx, span := util.StartSpan(ctx, "SagaOrchestrator.Settle")
	defer span.End()

	sagaID, err := so.ledger.BeginSaga(ctx, prescriptionID)
	if err != nil {
		so.logger.Error("Failed to open saga, no stock touched",
			zap.String("prescription_id", prescriptionID),
			zap.Error(err))
		return &models.Failure{
			Kind:   models.FailurePersistence,
			Reason: models.ReasonLedgerWriteFailed,
		}
	}

	applied, failure := deductStock(ctx, so.catalog, items)
	if failure == nil {
		failure = appendRecord(ctx, so.ledger, record)
	}

	if failure == nil {
		if err := so.ledger.UpdateSagaStatus(ctx, sagaID, models.SagaStatusCommitted, ""); err != nil {
			so.logger.Error("Failed to mark saga committed",
				zap.Int64("saga_id", sagaID),
				zap.Int64("transaction_id", record.ID),
				zap.Error(err))
		}
		return nil
	}

	so.compensate(ctx, sagaID, prescriptionID, failure.Reason, applied)
	return failure
}

// compensate reverses applied deductions. Reversals that fail are reported
// as orphaned stock.
func (so *SagaOrchestrator) compensate(ctx context.Context, sagaID int64, prescriptionID, reason string, applied []models.StockMovement) {
	so.logger.Warn("Commit failed after stock deduction - starting compensation",
		zap.Int64("saga_id", sagaID),
		zap.String("prescription_id", prescriptionID),
		zap.String("reason", reason),
		zap.Int("applied", len(applied)))

	reversed := make([]models.StockMovement, 0, len(applied))
	var stranded []models.StockMovement

	for _, mv := range applied {
		if err := so.catalog.AdjustStock(ctx, mv.CatalogID, -mv.Delta); err != nil {
			util.StockAdjustmentsTotal.WithLabelValues("restore", "failed").Inc()
			so.logger.Error("Failed to reverse stock deduction",
				zap.String("catalog_id", mv.CatalogID),
				zap.Int("quantity", -mv.Delta),
				zap.Error(err))
			stranded = append(stranded, mv)
			continue
		}
		util.StockAdjustmentsTotal.WithLabelValues("restore", "ok").Inc()
		reversed = append(reversed, models.StockMovement{
			CatalogID: mv.CatalogID,
			Name:      mv.Name,
			Delta:     -mv.Delta,
		})
	}

	status := models.SagaStatusCompensated
	if len(stranded) > 0 {
		status = models.SagaStatusCompensationFailed
		util.SagaCompensationsTotal.WithLabelValues("failed").Inc()
		reportOrphaned(ctx, so.publisher, so.logger, prescriptionID, reason, stranded)
	} else {
		util.SagaCompensationsTotal.WithLabelValues("ok").Inc()
	}

	if err := so.ledger.UpdateSagaStatus(ctx, sagaID, status, reason); err != nil {
		so.logger.Error("Failed to update saga status",
			zap.Int64("saga_id", sagaID),
			zap.String("status", status),
			zap.Error(err))
	}

	if len(reversed) == 0 {
		return
	}

	event := &models.StockCompensatedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeStockCompensated),
		PrescriptionID: prescriptionID,
		Reversed:       reversed,
	}
	if err := so.publisher.PublishStockCompensated(ctx, event); err != nil {
		so.logger.Error("Failed to publish StockCompensated event", zap.Error(err))
	}
}
