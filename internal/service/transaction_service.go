package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transaction-service/internal/models"
	"transaction-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PrescriptionAuthority validates prescriptions
type PrescriptionAuthority interface {
	Validate(ctx context.Context, prescriptionID string) (*models.Prescription, error)
}

// Catalog lists medicines and adjusts their stock
type Catalog interface {
	ListAll(ctx context.Context) ([]models.CatalogEntry, error)
	AdjustStock(ctx context.Context, catalogID string, delta int) error
}

// Ledger persists paid transactions and saga state
type Ledger interface {
	Append(ctx context.Context, record *models.TransactionRecord) error
	AggregateStats(ctx context.Context, windowDays int, loc *time.Location) (*models.DashboardStats, error)
	ListTransactions(ctx context.Context, limit int) ([]models.TransactionRecord, error)
	ListDiscrepancies(ctx context.Context, limit int) ([]models.Discrepancy, error)
	BeginSaga(ctx context.Context, prescriptionID string) (int64, error)
	UpdateSagaStatus(ctx context.Context, sagaID int64, status, detail string) error
}

// StatsCache caches the dashboard summary. A nil StatsCache disables caching.
type StatsCache interface {
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, bool, error)
	SetDashboardStats(ctx context.Context, stats *models.DashboardStats, ttl time.Duration) error
	InvalidateDashboardStats(ctx context.Context) error
}

// EventPublisher publishes transaction events
type EventPublisher interface {
	PublishTransactionPaid(ctx context.Context, event *models.TransactionPaidEvent) error
	PublishCommitFailed(ctx context.Context, event *models.CommitFailedEvent) error
	PublishStockOrphaned(ctx context.Context, event *models.StockDeductionOrphanedEvent) error
	PublishStockCompensated(ctx context.Context, event *models.StockCompensatedEvent) error
}

// Options tunes the transaction service
type Options struct {
	// SagaCompensation reverses applied deductions when a commit fails
	// after stock was touched
	SagaCompensation bool
	StatsWindowDays  int
	StatsCacheTTL    time.Duration
	Location         *time.Location
}

// settler deducts stock and writes the ledger row for a priced commit
type settler interface {
	settle(ctx context.Context, prescriptionID string, items []models.PricedItem, record *models.TransactionRecord) *models.Failure
}

// TransactionService prices prescriptions and records paid transactions
type TransactionService struct {
	authority PrescriptionAuthority
	catalog   Catalog
	ledger    Ledger
	cache     StatsCache
	publisher EventPublisher
	settler   settler
	opts      Options
	logger    *zap.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(
	authority PrescriptionAuthority,
	catalog Catalog,
	ledger Ledger,
	cache StatsCache,
	publisher EventPublisher,
	opts Options,
) *TransactionService {
	if opts.StatsWindowDays <= 0 {
		opts.StatsWindowDays = 7
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	s := &TransactionService{
		authority: authority,
		catalog:   catalog,
		ledger:    ledger,
		cache:     cache,
		publisher: publisher,
		opts:      opts,
		logger:    util.GetLogger(),
	}

	if opts.SagaCompensation {
		s.settler = NewSagaOrchestrator(catalog, ledger, publisher)
	} else {
		s.settler = &directSettler{catalog: catalog, ledger: ledger, publisher: publisher, logger: s.logger}
	}
	return s
}

// CommitRequest is a request to pay for a prescription
type CommitRequest struct {
	PrescriptionID string          `json:"prescription_id" binding:"required"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	UserID         string          `json:"-"`
}

// Preview prices a prescription without touching stock or the ledger
func (s *TransactionService) Preview(ctx context.Context, prescriptionID string) *models.PreviewResult {
	ctx, span := util.StartSpan(ctx, "TransactionService.Preview")
	defer span.End()

	prescription, items, total, failure := s.price(ctx, prescriptionID)
	if failure != nil {
		util.PreviewsTotal.WithLabelValues(string(failure.Kind)).Inc()
		s.logger.Info("Preview rejected",
			zap.String("prescription_id", prescriptionID),
			zap.String("reason", failure.Reason),
			zap.String("item", failure.Item))
		return &models.PreviewResult{
			Message:    failure.Message(),
			Failure:    failure,
			TotalPrice: decimal.Zero,
		}
	}

	util.PreviewsTotal.WithLabelValues("success").Inc()
	return &models.PreviewResult{
		Success:     true,
		PatientName: prescription.PatientName,
		Items:       items,
		TotalPrice:  total,
	}
}

// Commit prices a prescription, deducts stock and records the transaction
func (s *TransactionService) Commit(ctx context.Context, req *CommitRequest) *models.CommitResult {
	ctx, span := util.StartSpan(ctx, "TransactionService.Commit")
	defer span.End()

	_, items, total, failure := s.price(ctx, req.PrescriptionID)
	if failure != nil {
		return s.commitFailed(ctx, req.PrescriptionID, failure)
	}

	change, failure := settlePayment(total, req.PaymentAmount)
	if failure != nil {
		return s.commitFailed(ctx, req.PrescriptionID, failure)
	}

	// Once stock deduction starts the commit runs to completion even if the
	// caller goes away. Upstream calls keep their own timeouts.
	ctx = context.WithoutCancel(ctx)

	prescriptionID := req.PrescriptionID
	record := &models.TransactionRecord{
		PrescriptionID: &prescriptionID,
		TotalPrice:     total,
		PaymentAmount:  req.PaymentAmount,
		ChangeAmount:   change,
		Status:         models.TransactionStatusPaid,
	}
	if req.UserID != "" {
		userID := req.UserID
		record.UserID = &userID
	}

	if failure := s.settler.settle(ctx, req.PrescriptionID, items, record); failure != nil {
		return s.commitFailed(ctx, req.PrescriptionID, failure)
	}

	util.TransactionsCommittedTotal.Inc()
	util.TransactionRevenueTotal.Add(total.InexactFloat64())

	summary := make([]string, len(items))
	for i, item := range items {
		summary[i] = fmt.Sprintf("%dx %s", item.Quantity, item.Name)
	}

	s.logger.Info("Transaction committed",
		zap.Int64("transaction_id", record.ID),
		zap.String("prescription_id", req.PrescriptionID),
		zap.String("total_price", total.String()))

	s.invalidateStats(ctx)

	event := &models.TransactionPaidEvent{
		BaseEvent:      newBaseEvent(models.EventTypeTransactionPaid),
		TransactionID:  record.ID,
		PrescriptionID: req.PrescriptionID,
		TotalPrice:     total,
		Items:          items,
	}
	if err := s.publisher.PublishTransactionPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish TransactionPaid event", zap.Error(err))
	}

	return &models.CommitResult{
		Success:       true,
		Message:       fmt.Sprintf("Transaction successful: %s. Change: %s", strings.Join(summary, ", "), change.String()),
		TransactionID: record.ID,
		Summary:       summary,
		TotalPrice:    total,
		ChangeDue:     change,
	}
}

// DashboardStats summarizes the ledger, served from the cache when fresh
func (s *TransactionService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "TransactionService.DashboardStats")
	defer span.End()

	if s.cache != nil {
		stats, ok, err := s.cache.GetDashboardStats(ctx)
		switch {
		case err != nil:
			util.StatsCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Stats cache read failed, using ledger", zap.Error(err))
		case ok:
			util.StatsCacheTotal.WithLabelValues("hit").Inc()
			return stats, nil
		default:
			util.StatsCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	start := time.Now()
	stats, err := s.ledger.AggregateStats(ctx, s.opts.StatsWindowDays, s.opts.Location)
	util.LedgerLatency.WithLabelValues("aggregate_stats").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	if s.cache != nil && s.opts.StatsCacheTTL > 0 {
		if err := s.cache.SetDashboardStats(ctx, stats, s.opts.StatsCacheTTL); err != nil {
			s.logger.Warn("Failed to cache stats", zap.Error(err))
		}
	}

	return stats, nil
}

// RecentTransactions lists the latest ledger rows
func (s *TransactionService) RecentTransactions(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	return s.ledger.ListTransactions(ctx, limit)
}

// Discrepancies lists orphaned deductions recorded by the reconciliation worker
func (s *TransactionService) Discrepancies(ctx context.Context, limit int) ([]models.Discrepancy, error) {
	return s.ledger.ListDiscrepancies(ctx, limit)
}

// price validates the prescription and resolves it against a fresh catalog
// snapshot. The catalog is not contacted unless the prescription is usable.
func (s *TransactionService) price(ctx context.Context, prescriptionID string) (*models.Prescription, []models.PricedItem, decimal.Decimal, *models.Failure) {
	prescription, err := s.authority.Validate(ctx, prescriptionID)
	if err != nil {
		s.logger.Warn("Authority call failed",
			zap.String("prescription_id", prescriptionID),
			zap.Error(err))
		return nil, nil, decimal.Zero, &models.Failure{
			Kind:   models.FailureUpstreamUnreachable,
			Reason: models.ReasonAuthorityUnreachable,
		}
	}
	if prescription == nil || !prescription.Valid {
		return nil, nil, decimal.Zero, &models.Failure{
			Kind:   models.FailureInvalidPrescription,
			Reason: models.ReasonInvalidPrescription,
		}
	}
	if len(prescription.Lines) == 0 {
		return nil, nil, decimal.Zero, &models.Failure{
			Kind:   models.FailureInvalidPrescription,
			Reason: models.ReasonEmptyPrescription,
		}
	}

	entries, err := s.catalog.ListAll(ctx)
	if err != nil {
		s.logger.Warn("Catalog call failed", zap.Error(err))
		return nil, nil, decimal.Zero, &models.Failure{
			Kind:   models.FailureUpstreamUnreachable,
			Reason: models.ReasonCatalogUnreachable,
		}
	}

	items, total, failure := resolve(prescription.Lines, entries)
	if failure != nil {
		return nil, nil, decimal.Zero, failure
	}
	return prescription, items, total, nil
}

func (s *TransactionService) commitFailed(ctx context.Context, prescriptionID string, failure *models.Failure) *models.CommitResult {
	util.TransactionFailuresTotal.WithLabelValues(string(failure.Kind)).Inc()
	s.logger.Warn("Commit failed",
		zap.String("prescription_id", prescriptionID),
		zap.String("kind", string(failure.Kind)),
		zap.String("reason", failure.Reason),
		zap.String("item", failure.Item))

	event := &models.CommitFailedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeCommitFailed),
		PrescriptionID: prescriptionID,
		Kind:           failure.Kind,
		Reason:         failure.Reason,
	}
	if err := s.publisher.PublishCommitFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish CommitFailed event", zap.Error(err))
	}

	result := &models.CommitResult{
		Message:    failure.Message(),
		Failure:    failure,
		TotalPrice: decimal.Zero,
		ChangeDue:  decimal.Zero,
	}
	if failure.TotalPrice != nil {
		result.TotalPrice = *failure.TotalPrice
	}
	return result
}

func (s *TransactionService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDashboardStats(ctx); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.Error(err))
	}
}

// directSettler deducts stock then appends the ledger row with no rollback.
// Deductions applied before a failure stay applied and are reported as
// orphaned.
type directSettler struct {
	catalog   Catalog
	ledger    Ledger
	publisher EventPublisher
	logger    *zap.Logger
}

func (d *directSettler) settle(ctx context.Context, prescriptionID string, items []models.PricedItem, record *models.TransactionRecord) *models.Failure {
	applied, failure := deductStock(ctx, d.catalog, items)
	if failure == nil {
		failure = appendRecord(ctx, d.ledger, record)
	}
	if failure == nil {
		return nil
	}

	if len(applied) > 0 {
		reportOrphaned(ctx, d.publisher, d.logger, prescriptionID, failure.Reason, applied)
	}
	return failure
}

// deductStock issues one negative adjustment per item in order and stops at
// the first failure. It returns the adjustments that were applied.
func deductStock(ctx context.Context, catalog Catalog, items []models.PricedItem) ([]models.StockMovement, *models.Failure) {
	applied := make([]models.StockMovement, 0, len(items))
	for _, item := range items {
		if err := catalog.AdjustStock(ctx, item.CatalogID, -item.Quantity); err != nil {
			util.StockAdjustmentsTotal.WithLabelValues("deduct", "failed").Inc()
			return applied, &models.Failure{
				Kind:   models.FailureStockUpdate,
				Reason: models.ReasonStockUpdateFailed,
				Item:   item.Name,
			}
		}
		util.StockAdjustmentsTotal.WithLabelValues("deduct", "ok").Inc()
		applied = append(applied, models.StockMovement{
			CatalogID: item.CatalogID,
			Name:      item.Name,
			Delta:     -item.Quantity,
		})
	}
	return applied, nil
}

func appendRecord(ctx context.Context, ledger Ledger, record *models.TransactionRecord) *models.Failure {
	start := time.Now()
	err := ledger.Append(ctx, record)
	util.LedgerLatency.WithLabelValues("append").Observe(time.Since(start).Seconds())
	if err != nil {
		util.GetLogger().Error("Ledger append failed", zap.Error(err))
		return &models.Failure{
			Kind:   models.FailurePersistence,
			Reason: models.ReasonLedgerWriteFailed,
		}
	}
	return nil
}

func reportOrphaned(ctx context.Context, publisher EventPublisher, logger *zap.Logger, prescriptionID, reason string, applied []models.StockMovement) {
	util.StockOrphanedTotal.Inc()
	logger.Error("Stock deducted without a ledger record",
		zap.String("prescription_id", prescriptionID),
		zap.String("reason", reason),
		zap.Any("applied", applied))

	event := &models.StockDeductionOrphanedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeStockDeductionOrphaned),
		PrescriptionID: prescriptionID,
		Reason:         reason,
		Applied:        applied,
	}
	if err := publisher.PublishStockOrphaned(ctx, event); err != nil {
		logger.Error("Failed to publish StockDeductionOrphaned event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

