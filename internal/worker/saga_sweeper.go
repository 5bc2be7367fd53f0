package worker

import (
	"context"
	"fmt"
	"time"

	"transaction-service/internal/models"
	"transaction-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SagaStore is the saga log as seen by the sweeper
type SagaStore interface {
	ListStaleSagas(ctx context.Context, before time.Time) ([]models.SagaRecord, error)
	UpdateSagaStatus(ctx context.Context, sagaID int64, status, detail string) error
	RecordDiscrepancy(ctx context.Context, d *models.Discrepancy) error
}

// SagaSweeper finds sagas left PENDING by a crashed or cancelled commit.
// Their stock may have been deducted with nothing recorded, so each one
// becomes a discrepancy and is marked ABANDONED.
type SagaSweeper struct {
	store   SagaStore
	maxAge  time.Duration
	now     func() time.Time
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// NewSagaSweeper creates a sweeper for sagas older than maxAge
func NewSagaSweeper(store SagaStore, maxAge time.Duration) *SagaSweeper {
	return &SagaSweeper{
		store:   store,
		maxAge:  maxAge,
		now:     time.Now,
		cron:    cron.New(),
		logger:  util.GetLogger(),
		timeout: 30 * time.Second,
	}
}

// Start runs Sweep on a cron schedule such as "@every 1m"
func (s *SagaSweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Saga sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Saga sweeper started",
		zap.String("schedule", schedule),
		zap.Duration("max_age", s.maxAge))
	return nil
}

// Stop waits for a running sweep to finish
func (s *SagaSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep abandons stale sagas and returns how many were handled
func (s *SagaSweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.store.ListStaleSagas(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, saga := range stale {
		reason := "saga abandoned while pending"
		// fails when the commit settled the saga after it was listed
		if err := s.store.UpdateSagaStatus(ctx, saga.ID, models.SagaStatusAbandoned, reason); err != nil {
			s.logger.Info("Saga not abandoned",
				zap.Int64("saga_id", saga.ID),
				zap.Error(err))
			continue
		}

		d := &models.Discrepancy{
			EventID:        fmt.Sprintf("saga-%d", saga.ID),
			PrescriptionID: saga.PrescriptionID,
			Reason:         reason,
			Items:          "[]",
		}
		if err := s.store.RecordDiscrepancy(ctx, d); err != nil {
			s.logger.Error("Failed to record abandoned saga",
				zap.Int64("saga_id", saga.ID),
				zap.String("prescription_id", saga.PrescriptionID),
				zap.Error(err))
			continue
		}

		util.StockOrphanedTotal.Inc()
		s.logger.Warn("Saga abandoned",
			zap.Int64("saga_id", saga.ID),
			zap.String("prescription_id", saga.PrescriptionID),
			zap.Time("last_update", saga.UpdatedAt))
		handled++
	}

	return handled, nil
}
