package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"transaction-service/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultStatsWindow is the number of daily buckets when none is requested
const DefaultStatsWindow = 7

var (
	ErrSagaNotFound = errors.New("saga not found")
	// ErrSagaSettled is returned when a saga has already left PENDING
	ErrSagaSettled = errors.New("saga already settled")
)

// Append inserts a paid transaction and fills in its id and created_at
func (s *Store) Append(ctx context.Context, record *models.TransactionRecord) error {
	record.CreatedAt = s.now().UTC()
	if record.Status == "" {
		record.Status = models.TransactionStatusPaid
	}

	query := s.db.Rebind(`
		INSERT INTO transactions (prescription_id, user_id, total_price, payment_amount, change_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := s.db.QueryRowxContext(ctx, query,
		record.PrescriptionID, record.UserID, record.TotalPrice,
		record.PaymentAmount, record.ChangeAmount, record.Status, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the most recent transactions, newest first
func (s *Store) ListTransactions(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	records := []models.TransactionRecord{}
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`
		SELECT id, prescription_id, user_id, total_price, payment_amount, change_amount, status, created_at
		FROM transactions ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return records, nil
}

type revenueRow struct {
	TotalPrice decimal.Decimal `db:"total_price"`
	CreatedAt  time.Time       `db:"created_at"`
}

// AggregateStats summarizes PAID transactions. The daily series holds
// windowDays calendar days in loc ending today, oldest first, with days
// without revenue reported as zero.
func (s *Store) AggregateStats(ctx context.Context, windowDays int, loc *time.Location) (*models.DashboardStats, error) {
	if windowDays <= 0 {
		windowDays = DefaultStatsWindow
	}
	if loc == nil {
		loc = time.Local
	}

	today := s.now().In(loc)
	y, m, d := today.Date()
	start := time.Date(y, m, d-(windowDays-1), 0, 0, 0, 0, loc)

	series := make([]models.DailyRevenue, windowDays)
	buckets := make(map[string]int, windowDays)
	for i := range series {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = models.DailyRevenue{Date: day, Value: decimal.Zero}
		buckets[day] = i
	}

	// SQLite sums NUMERIC columns as float64, so amounts are added up here
	var rows []revenueRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT total_price, created_at FROM transactions WHERE status = ?`),
		models.TransactionStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}

	revenue := decimal.Zero
	for _, row := range rows {
		revenue = revenue.Add(row.TotalPrice)
		if i, ok := buckets[row.CreatedAt.In(loc).Format("2006-01-02")]; ok {
			series[i].Value = series[i].Value.Add(row.TotalPrice)
		}
	}

	return &models.DashboardStats{
		TotalTransactions: int64(len(rows)),
		TotalRevenue:      revenue,
		DailySeries:       series,
	}, nil
}

// BeginSaga opens a PENDING saga row for a compensating commit
func (s *Store) BeginSaga(ctx context.Context, prescriptionID string) (int64, error) {
	now := s.now().UTC()

	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`
		INSERT INTO saga_log (prescription_id, status, detail, created_at, updated_at)
		VALUES (?, ?, '', ?, ?)
		RETURNING id`),
		prescriptionID, models.SagaStatusPending, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to begin saga: %w", err)
	}
	return id, nil
}

// UpdateSagaStatus moves a PENDING saga to its final state. A saga that was
// already settled, by the commit or by the sweeper, is left untouched.
func (s *Store) UpdateSagaStatus(ctx context.Context, sagaID int64, status, detail string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE saga_log SET status = ?, detail = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		status, detail, s.now().UTC(), sagaID, models.SagaStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update saga %d: %w", sagaID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update saga %d: %w", sagaID, err)
	}
	if n == 0 {
		saga, err := s.GetSaga(ctx, sagaID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: saga %d is %s", ErrSagaSettled, sagaID, saga.Status)
	}
	return nil
}

// GetSaga retrieves a saga row by id
func (s *Store) GetSaga(ctx context.Context, sagaID int64) (*models.SagaRecord, error) {
	var saga models.SagaRecord
	err := s.db.GetContext(ctx, &saga, s.db.Rebind(`
		SELECT id, prescription_id, status, detail, created_at, updated_at
		FROM saga_log WHERE id = ?`), sagaID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrSagaNotFound, sagaID)
	}
	if err != nil {
		return nil, err
	}
	return &saga, nil
}

// ListStaleSagas returns PENDING sagas not touched since before
func (s *Store) ListStaleSagas(ctx context.Context, before time.Time) ([]models.SagaRecord, error) {
	sagas := []models.SagaRecord{}
	err := s.db.SelectContext(ctx, &sagas, s.db.Rebind(`
		SELECT id, prescription_id, status, detail, created_at, updated_at
		FROM saga_log WHERE status = ? AND updated_at < ? ORDER BY id`),
		models.SagaStatusPending, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sagas: %w", err)
	}
	return sagas, nil
}

// RecordDiscrepancy stores an orphaned deduction report. Redelivered events
// with the same event id are ignored.
func (s *Store) RecordDiscrepancy(ctx context.Context, d *models.Discrepancy) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO discrepancies (event_id, prescription_id, reason, items, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`),
		d.EventID, d.PrescriptionID, d.Reason, d.Items, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record discrepancy: %w", err)
	}
	return nil
}

// ListDiscrepancies returns recorded discrepancies, newest first
func (s *Store) ListDiscrepancies(ctx context.Context, limit int) ([]models.Discrepancy, error) {
	if limit <= 0 {
		limit = 50
	}

	out := []models.Discrepancy{}
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, event_id, prescription_id, reason, items, created_at
		FROM discrepancies ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list discrepancies: %w", err)
	}
	return out, nil
}
