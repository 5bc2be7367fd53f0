package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"transaction-service/internal/models"

	"github.com/shopspring/decimal"
)

type fakeAuthority struct {
	prescription *models.Prescription
	err          error
	calls        int
}

func (f *fakeAuthority) Validate(ctx context.Context, id string) (*models.Prescription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.prescription == nil {
		return &models.Prescription{ID: id}, nil
	}
	p := *f.prescription
	p.ID = id
	return &p, nil
}

type adjustment struct {
	id    string
	delta int
}

type fakeCatalog struct {
	mu          sync.Mutex
	entries     []models.CatalogEntry
	listErr     error
	listCalls   int
	adjustments []adjustment
	// failAdjust rejects an adjustment when it returns true
	failAdjust func(id string, delta int) bool
	// afterAdjust runs after every applied adjustment
	afterAdjust func()
}

func (f *fakeCatalog) ListAll(ctx context.Context) ([]models.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.CatalogEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeCatalog) AdjustStock(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failAdjust != nil && f.failAdjust(id, delta) {
		return errors.New("updateStock rejected")
	}
	f.adjustments = append(f.adjustments, adjustment{id: id, delta: delta})
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].StockOnHand += delta
		}
	}
	if f.afterAdjust != nil {
		f.afterAdjust()
	}
	return nil
}

func (f *fakeCatalog) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			return e.StockOnHand
		}
	}
	return -1
}

type fakeLedger struct {
	records    []models.TransactionRecord
	appendErr  error
	sagaErr    error
	sagas      map[int64]string
	stats      *models.DashboardStats
	statsCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{sagas: map[int64]string{}}
}

func (f *fakeLedger) Append(ctx context.Context, record *models.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.appendErr != nil {
		return f.appendErr
	}
	record.ID = int64(len(f.records) + 1)
	record.CreatedAt = time.Now().UTC()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeLedger) AggregateStats(ctx context.Context, windowDays int, loc *time.Location) (*models.DashboardStats, error) {
	f.statsCalls++
	if f.stats != nil {
		return f.stats, nil
	}
	return &models.DashboardStats{TotalTransactions: int64(len(f.records)), TotalRevenue: decimal.Zero}, nil
}

func (f *fakeLedger) ListTransactions(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	return f.records, nil
}

func (f *fakeLedger) ListDiscrepancies(ctx context.Context, limit int) ([]models.Discrepancy, error) {
	return nil, nil
}

func (f *fakeLedger) BeginSaga(ctx context.Context, prescriptionID string) (int64, error) {
	if f.sagaErr != nil {
		return 0, f.sagaErr
	}
	id := int64(len(f.sagas) + 1)
	f.sagas[id] = models.SagaStatusPending
	return id, nil
}

func (f *fakeLedger) UpdateSagaStatus(ctx context.Context, sagaID int64, status, detail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.sagas[sagaID] != models.SagaStatusPending {
		return errors.New("saga already settled")
	}
	f.sagas[sagaID] = status
	return nil
}

type fakePublisher struct {
	paid        []*models.TransactionPaidEvent
	failed      []*models.CommitFailedEvent
	orphaned    []*models.StockDeductionOrphanedEvent
	compensated []*models.StockCompensatedEvent
}

func (f *fakePublisher) PublishTransactionPaid(ctx context.Context, e *models.TransactionPaidEvent) error {
	f.paid = append(f.paid, e)
	return nil
}

func (f *fakePublisher) PublishCommitFailed(ctx context.Context, e *models.CommitFailedEvent) error {
	f.failed = append(f.failed, e)
	return nil
}

func (f *fakePublisher) PublishStockOrphaned(ctx context.Context, e *models.StockDeductionOrphanedEvent) error {
	f.orphaned = append(f.orphaned, e)
	return nil
}

func (f *fakePublisher) PublishStockCompensated(ctx context.Context, e *models.StockCompensatedEvent) error {
	f.compensated = append(f.compensated, e)
	return nil
}

type fakeCache struct {
	stats       *models.DashboardStats
	err         error
	sets        int
	invalidated int
}

func (f *fakeCache) GetDashboardStats(ctx context.Context) (*models.DashboardStats, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.stats, f.stats != nil, nil
}

func (f *fakeCache) SetDashboardStats(ctx context.Context, stats *models.DashboardStats, ttl time.Duration) error {
	f.sets++
	f.stats = stats
	return nil
}

func (f *fakeCache) InvalidateDashboardStats(ctx context.Context) error {
	f.invalidated++
	f.stats = nil
	return nil
}
