package service

import (
	"context"
	"errors"
	"testing"

	"transaction-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	authority *fakeAuthority
	catalog   *fakeCatalog
	ledger    *fakeLedger
	publisher *fakePublisher
	cache     *fakeCache
	svc       *TransactionService
}

func newFixture(opts Options, lines ...models.PrescriptionLine) *fixture {
	f := &fixture{
		authority: &fakeAuthority{prescription: &models.Prescription{Valid: true, PatientName: "Budi", Lines: lines}},
		catalog: &fakeCatalog{entries: []models.CatalogEntry{
			{ID: "1", Name: "Paracetamol", UnitPrice: decimal.NewFromInt(5000), StockOnHand: 100},
			{ID: "2", Name: "Amoxicillin", UnitPrice: decimal.NewFromInt(12000), StockOnHand: 10},
		}},
		ledger:    newFakeLedger(),
		publisher: &fakePublisher{},
		cache:     &fakeCache{},
	}
	f.svc = NewTransactionService(f.authority, f.catalog, f.ledger, f.cache, f.publisher, opts)
	return f
}

func line(name string, qty int) models.PrescriptionLine {
	return models.PrescriptionLine{Name: name, Quantity: qty}
}

func commit(f *fixture, payment int64) *models.CommitResult {
	return f.svc.Commit(context.Background(), &CommitRequest{
		PrescriptionID: "RS-1001",
		PaymentAmount:  decimal.NewFromInt(payment),
		UserID:         "7",
	})
}

func TestPreviewAndCommitHappyPath(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2))

	preview := f.svc.Preview(context.Background(), "RS-1001")
	require.True(t, preview.Success, preview.Message)
	assert.Equal(t, "Budi", preview.PatientName)
	require.Len(t, preview.Items, 1)
	assert.True(t, decimal.NewFromInt(10000).Equal(preview.TotalPrice))

	result := commit(f, 10000)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, []string{"2x Paracetamol"}, result.Summary)
	assert.True(t, result.ChangeDue.IsZero())
	assert.Equal(t, int64(1), result.TransactionID)

	assert.Equal(t, 98, f.catalog.stock("1"))
	require.Len(t, f.ledger.records, 1)
	rec := f.ledger.records[0]
	assert.Equal(t, "RS-1001", *rec.PrescriptionID)
	assert.Equal(t, "7", *rec.UserID)
	assert.Equal(t, models.TransactionStatusPaid, rec.Status)
	assert.True(t, preview.TotalPrice.Equal(rec.TotalPrice))

	assert.Len(t, f.publisher.paid, 1)
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestCommitReturnsChange(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2), line("Amoxicillin", 1))

	result := commit(f, 25000)

	require.True(t, result.Success, result.Message)
	assert.True(t, decimal.NewFromInt(22000).Equal(result.TotalPrice))
	assert.True(t, decimal.NewFromInt(3000).Equal(result.ChangeDue))
	assert.Equal(t, "Transaction successful: 2x Paracetamol, 1x Amoxicillin. Change: 3000", result.Message)
	assert.Equal(t, []adjustment{{"1", -2}, {"2", -1}}, f.catalog.adjustments)
}

func TestCommitInsufficientPayment(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2))

	result := commit(f, 5000)

	assert.False(t, result.Success)
	require.NotNil(t, result.Failure)
	assert.Equal(t, models.FailureInsufficientPayment, result.Failure.Kind)
	assert.Equal(t, "Error: insufficient payment. Total: 10000", result.Message)
	assert.True(t, decimal.NewFromInt(10000).Equal(result.TotalPrice))
	assert.Empty(t, f.catalog.adjustments)
	assert.Empty(t, f.ledger.records)
	assert.Len(t, f.publisher.failed, 1)
}

func TestInsufficientStock(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 200))

	preview := f.svc.Preview(context.Background(), "RS-1001")
	result := commit(f, 1000000)

	for _, failure := range []*models.Failure{preview.Failure, result.Failure} {
		require.NotNil(t, failure)
		assert.Equal(t, models.FailureInsufficientStock, failure.Kind)
		assert.Equal(t, "Paracetamol", failure.Item)
		require.NotNil(t, failure.Available)
		assert.Equal(t, 100, *failure.Available)
	}
	assert.Equal(t, "Error: insufficient stock for Paracetamol (available: 100)", result.Message)
	assert.Equal(t, 100, f.catalog.stock("1"))
	assert.Empty(t, f.ledger.records)
}

func TestInvalidPrescriptionSkipsCatalog(t *testing.T) {
	tests := []struct {
		name         string
		prescription *models.Prescription
		reason       string
	}{
		{"authority says invalid", &models.Prescription{Valid: false}, models.ReasonInvalidPrescription},
		{"unknown id", nil, models.ReasonInvalidPrescription},
		{"no lines", &models.Prescription{Valid: true}, models.ReasonEmptyPrescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Options{})
			f.authority.prescription = tt.prescription

			preview := f.svc.Preview(context.Background(), "XX-1")
			result := commit(f, 10000)

			assert.False(t, preview.Success)
			assert.False(t, result.Success)
			assert.Equal(t, models.FailureInvalidPrescription, preview.Failure.Kind)
			assert.Equal(t, tt.reason, result.Failure.Reason)
			assert.Zero(t, f.catalog.listCalls)
			assert.Empty(t, f.catalog.adjustments)
		})
	}
}

func TestUpstreamUnreachable(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 1))
	f.authority.err = errors.New("dial tcp: connection refused")

	result := commit(f, 10000)
	assert.Equal(t, models.FailureUpstreamUnreachable, result.Failure.Kind)
	assert.Equal(t, "Error: authority unreachable", result.Message)
	assert.Zero(t, f.catalog.listCalls)

	f.authority.err = nil
	f.catalog.listErr = errors.New("timeout")

	preview := f.svc.Preview(context.Background(), "RS-1001")
	assert.Equal(t, models.FailureUpstreamUnreachable, preview.Failure.Kind)
	assert.Equal(t, models.ReasonCatalogUnreachable, preview.Failure.Reason)
}

func TestItemNotCarriedIsFailFast(t *testing.T) {
	f := newFixture(Options{}, line("Ibuprofen", 1), line("Unobtainium", 1))

	result := commit(f, 100000)

	assert.Equal(t, models.FailureCatalogMismatch, result.Failure.Kind)
	assert.Equal(t, "Error: item not carried: Ibuprofen", result.Message)
	assert.Empty(t, f.catalog.adjustments)
}

func TestNameMatchingIsCaseInsensitive(t *testing.T) {
	f := newFixture(Options{}, line("paracetamol", 1), line("AMOXICILLIN", 1))

	preview := f.svc.Preview(context.Background(), "RS-1001")

	require.True(t, preview.Success, preview.Message)
	assert.Equal(t, "1", preview.Items[0].CatalogID)
	assert.Equal(t, "2", preview.Items[1].CatalogID)
}

func TestPreviewDoesNotMutate(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2))

	first := f.svc.Preview(context.Background(), "RS-1001")
	for i := 0; i < 5; i++ {
		again := f.svc.Preview(context.Background(), "RS-1001")
		assert.True(t, first.TotalPrice.Equal(again.TotalPrice))
	}

	assert.Equal(t, 100, f.catalog.stock("1"))
	assert.Empty(t, f.catalog.adjustments)
	assert.Empty(t, f.ledger.records)
	assert.Equal(t, 6, f.catalog.listCalls)
}

func TestCommitIsNotIdempotent(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2))

	require.True(t, commit(f, 10000).Success)
	require.True(t, commit(f, 10000).Success)

	assert.Len(t, f.ledger.records, 2)
	assert.Equal(t, 96, f.catalog.stock("1"))
	assert.Equal(t, 2, f.authority.calls)
}

// Without compensation a failed adjustment leaves earlier deductions in
// place and no ledger row is written.
func TestCommitPartialDeductionIsNotRolledBack(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2), line("Amoxicillin", 1))
	f.catalog.failAdjust = func(id string, delta int) bool { return id == "2" }

	result := commit(f, 100000)

	assert.False(t, result.Success)
	assert.Equal(t, models.FailureStockUpdate, result.Failure.Kind)
	assert.Equal(t, "Error: stock update failed: Amoxicillin", result.Message)
	assert.Equal(t, 98, f.catalog.stock("1"))
	assert.Equal(t, 10, f.catalog.stock("2"))
	assert.Empty(t, f.ledger.records)

	require.Len(t, f.publisher.orphaned, 1)
	assert.Equal(t, []models.StockMovement{{CatalogID: "1", Name: "Paracetamol", Delta: -2}}, f.publisher.orphaned[0].Applied)
	assert.Empty(t, f.publisher.compensated)
}

func TestCommitLedgerFailureLeavesStockDeducted(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2))
	f.ledger.appendErr = errors.New("database is locked")

	result := commit(f, 10000)

	assert.Equal(t, models.FailurePersistence, result.Failure.Kind)
	assert.Equal(t, "Error: ledger write failed", result.Message)
	assert.Equal(t, 98, f.catalog.stock("1"))
	assert.Len(t, f.publisher.orphaned, 1)
	assert.Zero(t, f.cache.invalidated)
}

func TestCommitSurvivesCallerCancellation(t *testing.T) {
	for _, saga := range []bool{false, true} {
		f := newFixture(Options{SagaCompensation: saga}, line("Paracetamol", 2), line("Amoxicillin", 1))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.catalog.afterAdjust = cancel

		result := f.svc.Commit(ctx, &CommitRequest{
			PrescriptionID: "RS-1001",
			PaymentAmount:  decimal.NewFromInt(22000),
		})

		require.True(t, result.Success, result.Message)
		assert.Error(t, ctx.Err())
		assert.Equal(t, 98, f.catalog.stock("1"))
		assert.Equal(t, 9, f.catalog.stock("2"))
		assert.Len(t, f.ledger.records, 1)
		assert.Empty(t, f.publisher.orphaned)
		if saga {
			assert.Equal(t, models.SagaStatusCommitted, f.ledger.sagas[1])
		}
	}
}

func TestFirstAdjustmentFailureOrphansNothing(t *testing.T) {
	f := newFixture(Options{}, line("Paracetamol", 2))
	f.catalog.failAdjust = func(string, int) bool { return true }

	result := commit(f, 10000)

	assert.Equal(t, models.FailureStockUpdate, result.Failure.Kind)
	assert.Empty(t, f.publisher.orphaned)
}

func TestDashboardStatsUsesCache(t *testing.T) {
	f := newFixture(Options{StatsCacheTTL: 30})
	f.ledger.stats = &models.DashboardStats{TotalTransactions: 3, TotalRevenue: decimal.NewFromInt(30000)}

	first, err := f.svc.DashboardStats(context.Background())
	require.NoError(t, err)
	second, err := f.svc.DashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), first.TotalTransactions)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.ledger.statsCalls)
	assert.Equal(t, 1, f.cache.sets)
}

func TestDashboardStatsFallsBackOnCacheError(t *testing.T) {
	f := newFixture(Options{})
	f.cache.err = errors.New("redis: connection refused")

	stats, err := f.svc.DashboardStats(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Equal(t, 1, f.ledger.statsCalls)
}

func TestDashboardStatsWithoutCache(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewTransactionService(&fakeAuthority{}, &fakeCatalog{}, ledger, nil, &fakePublisher{}, Options{})

	_, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	_, err = svc.DashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, ledger.statsCalls)
}
