package service

import (
	"errors"
	"testing"

	"transaction-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSagaCommitMarksCommitted(t *testing.T) {
	f := newFixture(Options{SagaCompensation: true}, line("Paracetamol", 2))

	result := commit(f, 10000)

	require.True(t, result.Success, result.Message)
	assert.Equal(t, map[int64]string{1: models.SagaStatusCommitted}, f.ledger.sagas)
	assert.Equal(t, 98, f.catalog.stock("1"))
}

func TestSagaReversesDeductionsOnStockFailure(t *testing.T) {
	f := newFixture(Options{SagaCompensation: true}, line("Paracetamol", 2), line("Amoxicillin", 1))
	f.catalog.failAdjust = func(id string, delta int) bool { return id == "2" }

	result := commit(f, 100000)

	assert.Equal(t, models.FailureStockUpdate, result.Failure.Kind)
	assert.Equal(t, 100, f.catalog.stock("1"))
	assert.Equal(t, []adjustment{{"1", -2}, {"1", 2}}, f.catalog.adjustments)
	assert.Equal(t, models.SagaStatusCompensated, f.ledger.sagas[1])
	assert.Empty(t, f.ledger.records)

	require.Len(t, f.publisher.compensated, 1)
	assert.Equal(t, []models.StockMovement{{CatalogID: "1", Name: "Paracetamol", Delta: 2}}, f.publisher.compensated[0].Reversed)
	assert.Empty(t, f.publisher.orphaned)
}

func TestSagaReversesDeductionsOnLedgerFailure(t *testing.T) {
	f := newFixture(Options{SagaCompensation: true}, line("Paracetamol", 2), line("Amoxicillin", 1))
	f.ledger.appendErr = errors.New("disk full")

	result := commit(f, 100000)

	assert.Equal(t, models.FailurePersistence, result.Failure.Kind)
	assert.Equal(t, 100, f.catalog.stock("1"))
	assert.Equal(t, 10, f.catalog.stock("2"))
	assert.Equal(t, models.SagaStatusCompensated, f.ledger.sagas[1])
}

func TestSagaCompensationFailureIsReportedOrphaned(t *testing.T) {
	f := newFixture(Options{SagaCompensation: true}, line("Paracetamol", 2), line("Amoxicillin", 1))
	f.ledger.appendErr = errors.New("disk full")
	// restores of Amoxicillin are rejected
	f.catalog.failAdjust = func(id string, delta int) bool { return id == "2" && delta > 0 }

	result := commit(f, 100000)

	assert.Equal(t, models.FailurePersistence, result.Failure.Kind)
	assert.Equal(t, 100, f.catalog.stock("1"))
	assert.Equal(t, 9, f.catalog.stock("2"))
	assert.Equal(t, models.SagaStatusCompensationFailed, f.ledger.sagas[1])

	require.Len(t, f.publisher.orphaned, 1)
	assert.Equal(t, []models.StockMovement{{CatalogID: "2", Name: "Amoxicillin", Delta: -1}}, f.publisher.orphaned[0].Applied)
}

func TestSagaLogFailureTouchesNoStock(t *testing.T) {
	f := newFixture(Options{SagaCompensation: true}, line("Paracetamol", 2))
	f.ledger.sagaErr = errors.New("database is locked")

	result := commit(f, 10000)

	assert.Equal(t, models.FailurePersistence, result.Failure.Kind)
	assert.Empty(t, f.catalog.adjustments)
}
