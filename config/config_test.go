package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHORITY_URL", "")
	t.Setenv("SAGA_COMPENSATION", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:8004/graphql", cfg.Upstream.AuthorityURL)
	assert.Equal(t, "http://localhost:8002/graphql", cfg.Upstream.CatalogURL)
	assert.False(t, cfg.Business.SagaCompensation)
	assert.Equal(t, "@every 1m", cfg.Business.SagaSweepSchedule)
	assert.Equal(t, 5*time.Minute, cfg.Business.SagaStaleAfter)
	assert.Equal(t, []string{"admin", "apoteker"}, cfg.Auth.CommitRoles)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTHORITY_URL", "http://hospital:8004/graphql")
	t.Setenv("CATALOG_TIMEOUT", "3s")
	t.Setenv("SAGA_COMPENSATION", "true")
	t.Setenv("COMMIT_ROLES", " admin , kasir ,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	assert.Equal(t, "http://hospital:8004/graphql", cfg.Upstream.AuthorityURL)
	assert.Equal(t, 3*time.Second, cfg.Upstream.CatalogTimeout)
	assert.True(t, cfg.Business.SagaCompensation)
	assert.Equal(t, []string{"admin", "kasir"}, cfg.Auth.CommitRoles)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TRACING_ENABLED", "maybe")
	t.Setenv("AUTHORITY_TIMEOUT", "soon")
	t.Setenv("TRACE_SAMPLE_RATIO", "half")

	cfg := Load()

	assert.False(t, cfg.Observ.TracingEnabled)
	assert.Equal(t, float64(1), cfg.Observ.SampleRatio)
	assert.Equal(t, 10*time.Second, cfg.Upstream.AuthorityTimeout)
}
