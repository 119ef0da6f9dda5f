package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestRecordQueryByComplexity(t *testing.T) {
	m := Get()
	m.Reset()

	m.RecordQuery("exact_id", nil)
	m.RecordQuery("simple", nil)
	m.RecordQuery("simple", nil)
	m.RecordQuery("complex", nil)
	m.RecordQuery("out_of_domain", nil)
	m.RecordQuery("simple", errors.New("boom"))

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(6), queries["total"])
	assert.Equal(t, uint64(1), queries["exact_id"])
	assert.Equal(t, uint64(2), queries["simple"])
	assert.Equal(t, uint64(1), queries["complex"])
	assert.Equal(t, uint64(1), queries["out_of_domain"])
	assert.Equal(t, uint64(1), queries["errors"])
}

func TestRecordRetrievalSeparatesErrorsAndDegraded(t *testing.T) {
	m := Get()
	m.Reset()

	m.RecordRetrieval(100*time.Millisecond, false, nil)
	m.RecordRetrieval(100*time.Millisecond, true, nil)
	m.RecordRetrieval(0, false, errors.New("boom"))

	retrieval := m.Stats()["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(3), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["degraded"])
	assert.Equal(t, uint64(1), retrieval["errors"])
	assert.InDelta(t, 0.2, retrieval["total_duration_secs"].(float64), 1e-9)
}

func TestRecordEmbedCacheHitRate(t *testing.T) {
	m := Get()
	m.Reset()

	m.RecordEmbedCache(true)
	m.RecordEmbedCache(true)
	m.RecordEmbedCache(true)
	m.RecordEmbedCache(false)

	cache := m.Stats()["embedding_cache"].(map[string]interface{})
	assert.Equal(t, uint64(3), cache["hits"])
	assert.Equal(t, uint64(1), cache["misses"])
	assert.InDelta(t, 0.75, cache["hit_rate"].(float64), 1e-9)
}

func TestRecordIngest(t *testing.T) {
	m := Get()
	m.Reset()

	m.RecordIngest(5, 2, nil)
	m.RecordIngest(0, 0, errors.New("bad export"))

	ingest := m.Stats()["ingest"].(map[string]interface{})
	assert.Equal(t, uint64(5), ingest["ingested"])
	assert.Equal(t, uint64(2), ingest["quarantined"])
	assert.Equal(t, uint64(1), ingest["errors"])
}

func TestExportPrometheusFormat(t *testing.T) {
	m := Get()
	m.Reset()
	m.RecordQuery("simple", nil)
	m.RecordRefusal()
	m.RecordLLMCall(50*time.Millisecond, nil)

	out := m.Export("fixgenie", "")
	assert.Contains(t, out, "# TYPE fixgenie_queries_total counter")
	assert.Contains(t, out, "fixgenie_queries_total 1")
	assert.Contains(t, out, "fixgenie_refusals_total 1")
	assert.Contains(t, out, "fixgenie_llm_calls_total 1")
	assert.Contains(t, out, "fixgenie_uptime_seconds")

	// A subsystem extends the prefix.
	sub := m.Export("fixgenie", "api")
	assert.Contains(t, sub, "fixgenie_api_queries_total 1")
}

func TestResetClearsCounters(t *testing.T) {
	m := Get()
	m.RecordQuery("simple", nil)
	m.RecordRefusal()
	m.Reset()

	queries := m.Stats()["queries"].(map[string]interface{})
	require.Equal(t, uint64(0), queries["total"])
	require.Equal(t, uint64(0), queries["refusals"])
}
