// Package metrics collects business metrics for the FixGenie service.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the service counters. All counters are updated atomically.
type Metrics struct {
	// Query metrics.
	queriesTotal       uint64
	queriesExactID     uint64
	queriesSimple      uint64
	queriesComplex     uint64
	queriesOutOfDomain uint64
	queriesErrors      uint64
	refusalsTotal      uint64

	// Retrieval metrics.
	retrievalTotal    uint64
	retrievalDegraded uint64
	retrievalDuration float64
	retrievalErrors   uint64

	// LLM call metrics.
	llmCallsTotal    uint64
	llmCallsDuration float64
	llmCallsErrors   uint64
	llmCallsRetries  uint64

	// Embedding cache metrics.
	embedCacheHits   uint64
	embedCacheMisses uint64

	// Ingest metrics.
	incidentsIngested    uint64
	incidentsQuarantined uint64
	ingestErrors         uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Get returns the global metrics instance.
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{startTime: time.Now()}
	})
	return globalMetrics
}

// RecordQuery records one handled query by complexity.
func (m *Metrics) RecordQuery(complexity string, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	switch complexity {
	case "exact_id":
		atomic.AddUint64(&m.queriesExactID, 1)
	case "simple":
		atomic.AddUint64(&m.queriesSimple, 1)
	case "complex":
		atomic.AddUint64(&m.queriesComplex, 1)
	case "out_of_domain":
		atomic.AddUint64(&m.queriesOutOfDomain, 1)
	}
}

// RecordRefusal records one refusal response.
func (m *Metrics) RecordRefusal() {
	atomic.AddUint64(&m.refusalsTotal, 1)
}

// RecordRetrieval records one hybrid retrieval pass.
func (m *Metrics) RecordRetrieval(duration time.Duration, degraded bool, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}
	if degraded {
		atomic.AddUint64(&m.retrievalDegraded, 1)
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall records one generative call.
func (m *Metrics) RecordLLMCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMRetry records one generative call retry.
func (m *Metrics) RecordLLMRetry() {
	atomic.AddUint64(&m.llmCallsRetries, 1)
}

// RecordEmbedCache records one embedding cache lookup.
func (m *Metrics) RecordEmbedCache(hit bool) {
	if hit {
		atomic.AddUint64(&m.embedCacheHits, 1)
	} else {
		atomic.AddUint64(&m.embedCacheMisses, 1)
	}
}

// RecordIngest records the outcome of one ingest batch.
func (m *Metrics) RecordIngest(ingested, quarantined int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.incidentsIngested, uint64(ingested))
	atomic.AddUint64(&m.incidentsQuarantined, uint64(quarantined))
}

func writeCounter(sb *strings.Builder, prefix, name, help string, value uint64) {
	sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
	sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
	sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
}

func writeGauge(sb *strings.Builder, prefix, name, help string, value float64) {
	sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
	sb.WriteString(fmt.Sprintf("# TYPE %s_%s gauge\n", prefix, name))
	sb.WriteString(fmt.Sprintf("%s_%s %.4f\n\n", prefix, name, value))
}

// Export renders the metrics in Prometheus text format.
func (m *Metrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	writeCounter(&sb, prefix, "queries_total", "Total number of queries.", atomic.LoadUint64(&m.queriesTotal))
	writeCounter(&sb, prefix, "queries_exact_id_total", "Queries answered by exact id lookup.", atomic.LoadUint64(&m.queriesExactID))
	writeCounter(&sb, prefix, "queries_simple_total", "Queries classified simple.", atomic.LoadUint64(&m.queriesSimple))
	writeCounter(&sb, prefix, "queries_complex_total", "Queries classified complex.", atomic.LoadUint64(&m.queriesComplex))
	writeCounter(&sb, prefix, "queries_out_of_domain_total", "Queries classified out of domain.", atomic.LoadUint64(&m.queriesOutOfDomain))
	writeCounter(&sb, prefix, "queries_errors_total", "Number of query errors.", atomic.LoadUint64(&m.queriesErrors))
	writeCounter(&sb, prefix, "refusals_total", "Number of refusal responses.", atomic.LoadUint64(&m.refusalsTotal))

	writeCounter(&sb, prefix, "retrieval_total", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	writeCounter(&sb, prefix, "retrieval_degraded_total", "Retrievals served in degraded mode.", atomic.LoadUint64(&m.retrievalDegraded))
	writeCounter(&sb, prefix, "retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	writeGauge(&sb, prefix, "retrieval_duration_seconds_total", "Total retrieval duration.", retrievalDuration)

	writeCounter(&sb, prefix, "llm_calls_total", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	writeGauge(&sb, prefix, "llm_calls_duration_seconds_total", "Total LLM call duration.", llmDuration)
	writeCounter(&sb, prefix, "llm_calls_errors_total", "Number of LLM call errors.", atomic.LoadUint64(&m.llmCallsErrors))
	writeCounter(&sb, prefix, "llm_calls_retries_total", "Number of LLM call retries.", atomic.LoadUint64(&m.llmCallsRetries))

	cacheHits := atomic.LoadUint64(&m.embedCacheHits)
	cacheMisses := atomic.LoadUint64(&m.embedCacheMisses)
	writeCounter(&sb, prefix, "embed_cache_hits_total", "Embedding cache hits.", cacheHits)
	writeCounter(&sb, prefix, "embed_cache_misses_total", "Embedding cache misses.", cacheMisses)
	cacheHitRate := 0.0
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheHits+cacheMisses)
	}
	writeGauge(&sb, prefix, "embed_cache_hit_rate", "Embedding cache hit rate (0-1).", cacheHitRate)

	writeCounter(&sb, prefix, "incidents_ingested_total", "Incidents ingested into the corpus.", atomic.LoadUint64(&m.incidentsIngested))
	writeCounter(&sb, prefix, "incidents_quarantined_total", "Incidents quarantined at ingest.", atomic.LoadUint64(&m.incidentsQuarantined))
	writeCounter(&sb, prefix, "ingest_errors_total", "Number of ingest errors.", atomic.LoadUint64(&m.ingestErrors))

	writeGauge(&sb, prefix, "uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats returns the current statistics for the stats endpoint.
func (m *Metrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLMDuration := 0.0
	if llmTotal > 0 {
		avgLLMDuration = llmDuration / float64(llmTotal)
	}

	cacheHits := atomic.LoadUint64(&m.embedCacheHits)
	cacheMisses := atomic.LoadUint64(&m.embedCacheMisses)
	cacheHitRate := 0.0
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheHits+cacheMisses)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":         atomic.LoadUint64(&m.queriesTotal),
			"exact_id":      atomic.LoadUint64(&m.queriesExactID),
			"simple":        atomic.LoadUint64(&m.queriesSimple),
			"complex":       atomic.LoadUint64(&m.queriesComplex),
			"out_of_domain": atomic.LoadUint64(&m.queriesOutOfDomain),
			"errors":        atomic.LoadUint64(&m.queriesErrors),
			"refusals":      atomic.LoadUint64(&m.refusalsTotal),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"degraded":            atomic.LoadUint64(&m.retrievalDegraded),
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
		},
		"llm": map[string]interface{}{
			"calls_total":         llmTotal,
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLMDuration,
			"errors":              atomic.LoadUint64(&m.llmCallsErrors),
			"retries":             atomic.LoadUint64(&m.llmCallsRetries),
		},
		"embedding_cache": map[string]interface{}{
			"hits":     cacheHits,
			"misses":   cacheMisses,
			"hit_rate": cacheHitRate,
		},
		"ingest": map[string]interface{}{
			"ingested":    atomic.LoadUint64(&m.incidentsIngested),
			"quarantined": atomic.LoadUint64(&m.incidentsQuarantined),
			"errors":      atomic.LoadUint64(&m.ingestErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset clears all counters. Test use only.
func (m *Metrics) Reset() {
	atomic.StoreUint64(&m.queriesTotal, 0)
	atomic.StoreUint64(&m.queriesExactID, 0)
	atomic.StoreUint64(&m.queriesSimple, 0)
	atomic.StoreUint64(&m.queriesComplex, 0)
	atomic.StoreUint64(&m.queriesOutOfDomain, 0)
	atomic.StoreUint64(&m.queriesErrors, 0)
	atomic.StoreUint64(&m.refusalsTotal, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalDegraded, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.llmCallsRetries, 0)
	atomic.StoreUint64(&m.embedCacheHits, 0)
	atomic.StoreUint64(&m.embedCacheMisses, 0)
	atomic.StoreUint64(&m.incidentsIngested, 0)
	atomic.StoreUint64(&m.incidentsQuarantined, 0)
	atomic.StoreUint64(&m.ingestErrors, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
