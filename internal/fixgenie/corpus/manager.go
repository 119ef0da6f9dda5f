// Package corpus mediates all mutations of the incident corpus and keeps the
// derived artefacts (vector index, lexical snapshot) consistent with it.
package corpus

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/lexical"
	"github.com/kart-io/fixgenie/pkg/llm"
	"github.com/kart-io/fixgenie/pkg/llm/resilience"
)

// Manager owns the write path of the corpus. An incident becomes visible to
// retrieval only after both its vector is upserted and the lexical snapshot
// containing it is published; the snapshot swap is the commit point, so a
// query never sees an incident in one sub-index but not the other.
type Manager struct {
	corpus   store.CorpusStore
	vectors  store.VectorIndex
	lexical  *lexical.Index
	embedder llm.EmbeddingProvider
	retry    *resilience.RetryConfig
}

// NewManager creates a corpus manager over the given stores.
func NewManager(corpusStore store.CorpusStore, vectors store.VectorIndex, lexicalIndex *lexical.Index, embedder llm.EmbeddingProvider) *Manager {
	return &Manager{
		corpus:   corpusStore,
		vectors:  vectors,
		lexical:  lexicalIndex,
		embedder: embedder,
		retry:    resilience.DefaultRetryConfig(),
	}
}

// Lexical returns the lexical index the retriever searches.
func (m *Manager) Lexical() *lexical.Index {
	return m.lexical
}

// Vectors returns the vector index the retriever searches.
func (m *Manager) Vectors() store.VectorIndex {
	return m.vectors
}

// Corpus returns the canonical incident store.
func (m *Manager) Corpus() store.CorpusStore {
	return m.corpus
}

// Has reports whether an incident is live, meaning present in the published
// lexical snapshot.
func (m *Manager) Has(id string) bool {
	return m.lexical.Has(id)
}

// metadataFieldMax bounds the text fields stored alongside a vector. The full
// text stays in the canonical corpus store; the metadata copy also has to fit
// the index's varchar columns.
const metadataFieldMax = 500

func truncateField(s string) string {
	if len(s) <= metadataFieldMax {
		return s
	}
	cut := metadataFieldMax
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// vectorMetadata flattens the incident fields stored alongside its vector.
func vectorMetadata(inc *model.Incident) map[string]string {
	return map[string]string{
		"title":       inc.Title,
		"description": truncateField(inc.Description),
		"resolution":  truncateField(inc.Resolution),
		"tags":        fmt.Sprintf("%v", []string(inc.Tags)),
		"created_at":  inc.CreatedAt.UTC().Format(time.RFC3339),
		"resolved_by": inc.ResolvedBy,
		"category":    inc.Category,
		"priority":    inc.Priority,
	}
}

// Upsert validates, persists and publishes one incident. The operation is
// idempotent on the incident id.
func (m *Manager) Upsert(ctx context.Context, inc *model.Incident) error {
	if err := inc.Validate(); err != nil {
		return fmt.Errorf("incident rejected: %w", err)
	}
	inc.ID = model.NormalizeID(inc.ID)

	if err := m.corpus.Save(ctx, inc); err != nil {
		return err
	}

	var vector []float32
	err := resilience.RetryWithBackoff(ctx, m.retry, func() error {
		var embedErr error
		vector, embedErr = m.embedder.EmbedSingle(ctx, inc.TrainingText())
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("failed to embed incident %s: %w", inc.ID, err)
	}
	if err := m.vectors.Upsert(ctx, inc.ID, vector, vectorMetadata(inc)); err != nil {
		return err
	}

	// Snapshot swap is the commit point.
	m.lexical.Upsert(lexical.Document{ID: inc.ID, Text: inc.SearchableText()})

	logger.Infow("incident published", "incident_id", inc.ID)
	return nil
}

// Delete removes an incident from the corpus and both derived indexes.
func (m *Manager) Delete(ctx context.Context, id string) error {
	id = model.NormalizeID(id)

	if err := m.corpus.Delete(ctx, id); err != nil {
		return err
	}
	if err := m.vectors.Delete(ctx, id); err != nil {
		return err
	}
	m.lexical.Delete(id)

	logger.Infow("incident removed", "incident_id", id)
	return nil
}

// Rebuild re-derives the vector index and lexical snapshot from the canonical
// corpus. Called on startup and after an audit finds drift.
func (m *Manager) Rebuild(ctx context.Context) error {
	incidents, err := m.corpus.List(ctx)
	if err != nil {
		return err
	}

	docs := make([]lexical.Document, 0, len(incidents))
	texts := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		docs = append(docs, lexical.Document{ID: inc.ID, Text: inc.SearchableText()})
		texts = append(texts, inc.TrainingText())
	}

	if len(incidents) > 0 {
		var vectors [][]float32
		err := resilience.RetryWithBackoff(ctx, m.retry, func() error {
			var embedErr error
			vectors, embedErr = m.embedder.Embed(ctx, texts)
			return embedErr
		})
		if err != nil {
			return fmt.Errorf("failed to embed corpus: %w", err)
		}
		for i, inc := range incidents {
			if err := m.vectors.Upsert(ctx, inc.ID, vectors[i], vectorMetadata(inc)); err != nil {
				return err
			}
		}
	}

	m.lexical.Rebuild(docs)
	logger.Infow("corpus rebuilt", "incidents", len(incidents))
	return nil
}

// AuditReport summarises one consistency sweep.
type AuditReport struct {
	CorpusCount   int64    `json:"corpus_count"`
	LexicalCount  int      `json:"lexical_count"`
	VectorCount   int64    `json:"vector_count"`
	MissingLive   []string `json:"missing_live,omitempty"`
	OrphanedLive  []string `json:"orphaned_live,omitempty"`
	RepairApplied bool     `json:"repair_applied"`
}

// Audit compares the canonical corpus against the published snapshot and
// rebuilds everything when they disagree.
func (m *Manager) Audit(ctx context.Context) (*AuditReport, error) {
	corpusIDs, err := m.corpus.IDs(ctx)
	if err != nil {
		return nil, err
	}
	corpusCount := int64(len(corpusIDs))

	corpusSet := make(map[string]struct{}, len(corpusIDs))
	for _, id := range corpusIDs {
		corpusSet[id] = struct{}{}
	}

	report := &AuditReport{
		CorpusCount:  corpusCount,
		LexicalCount: m.lexical.Size(),
	}
	if count, err := m.vectors.Count(ctx); err == nil {
		report.VectorCount = count
	}

	liveIDs := m.lexical.IDs()
	liveSet := make(map[string]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		liveSet[id] = struct{}{}
		if _, ok := corpusSet[id]; !ok {
			report.OrphanedLive = append(report.OrphanedLive, id)
		}
	}
	for _, id := range corpusIDs {
		if _, ok := liveSet[id]; !ok {
			report.MissingLive = append(report.MissingLive, id)
		}
	}

	if len(report.MissingLive) > 0 || len(report.OrphanedLive) > 0 {
		logger.Warnw("corpus drift detected, rebuilding",
			"missing", len(report.MissingLive),
			"orphaned", len(report.OrphanedLive))
		if err := m.Rebuild(ctx); err != nil {
			return report, err
		}
		report.RepairApplied = true
	}

	return report, nil
}

// StartAuditLoop runs Audit on a fixed interval until the context ends.
func (m *Manager) StartAuditLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Audit(ctx); err != nil {
					logger.Errorw("corpus audit failed", "error", err)
				}
			}
		}
	}()
}
