package store

import (
	"context"
	"sort"
	"sync"
)

var _ VectorIndex = (*MemoryIndex)(nil)

type memoryEntry struct {
	vector   []float32
	metadata map[string]string
}

// MemoryIndex is an in-process vector index backed by a map. It is used when
// no Milvus address is configured and in tests. Queries scan every entry,
// which is fine for corpora of a few thousand incidents.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryIndex creates an empty in-memory vector index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

// Upsert inserts or replaces the vector for an incident id.
func (m *MemoryIndex) Upsert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	vec := make([]float32, len(vector))
	copy(vec, vector)
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	m.mu.Lock()
	m.entries[id] = memoryEntry{vector: vec, metadata: meta}
	m.mu.Unlock()
	return nil
}

// Delete removes incidents by id.
func (m *MemoryIndex) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	return nil
}

// Query returns up to topK nearest incidents by cosine similarity.
func (m *MemoryIndex) Query(_ context.Context, vector []float32, topK int) ([]VectorHit, error) {
	if topK <= 0 {
		return []VectorHit{}, nil
	}

	m.mu.RLock()
	hits := make([]VectorHit, 0, len(m.entries))
	for id, entry := range m.entries {
		hits = append(hits, VectorHit{
			ID:       id,
			Score:    dotProduct(vector, entry.vector),
			Metadata: entry.metadata,
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of indexed incidents.
func (m *MemoryIndex) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close(_ context.Context) error {
	return nil
}

// Stored vectors are unit-norm, so the dot product is the cosine similarity.
func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
