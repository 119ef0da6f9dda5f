// Package store provides the persistence layer: the vector index used for
// semantic retrieval, the canonical incident corpus, and the append-only
// feedback and search-log sinks.
package store

import (
	"context"

	"github.com/kart-io/fixgenie/internal/model"
)

// VectorHit is one result from a vector index query.
type VectorHit struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// VectorIndex is the semantic retrieval backend. Implementations must treat
// Upsert as idempotent on the incident id.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for an incident id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error

	// Delete removes an incident by id. Deleting a missing id is not an error.
	Delete(ctx context.Context, ids ...string) error

	// Query returns up to topK nearest incidents by cosine similarity,
	// ordered by score descending then id ascending.
	Query(ctx context.Context, vector []float32, topK int) ([]VectorHit, error)

	// Count returns the number of indexed incidents.
	Count(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// CorpusStore is the canonical incident record of truth. All derived
// artefacts (vector index, lexical snapshot) are rebuilt from it.
type CorpusStore interface {
	// Save inserts or replaces an incident by id.
	Save(ctx context.Context, incident *model.Incident) error

	// Get fetches one incident by id, returning (nil, nil) when absent.
	Get(ctx context.Context, id string) (*model.Incident, error)

	// Delete removes an incident by id.
	Delete(ctx context.Context, id string) error

	// List returns all incidents ordered by id.
	List(ctx context.Context) ([]*model.Incident, error)

	// IDs returns all incident ids ordered ascending.
	IDs(ctx context.Context) ([]string, error)

	// Count returns the number of stored incidents.
	Count(ctx context.Context) (int64, error)
}

// FeedbackStore records user feedback and the search log. Both are
// append-only.
type FeedbackStore interface {
	// AddFeedback persists one feedback record, assigning its id.
	AddFeedback(ctx context.Context, fb *model.Feedback) error

	// ListFeedback returns the most recent feedback records, newest first.
	ListFeedback(ctx context.Context, limit int) ([]*model.Feedback, error)

	// AddSearchLog persists one search-log entry, assigning its id.
	AddSearchLog(ctx context.Context, entry *model.SearchLog) error

	// RecentSearches returns the most recent search-log entries, newest first.
	RecentSearches(ctx context.Context, limit int) ([]*model.SearchLog, error)
}
