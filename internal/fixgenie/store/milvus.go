package store

import (
	"context"
	"fmt"

	"github.com/kart-io/fixgenie/pkg/component/milvus"
	milvusopts "github.com/kart-io/fixgenie/pkg/options/milvus"
)

var _ VectorIndex = (*MilvusIndex)(nil)

// metadataFields are the VARCHAR columns stored alongside each vector and
// returned with every search hit.
var metadataFields = []milvus.MetaField{
	{Name: "title", MaxLen: 512},
	{Name: "description", MaxLen: 4096},
	{Name: "resolution", MaxLen: 4096},
	{Name: "tags", MaxLen: 512},
	{Name: "created_at", MaxLen: 64},
	{Name: "resolved_by", MaxLen: 128},
	{Name: "category", MaxLen: 64},
	{Name: "priority", MaxLen: 32},
}

// MilvusIndex implements VectorIndex on top of the Milvus client wrapper.
type MilvusIndex struct {
	client     *milvus.Client
	collection string
}

// NewMilvusIndex connects to Milvus and ensures the incident collection
// exists with the given embedding dimension.
func NewMilvusIndex(ctx context.Context, opts *milvusopts.Options, dimension int) (*MilvusIndex, error) {
	client, err := milvus.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	schema := &milvus.CollectionSchema{
		Name:        opts.Collection,
		Description: "Resolved incident embeddings for retrieval",
		Dimension:   dimension,
		MetaFields:  metadataFields,
	}
	if err := client.EnsureCollection(ctx, schema); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return &MilvusIndex{client: client, collection: opts.Collection}, nil
}

// Upsert inserts or replaces the vector for an incident id.
func (m *MilvusIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	row := milvus.Row{
		ID:        id,
		Embedding: vector,
		Metadata:  metadata,
	}
	if err := m.client.Upsert(ctx, m.collection, []milvus.Row{row}); err != nil {
		return fmt.Errorf("failed to upsert incident %s: %w", id, err)
	}
	return nil
}

// Delete removes incidents by id.
func (m *MilvusIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.client.Delete(ctx, m.collection, ids); err != nil {
		return fmt.Errorf("failed to delete incidents: %w", err)
	}
	return nil
}

// Query returns up to topK nearest incidents by cosine similarity.
func (m *MilvusIndex) Query(ctx context.Context, vector []float32, topK int) ([]VectorHit, error) {
	outputFields := make([]string, 0, len(metadataFields))
	for _, f := range metadataFields {
		outputFields = append(outputFields, f.Name)
	}

	results, err := m.client.Search(ctx, m.collection, vector, topK, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to query milvus: %w", err)
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, VectorHit{
			ID:       r.ID,
			Score:    float64(r.Score),
			Metadata: r.Metadata,
		})
	}
	return hits, nil
}

// Count returns the number of indexed incidents.
func (m *MilvusIndex) Count(ctx context.Context) (int64, error) {
	return m.client.RowCount(ctx, m.collection)
}

// Close closes the Milvus connection.
func (m *MilvusIndex) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}
