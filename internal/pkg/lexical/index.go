package lexical

import (
	"sort"
	"sync/atomic"
)

// Document is one indexable record: a stable id plus the text both sparse
// scorers are built from.
type Document struct {
	ID   string
	Text string
}

// Hit is one scored sparse retrieval result.
type Hit struct {
	ID    string
	Score float64
}

// snapshot is an immutable build of both sparse structures over one corpus
// generation. Readers hold a reference for the duration of a search; writers
// publish a replacement wholesale.
type snapshot struct {
	docs    []Document
	ordinal map[string]int
	bm25    *bm25Index
	tfidf   *tfidfMatrix
}

func buildSnapshot(docs []Document) *snapshot {
	// Deterministic ordinal assignment, independent of insertion order.
	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].ID < sorted[b].ID })

	tokens := make([][]string, len(sorted))
	ordinal := make(map[string]int, len(sorted))
	for i, d := range sorted {
		tokens[i] = Tokenize(d.Text)
		ordinal[d.ID] = i
	}

	return &snapshot{
		docs:    sorted,
		ordinal: ordinal,
		bm25:    newBM25Index(tokens),
		tfidf:   newTFIDFMatrix(tokens),
	}
}

// Index is the reader-many / writer-one sparse index. Searches run against
// an immutable snapshot; Rebuild, Upsert and Delete build a new snapshot and
// publish it with an atomic pointer swap. In-flight readers keep the old one.
type Index struct {
	snap atomic.Pointer[snapshot]
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	x := &Index{}
	x.snap.Store(buildSnapshot(nil))
	return x
}

// Rebuild replaces the entire corpus in one publish.
func (x *Index) Rebuild(docs []Document) {
	x.snap.Store(buildSnapshot(docs))
}

// Upsert adds or replaces a single document. The snapshot is rebuilt; for
// the corpus sizes this index serves, a full rebuild is cheaper than
// maintaining incremental structures and keeps publishes atomic.
func (x *Index) Upsert(doc Document) {
	cur := x.snap.Load()
	docs := make([]Document, 0, len(cur.docs)+1)
	for _, d := range cur.docs {
		if d.ID != doc.ID {
			docs = append(docs, d)
		}
	}
	docs = append(docs, doc)
	x.snap.Store(buildSnapshot(docs))
}

// Delete removes a document if present.
func (x *Index) Delete(id string) {
	cur := x.snap.Load()
	docs := make([]Document, 0, len(cur.docs))
	for _, d := range cur.docs {
		if d.ID != id {
			docs = append(docs, d)
		}
	}
	x.snap.Store(buildSnapshot(docs))
}

// Size returns the number of indexed documents.
func (x *Index) Size() int {
	return len(x.snap.Load().docs)
}

// Has reports whether a document id is indexed.
func (x *Index) Has(id string) bool {
	_, ok := x.snap.Load().ordinal[id]
	return ok
}

// IDs returns the indexed ids in deterministic order.
func (x *Index) IDs() []string {
	snap := x.snap.Load()
	ids := make([]string, len(snap.docs))
	for i, d := range snap.docs {
		ids[i] = d.ID
	}
	return ids
}

// SearchBM25 returns the top k documents by Okapi BM25, with raw scores
// min-max normalised to [0,1] within the returned batch so fusion weights
// carry a consistent meaning. All-equal batches normalise to 1.0.
func (x *Index) SearchBM25(text string, k int) []Hit {
	snap := x.snap.Load()
	raw := snap.bm25.score(Tokenize(text))
	return snap.topK(normalizeMinMax(raw), k)
}

// SearchTFIDF returns the top k documents by TF-IDF cosine similarity,
// already in [0,1].
func (x *Index) SearchTFIDF(text string, k int) []Hit {
	snap := x.snap.Load()
	return snap.topK(snap.tfidf.score(Tokenize(text)), k)
}

// topK sorts positive-scoring documents by score descending, id ascending.
func (s *snapshot) topK(scores []float64, k int) []Hit {
	hits := make([]Hit, 0, len(scores))
	for i, sc := range scores {
		if sc > 0 {
			hits = append(hits, Hit{ID: s.docs[i].ID, Score: sc})
		}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ID < hits[b].ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// minNormalizedScore keeps the batch's weakest real hit above the positive
// filter in topK after min-max rescaling maps it to 0.
const minNormalizedScore = 1e-6

// normalizeMinMax rescales positive scores to [0,1] within the batch. When
// all positive scores are equal they map to 1.0.
func normalizeMinMax(scores []float64) []float64 {
	var minVal, maxVal float64
	first := true
	for _, s := range scores {
		if s <= 0 {
			continue
		}
		if first {
			minVal, maxVal = s, s
			first = false
			continue
		}
		if s < minVal {
			minVal = s
		}
		if s > maxVal {
			maxVal = s
		}
	}
	if first {
		return scores
	}

	out := make([]float64, len(scores))
	for i, s := range scores {
		if s <= 0 {
			continue
		}
		if maxVal == minVal {
			out[i] = 1.0
			continue
		}
		out[i] = (s - minVal) / (maxVal - minVal)
		if out[i] < minNormalizedScore {
			out[i] = minNormalizedScore
		}
	}
	return out
}
