package biz

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
	"github.com/kart-io/fixgenie/internal/pkg/lexical"
)

// fixedEmbedder always returns the same query vector, so dense similarity in
// a test is exactly the dot product against whatever was upserted.
type fixedEmbedder struct {
	vector []float32
	fail   bool
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fixedEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	return f.vector, nil
}

func (f *fixedEmbedder) Name() string { return "fixed-test" }

// flakyEmbedder fails a fixed number of calls before recovering, to exercise
// the retry path.
type flakyEmbedder struct {
	vector   []float32
	failures int
	calls    atomic.Int64
}

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) <= int64(f.failures) {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *flakyEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	if f.calls.Add(1) <= int64(f.failures) {
		return nil, errors.New("embedding provider unavailable")
	}
	return f.vector, nil
}

func (f *flakyEmbedder) Name() string { return "flaky-test" }

func simpleQuery(text string) *model.Query {
	return &model.Query{
		Raw:        text,
		Sanitized:  Sanitize(text),
		Complexity: model.ComplexitySimple,
		TopK:       model.ComplexitySimple.TopK(),
	}
}

func TestRetrieveFusesAllThreePaths(t *testing.T) {
	ctx := context.Background()
	text := "snapdeal payment timeout on pinelabs gateway"

	vectors := store.NewMemoryIndex()
	require.NoError(t, vectors.Upsert(ctx, "JSP-1052", []float32{1, 0}, nil))

	idx := lexical.NewIndex()
	idx.Rebuild([]lexical.Document{{ID: "JSP-1052", Text: text}})

	r := NewRetriever(&fixedEmbedder{vector: []float32{1, 0}}, vectors, idx, newFakeCorpus())
	candidates, degraded, err := r.Retrieve(ctx, simpleQuery(text))
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.InDelta(t, 1.0, c.SemanticScore, 1e-6)
	assert.InDelta(t, 1.0, c.BM25Score, 1e-6)
	assert.Greater(t, c.TFIDFScore, 0.0)
	want := weightSemantic*c.SemanticScore + weightBM25*c.BM25Score + weightTFIDF*c.TFIDFScore
	assert.InDelta(t, want, c.FusedScore, 1e-9)
}

func TestRetrieveDegradedRedistributesWeights(t *testing.T) {
	ctx := context.Background()
	text := "snapdeal payment timeout on pinelabs gateway"

	idx := lexical.NewIndex()
	idx.Rebuild([]lexical.Document{{ID: "JSP-1052", Text: text}})

	r := NewRetriever(&fixedEmbedder{fail: true}, store.NewMemoryIndex(), idx, newFakeCorpus())
	r.retry = fastRetryConfig(1)
	candidates, degraded, err := r.Retrieve(ctx, simpleQuery(text))
	require.NoError(t, err)
	assert.True(t, degraded)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Zero(t, c.SemanticScore)
	assert.True(t, strings.HasSuffix(c.MatchType, model.MatchDegradedSuffix))
	want := 0.75*c.BM25Score + 0.25*c.TFIDFScore
	assert.InDelta(t, want, c.FusedScore, 1e-9)
}

func TestRetrieveTotalSubsystemFailure(t *testing.T) {
	ctx := context.Background()
	r := NewRetriever(&fixedEmbedder{fail: true}, store.NewMemoryIndex(), lexical.NewIndex(), newFakeCorpus())
	r.retry = fastRetryConfig(1)

	_, degraded, err := r.Retrieve(ctx, simpleQuery("payment gateway timeout"))
	require.Error(t, err)
	assert.True(t, degraded)
	assert.Equal(t, errkind.KindTotalSubsystem, errkind.KindOf(err))
}

func TestRetrieveRetriesEmbeddingBeforeDegrading(t *testing.T) {
	ctx := context.Background()
	text := "snapdeal payment timeout on pinelabs gateway"

	vectors := store.NewMemoryIndex()
	require.NoError(t, vectors.Upsert(ctx, "JSP-1052", []float32{1, 0}, nil))
	idx := lexical.NewIndex()
	idx.Rebuild([]lexical.Document{{ID: "JSP-1052", Text: text}})

	// One transient failure, then recovery: the dense path stays up.
	embedder := &flakyEmbedder{vector: []float32{1, 0}, failures: 1}
	r := NewRetriever(embedder, vectors, idx, newFakeCorpus())
	r.retry = fastRetryConfig(2)

	candidates, degraded, err := r.Retrieve(ctx, simpleQuery(text))
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, candidates, 1)
	assert.Greater(t, candidates[0].SemanticScore, 0.0)
	assert.Equal(t, int64(2), embedder.calls.Load())
}

func TestRetrieveDropsCandidatesBelowFloor(t *testing.T) {
	ctx := context.Background()
	matched := "snapdeal payment timeout on pinelabs gateway"

	vectors := store.NewMemoryIndex()
	require.NoError(t, vectors.Upsert(ctx, "JSP-1052", []float32{1, 0}, nil))
	require.NoError(t, vectors.Upsert(ctx, "EUL-77", []float32{0, 1}, nil))

	idx := lexical.NewIndex()
	idx.Rebuild([]lexical.Document{
		{ID: "JSP-1052", Text: matched},
		{ID: "EUL-77", Text: "razorpay webhook signature rotation"},
	})

	r := NewRetriever(&fixedEmbedder{vector: []float32{1, 0}}, vectors, idx, newFakeCorpus())
	candidates, _, err := r.Retrieve(ctx, simpleQuery(matched))
	require.NoError(t, err)

	// EUL-77 shares no terms with the query and sits orthogonal in the
	// vector space, so its fused score falls under the 0.3 floor.
	require.Len(t, candidates, 1)
	assert.Equal(t, "JSP-1052", candidates[0].IncidentID)
}

func TestRetrieveFiltersDenseHitsOutsideLiveSet(t *testing.T) {
	ctx := context.Background()

	vectors := store.NewMemoryIndex()
	require.NoError(t, vectors.Upsert(ctx, "JSP-1052", []float32{1, 0}, nil))
	require.NoError(t, vectors.Upsert(ctx, "JSP-STALE", []float32{1, 0}, nil))

	idx := lexical.NewIndex()
	idx.Rebuild([]lexical.Document{{ID: "JSP-1052", Text: "snapdeal payment timeout on pinelabs gateway"}})

	r := NewRetriever(&fixedEmbedder{vector: []float32{1, 0}}, vectors, idx, newFakeCorpus())
	candidates, _, err := r.Retrieve(ctx, simpleQuery("snapdeal payment timeout"))
	require.NoError(t, err)

	for _, c := range candidates {
		assert.NotEqual(t, "JSP-STALE", c.IncidentID)
	}
}

func TestRetrieveBoostTiers(t *testing.T) {
	ctx := context.Background()
	corpus := newFakeCorpus()
	for _, inc := range testCorpusIncidents() {
		require.NoError(t, corpus.Save(ctx, inc))
	}

	embedder := &hashEmbedder{}
	vectors := store.NewMemoryIndex()
	idx := lexical.NewIndex()
	docs := make([]lexical.Document, 0, 4)
	for _, inc := range testCorpusIncidents() {
		vec, err := embedder.EmbedSingle(ctx, inc.TrainingText())
		require.NoError(t, err)
		require.NoError(t, vectors.Upsert(ctx, inc.ID, vec, nil))
		docs = append(docs, lexical.Document{ID: inc.ID, Text: inc.SearchableText()})
	}
	idx.Rebuild(docs)
	r := NewRetriever(embedder, vectors, idx, corpus)

	cases := []struct {
		query     string
		matchType string
		boost     float64
		ceiling   float64
	}{
		{"snapdeal payments failing on pinelabs", model.MatchPerfectMerchantGateway, boostPerfect, boostPerfectCap},
		{"snapdeal payment transactions failing", model.MatchMerchantID, boostMerchant, boostMerchantCap},
		{"pinelabs gateway transactions timing out", model.MatchPaymentGateway, boostGateway, boostGatewayCap},
	}
	for _, tc := range cases {
		candidates, _, err := r.Retrieve(ctx, simpleQuery(tc.query))
		require.NoError(t, err, tc.query)
		require.NotEmpty(t, candidates, tc.query)

		top := candidates[0]
		assert.Equal(t, "JSP-1052", top.IncidentID, tc.query)
		assert.Equal(t, tc.matchType, top.MatchType, tc.query)
		assert.Equal(t, tc.boost, top.PriorityDetails.BoostApplied, tc.query)
		assert.LessOrEqual(t, top.FusedScore, tc.ceiling, tc.query)
	}
}

func TestBoostCapNeverLowersScore(t *testing.T) {
	assert.InDelta(t, 1.0, boostCap(0.9, boostPerfect, boostPerfectCap), 1e-9)
	assert.InDelta(t, 0.3, boostCap(0.2, boostGateway, boostGatewayCap), 1e-9)
	// Already above the ceiling: the cap must not pull the score down.
	assert.InDelta(t, 0.95, boostCap(0.95, boostGateway, boostGatewayCap), 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 0.7, clamp01(0.7))
	assert.Equal(t, 1.0, clamp01(1.3))
}
