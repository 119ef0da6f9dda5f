package biz

import (
	"context"
	"sort"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/entity"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
	"github.com/kart-io/fixgenie/internal/pkg/lexical"
	"github.com/kart-io/fixgenie/pkg/llm"
	"github.com/kart-io/fixgenie/pkg/llm/resilience"
)

// Fusion weights over the three retrieval paths. In degraded mode the dense
// weight is redistributed onto the two sparse paths.
const (
	weightSemantic = 0.6
	weightBM25     = 0.3
	weightTFIDF    = 0.1
)

// Entity priority boosts, each with its own score ceiling.
const (
	boostPerfect     = 2.5
	boostPerfectCap  = 1.00
	boostMerchant    = 2.0
	boostMerchantCap = 0.95
	boostGateway     = 1.5
	boostGatewayCap  = 0.85
)

// Retriever runs the hybrid three-path search and fuses the results.
type Retriever struct {
	embedder llm.EmbeddingProvider
	vectors  store.VectorIndex
	lexical  *lexical.Index
	corpus   store.CorpusStore
	retry    *resilience.RetryConfig
}

// NewRetriever creates a hybrid retriever over the three indexes.
func NewRetriever(embedder llm.EmbeddingProvider, vectors store.VectorIndex, lexicalIndex *lexical.Index, corpus store.CorpusStore) *Retriever {
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexicalIndex,
		corpus:   corpus,
		retry:    resilience.DefaultRetryConfig(),
	}
}

// Retrieve runs the dense, BM25 and TF-IDF searches concurrently, each asked
// for twice the final budget, and union-merges the hits. When the embedding
// path is unavailable the sparse paths carry the response in degraded mode;
// when every path is gone the error kind is total_subsystem.
func (r *Retriever) Retrieve(ctx context.Context, q *model.Query) ([]model.RetrievalCandidate, bool, error) {
	fetch := 2 * q.TopK

	var (
		denseHits []store.VectorHit
		bm25Hits  []lexical.Hit
		tfidfHits []lexical.Hit
	)

	// The dense path is the only one that can fail; the sparse searches run
	// against the local snapshot and always return.
	var g errgroup.Group
	g.Go(func() error {
		var vector []float32
		err := resilience.RetryWithBackoff(ctx, r.retry, func() error {
			var embedErr error
			vector, embedErr = r.embedder.EmbedSingle(ctx, q.Sanitized)
			return embedErr
		})
		if err != nil {
			return err
		}
		denseHits, err = r.vectors.Query(ctx, vector, fetch)
		return err
	})
	g.Go(func() error {
		bm25Hits = r.lexical.SearchBM25(q.Sanitized, fetch)
		return nil
	})
	g.Go(func() error {
		tfidfHits = r.lexical.SearchTFIDF(q.Sanitized, fetch)
		return nil
	})
	denseErr := g.Wait()

	degraded := denseErr != nil
	if degraded {
		logger.Warnw("dense retrieval unavailable, serving sparse-only", "error", denseErr)
		if r.lexical.Size() == 0 {
			return nil, true, errkind.Wrap(errkind.KindTotalSubsystem, "all retrieval paths unavailable", denseErr)
		}
	}

	merged := r.merge(ctx, q, denseHits, bm25Hits, tfidfHits, degraded)
	if len(merged) > q.TopK {
		merged = merged[:q.TopK]
	}
	return merged, degraded, nil
}

// merge union-joins the three hit lists on incident id, fuses scores, applies
// entity priority boosts, drops candidates below the complexity floor and
// orders the rest by fused score descending, semantic score descending, id
// ascending.
func (r *Retriever) merge(ctx context.Context, q *model.Query, denseHits []store.VectorHit, bm25Hits, tfidfHits []lexical.Hit, degraded bool) []model.RetrievalCandidate {
	byID := make(map[string]*model.RetrievalCandidate)
	candidate := func(id string) *model.RetrievalCandidate {
		if c, ok := byID[id]; ok {
			return c
		}
		c := &model.RetrievalCandidate{IncidentID: id}
		byID[id] = c
		return c
	}

	for _, h := range denseHits {
		// Only incidents in the published snapshot are live.
		if !r.lexical.Has(h.ID) {
			continue
		}
		candidate(h.ID).SemanticScore = clamp01(h.Score)
	}
	for _, h := range bm25Hits {
		candidate(h.ID).BM25Score = h.Score
	}
	for _, h := range tfidfHits {
		candidate(h.ID).TFIDFScore = h.Score
	}

	wSem, wBM25, wTFIDF := weightSemantic, weightBM25, weightTFIDF
	if degraded {
		// Redistribute the dense weight proportionally.
		total := weightBM25 + weightTFIDF
		wSem, wBM25, wTFIDF = 0, weightBM25/total, weightTFIDF/total
	}

	queryEntities := entity.Extract(q.Sanitized)
	floor := q.Floor
	if floor <= 0 {
		floor = q.Complexity.ConfidenceFloor()
	}

	out := make([]model.RetrievalCandidate, 0, len(byID))
	for _, c := range byID {
		c.FusedScore = wSem*c.SemanticScore + wBM25*c.BM25Score + wTFIDF*c.TFIDFScore
		r.applyBoost(ctx, c, queryEntities)
		if degraded {
			c.MatchType += model.MatchDegradedSuffix
		}
		if c.FusedScore < floor {
			continue
		}
		out = append(out, *c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].SemanticScore != out[j].SemanticScore {
			return out[i].SemanticScore > out[j].SemanticScore
		}
		return out[i].IncidentID < out[j].IncidentID
	})
	return out
}

// applyBoost multiplies the fused score when the query's merchant or gateway
// also appears in the candidate incident, with a per-tier ceiling. The boost
// never lowers a score.
func (r *Retriever) applyBoost(ctx context.Context, c *model.RetrievalCandidate, queryEntities entity.Entities) {
	c.MatchType = model.MatchSemantic
	c.PriorityDetails = model.PriorityDetails{
		QueryMerchant: queryEntities.Merchant,
		QueryGateway:  queryEntities.Gateway,
		BoostApplied:  1.0,
	}

	if queryEntities.Merchant == "" && queryEntities.Gateway == "" {
		return
	}

	inc, err := r.corpus.Get(ctx, c.IncidentID)
	if err != nil || inc == nil {
		return
	}
	c.Incident = inc

	incEntities := entity.Extract(inc.SearchableText())
	merchantMatched := queryEntities.Merchant != "" && queryEntities.Merchant == incEntities.Merchant
	gatewayMatched := queryEntities.Gateway != "" && queryEntities.Gateway == incEntities.Gateway
	c.PriorityDetails.MerchantMatched = merchantMatched
	c.PriorityDetails.GatewayMatched = gatewayMatched

	switch {
	case merchantMatched && gatewayMatched:
		c.FusedScore = boostCap(c.FusedScore, boostPerfect, boostPerfectCap)
		c.MatchType = model.MatchPerfectMerchantGateway
		c.PriorityDetails.BoostApplied = boostPerfect
	case merchantMatched:
		c.FusedScore = boostCap(c.FusedScore, boostMerchant, boostMerchantCap)
		c.MatchType = model.MatchMerchantID
		c.PriorityDetails.BoostApplied = boostMerchant
	case gatewayMatched:
		c.FusedScore = boostCap(c.FusedScore, boostGateway, boostGatewayCap)
		c.MatchType = model.MatchPaymentGateway
		c.PriorityDetails.BoostApplied = boostGateway
	}
}

// boostCap multiplies then caps, but never below the unboosted score.
func boostCap(score, factor, ceiling float64) float64 {
	boosted := score * factor
	if boosted > ceiling {
		boosted = ceiling
	}
	if boosted < score {
		return score
	}
	return boosted
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
