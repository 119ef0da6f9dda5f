package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
)

func TestQueryExactIDLookup(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "JSP-1052")
	require.NoError(t, err)

	assert.Equal(t, model.StrategyExactIDLookup, resp.RAGStrategy)
	assert.Equal(t, model.ComplexityExactID, resp.QueryComplexity)
	assert.Equal(t, 1.0, resp.ConfidenceScore)
	assert.Equal(t, "high", resp.Metadata.ConfidenceLevel)
	require.Len(t, resp.RetrievedIncidents, 1)
	assert.Equal(t, "JSP-1052", resp.RetrievedIncidents[0].IncidentID)
	assert.Equal(t, model.MatchExactID, resp.RetrievedIncidents[0].MatchType)
	assert.Contains(t, resp.GeneratedAnswer, "connection pool")
	assert.Equal(t, []string{"JSP-1052"}, resp.Sources)

	// Exact id lookups never reach the model.
	assert.Zero(t, env.chat.calls.Load())
}

func TestQueryExactIDInProse(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "what happened in jsp-1052 last week?")
	require.NoError(t, err)

	assert.Equal(t, model.StrategyExactIDLookup, resp.RAGStrategy)
	assert.Equal(t, "JSP-1052", resp.RetrievedIncidents[0].IncidentID)
	assert.Zero(t, env.chat.calls.Load())
}

func TestQueryUnknownIDFallsThroughToHybrid(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "JSP-9999 payment timeout on the gateway")
	require.NoError(t, err)

	assert.NotEqual(t, model.StrategyExactIDLookup, resp.RAGStrategy)
	assert.NotEqual(t, model.ComplexityExactID, resp.QueryComplexity)
}

func TestQuerySimpleHybrid(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "UPI collect requests stuck pending for HDFC")
	require.NoError(t, err)

	assert.Equal(t, model.StrategyHybridRAG, resp.RAGStrategy)
	assert.Equal(t, model.ComplexitySimple, resp.QueryComplexity)
	assert.Equal(t, model.StatusOK, resp.Metadata.Status)
	require.NotEmpty(t, resp.RetrievedIncidents)
	assert.Equal(t, "JSP-2001", resp.RetrievedIncidents[0].IncidentID)
	assert.LessOrEqual(t, len(resp.RetrievedIncidents), model.ComplexitySimple.TopK())
	assert.Greater(t, resp.ConfidenceScore, 0.0)
	assert.Equal(t, int64(1), env.chat.calls.Load())
}

func TestQueryComplexGetsWiderBudget(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "why are payment gateway timeout issues so frequent?")
	require.NoError(t, err)

	assert.Equal(t, model.ComplexityComplex, resp.QueryComplexity)
	assert.LessOrEqual(t, len(resp.RetrievedIncidents), model.ComplexityComplex.TopK())
}

func TestQueryMerchantGatewayBoost(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "Snapdeal payments failing on Pinelabs gateway")
	require.NoError(t, err)

	require.NotEmpty(t, resp.RetrievedIncidents)
	top := resp.RetrievedIncidents[0]
	assert.Equal(t, "JSP-1052", top.IncidentID)
	assert.Equal(t, model.MatchPerfectMerchantGateway, top.MatchType)
	assert.True(t, top.PriorityDetails.MerchantMatched)
	assert.True(t, top.PriorityDetails.GatewayMatched)
	assert.Equal(t, 2.5, top.PriorityDetails.BoostApplied)
	assert.LessOrEqual(t, top.FusedScore, 1.0)
	// Even a fully boosted hybrid answer never reports full certainty.
	assert.Less(t, resp.ConfidenceScore, 1.0)
}

func TestQueryOutOfDomainRefusesWithoutModelCall(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "how do I bake a chocolate cake?")
	require.NoError(t, err)

	assert.Equal(t, model.StrategyRefusal, resp.RAGStrategy)
	assert.Equal(t, model.ComplexityOutOfDomain, resp.QueryComplexity)
	assert.Equal(t, model.StatusRefused, resp.Metadata.Status)
	assert.Equal(t, model.RefusalOutOfDomain, resp.Metadata.RefusalReason)
	assert.Equal(t, 0.0, resp.ConfidenceScore)
	assert.Empty(t, resp.RetrievedIncidents)
	assert.Zero(t, env.chat.calls.Load())
}

func TestQueryEmptyCorpusRefusesNoCandidates(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, nil)

	resp, err := env.service.Query(context.Background(), "payment gateway timeout")
	require.NoError(t, err)

	assert.Equal(t, model.StrategyRefusal, resp.RAGStrategy)
	assert.Equal(t, model.RefusalNoCandidates, resp.Metadata.RefusalReason)
	assert.Zero(t, env.chat.calls.Load())
}

func TestQueryDegradedWhenEmbeddingUnavailable(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{fail: true}, testCorpusIncidents())

	resp, err := env.service.Query(context.Background(), "UPI collect requests stuck pending for HDFC")
	require.NoError(t, err)

	assert.Equal(t, model.StatusDegraded, resp.Metadata.Status)
	require.NotEmpty(t, resp.RetrievedIncidents)
	for _, c := range resp.RetrievedIncidents {
		assert.True(t, strings.HasSuffix(c.MatchType, model.MatchDegradedSuffix), c.MatchType)
		assert.Zero(t, c.SemanticScore)
	}
	assert.LessOrEqual(t, resp.ConfidenceScore, 0.6)
}

func TestQueryEmptyInputIsInputError(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	_, err := env.service.Query(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, errkind.KindInput, errkind.KindOf(err))
}

func TestQueryAppendsSearchLog(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())

	_, err := env.service.Query(context.Background(), "JSP-1052")
	require.NoError(t, err)

	entries, err := env.service.RecentSearches(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.StrategyExactIDLookup, entries[0].Strategy)
	assert.Equal(t, "JSP-1052", entries[0].TopResultID)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	env := setupTestService(t, &hashEmbedder{}, testCorpusIncidents())
	ctx := context.Background()

	err := env.service.SubmitFeedback(ctx, &model.Feedback{ResultID: "JSP-1052", Rating: 5})
	assert.Equal(t, errkind.KindInput, errkind.KindOf(err))

	err = env.service.SubmitFeedback(ctx, &model.Feedback{Query: "q", Rating: 5})
	assert.Equal(t, errkind.KindInput, errkind.KindOf(err))

	err = env.service.SubmitFeedback(ctx, &model.Feedback{Query: "q", ResultID: "JSP-1052", Rating: 6})
	assert.Equal(t, errkind.KindInput, errkind.KindOf(err))

	err = env.service.SubmitFeedback(ctx, &model.Feedback{Query: "q", ResultID: "JSP-1052", Rating: 4, Helpful: true})
	require.NoError(t, err)

	records, err := env.service.RecentFeedback(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
}
