package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/fixgenie/internal/model"
)

func setupTestValidator(t *testing.T) *Validator {
	t.Helper()
	corpus := newFakeCorpus()
	for _, inc := range testCorpusIncidents() {
		require.NoError(t, corpus.Save(context.Background(), inc))
	}
	return NewValidator(corpus)
}

func validatorQuery(text string) *model.Query {
	return &model.Query{Raw: text, Sanitized: Sanitize(text), Complexity: model.ComplexitySimple}
}

func TestValidateEmptyCandidatesRefuses(t *testing.T) {
	v := setupTestValidator(t)

	verdict := v.Validate(context.Background(), validatorQuery("payment timeout"), nil)
	assert.False(t, verdict.Admitted)
	assert.Equal(t, model.RefusalNoCandidates, verdict.Reason)
}

func TestValidateAdmitsOnStrongAgreement(t *testing.T) {
	v := setupTestValidator(t)

	// UPI domain, hdfc entity and a fix-me verb all line up with JSP-2001,
	// so the composite clears the floor even with a weak fused score.
	verdict := v.Validate(context.Background(), validatorQuery("upi collect stuck for hdfc"), []model.RetrievalCandidate{
		{IncidentID: "JSP-2001", FusedScore: 0.35},
	})
	assert.True(t, verdict.Admitted)
	assert.GreaterOrEqual(t, verdict.Composite, admitCompositeThreshold)
}

func TestValidateAdmitsOnBestCompositeAcrossCandidates(t *testing.T) {
	v := setupTestValidator(t)

	// The card query disagrees with the rank-1 UPI incident but lines up
	// with the rank-2 tokenization incident; the set is still admitted.
	verdict := v.Validate(context.Background(), validatorQuery("snapdeal visa card cvv failed"), []model.RetrievalCandidate{
		{IncidentID: "JSP-2001", FusedScore: 0.5},
		{IncidentID: "INC-9", FusedScore: 0.45},
	})
	assert.True(t, verdict.Admitted)
	// INC-9: identical card domain (0.5) plus intent alignment (0.2).
	assert.InDelta(t, 0.7, verdict.Composite, 1e-9)
}

func TestValidateAdmitsOnHighFusedScoreAlone(t *testing.T) {
	v := setupTestValidator(t)

	// Card-domain query against the UPI incident: domain compatibility 0,
	// no entity overlap, so only the fused score can admit.
	q := validatorQuery("card tokenization cvv expiry failing")

	verdict := v.Validate(context.Background(), q, []model.RetrievalCandidate{
		{IncidentID: "JSP-2001", FusedScore: 0.9},
	})
	assert.True(t, verdict.Admitted)
	assert.Less(t, verdict.Composite, admitCompositeThreshold)
}

func TestValidateRefusesOnWeakAgreement(t *testing.T) {
	v := setupTestValidator(t)

	verdict := v.Validate(context.Background(), validatorQuery("card tokenization cvv expiry failing"), []model.RetrievalCandidate{
		{IncidentID: "JSP-2001", FusedScore: 0.5},
	})
	assert.False(t, verdict.Admitted)
	assert.Equal(t, model.RefusalInsufficientOverlap, verdict.Reason)
}

func TestValidateMissingIncidentRefuses(t *testing.T) {
	v := setupTestValidator(t)

	verdict := v.Validate(context.Background(), validatorQuery("payment timeout"), []model.RetrievalCandidate{
		{IncidentID: "JSP-9999", FusedScore: 0.6},
	})
	assert.False(t, verdict.Admitted)
	assert.Equal(t, model.RefusalNoCandidates, verdict.Reason)
}

func TestValidateEntityFreeQueryScoresZero(t *testing.T) {
	v := setupTestValidator(t)
	q := validatorQuery("transactions processing slowly")

	inc := testCorpusIncidents()[0]
	assert.Equal(t, 0.0, v.entityScore(q.Sanitized, inc))
	// No fix-me verb either, so intent alignment is 0 as well.
	assert.Equal(t, 0.0, v.intentScore(q.Sanitized, inc))
}

func TestValidateUsesAttachedIncidentWithoutFetching(t *testing.T) {
	// An empty corpus proves the validator trusts the candidate's incident.
	v := NewValidator(newFakeCorpus())
	inc := testCorpusIncidents()[1]

	verdict := v.Validate(context.Background(), validatorQuery("upi collect stuck for hdfc"), []model.RetrievalCandidate{
		{IncidentID: inc.ID, FusedScore: 0.35, Incident: inc},
	})
	assert.True(t, verdict.Admitted)
}
