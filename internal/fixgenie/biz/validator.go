package biz

import (
	"context"

	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/entity"
)

// Composite score weights: domain compatibility dominates, then entity
// overlap, then intent alignment.
const (
	weightDomain = 0.5
	weightEntity = 0.3
	weightIntent = 0.2
)

// Admission thresholds. A candidate set passes when the top fused score is
// high enough on its own, or the composite agreement clears the floor.
const (
	admitFusedThreshold     = 0.8
	admitCompositeThreshold = 0.3
)

// Verdict is the validator's decision for one candidate set.
type Verdict struct {
	Admitted  bool
	Composite float64
	Reason    model.RefusalReason
}

// Validator gates retrieval results before any text generation happens. It
// never calls a model; every signal is computed from the query and the
// candidate texts.
type Validator struct {
	corpus store.CorpusStore
}

// NewValidator creates a validator over the canonical corpus.
func NewValidator(corpus store.CorpusStore) *Validator {
	return &Validator{corpus: corpus}
}

// Validate scores the agreement between the query and every candidate and
// admits on the best composite or a high enough top fused score. A true match
// buried below rank 1 still carries the set. Empty candidate sets refuse with
// no_candidates; weak agreement refuses with insufficient_semantic_overlap.
func (v *Validator) Validate(ctx context.Context, q *model.Query, candidates []model.RetrievalCandidate) Verdict {
	if len(candidates) == 0 {
		return Verdict{Reason: model.RefusalNoCandidates}
	}

	best := 0.0
	scored := false
	for _, c := range candidates {
		inc := c.Incident
		if inc == nil {
			fetched, err := v.corpus.Get(ctx, c.IncidentID)
			if err != nil || fetched == nil {
				continue
			}
			inc = fetched
		}

		composite := weightDomain*v.domainScore(q.Sanitized, inc) +
			weightEntity*v.entityScore(q.Sanitized, inc) +
			weightIntent*v.intentScore(q.Sanitized, inc)
		if !scored || composite > best {
			best = composite
		}
		scored = true
	}
	if !scored {
		return Verdict{Reason: model.RefusalNoCandidates}
	}

	if candidates[0].FusedScore >= admitFusedThreshold || best >= admitCompositeThreshold {
		return Verdict{Admitted: true, Composite: best}
	}
	return Verdict{Composite: best, Reason: model.RefusalInsufficientOverlap}
}

// domainScore is the compatibility of the query's theme with the incident's:
// 1 identical, 0.5 adjacent, 0 unrelated.
func (v *Validator) domainScore(query string, inc *model.Incident) float64 {
	return entity.Compatibility(entity.ClassifyDomain(query), entity.ClassifyDomain(inc.SearchableText()))
}

// entityScore is the fraction of query entities also present in the incident.
// Entity-free queries score 0.
func (v *Validator) entityScore(query string, inc *model.Incident) float64 {
	queryEntities := entity.Extract(query)
	if queryEntities.IsEmpty() {
		return 0
	}

	incSet := make(map[string]struct{})
	for _, e := range entity.Extract(inc.SearchableText()).All() {
		incSet[e] = struct{}{}
	}

	all := queryEntities.All()
	matched := 0
	for _, e := range all {
		if _, ok := incSet[e]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(all))
}

// intentScore is 1 when a fix-me query meets an incident that carries a
// resolution, 0 otherwise.
func (v *Validator) intentScore(query string, inc *model.Incident) float64 {
	if inc.Resolution != "" && entity.HasTroubleshootingIntent(query) {
		return 1.0
	}
	return 0
}
