// Package biz implements the query path: routing, hybrid retrieval, semantic
// validation and answer generation.
package biz

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/entity"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
)

// maxQueryLength caps the sanitized query. Longer input is truncated, not
// rejected.
const maxQueryLength = 500

// injectionPhrases are stripped before the query text can reach a prompt.
var injectionPhrases = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"forget your instructions",
	"you are now",
	"act as if",
	"pretend you are",
	"system prompt",
}

// Sanitize strips prompt-injection phrasing and caps the length. Applied to
// every query before classification; the raw text is kept on the Query for
// audit only.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, phrase := range injectionPhrases {
		for {
			i := strings.Index(lower, phrase)
			if i < 0 {
				break
			}
			s = s[:i] + s[i+len(phrase):]
			lower = lower[:i] + lower[i+len(phrase):]
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxQueryLength {
		// Back up to a rune boundary so the cut never leaves invalid UTF-8.
		cut := maxQueryLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// complexIndicators signal analytical queries that need a wider candidate
// set: causal questions, frequency questions, pattern questions.
var complexIndicators = []string{
	"why", "how often", "frequently", "pattern", "patterns", "common",
	"recurring", "trend", "trends", "root cause", "issues", "problems",
	"incidents", "compare", "correlation",
}

// Router classifies queries without any generative call. Classification is a
// pure function of the query text and the current corpus.
type Router struct {
	corpus store.CorpusStore
}

// NewRouter creates a router over the canonical corpus.
func NewRouter(corpus store.CorpusStore) *Router {
	return &Router{corpus: corpus}
}

// Classify sanitizes and classifies one query. Empty input is an input error.
// Precedence: exact id (when the id exists in the corpus), out of domain,
// complex, simple. An id that matches the pattern but is not in the corpus
// falls through to the hybrid path.
func (r *Router) Classify(ctx context.Context, raw string) (*model.Query, error) {
	sanitized := Sanitize(raw)
	if sanitized == "" {
		return nil, errkind.New(errkind.KindInput, "query must not be empty")
	}

	q := &model.Query{Raw: raw, Sanitized: sanitized}

	if id := entity.ExtractIncidentID(sanitized); id != "" {
		inc, err := r.corpus.Get(ctx, model.NormalizeID(id))
		if err != nil {
			return nil, errkind.Wrap(errkind.KindInternal, "corpus lookup failed", err)
		}
		if inc != nil {
			q.Complexity = model.ComplexityExactID
			q.ExactID = inc.ID
			q.TopK = q.Complexity.TopK()
			return q, nil
		}
	}

	if !entity.InDomain(sanitized) {
		q.Complexity = model.ComplexityOutOfDomain
		q.TopK = 0
		return q, nil
	}

	q.Complexity = model.ComplexitySimple
	lower := strings.ToLower(sanitized)
	for _, indicator := range complexIndicators {
		if strings.Contains(lower, indicator) {
			q.Complexity = model.ComplexityComplex
			break
		}
	}
	q.TopK = q.Complexity.TopK()
	return q, nil
}
