package biz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/fixgenie/internal/fixgenie/metrics"
	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
)

// defaultRequestDeadline bounds one query end to end.
const defaultRequestDeadline = 10 * time.Second

// Service orchestrates the query path: classify, retrieve, validate,
// generate. It also owns the feedback and search-log sinks.
type Service struct {
	router    *Router
	retriever *Retriever
	validator *Validator
	generator *Generator
	corpus    store.CorpusStore
	feedback  store.FeedbackStore
	deadline  time.Duration
}

// NewService assembles the query service.
func NewService(router *Router, retriever *Retriever, validator *Validator, generator *Generator, corpus store.CorpusStore, feedback store.FeedbackStore, deadline time.Duration) *Service {
	if deadline <= 0 {
		deadline = defaultRequestDeadline
	}
	return &Service{
		router:    router,
		retriever: retriever,
		validator: validator,
		generator: generator,
		corpus:    corpus,
		feedback:  feedback,
		deadline:  deadline,
	}
}

// Query answers one user query with no caller overrides.
func (s *Service) Query(ctx context.Context, raw string) (*model.RAGResponse, error) {
	return s.QueryWithOptions(ctx, raw, model.DefaultQueryOptions())
}

// QueryWithOptions answers one user query. Every path through here, refusals
// included, returns a well-formed response; errors are reserved for input and
// subsystem failures.
func (s *Service) QueryWithOptions(ctx context.Context, raw string, opts model.QueryOptions) (*model.RAGResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	start := time.Now()

	q, err := s.router.Classify(ctx, raw)
	if err != nil {
		metrics.Get().RecordQuery("", err)
		return nil, err
	}
	if opts.MaxIncidents > 0 && q.TopK > opts.MaxIncidents {
		q.TopK = opts.MaxIncidents
	}
	if opts.ConfidenceThreshold > 0 {
		q.Floor = opts.ConfidenceThreshold
	}

	var resp *model.RAGResponse
	switch q.Complexity {
	case model.ComplexityExactID:
		resp, err = s.answerExactID(ctx, q)
	case model.ComplexityOutOfDomain:
		resp = s.refuse(q, model.RefusalOutOfDomain, nil)
	default:
		resp, err = s.answerHybrid(ctx, q)
	}
	if err != nil {
		metrics.Get().RecordQuery(string(q.Complexity), err)
		return nil, err
	}

	resp.ExecutionTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	metrics.Get().RecordQuery(string(q.Complexity), nil)
	if resp.RAGStrategy == model.StrategyRefusal {
		metrics.Get().RecordRefusal()
	}

	s.logSearch(ctx, q, resp)

	if !opts.IncludeSources {
		// Scores stay for explainability; the cited bodies are withheld.
		resp.Sources = []string{}
		for i := range resp.RetrievedIncidents {
			resp.RetrievedIncidents[i].Incident = nil
		}
	}
	return resp, nil
}

// answerExactID serves a direct corpus lookup. No retrieval, no generation.
func (s *Service) answerExactID(ctx context.Context, q *model.Query) (*model.RAGResponse, error) {
	inc, err := s.corpus.Get(ctx, q.ExactID)
	if err != nil {
		return nil, errkind.Wrap(errkind.KindInternal, "corpus lookup failed", err)
	}
	if inc == nil {
		// The id vanished between classification and lookup.
		return s.refuse(q, model.RefusalNoCandidates, nil), nil
	}

	candidate := model.RetrievalCandidate{
		IncidentID:    inc.ID,
		SemanticScore: 1.0,
		FusedScore:    1.0,
		MatchType:     model.MatchExactID,
		Incident:      inc,
	}
	return &model.RAGResponse{
		Query:              q.Sanitized,
		GeneratedAnswer:    s.generator.FormatExactID(inc),
		RetrievedIncidents: []model.RetrievalCandidate{candidate},
		Sources:            []string{inc.ID},
		ConfidenceScore:    1.0,
		QueryComplexity:    q.Complexity,
		RAGStrategy:        model.StrategyExactIDLookup,
		Metadata: model.ResponseMetadata{
			ConfidenceLevel:    model.ConfidenceLevel(1.0),
			IncidentsRetrieved: 1,
			Status:             model.StatusOK,
		},
	}, nil
}

// answerHybrid runs the retrieve-validate-generate pipeline.
func (s *Service) answerHybrid(ctx context.Context, q *model.Query) (*model.RAGResponse, error) {
	retrieveStart := time.Now()
	candidates, degraded, err := s.retriever.Retrieve(ctx, q)
	metrics.Get().RecordRetrieval(time.Since(retrieveStart), degraded, err)
	if err != nil {
		if errkind.KindOf(err) == errkind.KindTotalSubsystem {
			return s.refuse(q, model.RefusalNoCandidates, err), nil
		}
		return nil, err
	}

	verdict := s.validator.Validate(ctx, q, candidates)
	if !verdict.Admitted {
		resp := s.refuse(q, verdict.Reason, nil)
		resp.RetrievedIncidents = candidates
		resp.Metadata.IncidentsRetrieved = len(candidates)
		return resp, nil
	}

	if err := s.hydrate(ctx, candidates); err != nil {
		return nil, err
	}

	answer, confidence, err := s.generator.Generate(ctx, q, candidates, verdict.Composite, degraded)
	if err != nil {
		return nil, err
	}

	status := model.StatusOK
	if degraded {
		status = model.StatusDegraded
	}
	sources := make([]string, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, c.IncidentID)
	}
	return &model.RAGResponse{
		Query:              q.Sanitized,
		GeneratedAnswer:    answer,
		RetrievedIncidents: candidates,
		Sources:            sources,
		ConfidenceScore:    confidence,
		QueryComplexity:    q.Complexity,
		RAGStrategy:        model.StrategyHybridRAG,
		Metadata: model.ResponseMetadata{
			ConfidenceLevel:    model.ConfidenceLevel(confidence),
			IncidentsRetrieved: len(candidates),
			Status:             status,
		},
	}, nil
}

// hydrate attaches the full incident record to candidates that only carry an
// id, so context blocks and API payloads are complete.
func (s *Service) hydrate(ctx context.Context, candidates []model.RetrievalCandidate) error {
	for i := range candidates {
		if candidates[i].Incident != nil {
			continue
		}
		inc, err := s.corpus.Get(ctx, candidates[i].IncidentID)
		if err != nil {
			return errkind.Wrap(errkind.KindInternal, "corpus lookup failed", err)
		}
		candidates[i].Incident = inc
	}
	return nil
}

// refuse builds a refusal response. Refusals carry confidence 0.0 and never
// trigger a generative call.
func (s *Service) refuse(q *model.Query, reason model.RefusalReason, cause error) *model.RAGResponse {
	meta := model.ResponseMetadata{
		ConfidenceLevel: model.ConfidenceLevel(0),
		Status:          model.StatusRefused,
		RefusalReason:   reason,
	}
	if cause != nil {
		meta.CorrelationID = errkind.CorrelationID(cause)
		if meta.CorrelationID == "" {
			meta.CorrelationID = uuid.NewString()
		}
	}
	return &model.RAGResponse{
		Query:              q.Sanitized,
		GeneratedAnswer:    s.generator.RefusalMessage(reason),
		RetrievedIncidents: []model.RetrievalCandidate{},
		Sources:            []string{},
		ConfidenceScore:    0.0,
		QueryComplexity:    q.Complexity,
		RAGStrategy:        model.StrategyRefusal,
		Metadata:           meta,
	}
}

// logSearch appends the analytics record for one query. Failures are logged
// and swallowed; analytics never break the query path.
func (s *Service) logSearch(ctx context.Context, q *model.Query, resp *model.RAGResponse) {
	if s.feedback == nil {
		return
	}
	entry := &model.SearchLog{
		Query:           q.Sanitized,
		Complexity:      q.Complexity,
		Strategy:        resp.RAGStrategy,
		ResultsCount:    len(resp.RetrievedIncidents),
		ExecutionTimeMs: resp.ExecutionTimeMs,
	}
	if len(resp.RetrievedIncidents) > 0 {
		entry.TopResultID = resp.RetrievedIncidents[0].IncidentID
		entry.TopResultScore = resp.RetrievedIncidents[0].FusedScore
	}
	if err := s.feedback.AddSearchLog(ctx, entry); err != nil {
		logger.Warnw("search log append failed", "error", err)
	}
}

// SubmitFeedback validates and stores one feedback record. Feedback is
// append-only and never alters retrieval behaviour in-request.
func (s *Service) SubmitFeedback(ctx context.Context, fb *model.Feedback) error {
	if fb.Query == "" {
		return errkind.New(errkind.KindInput, "feedback query must not be empty")
	}
	if fb.ResultID == "" {
		return errkind.New(errkind.KindInput, "feedback result_id must not be empty")
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return errkind.New(errkind.KindInput, "feedback rating must be between 1 and 5")
	}
	return s.feedback.AddFeedback(ctx, fb)
}

// RecentFeedback lists stored feedback, newest first.
func (s *Service) RecentFeedback(ctx context.Context, limit int) ([]*model.Feedback, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.feedback.ListFeedback(ctx, limit)
}

// RecentSearches lists the search log, newest first.
func (s *Service) RecentSearches(ctx context.Context, limit int) ([]*model.SearchLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.feedback.RecentSearches(ctx, limit)
}
