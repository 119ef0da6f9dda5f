package model

import "time"

// RAGStrategy tags how a response was produced.
type RAGStrategy string

const (
	StrategyExactIDLookup RAGStrategy = "exact_id_lookup"
	StrategyHybridRAG     RAGStrategy = "hybrid_rag"
	StrategyRefusal       RAGStrategy = "refusal"
)

// RefusalReason explains a refusal response.
type RefusalReason string

const (
	RefusalNoCandidates        RefusalReason = "no_candidates"
	RefusalInsufficientOverlap RefusalReason = "insufficient_semantic_overlap"
	RefusalOutOfDomain         RefusalReason = "out_of_domain"
)

// ResponseStatus reports the health of the retrieval that backed a response.
type ResponseStatus string

const (
	StatusOK       ResponseStatus = "ok"
	StatusRefused  ResponseStatus = "refused"
	StatusDegraded ResponseStatus = "degraded"
)

// ResponseMetadata is the metadata sub-object of the query endpoint payload.
type ResponseMetadata struct {
	ConfidenceLevel    string         `json:"confidence_level"`
	IncidentsRetrieved int            `json:"incidents_retrieved"`
	Status             ResponseStatus `json:"status"`
	RefusalReason      RefusalReason  `json:"refusal_reason,omitempty"`
	CorrelationID      string         `json:"correlation_id,omitempty"`
}

// ConfidenceLevel buckets a confidence score: <0.3 low, <0.7 medium, else high.
func ConfidenceLevel(score float64) string {
	switch {
	case score < 0.3:
		return "low"
	case score < 0.7:
		return "medium"
	default:
		return "high"
	}
}

// RAGResponse is the full answer returned to the caller.
type RAGResponse struct {
	Query              string               `json:"query"`
	GeneratedAnswer    string               `json:"generated_answer"`
	RetrievedIncidents []RetrievalCandidate `json:"retrieved_incidents"`
	Sources            []string             `json:"sources"`
	ConfidenceScore    float64              `json:"confidence_score"`
	QueryComplexity    Complexity           `json:"query_complexity"`
	ExecutionTimeMs    float64              `json:"execution_time_ms"`
	RAGStrategy        RAGStrategy          `json:"rag_strategy"`
	Metadata           ResponseMetadata     `json:"metadata"`
}

// Feedback is an append-only rating of a returned result. It is stored and
// never applied to retrieval within the same request.
type Feedback struct {
	ID           string    `json:"feedback_id" gorm:"primaryKey"`
	Query        string    `json:"query" gorm:"not null;type:text"`
	ResultID     string    `json:"result_id" gorm:"not null;index"`
	Rating       int       `json:"rating" gorm:"not null"`
	Helpful      bool      `json:"helpful" gorm:"not null"`
	FeedbackText string    `json:"feedback_text,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchLog is an analytics record of one executed query.
type SearchLog struct {
	ID              uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	Query           string      `json:"query" gorm:"not null;type:text"`
	Complexity      Complexity  `json:"complexity"`
	Strategy        RAGStrategy `json:"strategy"`
	TopResultID     string      `json:"top_result_id"`
	TopResultScore  float64     `json:"top_result_score"`
	ResultsCount    int         `json:"results_count"`
	ExecutionTimeMs float64     `json:"execution_time_ms"`
	CreatedAt       time.Time   `json:"created_at"`
}
