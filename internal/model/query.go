package model

// Complexity classifies a query and drives top_k and strategy selection.
type Complexity string

const (
	ComplexityExactID     Complexity = "exact_id"
	ComplexitySimple      Complexity = "simple"
	ComplexityComplex     Complexity = "complex"
	ComplexityOutOfDomain Complexity = "out_of_domain"
)

// TopK returns the candidate budget for a complexity class.
func (c Complexity) TopK() int {
	switch c {
	case ComplexityExactID:
		return 1
	case ComplexityComplex:
		return 8
	default:
		return 3
	}
}

// ConfidenceFloor returns the minimum fused score a candidate needs to be
// considered for this complexity class.
func (c Complexity) ConfidenceFloor() float64 {
	if c == ComplexityExactID {
		return 0.1
	}
	return 0.3
}

// QueryOptions are per-request caller overrides. Zero values mean "no
// override": the router's top_k and the complexity floor apply unchanged.
type QueryOptions struct {
	// IncludeSources controls whether full incident bodies and the sources
	// list are returned. Scores are always returned.
	IncludeSources bool
	// MaxIncidents caps the router's candidate budget when positive.
	MaxIncidents int
	// ConfidenceThreshold replaces the complexity floor when positive.
	ConfidenceThreshold float64
}

// DefaultQueryOptions returns the no-override options used by internal
// callers. The HTTP layer applies its own wire defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{IncludeSources: true}
}

// Query is the transient per-request record produced by the router.
type Query struct {
	// Raw is the user input as received.
	Raw string
	// Sanitized is the injection-stripped, length-capped text used for
	// retrieval and prompting. Kept separate from Raw for audit.
	Sanitized string
	// Complexity is assigned by the router.
	Complexity Complexity
	// ExactID is set when the router extracted a known incident id.
	ExactID string
	TopK    int
	// Floor overrides the complexity confidence floor when positive.
	Floor float64
}

// Match types attached to retrieval candidates. A `_DEGRADED` suffix is
// appended when one retrieval path was dropped.
const (
	MatchPerfectMerchantGateway = "PERFECT_MERCHANT_GATEWAY_MATCH"
	MatchMerchantID             = "MERCHANT_ID_MATCH"
	MatchPaymentGateway         = "PAYMENT_GATEWAY_MATCH"
	MatchSemantic               = "SEMANTIC_MATCH"
	MatchExactID                = "EXACT_ID_MATCH"
	MatchDegradedSuffix         = "_DEGRADED"
)

// PriorityDetails records which extracted entities drove a boost, for
// explainability in API payloads.
type PriorityDetails struct {
	QueryMerchant   string  `json:"query_merchant,omitempty"`
	QueryGateway    string  `json:"query_gateway,omitempty"`
	MerchantMatched bool    `json:"merchant_matched"`
	GatewayMatched  bool    `json:"gateway_matched"`
	BoostApplied    float64 `json:"boost_applied"`
}

// RetrievalCandidate is one fused, boosted retrieval hit. All scores are
// normalised to [0,1] within the batch; FusedScore is authoritative.
type RetrievalCandidate struct {
	IncidentID      string          `json:"incident_id"`
	SemanticScore   float64         `json:"semantic_score"`
	BM25Score       float64         `json:"bm25_score"`
	TFIDFScore      float64         `json:"tfidf_score"`
	FusedScore      float64         `json:"fused_score"`
	MatchType       string          `json:"match_type"`
	PriorityDetails PriorityDetails `json:"priority_details"`
	Incident        *Incident       `json:"incident,omitempty"`
}
