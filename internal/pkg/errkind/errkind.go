// Package errkind classifies service errors into a small stable taxonomy so
// handlers and retry policies can branch on kind instead of string matching.
package errkind

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind is a stable error class code carried across layers.
type Kind string

const (
	// KindInput covers malformed requests, oversize queries and
	// injection-shaped input. Never reaches retrieval.
	KindInput Kind = "input"
	// KindSchema covers incident records that fail validation at ingest.
	KindSchema Kind = "schema"
	// KindTransientRemote covers provider timeouts and rate limits;
	// eligible for retry with backoff.
	KindTransientRemote Kind = "transient_remote"
	// KindRateLimited is raised when the local token bucket backlog is full.
	KindRateLimited Kind = "rate_limited"
	// KindEmbeddingUnavailable is a quota-exhausted embedding provider.
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	// KindPartialSubsystem marks one failed retrieval path (degraded mode).
	KindPartialSubsystem Kind = "partial_subsystem"
	// KindTotalSubsystem marks both retrieval paths failed.
	KindTotalSubsystem Kind = "total_subsystem"
	// KindInternal is an invariant violation or panic; the only class
	// surfaced to callers as a 5xx.
	KindInternal Kind = "internal"
)

// Error carries a kind code, a human message and a correlation id for log
// and response cross-referencing.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a fresh correlation id.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, CorrelationID: uuid.NewString()}
}

// Wrap classifies an underlying error, preserving it for errors.Is/As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, CorrelationID: uuid.NewString(), Err: err}
}

// KindOf extracts the kind of an error chain; unclassified errors report
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CorrelationID extracts the correlation id of a classified error, or "".
func CorrelationID(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CorrelationID
	}
	return ""
}

// IsRetryable reports whether a retry with backoff is worthwhile.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientRemote
}
