// Package model defines the shared domain records for the FixGenie service.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// incidentIDPattern matches the stable prefix-digits identifier scheme
// (JSP-1234, INC-77, SLACK-123-456, ...).
var incidentIDPattern = regexp.MustCompile(`^(?i)(JSP|EUL|JIRA|INC|TICKET|BUG|ISSUE)-\d+$|^(?i)SLACK-\d+-\d+$`)

// Incident is the atomic corpus record: one resolved production problem.
type Incident struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"not null;type:text"`
	Resolution  string    `json:"resolution" gorm:"type:text"`
	Tags        Tags      `json:"tags" gorm:"serializer:json"`
	CreatedAt   time.Time `json:"created_at"`
	ResolvedBy  string    `json:"resolved_by"`
	Category    string    `json:"category,omitempty"`
	Priority    string    `json:"priority,omitempty"`
}

// Tags is a set of short labels attached to an incident.
type Tags []string

// TrainingText is the canonical text every index is built from. The dense
// embedding, BM25 and TF-IDF entries for an incident must all derive from
// this exact string.
func (in *Incident) TrainingText() string {
	return in.Title + ". " + in.Description + ". Resolution: " + in.Resolution
}

// SearchableText folds tags into the lexical surface so that tag-only
// matches still score.
func (in *Incident) SearchableText() string {
	return in.TrainingText() + " " + strings.Join(in.Tags, " ")
}

// Validate checks the schema rules an incident must satisfy before it may
// touch any index. Schema-invalid records are dropped at ingest.
func (in *Incident) Validate() error {
	if !incidentIDPattern.MatchString(in.ID) {
		return fmt.Errorf("incident id %q does not match prefix-digits pattern", in.ID)
	}
	if len(strings.TrimSpace(in.Title)) < 10 {
		return fmt.Errorf("incident %s: title must be at least 10 characters", in.ID)
	}
	if len(strings.TrimSpace(in.Description)) < 50 {
		return fmt.Errorf("incident %s: description must be at least 50 characters", in.ID)
	}
	if len(strings.TrimSpace(in.Resolution)) < 20 {
		return fmt.Errorf("incident %s: resolution must be at least 20 characters", in.ID)
	}
	if len(in.Tags) == 0 {
		return fmt.Errorf("incident %s: at least one tag is required", in.ID)
	}
	return nil
}

// NormalizeID uppercases an extracted incident id so JSP-1052 and jsp-1052
// address the same record.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
