package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validIncident() *Incident {
	return &Incident{
		ID:          "JSP-1052",
		Title:       "Snapdeal payment timeout on Pinelabs",
		Description: strings.Repeat("Transactions against the Pinelabs gateway time out after thirty seconds. ", 2),
		Resolution:  "Increased the gateway connection pool and retry budget.",
		Tags:        Tags{"snapdeal", "pinelabs", "timeout"},
	}
}

func TestIncidentValidate(t *testing.T) {
	assert.NoError(t, validIncident().Validate())

	bad := validIncident()
	bad.ID = "NOPE-12"
	assert.Error(t, bad.Validate())

	bad = validIncident()
	bad.Title = "short"
	assert.Error(t, bad.Validate())

	bad = validIncident()
	bad.Description = "too short"
	assert.Error(t, bad.Validate())

	bad = validIncident()
	bad.Resolution = "short"
	assert.Error(t, bad.Validate())

	bad = validIncident()
	bad.Tags = nil
	assert.Error(t, bad.Validate())
}

func TestIncidentValidateIDSchemes(t *testing.T) {
	for _, id := range []string{"JSP-1", "EUL-22", "JIRA-333", "INC-4", "TICKET-5", "BUG-6", "ISSUE-7", "SLACK-123-456", "jsp-1052"} {
		inc := validIncident()
		inc.ID = id
		assert.NoError(t, inc.Validate(), id)
	}
	for _, id := range []string{"SLACK-123", "JSP1052", "JSP-", "X-1"} {
		inc := validIncident()
		inc.ID = id
		assert.Error(t, inc.Validate(), id)
	}
}

func TestTrainingTextComposition(t *testing.T) {
	inc := validIncident()
	text := inc.TrainingText()
	assert.Contains(t, text, inc.Title)
	assert.Contains(t, text, "Resolution: "+inc.Resolution)

	searchable := inc.SearchableText()
	assert.Contains(t, searchable, "snapdeal")
	assert.Contains(t, searchable, "timeout")
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "JSP-1052", NormalizeID(" jsp-1052 "))
}

func TestConfidenceLevelBuckets(t *testing.T) {
	assert.Equal(t, "low", ConfidenceLevel(0.0))
	assert.Equal(t, "low", ConfidenceLevel(0.29))
	assert.Equal(t, "medium", ConfidenceLevel(0.3))
	assert.Equal(t, "medium", ConfidenceLevel(0.69))
	assert.Equal(t, "high", ConfidenceLevel(0.7))
	assert.Equal(t, "high", ConfidenceLevel(1.0))
}

func TestComplexityBudgets(t *testing.T) {
	assert.Equal(t, 1, ComplexityExactID.TopK())
	assert.Equal(t, 3, ComplexitySimple.TopK())
	assert.Equal(t, 8, ComplexityComplex.TopK())
	assert.Equal(t, 0.1, ComplexityExactID.ConfidenceFloor())
	assert.Equal(t, 0.3, ComplexitySimple.ConfidenceFloor())
	assert.Equal(t, 0.3, ComplexityComplex.ConfidenceFloor())
}
