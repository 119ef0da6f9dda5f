package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesKindAndCorrelationID(t *testing.T) {
	err := New(KindInput, "query must not be empty")
	assert.Equal(t, KindInput, KindOf(err))
	assert.NotEmpty(t, CorrelationID(err))
	assert.Contains(t, err.Error(), "query must not be empty")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindTransientRemote, "provider call failed", cause)

	assert.Equal(t, KindTransientRemote, KindOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestKindOfSurvivesFurtherWrapping(t *testing.T) {
	inner := New(KindRateLimited, "backlog full")
	outer := fmt.Errorf("query path: %w", inner)

	assert.Equal(t, KindRateLimited, KindOf(outer))
	assert.Equal(t, CorrelationID(inner), CorrelationID(outer))
}

func TestKindOfUnclassifiedDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Empty(t, CorrelationID(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindTransientRemote, "timeout")))
	assert.False(t, IsRetryable(New(KindInput, "bad input")))
	assert.False(t, IsRetryable(New(KindRateLimited, "slow down")))
}

func TestCorrelationIDsAreUnique(t *testing.T) {
	a := New(KindInternal, "a")
	b := New(KindInternal, "b")
	require.NotEqual(t, a.CorrelationID, b.CorrelationID)
}
