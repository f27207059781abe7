package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "lease %d not found", 42)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "lease 42 not found")
}

func TestKindOf_UnclassifiedIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWrap_PreservesChain(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := Wrap(cause, KindDuplicateExternalKey, "extraction_id %s already exists", "ext-9")

	assert.Equal(t, KindDuplicateExternalKey, KindOf(err))
	assert.True(t, errors.Is(err, cause))
}

func TestKindOf_SurvivesOuterWrapping(t *testing.T) {
	inner := New(KindLockTimeout, "zip 02139 lock wait exceeded")
	outer := fmt.Errorf("ingest: %w", inner)

	assert.Equal(t, KindLockTimeout, KindOf(outer))
	assert.True(t, IsKind(outer, KindLockTimeout))
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(New(KindLockTimeout, "lock wait exceeded")))
	require.True(t, Retryable(New(KindConcurrencyConflict, "serialization failure")))

	assert.False(t, Retryable(New(KindValidation, "bad input")))
	assert.False(t, Retryable(New(KindAccessDenied, "nope")))
	assert.False(t, Retryable(errors.New("plain")))
}
