package pkg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMatchingSurvivesCopies(t *testing.T) {
	withCause := ErrConflict.WithCause(errors.New("version mismatch"))
	assert.ErrorIs(t, withCause, ErrConflict)

	withDetails := ErrValidationFailed.WithDetails(map[string]interface{}{"field": "name"})
	assert.ErrorIs(t, withDetails, ErrValidationFailed)

	wrapped := fmt.Errorf("saving folder: %w", withCause)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.NotErrorIs(t, wrapped, ErrDuplicateName)
}

func TestIsAppError(t *testing.T) {
	appErr, ok := IsAppError(fmt.Errorf("outer: %w", ErrQuotaExceeded))
	require.True(t, ok)
	assert.Equal(t, "QUOTA_EXCEEDED", appErr.Code)

	_, ok = IsAppError(errors.New("plain"))
	assert.False(t, ok)
}
