package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapMatchesPredefined(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := fmt.Errorf("insert: %w", ErrStorageUnavailable.Wrap(cause))

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrScanNotFound)
}

func TestWithContextDoesNotMutateBase(t *testing.T) {
	scoped := ErrScanNotFound.WithContext("id", int64(42))

	assert.Equal(t, int64(42), scoped.Context["id"])
	assert.Empty(t, ErrScanNotFound.Context)
}

func TestToFrontendError(t *testing.T) {
	t.Run("app error uses user message", func(t *testing.T) {
		fe := ToFrontendError(ErrStorageUnavailable.Wrap(errors.New("disk full")))
		require.NotNil(t, fe)
		assert.Equal(t, "STORAGE_UNAVAILABLE", fe.Code)
		assert.Equal(t, "storage", fe.Type)
		assert.Equal(t, ErrStorageUnavailable.UserMessage, fe.Message)
	})

	t.Run("generic error hides internals", func(t *testing.T) {
		fe := ToFrontendError(errors.New("secret path /var/db"))
		assert.Equal(t, "GENERIC_ERROR", fe.Code)
		assert.NotContains(t, fe.Message, "/var/db")
	})
}
