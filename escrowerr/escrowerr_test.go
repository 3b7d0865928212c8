package escrowerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindRetryable(t *testing.T) {
	require.True(t, Transient.Retryable())
	require.False(t, Reverted.Retryable())
	require.False(t, Validation.Retryable())
}

func TestWrappingPreservesCause(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := Transientf(cause, "release failed")

	require.True(t, errors.Is(err, cause))

	got, ok := As(err)
	require.True(t, ok)
	require.Equal(t, Transient, got.Kind)
	require.True(t, Is(err, Transient))
	require.False(t, Is(err, Reverted))
}

func TestErrorMessageOmitsCauseWhenAbsent(t *testing.T) {
	err := Validationf("amount must be at least %d", 10)
	require.Equal(t, "VALIDATION: amount must be at least 10", err.Error())
}
