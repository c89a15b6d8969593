package wasmruntime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrapKindString(t *testing.T) {
	require.Equal(t, "Unreachable", TrapKindUnreachable.String())
	require.Equal(t, "OutOfBoundsMemory", TrapKindOutOfBoundsMemory.String())
	require.Equal(t, "IndirectCallTypeMismatch", TrapKindIndirectCallTypeMismatch.String())
	require.Equal(t, "Host", TrapKindHost.String())
}

func TestTrapError(t *testing.T) {
	require.Equal(t, "wasm error: DivideByZero", ErrDivideByZero.Error())

	hostErr := errors.New("boom")
	trap := HostTrap(hostErr)
	require.ErrorIs(t, trap, hostErr)
	require.Contains(t, trap.Error(), "boom")
}
