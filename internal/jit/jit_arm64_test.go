package jit

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

// TestArchContextOffsetInCallContext ensures the offsets used in jit_arm64.s and the native code match the layout.
func TestArchContextOffsetInCallContext(t *testing.T) {
	var ctx callContext
	require.Equal(t, callContextArchContextJITCallReturnAddressOffset, int(unsafe.Offsetof(ctx.jitCallReturnAddress)))
}

func TestArm64Compiler_compileCallGo(t *testing.T) {
	c, err := newCompiler(bfir.DefaultTapeSize)
	require.NoError(t, err)
	assembled, err := compileOperations(c, []bfir.Operation{&bfir.OperationReadByte{}, &bfir.OperationWriteByte{}})
	require.NoError(t, err)
	// Continuations are read with ADR, so nothing is rebased at mapping.
	require.Empty(t, assembled.relocations)
}
