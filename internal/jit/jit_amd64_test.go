package jit

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

func TestAmd64Compiler_compileCallGo(t *testing.T) {
	c, err := newCompiler(bfir.DefaultTapeSize)
	require.NoError(t, err)
	assembled, err := compileOperations(c, []bfir.Operation{&bfir.OperationReadByte{}, &bfir.OperationWriteByte{}})
	require.NoError(t, err)

	require.Equal(t, 2, len(assembled.relocations))
	for _, at := range assembled.relocations {
		// movabsq $imm64, %rax
		require.Equal(t, []byte{0x48, 0xb8}, assembled.code[at-2:at])
		// The continuation is inside of the code, after the load.
		continuation := binary.LittleEndian.Uint64(assembled.code[at : at+8])
		require.Greater(t, continuation, uint64(at))
		require.Less(t, continuation, uint64(len(assembled.code)))
	}
}

func TestAmd64Compiler_compileUpdateCell_ZeroCount(t *testing.T) {
	empty, err := newCompiler(bfir.DefaultTapeSize)
	require.NoError(t, err)
	expected, err := compileOperations(empty, nil)
	require.NoError(t, err)

	c, err := newCompiler(bfir.DefaultTapeSize)
	require.NoError(t, err)
	actual, err := compileOperations(c, []bfir.Operation{&bfir.OperationIncrement{}, &bfir.OperationDecrement{}})
	require.NoError(t, err)
	require.Equal(t, expected.code, actual.code)
}
