package jit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

func TestLoopLabelStack(t *testing.T) {
	var s loopLabelStack
	require.True(t, s.empty())

	_, err := s.pop(0)
	require.EqualError(t, err, "loop close without open at 0")

	outer, inner := &loopLabel{open: 0}, &loopLabel{open: 3}
	s.push(outer)
	s.push(inner)

	_, err = s.pop(0)
	require.EqualError(t, err, "loop close expected open at 0 but the innermost loop opens at 3")

	actual, err := s.pop(3)
	require.NoError(t, err)
	require.Equal(t, inner, actual)
	actual, err = s.pop(0)
	require.NoError(t, err)
	require.Equal(t, outer, actual)
	require.True(t, s.empty())
}

func TestCompileOperations(t *testing.T) {
	for _, source := range []string{
		"",
		"+",
		"[]",
		"[[[]]][]",
		",.",
		"<>",
		"+[>,.<-]",
	} {
		source := source
		t.Run(source, func(t *testing.T) {
			ops, err := bfir.CompileSource([]byte(source))
			require.NoError(t, err)
			c, err := newCompiler(bfir.DefaultTapeSize)
			require.NoError(t, err)
			assembled, err := compileOperations(c, ops)
			require.NoError(t, err)
			require.NotEmpty(t, assembled.code)
		})
	}
}

type unknownOperation struct{}

func (unknownOperation) Kind() bfir.OperationKind { return bfir.OperationKind(0xff) }

func TestCompileOperations_Unsupported(t *testing.T) {
	c, err := newCompiler(bfir.DefaultTapeSize)
	require.NoError(t, err)
	_, err = compileOperations(c, []bfir.Operation{unknownOperation{}})
	require.EqualError(t, err, "unsupported operation ")
}
