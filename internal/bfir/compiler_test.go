package bfir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	for _, tc := range []struct {
		name   string
		source string
		exp    []Operation
	}{
		{name: "empty", source: "", exp: nil},
		{
			name:   "merges runs",
			source: "+++>>--<",
			exp: []Operation{
				&OperationIncrement{Count: 3},
				&OperationMoveRight{Count: 2},
				&OperationDecrement{Count: 2},
				&OperationMoveLeft{Count: 1},
			},
		},
		{
			name:   "comments do not split runs",
			source: "+ + +",
			exp:    []Operation{&OperationIncrement{Count: 3}},
		},
		{
			name:   "different kinds are not merged",
			source: "+-+",
			exp: []Operation{
				&OperationIncrement{Count: 1},
				&OperationDecrement{Count: 1},
				&OperationIncrement{Count: 1},
			},
		},
		{
			name:   "io is never merged",
			source: ",,..",
			exp: []Operation{
				&OperationReadByte{}, &OperationReadByte{},
				&OperationWriteByte{}, &OperationWriteByte{},
			},
		},
		{
			name:   "loop",
			source: "[-]",
			exp: []Operation{
				&OperationLoopOpen{Close: 2},
				&OperationDecrement{Count: 1},
				&OperationLoopClose{Open: 0},
			},
		},
		{
			name:   "nested loops",
			source: "[[]>[]]",
			exp: []Operation{
				&OperationLoopOpen{Close: 6},
				&OperationLoopOpen{Close: 2},
				&OperationLoopClose{Open: 1},
				&OperationMoveRight{Count: 1},
				&OperationLoopOpen{Close: 5},
				&OperationLoopClose{Open: 4},
				&OperationLoopClose{Open: 0},
			},
		},
		{
			name:   "loop boundaries split runs",
			source: "+[+]+",
			exp: []Operation{
				&OperationIncrement{Count: 1},
				&OperationLoopOpen{Close: 3},
				&OperationIncrement{Count: 1},
				&OperationLoopClose{Open: 1},
				&OperationIncrement{Count: 1},
			},
		},
		{
			name:   "increment wraps",
			source: strings.Repeat("+", 257),
			exp:    []Operation{&OperationIncrement{Count: 1}},
		},
		{
			name:   "full cycle keeps a zero count",
			source: strings.Repeat("-", 256),
			exp:    []Operation{&OperationDecrement{Count: 0}},
		},
		{
			name:   "moves do not wrap",
			source: strings.Repeat(">", 300),
			exp:    []Operation{&OperationMoveRight{Count: 300}},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			actual, err := CompileSource([]byte(tc.source))
			require.NoError(t, err)
			require.Equal(t, tc.exp, actual)
		})
	}
}

func TestCompile_LoopsArePaired(t *testing.T) {
	ops, err := CompileSource([]byte("+[>[-]<[[->+<]]]++[.]"))
	require.NoError(t, err)
	for i, op := range ops {
		switch o := op.(type) {
		case *OperationLoopOpen:
			require.Greater(t, o.Close, i)
			require.Equal(t, i, ops[o.Close].(*OperationLoopClose).Open)
		case *OperationLoopClose:
			require.Less(t, o.Open, i)
			require.Equal(t, i, ops[o.Open].(*OperationLoopOpen).Close)
		}
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, tc := range []struct {
		name, source, expErr string
		is                   error
	}{
		{name: "stray close", source: "]", expErr: "unmatched loop close at instruction 0", is: ErrUnmatchedLoopClose},
		{name: "close after balanced", source: "+[-]]", expErr: "unmatched loop close at instruction 4", is: ErrUnmatchedLoopClose},
		{name: "unclosed", source: "[", expErr: "unmatched loop open at instruction 0", is: ErrUnmatchedLoopOpen},
		{name: "innermost unclosed is reported", source: "[+[[-]", expErr: "unmatched loop open at instruction 2", is: ErrUnmatchedLoopOpen},
		{name: "position skips comments", source: "ab+c]", expErr: "unmatched loop close at instruction 1", is: ErrUnmatchedLoopClose},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileSource([]byte(tc.source))
			require.ErrorIs(t, err, tc.is)
			require.EqualError(t, err, tc.expErr)
		})
	}
}

func TestCompile_UnknownInstruction(t *testing.T) {
	require.PanicsWithValue(t, "BUG: instruction 0x61 passed the filter", func() {
		_, _ = Compile([]Instruction{'a'})
	})
}
