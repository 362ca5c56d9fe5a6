package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/bfjit/internal/bfir"
	"github.com/tetratelabs/bfjit/internal/testing/enginetest"
)

func TestEngine_Run(t *testing.T) {
	enginetest.RunTestEngineRun(t, NewEngine)
}

func TestEngine_Run_TapeBounds(t *testing.T) {
	enginetest.RunTestEngineRun_TapeBounds(t, NewEngine)
}

func TestEngine_Run_ZeroCount(t *testing.T) {
	enginetest.RunTestEngineRun_ZeroCount(t, NewEngine)
}

func TestEngine_Run_MergedCounts(t *testing.T) {
	enginetest.RunTestEngineRun_MergedCounts(t, NewEngine)
}

func TestEngine_Run_Rerun(t *testing.T) {
	enginetest.RunTestEngineRun_Rerun(t, NewEngine)
}

func TestEngine_Run_IOErrors(t *testing.T) {
	enginetest.RunTestEngineRun_IOErrors(t, NewEngine)
}

func TestEngine_Compile_InvalidTapeSize(t *testing.T) {
	_, err := NewEngine(0).Compile(nil)
	require.EqualError(t, err, "invalid tape size 0")

	_, err = NewEngine(bfir.MaxTapeSize + 1).Compile(nil)
	require.EqualError(t, err, "tape size 1073741825 exceeds the maximum 1073741824")
}

func TestLowerIR(t *testing.T) {
	ops, err := bfir.CompileSource([]byte(">>[-<]."))
	require.NoError(t, err)
	actual, err := lowerIR(ops)
	require.NoError(t, err)
	require.Equal(t, []interpreterOp{
		{kind: bfir.OperationKindMoveRight, u1: 2},
		{kind: bfir.OperationKindLoopOpen, u1: 4},
		{kind: bfir.OperationKindDecrement, u1: 1},
		{kind: bfir.OperationKindMoveLeft, u1: 1},
		{kind: bfir.OperationKindLoopClose, u1: 1},
		{kind: bfir.OperationKindWriteByte},
	}, actual)
}

func TestLowerIR_InvalidLoops(t *testing.T) {
	for _, tc := range []struct {
		name   string
		ops    []bfir.Operation
		expErr string
	}{
		{
			name:   "open without close",
			ops:    []bfir.Operation{&bfir.OperationLoopOpen{Close: -1}},
			expErr: "loop open at 0 has invalid close -1",
		},
		{
			name:   "close before open",
			ops:    []bfir.Operation{&bfir.OperationLoopClose{Open: 1}, &bfir.OperationWriteByte{}},
			expErr: "loop close at 0 has invalid open 1",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := lowerIR(tc.ops)
			require.EqualError(t, err, tc.expErr)
		})
	}
}
