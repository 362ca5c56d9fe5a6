package jit

import (
	"io"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/bfjit/internal/bfir"
	"github.com/tetratelabs/bfjit/internal/interpreter"
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

func TestEngine_Run_MatchesInterpreter(t *testing.T) {
	enginetest.RunTestEngineRun_MatchesReference(t, NewEngine, interpreter.NewEngine)
}

// TestCallContextOffsets ensures the offsets used by the native code match the layout of callContext.
func TestCallContextOffsets(t *testing.T) {
	var ctx callContext
	require.Equal(t, callContextStatePointerOffset, int(unsafe.Offsetof(ctx.statePointer)))
	require.Equal(t, callContextTapeStartOffset, int(unsafe.Offsetof(ctx.tapeStart)))
	require.Equal(t, callContextTapeEndOffset, int(unsafe.Offsetof(ctx.tapeEnd)))
	require.Equal(t, callContextStatusCodeOffset, int(unsafe.Offsetof(ctx.statusCode)))
	require.Equal(t, callContextContinuationAddressOffset, int(unsafe.Offsetof(ctx.continuationAddress)))
}

func TestJitCallStatusCode_String(t *testing.T) {
	for s := jitCallStatusCodeReturned; s <= jitCallStatusCodeTapeOutOfBounds; s++ {
		require.NotEqual(t, "", s.String())
	}
}

func TestEngine_Compile_InvalidTapeSize(t *testing.T) {
	_, err := NewEngine(-1).Compile(nil)
	require.EqualError(t, err, "invalid tape size -1")

	_, err = NewEngine(bfir.MaxTapeSize + 1).Compile(nil)
	require.EqualError(t, err, "tape size 1073741825 exceeds the maximum 1073741824")
}

func TestEngine_Compile_InvalidLoops(t *testing.T) {
	for _, tc := range []struct {
		name   string
		ops    []bfir.Operation
		expErr string
	}{
		{
			name:   "unclosed",
			ops:    []bfir.Operation{&bfir.OperationLoopOpen{Close: 1}},
			expErr: "failed to compile: loop open at 0 is never closed",
		},
		{
			name:   "close without open",
			ops:    []bfir.Operation{&bfir.OperationLoopClose{Open: 0}},
			expErr: "failed to compile: loop close without open at 0",
		},
		{
			name: "crossed",
			ops: []bfir.Operation{
				&bfir.OperationLoopOpen{Close: 3},
				&bfir.OperationLoopOpen{Close: 2},
				&bfir.OperationLoopClose{Open: 0},
				&bfir.OperationLoopClose{Open: 1},
			},
			expErr: "failed to compile: loop close expected open at 0 but the innermost loop opens at 1",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEngine(bfir.DefaultTapeSize).Compile(tc.ops)
			require.EqualError(t, err, tc.expErr)
		})
	}
}

func TestProgram_Close(t *testing.T) {
	p, err := NewEngine(bfir.DefaultTapeSize).Compile([]bfir.Operation{&bfir.OperationIncrement{Count: 1}})
	require.NoError(t, err)
	require.NoError(t, p.Run(strings.NewReader(""), io.Discard))
	require.Equal(t, byte(1), p.Tape()[0])

	require.NoError(t, p.Close())
	require.Nil(t, p.Tape())
	// Closing twice is fine.
	require.NoError(t, p.Close())

	err = p.Run(strings.NewReader(""), io.Discard)
	require.EqualError(t, err, "program is closed")
}

func TestProgram_LargeTape(t *testing.T) {
	const tapeSize = 1 << 24
	// The moves do not fit in the immediate of arm64 add and sub.
	p, err := NewEngine(tapeSize).Compile([]bfir.Operation{
		&bfir.OperationMoveRight{Count: tapeSize - 1},
		&bfir.OperationIncrement{Count: 42},
		&bfir.OperationWriteByte{},
		&bfir.OperationMoveLeft{Count: tapeSize - 1},
	})
	require.NoError(t, err)
	defer p.Close()

	stdout := &strings.Builder{}
	require.NoError(t, p.Run(strings.NewReader(""), stdout))
	require.Equal(t, "*", stdout.String())
	require.Equal(t, byte(42), p.Tape()[tapeSize-1])
}
