// Package enginetest contains tests common to any bfir.Engine implementation. Defining these as top-level
// functions is less burden than copy/pasting the implementations, while still allowing test caching to operate.
//
// In simplest case, dispatch:
//
//	func TestEngine_Run(t *testing.T) {
//		enginetest.RunTestEngineRun(t, NewEngine)
//	}
//
// Tests of the JIT engine need to guard on the platform, which is done in that package's TestMain.
package enginetest

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

// NewEngine is the constructor of the bfir.Engine under test.
type NewEngine func(tapeSize int) bfir.Engine

// HelloWorld prints "Hello World!\n".
const HelloWorld = `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

func compile(t *testing.T, newEngine NewEngine, tapeSize int, source string) bfir.Program {
	ops, err := bfir.CompileSource([]byte(source))
	require.NoError(t, err)
	return compileOps(t, newEngine, tapeSize, ops)
}

func compileOps(t *testing.T, newEngine NewEngine, tapeSize int, ops []bfir.Operation) bfir.Program {
	p, err := newEngine(tapeSize).Compile(ops)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

// RunTestEngineRun runs programs which complete normally and checks their output and final tape.
func RunTestEngineRun(t *testing.T, newEngine NewEngine) {
	for _, tc := range []struct {
		name, source, stdin, expStdout string
		// expTape are the expected leading cells of the tape after the run.
		expTape []byte
	}{
		{name: "empty", source: "", expTape: []byte{0}},
		{name: "comments only", source: "just words", expTape: []byte{0}},
		{name: "increment", source: "+++", expTape: []byte{3}},
		{name: "decrement wraps", source: "-", expTape: []byte{255}},
		{name: "increment wraps", source: strings.Repeat("+", 256), expTape: []byte{0}},
		{name: "increment wraps past zero", source: strings.Repeat("+", 258), expTape: []byte{2}},
		{name: "move and update", source: ">++>+++<-", expTape: []byte{0, 1, 3}},
		{name: "loop skipped on zero", source: "[.+]>+", expTape: []byte{0, 1}},
		{name: "clear loop", source: "+++++[-]", expTape: []byte{0}},
		{name: "transfer loop", source: "+++[->++<]", expTape: []byte{0, 6}},
		{name: "nested loops", source: "++[>++[>++<-]<-]", expTape: []byte{0, 0, 8}},
		{name: "add by loop", source: "++>+++++[-<+>]<.", expStdout: "\x07", expTape: []byte{7, 0}},
		{name: "echo one byte", source: ",.", stdin: "A", expStdout: "A", expTape: []byte{0x41}},
		{name: "hello world", source: HelloWorld, expStdout: "Hello World!\n"},
		{name: "echo", source: ",.>,.", stdin: "hi", expStdout: "hi", expTape: []byte{'h', 'i'}},
		{name: "read until zero", source: "+[,.]", stdin: "ab\x00", expStdout: "ab\x00", expTape: []byte{0}},
		{name: "read overwrites cell", source: "+++,", stdin: "\x07", expTape: []byte{7}},
		{name: "write twice", source: "++++++++[>++++++++<-]>+..", expStdout: "AA", expTape: []byte{0, 'A'}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := compile(t, newEngine, bfir.DefaultTapeSize, tc.source)
			stdout := &bytes.Buffer{}
			require.NoError(t, p.Run(strings.NewReader(tc.stdin), stdout))
			require.Equal(t, tc.expStdout, stdout.String())
			tape := p.Tape()
			require.Equal(t, bfir.DefaultTapeSize, len(tape))
			if tc.expTape != nil {
				require.Equal(t, tc.expTape, tape[:len(tc.expTape)])
			}
		})
	}
}

// RunTestEngineRun_TapeBounds ensures the state pointer can reach both ends of the tape but never leave it.
func RunTestEngineRun_TapeBounds(t *testing.T, newEngine NewEngine) {
	const tapeSize = 16
	for _, tc := range []struct {
		name   string
		ops    []bfir.Operation
		expErr bool
	}{
		{name: "left of start", ops: []bfir.Operation{&bfir.OperationMoveLeft{Count: 1}}, expErr: true},
		{
			name: "last cell",
			ops: []bfir.Operation{
				&bfir.OperationMoveRight{Count: tapeSize - 1},
				&bfir.OperationIncrement{Count: 1},
				&bfir.OperationMoveLeft{Count: tapeSize - 1},
			},
		},
		{name: "past the end", ops: []bfir.Operation{&bfir.OperationMoveRight{Count: tapeSize}}, expErr: true},
		{
			name: "back past start",
			ops: []bfir.Operation{
				&bfir.OperationMoveRight{Count: 3},
				&bfir.OperationMoveLeft{Count: 4},
			},
			expErr: true,
		},
		{name: "huge move right", ops: []bfir.Operation{&bfir.OperationMoveRight{Count: 1 << 40}}, expErr: true},
		{name: "huge move left", ops: []bfir.Operation{&bfir.OperationMoveLeft{Count: 1 << 40}}, expErr: true},
		{name: "max move right", ops: []bfir.Operation{&bfir.OperationMoveRight{Count: 1<<64 - 1}}, expErr: true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := compileOps(t, newEngine, tapeSize, tc.ops)
			err := p.Run(strings.NewReader(""), io.Discard)
			if tc.expErr {
				require.ErrorIs(t, err, bfir.ErrTapeOutOfBounds)
			} else {
				require.NoError(t, err)
				require.Equal(t, byte(1), p.Tape()[tapeSize-1])
			}
		})
	}

	t.Run("output before fault is kept", func(t *testing.T) {
		p := compile(t, newEngine, tapeSize, strings.Repeat("+", '!')+".<.")
		stdout := &bytes.Buffer{}
		err := p.Run(strings.NewReader(""), stdout)
		require.ErrorIs(t, err, bfir.ErrTapeOutOfBounds)
		require.Equal(t, "!", stdout.String())
	})

	t.Run("scan right off the end", func(t *testing.T) {
		// Fills every cell then keeps moving right looking for a zero cell.
		p := compile(t, newEngine, tapeSize, "+[>+]")
		err := p.Run(strings.NewReader(""), io.Discard)
		require.ErrorIs(t, err, bfir.ErrTapeOutOfBounds)
	})
}

// RunTestEngineRun_ZeroCount ensures merged updates which wrapped to zero leave the cell untouched.
func RunTestEngineRun_ZeroCount(t *testing.T, newEngine NewEngine) {
	p := compileOps(t, newEngine, bfir.DefaultTapeSize, []bfir.Operation{
		&bfir.OperationIncrement{Count: 5},
		&bfir.OperationIncrement{Count: 0},
		&bfir.OperationDecrement{Count: 0},
	})
	require.NoError(t, p.Run(strings.NewReader(""), io.Discard))
	require.Equal(t, byte(5), p.Tape()[0])
}

// RunTestEngineRun_MergedCounts ensures a counted operation behaves exactly like the same number of
// single-count operations, including cell updates that wrap.
func RunTestEngineRun_MergedCounts(t *testing.T, newEngine NewEngine) {
	var single []bfir.Operation
	for i := 0; i < 300; i++ {
		single = append(single, &bfir.OperationIncrement{Count: 1})
	}
	for i := 0; i < 7; i++ {
		single = append(single, &bfir.OperationMoveRight{Count: 1})
	}
	for i := 0; i < 2; i++ {
		single = append(single, &bfir.OperationMoveLeft{Count: 1})
	}
	for i := 0; i < 3; i++ {
		single = append(single, &bfir.OperationDecrement{Count: 1})
	}
	merged := []bfir.Operation{
		&bfir.OperationIncrement{Count: 300 % 256},
		&bfir.OperationMoveRight{Count: 7},
		&bfir.OperationMoveLeft{Count: 2},
		&bfir.OperationDecrement{Count: 3},
	}

	expected := compileOps(t, newEngine, 8, single)
	require.NoError(t, expected.Run(strings.NewReader(""), io.Discard))
	actual := compileOps(t, newEngine, 8, merged)
	require.NoError(t, actual.Run(strings.NewReader(""), io.Discard))

	require.Equal(t, []byte{44, 0, 0, 0, 0, 253, 0, 0}, expected.Tape())
	require.Equal(t, expected.Tape(), actual.Tape())
}

// RunTestEngineRun_Rerun ensures each run starts from a zeroed tape with the pointer at cell zero.
func RunTestEngineRun_Rerun(t *testing.T, newEngine NewEngine) {
	p := compile(t, newEngine, bfir.DefaultTapeSize, ">,.>+")
	for _, in := range []string{"x", "y"} {
		stdout := &bytes.Buffer{}
		require.NoError(t, p.Run(strings.NewReader(in), stdout))
		require.Equal(t, in, stdout.String())
		require.Equal(t, []byte{0, in[0], 1, 0}, p.Tape()[:4])
	}
}

type errWriter struct{ err error }

func (w *errWriter) Write([]byte) (int, error) { return 0, w.err }

// RunTestEngineRun_IOErrors ensures I/O failures end the run and are returned wrapped.
func RunTestEngineRun_IOErrors(t *testing.T, newEngine NewEngine) {
	t.Run("end of input", func(t *testing.T) {
		p := compile(t, newEngine, bfir.DefaultTapeSize, ",.")
		stdout := &bytes.Buffer{}
		err := p.Run(strings.NewReader(""), stdout)
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "", stdout.String())
	})
	t.Run("input runs out", func(t *testing.T) {
		p := compile(t, newEngine, bfir.DefaultTapeSize, ",.,.,.")
		stdout := &bytes.Buffer{}
		err := p.Run(strings.NewReader("ab"), stdout)
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, "ab", stdout.String())
	})
	t.Run("write failure", func(t *testing.T) {
		expErr := errors.New("closed")
		p := compile(t, newEngine, bfir.DefaultTapeSize, "+.+.")
		err := p.Run(strings.NewReader(""), &errWriter{err: expErr})
		require.ErrorIs(t, err, expErr)
		require.Equal(t, byte(1), p.Tape()[0])
	})
}

// RunTestEngineRun_MatchesReference compares the output and tape of programs against the output of
// another engine, typically the interpreter.
func RunTestEngineRun_MatchesReference(t *testing.T, newEngine, reference NewEngine) {
	for _, source := range []string{
		HelloWorld,
		// Prints the digits 0 to 9.
		"++++++[>++++++++<-]>>++++++++++[-<.+>]",
		// Multiplies the two input bytes into cell 2.
		",>,<[->[->+>+<<]>>[-<<+>>]<<<]",
		// Reverses the input up to a zero byte.
		">,[>,]<[.<]",
		// Deeply nested loops which all fall through.
		"+" + strings.Repeat("[", 64) + "-" + strings.Repeat("]", 64),
	} {
		source := source
		t.Run(source, func(t *testing.T) {
			const stdin = "\x07\x06\x00"
			expected := compile(t, reference, 256, source)
			expStdout := &bytes.Buffer{}
			require.NoError(t, expected.Run(strings.NewReader(stdin), expStdout))

			actual := compile(t, newEngine, 256, source)
			stdout := &bytes.Buffer{}
			require.NoError(t, actual.Run(strings.NewReader(stdin), stdout))

			require.Equal(t, expStdout.String(), stdout.String())
			require.Equal(t, expected.Tape(), actual.Tape())
		})
	}
}
