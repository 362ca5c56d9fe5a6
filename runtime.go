package bfjit

import (
	"fmt"
	"io"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

var (
	// ErrUnmatchedLoopClose is returned by CompileProgram when a "]" has no "[" to close.
	ErrUnmatchedLoopClose = bfir.ErrUnmatchedLoopClose
	// ErrUnmatchedLoopOpen is returned by CompileProgram when a "[" is never closed.
	ErrUnmatchedLoopOpen = bfir.ErrUnmatchedLoopOpen
	// ErrTapeOutOfBounds is returned by Program.Run when the state pointer moves off either end of the tape.
	ErrTapeOutOfBounds = bfir.ErrTapeOutOfBounds
)

// Runtime compiles and runs programs of the eight instruction tape machine.
//
// Ex.
//
//	r := bfjit.NewRuntime()
//	program, _ := r.CompileProgram(source)
//	defer program.Close()
//	_ = program.Run(os.Stdin, os.Stdout)
type Runtime interface {
	// CompileProgram compiles the source or errs if its loops are unbalanced.
	//
	// Bytes other than the eight instructions "<>+-[],." are comments and ignored.
	CompileProgram(source []byte) (Program, error)

	// Run compiles the source, runs it once and then closes it.
	//
	// Note: This is a convenience utility that chains CompileProgram with Program.Run. To run the same source
	// multiple times, use CompileProgram as Run avoids redundant compilation.
	Run(source []byte, stdin io.Reader, stdout io.Writer) error
}

// Program is a compiled program. It is not safe for concurrent use.
type Program interface {
	// Run executes the program against a zeroed tape with the state pointer at the first cell.
	//
	// Each "," reads exactly one byte from stdin and each "." writes exactly one byte to stdout.
	// An I/O error ends the run, including reaching the end of stdin, which is returned wrapping io.EOF.
	Run(stdin io.Reader, stdout io.Writer) error

	// Tape returns the tape as left by the last Run. The slice is only valid until Close.
	Tape() []byte

	// Close releases the native code and tape of the program.
	Close() error
}

func NewRuntime() Runtime {
	return NewRuntimeWithConfig(NewRuntimeConfig())
}

// NewRuntimeWithConfig returns a runtime with the given configuration.
func NewRuntimeWithConfig(config *RuntimeConfig) Runtime {
	return &runtime{engine: config.newEngine(config.tapeSize)}
}

// runtime allows decoupling of public interfaces from internal representation.
type runtime struct {
	engine bfir.Engine
}

// CompileProgram implements Runtime.CompileProgram
func (r *runtime) CompileProgram(source []byte) (Program, error) {
	ops, err := bfir.CompileSource(source)
	if err != nil {
		return nil, err
	}
	p, err := r.engine.Compile(ops)
	if err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}
	return p, nil
}

// Run implements Runtime.Run
func (r *runtime) Run(source []byte, stdin io.Reader, stdout io.Writer) (err error) {
	p, err := r.CompileProgram(source)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); err == nil {
			err = closeErr
		}
	}()
	return p.Run(stdin, stdout)
}
