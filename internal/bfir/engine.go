package bfir

import (
	"errors"
	"io"
)

// DefaultTapeSize is the number of cells on the tape unless configured otherwise.
const DefaultTapeSize = 65536

// MaxTapeSize is the largest tape an engine accepts. The interpreter keeps its tape on the Go heap,
// where an allocation failure cannot be recovered from.
const MaxTapeSize = 1 << 30

// ErrTapeOutOfBounds is returned when a program moves the state pointer off either end of the tape.
var ErrTapeOutOfBounds = errors.New("state pointer moved out of tape bounds")

// Engine turns bfir operations into a runnable Program.
//
// Engines share one bounds policy: the tape is fixed in size, the state pointer starts at
// cell zero, and any move that leaves [0, tapeSize) stops the run with ErrTapeOutOfBounds.
type Engine interface {
	// Compile prepares ops for execution. ops must come from Compile and are not modified.
	Compile(ops []Operation) (Program, error)
}

// Program is the result of Engine.Compile. It is not safe for concurrent use.
type Program interface {
	// Run executes the program against a zeroed tape, reading bytes from stdin and writing bytes
	// to stdout one at a time. Any I/O error, including running out of input, ends the run.
	Run(stdin io.Reader, stdout io.Writer) error

	// Tape returns the tape as left by the last Run. The slice is only valid until Close.
	Tape() []byte

	// Close releases resources held by the program.
	Close() error
}
