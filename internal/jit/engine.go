package jit

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"
	"unsafe"

	"github.com/tetratelabs/bfjit/internal/bfir"
	"github.com/tetratelabs/bfjit/internal/buildoptions"
)

type engine struct {
	tapeSize int
}

// NewEngine returns a bfir.Engine which compiles programs into native code for a tape of tapeSize cells.
func NewEngine(tapeSize int) bfir.Engine {
	return &engine{tapeSize: tapeSize}
}

// callContext is shared between Go and the native code. Native code manipulates its fields
// with the callContext*Offset constants below.
type callContext struct {
	// statePointer is the absolute address of the current cell. This is read by the native code on
	// entry and on every continuation, and written back on every exit.
	statePointer uintptr
	// tapeStart is the absolute address of the first cell.
	tapeStart uintptr
	// tapeEnd is the absolute address right after the last cell.
	tapeEnd uintptr
	// statusCode is where the native code stores the reason of an exit.
	statusCode jitCallStatusCode
	// continuationAddress is set when statusCode is one of jitCallStatusCodeCall*
	// and is the absolute address to resume the native code at after the call is done.
	// Instructions at the address must start with re-initializing the reserved registers.
	continuationAddress uintptr

	archContext
}

// Native code manipulates the callContext's fields with these constants.
const (
	callContextStatePointerOffset        = 0
	callContextTapeStartOffset           = 8
	callContextTapeEndOffset             = 16
	callContextStatusCodeOffset          = 24
	callContextContinuationAddressOffset = 32
)

// jitCallStatusCode represents the result of `jitcall`.
// This is set by the jitted native code.
type jitCallStatusCode uint32

const (
	// jitCallStatusCodeReturned means the jitcall reaches the end of program, and returns successfully.
	jitCallStatusCodeReturned jitCallStatusCode = iota
	// jitCallStatusCodeCallReadByte means the jitcall returns to read one byte into the current cell.
	jitCallStatusCodeCallReadByte
	// jitCallStatusCodeCallWriteByte means the jitcall returns to write the current cell.
	jitCallStatusCodeCallWriteByte
	// jitCallStatusCodeTapeOutOfBounds means the state pointer left the tape.
	jitCallStatusCodeTapeOutOfBounds
)

func (s jitCallStatusCode) String() (ret string) {
	switch s {
	case jitCallStatusCodeReturned:
		ret = "returned"
	case jitCallStatusCodeCallReadByte:
		ret = "call_read_byte"
	case jitCallStatusCodeCallWriteByte:
		ret = "call_write_byte"
	case jitCallStatusCodeTapeOutOfBounds:
		ret = "tape_out_of_bounds"
	}
	return
}

// program implements bfir.Program.
type program struct {
	// codeSegment is the executable mapping of the native code.
	codeSegment []byte
	// tape is mapped outside the Go heap so that its address is stable for the native code.
	tape []byte
	ctx  *callContext
	// dirty is true once the tape has been run on. A fresh mapping is already zeroed.
	dirty bool
	// oneByte is reused by the shim.
	oneByte [1]byte
}

// Compile implements the same method as documented on bfir.Engine.
func (e *engine) Compile(ops []bfir.Operation) (bfir.Program, error) {
	if e.tapeSize <= 0 {
		return nil, fmt.Errorf("invalid tape size %d", e.tapeSize)
	} else if e.tapeSize > bfir.MaxTapeSize {
		return nil, fmt.Errorf("tape size %d exceeds the maximum %d", e.tapeSize, bfir.MaxTapeSize)
	}

	if buildoptions.IsDebugMode {
		fmt.Printf("compiling program with %d operations:\n%s", len(ops), bfir.Format(ops))
	}

	c, err := newCompiler(e.tapeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize compiler: %w", err)
	}
	assembled, err := compileOperations(c, ops)
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}

	if buildoptions.IsDebugMode {
		fmt.Printf("compiled native code: %s\n", hex.EncodeToString(assembled.code))
	}

	codeSegment, err := mmapCodeSegment(assembled)
	if err != nil {
		return nil, fmt.Errorf("failed to map code segment: %w", err)
	}
	tape, err := mmapTape(e.tapeSize)
	if err != nil {
		_ = munmap(codeSegment)
		return nil, fmt.Errorf("failed to map tape: %w", err)
	}

	p := &program{codeSegment: codeSegment, tape: tape, ctx: &callContext{}}
	// Mappings are not managed by the GC, so release them when the program is unreachable without Close.
	runtime.SetFinalizer(p, (*program).release)
	return p, nil
}

// Tape implements the same method as documented on bfir.Program.
func (p *program) Tape() []byte {
	return p.tape
}

// Close implements the same method as documented on bfir.Program.
func (p *program) Close() error {
	runtime.SetFinalizer(p, nil)
	return p.release()
}

func (p *program) release() error {
	var errs []error
	if p.codeSegment != nil {
		errs = append(errs, munmap(p.codeSegment))
		p.codeSegment = nil
	}
	if p.tape != nil {
		errs = append(errs, munmap(p.tape))
		p.tape = nil
	}
	return errors.Join(errs...)
}

// Run implements the same method as documented on bfir.Program.
func (p *program) Run(stdin io.Reader, stdout io.Writer) error {
	if p.codeSegment == nil {
		return errors.New("program is closed")
	}
	if p.dirty {
		for i := range p.tape {
			p.tape[i] = 0
		}
	}
	p.dirty = true
	p.ctx.tapeStart = uintptr(unsafe.Pointer(&p.tape[0]))
	p.ctx.tapeEnd = p.ctx.tapeStart + uintptr(len(p.tape))
	p.ctx.statePointer = p.ctx.tapeStart
	return p.exec(stdin, stdout)
}

func (p *program) exec(stdin io.Reader, stdout io.Writer) error {
	ctx := p.ctx
	address := uintptr(unsafe.Pointer(&p.codeSegment[0]))
	for {
		if buildoptions.IsDebugMode {
			fmt.Printf("jitcall at %#x, state pointer: %d\n", address, ctx.statePointer-ctx.tapeStart)
		}

		// Call into the jitted code.
		jitcall(address, uintptr(unsafe.Pointer(ctx)))
		runtime.KeepAlive(ctx)

		// Check the status code from JIT code.
		switch ctx.statusCode {
		case jitCallStatusCodeReturned:
			return nil
		case jitCallStatusCodeCallReadByte:
			if err := p.readByte(stdin); err != nil {
				return err
			}
		case jitCallStatusCodeCallWriteByte:
			if err := p.writeByte(stdout); err != nil {
				return err
			}
		case jitCallStatusCodeTapeOutOfBounds:
			return bfir.ErrTapeOutOfBounds
		default:
			panic(fmt.Sprintf("BUG: unknown jit status code %d", ctx.statusCode))
		}
		address = ctx.continuationAddress
	}
}
