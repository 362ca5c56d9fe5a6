package interpreter

import (
	"fmt"
	"io"

	"github.com/tetratelabs/bfjit/internal/bfir"
	"github.com/tetratelabs/bfjit/internal/buildoptions"
)

// engine is an interpreter implementation of bfir.Engine.
type engine struct {
	tapeSize int
}

// NewEngine returns a bfir.Engine which executes programs on a tape of tapeSize cells.
func NewEngine(tapeSize int) bfir.Engine {
	return &engine{tapeSize: tapeSize}
}

// interpreterOp is the compilation (engine.lowerIR) result of a bfir.Operation.
//
// u1 is the count of moves and cell updates, or the jump target of loops.
type interpreterOp struct {
	kind bfir.OperationKind
	u1   uint64
}

// program implements bfir.Program.
type program struct {
	body []interpreterOp
	tape []byte
	// pointer is the index of the current cell.
	pointer uint64
	// oneByte is reused for single byte I/O.
	oneByte [1]byte
}

// Compile implements the same method as documented on bfir.Engine.
func (e *engine) Compile(ops []bfir.Operation) (bfir.Program, error) {
	if e.tapeSize <= 0 {
		return nil, fmt.Errorf("invalid tape size %d", e.tapeSize)
	} else if e.tapeSize > bfir.MaxTapeSize {
		return nil, fmt.Errorf("tape size %d exceeds the maximum %d", e.tapeSize, bfir.MaxTapeSize)
	}
	body, err := lowerIR(ops)
	if err != nil {
		return nil, err
	}
	if buildoptions.IsDebugMode {
		fmt.Printf("compiling program with %d operations:\n%s", len(ops), bfir.Format(ops))
	}
	return &program{body: body, tape: make([]byte, e.tapeSize)}, nil
}

func lowerIR(ops []bfir.Operation) ([]interpreterOp, error) {
	ret := make([]interpreterOp, len(ops))
	for i, original := range ops {
		op := &ret[i]
		op.kind = original.Kind()
		switch o := original.(type) {
		case *bfir.OperationMoveLeft:
			op.u1 = o.Count
		case *bfir.OperationMoveRight:
			op.u1 = o.Count
		case *bfir.OperationIncrement:
			op.u1 = uint64(o.Count)
		case *bfir.OperationDecrement:
			op.u1 = uint64(o.Count)
		case *bfir.OperationLoopOpen:
			if o.Close <= i || o.Close >= len(ops) {
				return nil, fmt.Errorf("loop open at %d has invalid close %d", i, o.Close)
			}
			op.u1 = uint64(o.Close)
		case *bfir.OperationLoopClose:
			if o.Open < 0 || o.Open >= i {
				return nil, fmt.Errorf("loop close at %d has invalid open %d", i, o.Open)
			}
			op.u1 = uint64(o.Open)
		case *bfir.OperationReadByte, *bfir.OperationWriteByte:
		default:
			return nil, fmt.Errorf("unsupported operation %s", original.Kind())
		}
	}
	return ret, nil
}

// Tape implements the same method as documented on bfir.Program.
func (p *program) Tape() []byte {
	return p.tape
}

// Close implements the same method as documented on bfir.Program.
func (p *program) Close() error {
	return nil
}

// Run implements the same method as documented on bfir.Program.
func (p *program) Run(stdin io.Reader, stdout io.Writer) error {
	for i := range p.tape {
		p.tape[i] = 0
	}
	p.pointer = 0
	return p.exec(stdin, stdout)
}

func (p *program) exec(stdin io.Reader, stdout io.Writer) error {
	tapeSize := uint64(len(p.tape))
	body := p.body
	bodyLen := uint64(len(body))
	for pc := uint64(0); pc < bodyLen; pc++ {
		op := &body[pc]
		switch op.kind {
		case bfir.OperationKindMoveLeft:
			if op.u1 > p.pointer {
				return bfir.ErrTapeOutOfBounds
			}
			p.pointer -= op.u1
		case bfir.OperationKindMoveRight:
			if op.u1 >= tapeSize-p.pointer {
				return bfir.ErrTapeOutOfBounds
			}
			p.pointer += op.u1
		case bfir.OperationKindIncrement:
			p.tape[p.pointer] += byte(op.u1)
		case bfir.OperationKindDecrement:
			p.tape[p.pointer] -= byte(op.u1)
		case bfir.OperationKindLoopOpen:
			if p.tape[p.pointer] == 0 {
				pc = op.u1
			}
		case bfir.OperationKindLoopClose:
			if p.tape[p.pointer] != 0 {
				pc = op.u1
			}
		case bfir.OperationKindReadByte:
			if _, err := io.ReadFull(stdin, p.oneByte[:]); err != nil {
				return fmt.Errorf("read byte: %w", err)
			}
			p.tape[p.pointer] = p.oneByte[0]
		case bfir.OperationKindWriteByte:
			p.oneByte[0] = p.tape[p.pointer]
			if _, err := stdout.Write(p.oneByte[:]); err != nil {
				return fmt.Errorf("write byte: %w", err)
			}
		}
	}
	return nil
}
