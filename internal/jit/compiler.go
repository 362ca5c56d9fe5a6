package jit

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

// compiler is the interface of architecture-specific native code compiler,
// and this is responsible for compiling native code for all bfir operations.
type compiler interface {
	// compilePreamble is called before compiling any bfir operation.
	// This is used, for example, to initialize the reserved registers, etc.
	compilePreamble()
	// compileMoveLeft adds instructions to move the state pointer left, exiting with
	// jitCallStatusCodeTapeOutOfBounds if it leaves the tape.
	compileMoveLeft(o *bfir.OperationMoveLeft)
	// compileMoveRight is the mirror of compileMoveLeft.
	compileMoveRight(o *bfir.OperationMoveRight)
	compileIncrement(o *bfir.OperationIncrement)
	compileDecrement(o *bfir.OperationDecrement)
	// compileLoopOpen adds the forward branch over the loop body taken when the current cell is zero.
	// index is the position of o in the operation list.
	compileLoopOpen(index int, o *bfir.OperationLoopOpen)
	// compileLoopClose adds the backward branch into the loop body taken when the current cell is non-zero.
	compileLoopClose(index int, o *bfir.OperationLoopClose) error
	// compileReadByte exits to Go with jitCallStatusCodeCallReadByte and continues after it.
	compileReadByte()
	// compileWriteByte exits to Go with jitCallStatusCodeCallWriteByte and continues after it.
	compileWriteByte()
	// compileExit adds the final exit with jitCallStatusCodeReturned.
	compileExit()
	// compile assembles the added instructions.
	compile() (*assembledCode, error)
}

// assembledCode is the native code before it is copied into the executable code segment.
type assembledCode struct {
	code []byte
	// relocations are the positions in code of the 64-bit little endian values which are relative
	// to the beginning of code. These must be rebased onto the address of the code segment.
	relocations []int64
}

// compileOperations drives c over all ops and returns the assembled code.
func compileOperations(c compiler, ops []bfir.Operation) (*assembledCode, error) {
	c.compilePreamble()
	for i, op := range ops {
		switch o := op.(type) {
		case *bfir.OperationMoveLeft:
			c.compileMoveLeft(o)
		case *bfir.OperationMoveRight:
			c.compileMoveRight(o)
		case *bfir.OperationIncrement:
			c.compileIncrement(o)
		case *bfir.OperationDecrement:
			c.compileDecrement(o)
		case *bfir.OperationLoopOpen:
			c.compileLoopOpen(i, o)
		case *bfir.OperationLoopClose:
			if err := c.compileLoopClose(i, o); err != nil {
				return nil, err
			}
		case *bfir.OperationReadByte:
			c.compileReadByte()
		case *bfir.OperationWriteByte:
			c.compileWriteByte()
		default:
			return nil, fmt.Errorf("unsupported operation %s", op.Kind())
		}
	}
	c.compileExit()
	return c.compile()
}

// loopLabel tracks the native branches of a loop which is being compiled.
type loopLabel struct {
	// open is the index of the loop-open operation.
	open int
	// skipBranch is the conditional branch over the loop body, targeting the instruction after the loop.
	skipBranch *obj.Prog
	// bodyBegin is the first instruction of the body, targeted by the backward branch at the loop-close.
	bodyBegin *obj.Prog
}

// loopLabelStack holds the loops not yet closed, innermost last.
type loopLabelStack struct {
	labels []*loopLabel
}

func (s *loopLabelStack) push(l *loopLabel) {
	s.labels = append(s.labels, l)
}

// pop returns the innermost loop which must be the one opened at the operation index open.
func (s *loopLabelStack) pop(open int) (*loopLabel, error) {
	if len(s.labels) == 0 {
		return nil, fmt.Errorf("loop close without open at %d", open)
	}
	l := s.labels[len(s.labels)-1]
	if l.open != open {
		return nil, fmt.Errorf("loop close expected open at %d but the innermost loop opens at %d", open, l.open)
	}
	s.labels = s.labels[:len(s.labels)-1]
	return l, nil
}

func (s *loopLabelStack) empty() bool {
	return len(s.labels) == 0
}
