package bfir

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmatchedLoopClose is returned when a loop-close has no open loop to close.
	ErrUnmatchedLoopClose = errors.New("unmatched loop close")
	// ErrUnmatchedLoopOpen is returned when the program ends with loops still open.
	ErrUnmatchedLoopOpen = errors.New("unmatched loop open")
)

// loopStack holds the operation indices of the loop-opens not yet closed.
type loopStack struct{ indices []int }

func (s *loopStack) push(index int) {
	s.indices = append(s.indices, index)
}

func (s *loopStack) pop() (index int, ok bool) {
	if len(s.indices) == 0 {
		return
	}
	index, ok = s.indices[len(s.indices)-1], true
	s.indices = s.indices[:len(s.indices)-1]
	return
}

type compiler struct {
	loops  loopStack
	result []Operation
	// positions records the instruction position each operation started at, for error messages.
	positions []int
}

// CompileSource filters source and lowers the instructions into bfir operations.
func CompileSource(source []byte) ([]Operation, error) {
	return Compile(Filter(source))
}

// Compile lowers instructions into bfir operations so that the resulting operations
// can be consumed by the interpreter or the JIT compilation engine.
//
// Consecutive moves, increments and decrements of the same kind are merged into one counted
// operation. Loops are paired by index in both directions. A loop-close with nothing open
// fails with ErrUnmatchedLoopClose and a loop-open still unclosed at the end fails with
// ErrUnmatchedLoopOpen.
func Compile(instructions []Instruction) ([]Operation, error) {
	c := compiler{}
	for pc, inst := range instructions {
		if err := c.compile(pc, inst); err != nil {
			return nil, err
		}
	}
	if index, ok := c.loops.pop(); ok {
		return nil, fmt.Errorf("%w at instruction %d", ErrUnmatchedLoopOpen, c.positions[index])
	}
	return c.result, nil
}

func (c *compiler) emit(pc int, op Operation) {
	c.result = append(c.result, op)
	c.positions = append(c.positions, pc)
}

func (c *compiler) last() Operation {
	if len(c.result) == 0 {
		return nil
	}
	return c.result[len(c.result)-1]
}

func (c *compiler) compile(pc int, inst Instruction) error {
	switch inst {
	case InstructionMoveLeft:
		if o, ok := c.last().(*OperationMoveLeft); ok {
			o.Count++
		} else {
			c.emit(pc, &OperationMoveLeft{Count: 1})
		}
	case InstructionMoveRight:
		if o, ok := c.last().(*OperationMoveRight); ok {
			o.Count++
		} else {
			c.emit(pc, &OperationMoveRight{Count: 1})
		}
	case InstructionIncrement:
		// Count is a byte so the merged amount wraps exactly like the cell does.
		if o, ok := c.last().(*OperationIncrement); ok {
			o.Count++
		} else {
			c.emit(pc, &OperationIncrement{Count: 1})
		}
	case InstructionDecrement:
		if o, ok := c.last().(*OperationDecrement); ok {
			o.Count++
		} else {
			c.emit(pc, &OperationDecrement{Count: 1})
		}
	case InstructionLoopOpen:
		// Close is patched once the matching loop-close is reached.
		c.loops.push(len(c.result))
		c.emit(pc, &OperationLoopOpen{Close: -1})
	case InstructionLoopClose:
		open, ok := c.loops.pop()
		if !ok {
			return fmt.Errorf("%w at instruction %d", ErrUnmatchedLoopClose, pc)
		}
		c.result[open].(*OperationLoopOpen).Close = len(c.result)
		c.emit(pc, &OperationLoopClose{Open: open})
	case InstructionReadByte:
		c.emit(pc, &OperationReadByte{})
	case InstructionWriteByte:
		c.emit(pc, &OperationWriteByte{})
	default:
		panic(fmt.Sprintf("BUG: instruction %#x passed the filter", byte(inst)))
	}
	return nil
}
