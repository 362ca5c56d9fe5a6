// Package bfir lowers tape machine source into bfjit's intermediate representation (bfir).
//
// Source is first filtered down to the eight recognized instructions (Filter), then
// lowered by Compile into a sequence of Operation where runs of identical pointer moves
// and cell updates are merged into counted operations, and every loop-open is paired with
// its loop-close by index. The result is consumed by the interpreter or the JIT engine.
package bfir

// Instruction is a single symbolic instruction of the tape machine.
type Instruction byte

const (
	// InstructionMoveLeft moves the state pointer one cell to the left.
	InstructionMoveLeft Instruction = '<'
	// InstructionMoveRight moves the state pointer one cell to the right.
	InstructionMoveRight Instruction = '>'
	// InstructionIncrement adds one to the current cell, wrapping at 256.
	InstructionIncrement Instruction = '+'
	// InstructionDecrement subtracts one from the current cell, wrapping at 256.
	InstructionDecrement Instruction = '-'
	// InstructionLoopOpen skips past the matching InstructionLoopClose when the current cell is zero.
	InstructionLoopOpen Instruction = '['
	// InstructionLoopClose jumps back past the matching InstructionLoopOpen when the current cell is non-zero.
	InstructionLoopClose Instruction = ']'
	// InstructionReadByte stores one byte of input into the current cell.
	InstructionReadByte Instruction = ','
	// InstructionWriteByte writes the current cell to the output.
	InstructionWriteByte Instruction = '.'
)

func (i Instruction) String() (ret string) {
	switch i {
	case InstructionMoveLeft:
		ret = "MoveLeft"
	case InstructionMoveRight:
		ret = "MoveRight"
	case InstructionIncrement:
		ret = "Increment"
	case InstructionDecrement:
		ret = "Decrement"
	case InstructionLoopOpen:
		ret = "LoopOpen"
	case InstructionLoopClose:
		ret = "LoopClose"
	case InstructionReadByte:
		ret = "ReadByte"
	case InstructionWriteByte:
		ret = "WriteByte"
	}
	return
}

// IsInstruction returns true if b belongs to the recognition set.
func IsInstruction(b byte) bool {
	switch Instruction(b) {
	case InstructionMoveLeft, InstructionMoveRight,
		InstructionIncrement, InstructionDecrement,
		InstructionLoopOpen, InstructionLoopClose,
		InstructionReadByte, InstructionWriteByte:
		return true
	}
	return false
}

// Filter returns the instructions in source, preserving order.
//
// Any other byte is a comment and is dropped.
func Filter(source []byte) []Instruction {
	ret := make([]Instruction, 0, len(source))
	for _, b := range source {
		if IsInstruction(b) {
			ret = append(ret, Instruction(b))
		}
	}
	return ret
}
