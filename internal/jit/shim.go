package jit

import (
	"fmt"
	"io"
)

// readByte serves jitCallStatusCodeCallReadByte by storing exactly one byte of stdin into the current cell.
func (p *program) readByte(stdin io.Reader) error {
	if _, err := io.ReadFull(stdin, p.oneByte[:]); err != nil {
		return fmt.Errorf("read byte: %w", err)
	}
	p.tape[p.currentCell()] = p.oneByte[0]
	return nil
}

// writeByte serves jitCallStatusCodeCallWriteByte by writing the current cell to stdout.
func (p *program) writeByte(stdout io.Writer) error {
	p.oneByte[0] = p.tape[p.currentCell()]
	if _, err := stdout.Write(p.oneByte[:]); err != nil {
		return fmt.Errorf("write byte: %w", err)
	}
	return nil
}

// currentCell returns the index of the cell the native code exited at.
func (p *program) currentCell() uintptr {
	i := p.ctx.statePointer - p.ctx.tapeStart
	if i >= uintptr(len(p.tape)) {
		panic(fmt.Sprintf("BUG: state pointer %#x exited outside of the tape", p.ctx.statePointer))
	}
	return i
}
