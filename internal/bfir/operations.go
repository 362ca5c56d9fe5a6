package bfir

import (
	"fmt"
	"strings"
)

type OperationKind byte

const (
	OperationKindMoveLeft OperationKind = iota
	OperationKindMoveRight
	OperationKindIncrement
	OperationKindDecrement
	OperationKindLoopOpen
	OperationKindLoopClose
	OperationKindReadByte
	OperationKindWriteByte

	// operationKindEnd is always placed at the bottom of this iota definition to be used in the test.
	operationKindEnd
)

func (o OperationKind) String() (ret string) {
	switch o {
	case OperationKindMoveLeft:
		ret = "MoveLeft"
	case OperationKindMoveRight:
		ret = "MoveRight"
	case OperationKindIncrement:
		ret = "Increment"
	case OperationKindDecrement:
		ret = "Decrement"
	case OperationKindLoopOpen:
		ret = "LoopOpen"
	case OperationKindLoopClose:
		ret = "LoopClose"
	case OperationKindReadByte:
		ret = "ReadByte"
	case OperationKindWriteByte:
		ret = "WriteByte"
	}
	return
}

type Operation interface {
	Kind() OperationKind
}

// OperationMoveLeft moves the state pointer Count cells to the left.
type OperationMoveLeft struct {
	Count uint64
}

func (o *OperationMoveLeft) Kind() OperationKind {
	return OperationKindMoveLeft
}

// OperationMoveRight moves the state pointer Count cells to the right.
type OperationMoveRight struct {
	Count uint64
}

func (o *OperationMoveRight) Kind() OperationKind {
	return OperationKindMoveRight
}

// OperationIncrement adds Count to the current cell.
//
// Count is already reduced modulo 256, so a merged run of 256 increments has a zero Count.
type OperationIncrement struct {
	Count byte
}

func (o *OperationIncrement) Kind() OperationKind {
	return OperationKindIncrement
}

// OperationDecrement subtracts Count from the current cell. See OperationIncrement.
type OperationDecrement struct {
	Count byte
}

func (o *OperationDecrement) Kind() OperationKind {
	return OperationKindDecrement
}

// OperationLoopOpen begins a loop. Close is the index of the matching OperationLoopClose.
type OperationLoopOpen struct {
	Close int
}

func (o *OperationLoopOpen) Kind() OperationKind {
	return OperationKindLoopOpen
}

// OperationLoopClose ends a loop. Open is the index of the matching OperationLoopOpen.
type OperationLoopClose struct {
	Open int
}

func (o *OperationLoopClose) Kind() OperationKind {
	return OperationKindLoopClose
}

type OperationReadByte struct{}

func (o *OperationReadByte) Kind() OperationKind {
	return OperationKindReadByte
}

type OperationWriteByte struct{}

func (o *OperationWriteByte) Kind() OperationKind {
	return OperationKindWriteByte
}

// Format returns a human-readable listing of ops, one per line, indented by loop depth.
func Format(ops []Operation) string {
	var buf strings.Builder
	var depth int
	for i, op := range ops {
		if op.Kind() == OperationKindLoopClose {
			depth--
		}
		buf.WriteString(fmt.Sprintf("%04d: ", i))
		buf.WriteString(strings.Repeat("\t", depth))
		switch o := op.(type) {
		case *OperationMoveLeft:
			buf.WriteString(fmt.Sprintf("%s %d", o.Kind(), o.Count))
		case *OperationMoveRight:
			buf.WriteString(fmt.Sprintf("%s %d", o.Kind(), o.Count))
		case *OperationIncrement:
			buf.WriteString(fmt.Sprintf("%s %d", o.Kind(), o.Count))
		case *OperationDecrement:
			buf.WriteString(fmt.Sprintf("%s %d", o.Kind(), o.Count))
		case *OperationLoopOpen:
			buf.WriteString(fmt.Sprintf("%s -> %04d", o.Kind(), o.Close))
		case *OperationLoopClose:
			buf.WriteString(fmt.Sprintf("%s -> %04d", o.Kind(), o.Open))
		default:
			buf.WriteString(op.Kind().String())
		}
		buf.WriteByte('\n')
		if op.Kind() == OperationKindLoopOpen {
			depth++
		}
	}
	return buf.String()
}
