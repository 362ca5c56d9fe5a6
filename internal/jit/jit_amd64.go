package jit

// This file implements the compiler for amd64/x86_64 target.
// Please refer to https://www.felixcloutier.com/x86/index.html
// if unfamiliar with amd64 instructions used here.
// Note that x86 pkg used here prefixes all the instructions with "A"
// e.g. MOVQ will be given as x86.AMOVQ.

import (
	"math"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

// Reserved registers.
// Note: R14 is the goroutine pointer and R15 is used by the dynamic linker, so we never touch them.
const (
	// reservedRegisterForCallContext holds the pointer to callContext. This is set by jitcall.
	reservedRegisterForCallContext = x86.REG_R13
	// reservedRegisterForStatePointer holds the absolute address of the current cell.
	reservedRegisterForStatePointer = x86.REG_R12
	reservedRegisterForTapeStart    = x86.REG_R10
	reservedRegisterForTapeEnd      = x86.REG_R11
	reservedRegisterForTemporary    = x86.REG_AX
)

// archContext is embedded in callContext in order to store architecture-specific data.
// amd64 returns to Go with RET on the stack pointer left by jitcall, so there is nothing here.
type archContext struct{}

// jitcall is implemented in jit_amd64.s as a Go Assembler function.
// This is used by program.exec to enter the JITed native code.
// codeSegment is the absolute address of the instruction to start at.
// ctx is the pointer to the "*callContext" as uintptr.
func jitcall(codeSegment, ctx uintptr)

type amd64Compiler struct {
	*codeBuffer
	tapeSize uint64
}

func newCompiler(tapeSize int) (compiler, error) {
	b, err := newCodeBuffer("amd64")
	if err != nil {
		return nil, err
	}
	return &amd64Compiler{codeBuffer: b, tapeSize: uint64(tapeSize)}, nil
}

// compilePreamble implements compiler.compilePreamble for the amd64 architecture.
func (c *amd64Compiler) compilePreamble() {
	c.initializeReservedRegisters()
}

// initializeReservedRegisters must be called at the very beginning and all the
// continuations after returning to Go. Returns the first instruction.
func (c *amd64Compiler) initializeReservedRegisters() (first *obj.Prog) {
	first = c.compileMemoryToRegister(x86.AMOVQ, callContextTapeStartOffset, reservedRegisterForTapeStart)
	c.compileMemoryToRegister(x86.AMOVQ, callContextTapeEndOffset, reservedRegisterForTapeEnd)
	c.compileMemoryToRegister(x86.AMOVQ, callContextStatePointerOffset, reservedRegisterForStatePointer)
	return
}

func (c *amd64Compiler) compileMemoryToRegister(instruction obj.As, sourceOffset int64, destinationReg int16) *obj.Prog {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = reservedRegisterForCallContext
	prog.From.Offset = sourceOffset
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = destinationReg
	c.addInstruction(prog)
	return prog
}

func (c *amd64Compiler) compileRegisterToMemory(instruction obj.As, sourceReg int16, destinationOffset int64) {
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = sourceReg
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = reservedRegisterForCallContext
	prog.To.Offset = destinationOffset
	c.addInstruction(prog)
}

// compileMoveLeft implements compiler.compileMoveLeft for the amd64 architecture.
func (c *amd64Compiler) compileMoveLeft(o *bfir.OperationMoveLeft) {
	c.compileMove(x86.ASUBQ, o.Count)
}

// compileMoveRight implements compiler.compileMoveRight for the amd64 architecture.
func (c *amd64Compiler) compileMoveRight(o *bfir.OperationMoveRight) {
	c.compileMove(x86.AADDQ, o.Count)
}

func (c *amd64Compiler) compileMove(instruction obj.As, count uint64) {
	if count >= c.tapeSize {
		// Leaves the tape wherever the state pointer is. This also keeps the pointer arithmetic below from wrapping.
		c.outOfBoundsBranches = append(c.outOfBoundsBranches, c.addBranch(obj.AJMP))
		return
	}

	move := c.newProg()
	move.As = instruction
	move.To.Type = obj.TYPE_REG
	move.To.Reg = reservedRegisterForStatePointer
	if count > math.MaxInt32 {
		// There is no 64-bit immediate for add/sub, so load the count first.
		load := c.newProg()
		load.As = x86.AMOVQ
		load.From.Type = obj.TYPE_CONST
		load.From.Offset = int64(count)
		load.To.Type = obj.TYPE_REG
		load.To.Reg = reservedRegisterForTemporary
		c.addInstruction(load)
		move.From.Type = obj.TYPE_REG
		move.From.Reg = reservedRegisterForTemporary
	} else {
		move.From.Type = obj.TYPE_CONST
		move.From.Offset = int64(count)
	}
	c.addInstruction(move)

	// Unsigned comparisons also catch the pointer wrapping around below zero.
	c.compileBoundsCheck(reservedRegisterForTapeStart, x86.AJCS)
	c.compileBoundsCheck(reservedRegisterForTapeEnd, x86.AJCC)
}

// compileBoundsCheck compares the state pointer with bound, and branches into the out of bounds exit with jmp.
func (c *amd64Compiler) compileBoundsCheck(bound int16, jmp obj.As) {
	cmp := c.newProg()
	cmp.As = x86.ACMPQ
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = reservedRegisterForStatePointer
	cmp.To.Type = obj.TYPE_REG
	cmp.To.Reg = bound
	c.addInstruction(cmp)
	c.outOfBoundsBranches = append(c.outOfBoundsBranches, c.addBranch(jmp))
}

// compileIncrement implements compiler.compileIncrement for the amd64 architecture.
func (c *amd64Compiler) compileIncrement(o *bfir.OperationIncrement) {
	c.compileUpdateCell(x86.AADDB, o.Count)
}

// compileDecrement implements compiler.compileDecrement for the amd64 architecture.
func (c *amd64Compiler) compileDecrement(o *bfir.OperationDecrement) {
	c.compileUpdateCell(x86.ASUBB, o.Count)
}

func (c *amd64Compiler) compileUpdateCell(instruction obj.As, count byte) {
	if count == 0 {
		return
	}
	prog := c.newProg()
	prog.As = instruction
	prog.From.Type = obj.TYPE_CONST
	// imm8 is sign-extended, which is the same modulo 256.
	prog.From.Offset = int64(int8(count))
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = reservedRegisterForStatePointer
	c.addInstruction(prog)
}

// compileCurrentCellZeroCheck sets the flags by comparing the current cell with zero.
func (c *amd64Compiler) compileCurrentCellZeroCheck() {
	cmp := c.newProg()
	cmp.As = x86.ACMPB
	cmp.From.Type = obj.TYPE_MEM
	cmp.From.Reg = reservedRegisterForStatePointer
	cmp.To.Type = obj.TYPE_CONST
	cmp.To.Offset = 0
	c.addInstruction(cmp)
}

// compileLoopOpen implements compiler.compileLoopOpen for the amd64 architecture.
//
//	cmpb [statePointer], 0
//	je .loop_end
//	.loop_body:
func (c *amd64Compiler) compileLoopOpen(index int, _ *bfir.OperationLoopOpen) {
	c.compileCurrentCellZeroCheck()
	skip := c.addBranch(x86.AJEQ)
	c.loops.push(&loopLabel{open: index, skipBranch: skip, bodyBegin: c.addNOP()})
}

// compileLoopClose implements compiler.compileLoopClose for the amd64 architecture.
//
//	cmpb [statePointer], 0
//	jne .loop_body
//	.loop_end:
func (c *amd64Compiler) compileLoopClose(_ int, o *bfir.OperationLoopClose) error {
	l, err := c.loops.pop(o.Open)
	if err != nil {
		return err
	}
	c.compileCurrentCellZeroCheck()
	c.addBranch(x86.AJNE).To.SetTarget(l.bodyBegin)
	c.setBranchTargetOnNext(l.skipBranch)
	return nil
}

// compileReadByte implements compiler.compileReadByte for the amd64 architecture.
func (c *amd64Compiler) compileReadByte() {
	c.compileCallGo(jitCallStatusCodeCallReadByte)
}

// compileWriteByte implements compiler.compileWriteByte for the amd64 architecture.
func (c *amd64Compiler) compileWriteByte() {
	c.compileCallGo(jitCallStatusCodeCallWriteByte)
}

// compileCallGo exits with status, and continues at the next instruction once Go jumps back
// to the continuation address.
func (c *amd64Compiler) compileCallGo(status jitCallStatusCode) {
	// We cannot read RIP register directly, so the absolute address of the continuation
	// is written into the immediate once the code segment is mapped.
	// We intentionally use 1 << 33 to let the assembler to emit the instructions for
	// 64-bit mov, instead of 32-bit mov.
	load := c.newProg()
	load.As = x86.AMOVQ
	load.From.Type = obj.TYPE_CONST
	load.From.Offset = int64(1 << 33)
	load.To.Type = obj.TYPE_REG
	load.To.Reg = reservedRegisterForTemporary
	c.addInstruction(load)
	c.compileRegisterToMemory(x86.AMOVQ, reservedRegisterForTemporary, callContextContinuationAddressOffset)

	c.exit(status)

	// Skip REX.W and the opcode of "movabsq": "0x48, 0xb8".
	c.absoluteAddresses = append(c.absoluteAddresses, &absoluteAddress{
		load: load, immediateOffset: 2, target: c.initializeReservedRegisters(),
	})
}

// compileExit implements compiler.compileExit for the amd64 architecture.
func (c *amd64Compiler) compileExit() {
	c.exit(jitCallStatusCodeReturned)
}

// exit adds instructions to give the control back to program.exec with the given status code.
func (c *amd64Compiler) exit(status jitCallStatusCode) {
	c.compileRegisterToMemory(x86.AMOVQ, reservedRegisterForStatePointer, callContextStatePointerOffset)

	setStatus := c.newProg()
	setStatus.As = x86.AMOVL
	setStatus.From.Type = obj.TYPE_CONST
	setStatus.From.Offset = int64(status)
	setStatus.To.Type = obj.TYPE_MEM
	setStatus.To.Reg = reservedRegisterForCallContext
	setStatus.To.Offset = callContextStatusCodeOffset
	c.addInstruction(setStatus)

	ret := c.newProg()
	ret.As = obj.ARET
	c.addInstruction(ret)
}

// compile implements compiler.compile for the amd64 architecture.
func (c *amd64Compiler) compile() (*assembledCode, error) {
	if len(c.outOfBoundsBranches) > 0 {
		c.setBranchTargetOnNext(c.outOfBoundsBranches...)
		// Note that the state pointer stored by exit is out of the tape, and never read by Go.
		c.exit(jitCallStatusCodeTapeOutOfBounds)
	}
	return c.assemble()
}
