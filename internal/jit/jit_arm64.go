// This file implements the compiler for arm64 target.
// Please refer to https://developer.arm.com/documentation/102374/latest/
// if unfamiliar with arm64 instructions and semantics.
//
// Note: we use arm64 pkg as the assembler (github.com/twitchyliquid64/golang-asm/obj/arm64)
// which has different notation from the original arm64 assembly. For example,
// 64-bit variant ldr, str, stur are all corresponding to arm64.AMOVD.
// Please refer to https://pkg.go.dev/cmd/internal/obj/arm64.

package jit

import (
	"fmt"
	"math"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/tetratelabs/bfjit/internal/bfir"
)

// Reserved registers.
// Note: R18 is the platform register, R26 to R28 are used by Go, R29 is the frame pointer
// and R30 is the link register, so we never touch them.
const (
	// reservedRegisterForCallContext holds the pointer to callContext. This is set by jitcall.
	reservedRegisterForCallContext = arm64.REG_R0
	// reservedRegisterForStatePointer holds the absolute address of the current cell.
	reservedRegisterForStatePointer = arm64.REG_R1
	reservedRegisterForTapeStart    = arm64.REG_R2
	reservedRegisterForTapeEnd      = arm64.REG_R3
	reservedRegisterForTemporary    = arm64.REG_R4
	zeroRegister                    = arm64.REGZERO
)

// archContext is embedded in callContext in order to store architecture-specific data.
type archContext struct {
	// jitCallReturnAddress holds the absolute return address for jitcall.
	// The value is set whenever jitcall is executed and done in jit_arm64.s
	// Native code can return back to the program.exec's main loop back by
	// executing "ret" instruction with this value. See arm64Compiler.exit.
	jitCallReturnAddress uintptr
}

// callContextArchContextJITCallReturnAddressOffset is the offset of archContext.jitCallReturnAddress in callContext.
const callContextArchContextJITCallReturnAddressOffset = 40

// jitcall is implemented in jit_arm64.s as a Go Assembler function.
// This is used by program.exec to enter the JITed native code.
// codeSegment is the absolute address of the instruction to start at.
// ctx is the pointer to the "*callContext" as uintptr.
func jitcall(codeSegment, ctx uintptr)

type arm64Compiler struct {
	*codeBuffer
	tapeSize uint64
}

func newCompiler(tapeSize int) (compiler, error) {
	b, err := newCodeBuffer("arm64")
	if err != nil {
		return nil, err
	}
	return &arm64Compiler{codeBuffer: b, tapeSize: uint64(tapeSize)}, nil
}

// compileConstToRegisterInstruction adds an instruction where source operand is a constant and destination is a register.
func (c *arm64Compiler) compileConstToRegisterInstruction(instruction obj.As, constValue int64, destinationRegister int16) {
	applyConst := c.newProg()
	applyConst.As = instruction
	applyConst.From.Type = obj.TYPE_CONST
	// Note: in raw arm64 assembly, immediates larger than 16-bits
	// are not supported, but the assembler takes care of this and
	// emits corresponding (at most) 4-instructions to load such large constants.
	applyConst.From.Offset = constValue
	applyConst.To.Type = obj.TYPE_REG
	applyConst.To.Reg = destinationRegister
	c.addInstruction(applyConst)
}

// compileMemoryToRegisterInstruction adds an instruction where source operand points a memory location and destination is a register.
func (c *arm64Compiler) compileMemoryToRegisterInstruction(instruction obj.As, sourceBaseReg int16, sourceOffsetConst int64, destinationReg int16) (inst *obj.Prog) {
	inst = c.newProg()
	inst.As = instruction
	inst.From.Type = obj.TYPE_MEM
	inst.From.Reg = sourceBaseReg
	inst.From.Offset = sourceOffsetConst
	inst.To.Type = obj.TYPE_REG
	inst.To.Reg = destinationReg
	c.addInstruction(inst)
	return
}

// compileRegisterToMemoryInstruction adds an instruction where destination operand points a memory location and source is a register.
func (c *arm64Compiler) compileRegisterToMemoryInstruction(instruction obj.As, sourceRegister int16, destinationBaseRegister int16, destinationOffsetConst int64) {
	inst := c.newProg()
	inst.As = instruction
	inst.To.Type = obj.TYPE_MEM
	inst.To.Reg = destinationBaseRegister
	inst.To.Offset = destinationOffsetConst
	inst.From.Type = obj.TYPE_REG
	inst.From.Reg = sourceRegister
	c.addInstruction(inst)
}

// compileRegisterToRegisterInstruction adds an instruction where both destination and source operands are registers.
func (c *arm64Compiler) compileRegisterToRegisterInstruction(instruction obj.As, from, to int16) {
	inst := c.newProg()
	inst.As = instruction
	inst.To.Type = obj.TYPE_REG
	inst.To.Reg = to
	inst.From.Type = obj.TYPE_REG
	inst.From.Reg = from
	c.addInstruction(inst)
}

// compileTwoRegistersToNoneInstruction adds an instruction which takes two source operands on registers.
func (c *arm64Compiler) compileTwoRegistersToNoneInstruction(instruction obj.As, src1, src2 int16) {
	inst := c.newProg()
	inst.As = instruction
	// TYPE_NONE indicates that this instruction doesn't have a destination.
	inst.To.Type = obj.TYPE_NONE
	inst.From.Type = obj.TYPE_REG
	inst.From.Reg = src1
	inst.Reg = src2
	c.addInstruction(inst)
}

// compilePreamble implements compiler.compilePreamble for the arm64 architecture.
func (c *arm64Compiler) compilePreamble() {
	// The assembler skips the first instruction so we intentionally add NOP here.
	c.addNOP()
	c.initializeReservedRegisters()
}

// initializeReservedRegisters must be called at the very beginning and all the
// continuations after returning to Go. Returns the first instruction.
func (c *arm64Compiler) initializeReservedRegisters() (first *obj.Prog) {
	first = c.compileMemoryToRegisterInstruction(arm64.AMOVD,
		reservedRegisterForCallContext, callContextTapeStartOffset, reservedRegisterForTapeStart)
	c.compileMemoryToRegisterInstruction(arm64.AMOVD,
		reservedRegisterForCallContext, callContextTapeEndOffset, reservedRegisterForTapeEnd)
	c.compileMemoryToRegisterInstruction(arm64.AMOVD,
		reservedRegisterForCallContext, callContextStatePointerOffset, reservedRegisterForStatePointer)
	return
}

// compileMoveLeft implements compiler.compileMoveLeft for the arm64 architecture.
func (c *arm64Compiler) compileMoveLeft(o *bfir.OperationMoveLeft) {
	c.compileMove(arm64.ASUB, o.Count)
}

// compileMoveRight implements compiler.compileMoveRight for the arm64 architecture.
func (c *arm64Compiler) compileMoveRight(o *bfir.OperationMoveRight) {
	c.compileMove(arm64.AADD, o.Count)
}

// maxAddImmediate is the largest immediate of ADD and SUB without shift.
const maxAddImmediate = 1<<12 - 1

func (c *arm64Compiler) compileMove(instruction obj.As, count uint64) {
	if count >= c.tapeSize {
		// Leaves the tape wherever the state pointer is. This also keeps the pointer arithmetic below from wrapping.
		c.outOfBoundsBranches = append(c.outOfBoundsBranches, c.addBranch(arm64.AB))
		return
	}

	if count > maxAddImmediate {
		// The assembler can take care of larger immediates but it uses "its" temporary register
		// which we cannot track, so we load the count into "our" temporary register.
		c.compileConstToRegisterInstruction(arm64.AMOVD, int64(count), reservedRegisterForTemporary)
		c.compileRegisterToRegisterInstruction(instruction, reservedRegisterForTemporary, reservedRegisterForStatePointer)
	} else {
		c.compileConstToRegisterInstruction(instruction, int64(count), reservedRegisterForStatePointer)
	}

	// Unsigned comparisons also catch the pointer wrapping around below zero.
	c.compileTwoRegistersToNoneInstruction(arm64.ACMP, reservedRegisterForTapeStart, reservedRegisterForStatePointer)
	c.outOfBoundsBranches = append(c.outOfBoundsBranches, c.addBranch(arm64.ABLO))
	c.compileTwoRegistersToNoneInstruction(arm64.ACMP, reservedRegisterForTapeEnd, reservedRegisterForStatePointer)
	c.outOfBoundsBranches = append(c.outOfBoundsBranches, c.addBranch(arm64.ABHS))
}

// compileIncrement implements compiler.compileIncrement for the arm64 architecture.
func (c *arm64Compiler) compileIncrement(o *bfir.OperationIncrement) {
	c.compileUpdateCell(arm64.AADDW, o.Count)
}

// compileDecrement implements compiler.compileDecrement for the arm64 architecture.
func (c *arm64Compiler) compileDecrement(o *bfir.OperationDecrement) {
	c.compileUpdateCell(arm64.ASUBW, o.Count)
}

func (c *arm64Compiler) compileUpdateCell(instruction obj.As, count byte) {
	if count == 0 {
		return
	}
	c.compileLoadCurrentCell()
	c.compileConstToRegisterInstruction(instruction, int64(count), reservedRegisterForTemporary)
	// Storing the low byte is the wrap around.
	c.compileRegisterToMemoryInstruction(arm64.AMOVB, reservedRegisterForTemporary, reservedRegisterForStatePointer, 0)
}

// compileLoadCurrentCell zero-extends the current cell into the temporary register.
func (c *arm64Compiler) compileLoadCurrentCell() {
	c.compileMemoryToRegisterInstruction(arm64.AMOVBU, reservedRegisterForStatePointer, 0, reservedRegisterForTemporary)
}

// compileCurrentCellBranch loads the current cell and adds a compare-and-branch on it.
func (c *arm64Compiler) compileCurrentCellBranch(instruction obj.As) (br *obj.Prog) {
	c.compileLoadCurrentCell()
	br = c.newProg()
	br.As = instruction
	br.From.Type = obj.TYPE_REG
	br.From.Reg = reservedRegisterForTemporary
	br.To.Type = obj.TYPE_BRANCH
	c.addInstruction(br)
	return
}

// compileLoopOpen implements compiler.compileLoopOpen for the arm64 architecture.
//
//	ldrb w4, [x1]
//	cbz w4, .loop_end
//	.loop_body:
func (c *arm64Compiler) compileLoopOpen(index int, _ *bfir.OperationLoopOpen) {
	skip := c.compileCurrentCellBranch(arm64.ACBZW)
	c.loops.push(&loopLabel{open: index, skipBranch: skip, bodyBegin: c.addNOP()})
}

// compileLoopClose implements compiler.compileLoopClose for the arm64 architecture.
//
//	ldrb w4, [x1]
//	cbnz w4, .loop_body
//	.loop_end:
func (c *arm64Compiler) compileLoopClose(_ int, o *bfir.OperationLoopClose) error {
	l, err := c.loops.pop(o.Open)
	if err != nil {
		return err
	}
	c.compileCurrentCellBranch(arm64.ACBNZW).To.SetTarget(l.bodyBegin)
	c.setBranchTargetOnNext(l.skipBranch)
	return nil
}

// compileReadByte implements compiler.compileReadByte for the arm64 architecture.
func (c *arm64Compiler) compileReadByte() {
	c.compileCallGo(jitCallStatusCodeCallReadByte)
}

// compileWriteByte implements compiler.compileWriteByte for the arm64 architecture.
func (c *arm64Compiler) compileWriteByte() {
	c.compileCallGo(jitCallStatusCodeCallWriteByte)
}

// compileCallGo exits with status, and continues at the next instruction once Go jumps back
// to the continuation address.
func (c *arm64Compiler) compileCallGo(status jitCallStatusCode) {
	readAddress := c.compileReadInstructionAddress(reservedRegisterForTemporary)
	c.compileRegisterToMemoryInstruction(arm64.AMOVD,
		reservedRegisterForTemporary, reservedRegisterForCallContext, callContextContinuationAddressOffset)
	c.exit(status)
	c.setReadInstructionAddressTarget(readAddress, c.initializeReservedRegisters())
}

// compileReadInstructionAddress adds an ADR instruction to read the absolute address of
// a following instruction into destinationRegister. The target is set with setReadInstructionAddressTarget.
//
// Note: we cannot emit the "ADR REG, $(target's offset from here)" due to the
// incapability of the assembler. Instead, we emit "ADR REG, ." meaning that
// "reading the current program counter" = "reading the absolute address of this ADR instruction".
// And then, after compilation phase, we directly edit the native code slice so that
// it can properly read the target instruction's absolute address.
func (c *arm64Compiler) compileReadInstructionAddress(destinationRegister int16) (readAddress *obj.Prog) {
	readAddress = c.newProg()
	readAddress.As = arm64.AADR
	readAddress.From.Type = obj.TYPE_BRANCH
	readAddress.To.Type = obj.TYPE_REG
	readAddress.To.Reg = destinationRegister
	c.addInstruction(readAddress)
	return
}

func (c *arm64Compiler) setReadInstructionAddressTarget(readAddress, target *obj.Prog) {
	// Note: this is the closure over readAddress and target (*obj.Prog).
	c.afterAssembleCallback = append(c.afterAssembleCallback, func(code []byte) error {
		offset := target.Pc - readAddress.Pc
		if offset < 0 || offset > math.MaxUint8 {
			// We could support up to 20-bit integer, but byte should be enough for our impl.
			return fmt.Errorf("BUG: too large offset for read: %d", offset)
		}

		// Now ready to write an offset byte.
		v := byte(offset)
		// arm64 has 4-bytes = 32-bit fixed-length instruction.
		adrInstructionBytes := code[readAddress.Pc : readAddress.Pc+4]
		// According to the binary format of ADR instruction in arm64:
		// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/ADR--Form-PC-relative-address-?lang=en
		//
		// The 0 to 1 bits live on 29 to 30 bits of the instruction.
		adrInstructionBytes[3] |= (v & 0b00000011) << 5
		// The 2 to 4 bits live on 5 to 7 bits of the instruction.
		adrInstructionBytes[0] |= (v & 0b00011100) << 3
		// The 5 to 7 bits live on 8 to 10 bits of the instruction.
		adrInstructionBytes[1] |= (v & 0b11100000) >> 5
		return nil
	})
}

// compileExit implements compiler.compileExit for the arm64 architecture.
func (c *arm64Compiler) compileExit() {
	c.exit(jitCallStatusCodeReturned)
}

// exit adds instructions to give the control back to program.exec with the given status code.
func (c *arm64Compiler) exit(status jitCallStatusCode) {
	c.compileRegisterToMemoryInstruction(arm64.AMOVD,
		reservedRegisterForStatePointer, reservedRegisterForCallContext, callContextStatePointerOffset)

	if status != 0 {
		c.compileConstToRegisterInstruction(arm64.AMOVW, int64(status), reservedRegisterForTemporary)
		c.compileRegisterToMemoryInstruction(arm64.AMOVWU,
			reservedRegisterForTemporary, reservedRegisterForCallContext, callContextStatusCodeOffset)
	} else {
		// If the status == 0, we use zero register to store zero.
		c.compileRegisterToMemoryInstruction(arm64.AMOVWU,
			zeroRegister, reservedRegisterForCallContext, callContextStatusCodeOffset)
	}

	// The return address to the Go code is stored in archContext.jitCallReturnAddress which
	// is embedded in callContext. We load the value to the tmpRegister, and then
	// invoke RET with that register.
	c.compileMemoryToRegisterInstruction(arm64.AMOVD,
		reservedRegisterForCallContext, callContextArchContextJITCallReturnAddressOffset, reservedRegisterForTemporary)

	ret := c.newProg()
	ret.As = obj.ARET
	ret.To.Type = obj.TYPE_REG
	ret.To.Reg = reservedRegisterForTemporary
	c.addInstruction(ret)
}

// compile implements compiler.compile for the arm64 architecture.
func (c *arm64Compiler) compile() (*assembledCode, error) {
	if len(c.outOfBoundsBranches) > 0 {
		c.setBranchTargetOnNext(c.outOfBoundsBranches...)
		// Note that the state pointer stored by exit is out of the tape, and never read by Go.
		c.exit(jitCallStatusCodeTapeOutOfBounds)
	}
	return c.assemble()
}
