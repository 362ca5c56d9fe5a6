package jit

import (
	"encoding/binary"
	"errors"
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
)

// codeBuffer wraps asm.Builder with the bookkeeping shared by the architecture-specific compilers.
type codeBuffer struct {
	builder *asm.Builder
	// setBranchTargetOnNextInstructions holds branch kind instructions (BR, conditional BR, etc)
	// where we want to set the next coming instruction as the destination of these BR instructions.
	setBranchTargetOnNextInstructions []*obj.Prog
	// afterAssembleCallback hold the callbacks which are called after assembling native code.
	afterAssembleCallback []func(code []byte) error
	// absoluteAddresses are the instructions loading a 64-bit immediate which must
	// become the absolute address of the target instruction.
	absoluteAddresses []*absoluteAddress
	// outOfBoundsBranches are the branches into the shared out of bounds exit.
	outOfBoundsBranches []*obj.Prog
	loops               loopLabelStack
}

type absoluteAddress struct {
	// load is the instruction with the 64-bit immediate.
	load *obj.Prog
	// immediateOffset is the position of the immediate within the encoded load.
	immediateOffset int64
	target          *obj.Prog
}

func newCodeBuffer(arch string) (*codeBuffer, error) {
	// We can choose arbitrary number instead of 1024 which indicates the cache size in the compiler.
	b, err := asm.NewBuilder(arch, 1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	return &codeBuffer{builder: b}, nil
}

func (b *codeBuffer) newProg() (prog *obj.Prog) {
	return b.builder.NewProg()
}

func (b *codeBuffer) addInstruction(prog *obj.Prog) {
	b.builder.AddInstruction(prog)
	for _, origin := range b.setBranchTargetOnNextInstructions {
		origin.To.SetTarget(prog)
	}
	b.setBranchTargetOnNextInstructions = nil
}

func (b *codeBuffer) setBranchTargetOnNext(progs ...*obj.Prog) {
	b.setBranchTargetOnNextInstructions = append(b.setBranchTargetOnNextInstructions, progs...)
}

// addNOP adds a NOP which is used as a branch target. This should be eventually optimized out by assembler.
func (b *codeBuffer) addNOP() (nop *obj.Prog) {
	nop = b.newProg()
	nop.As = obj.ANOP
	b.addInstruction(nop)
	return
}

// addBranch adds a branch kind instruction whose target is set later.
func (b *codeBuffer) addBranch(as obj.As) (br *obj.Prog) {
	br = b.newProg()
	br.As = as
	br.To.Type = obj.TYPE_BRANCH
	b.addInstruction(br)
	return
}

// assemble assembles the instructions and applies the post-assembly fixups.
func (b *codeBuffer) assemble() (*assembledCode, error) {
	if !b.loops.empty() {
		return nil, fmt.Errorf("loop open at %d is never closed", b.loops.labels[len(b.loops.labels)-1].open)
	}
	if len(b.setBranchTargetOnNextInstructions) > 0 {
		return nil, errors.New("BUG: branch without target at the end of code")
	}

	code := b.builder.Assemble()
	for _, cb := range b.afterAssembleCallback {
		if err := cb(code); err != nil {
			return nil, err
		}
	}

	ret := &assembledCode{code: code}
	for _, a := range b.absoluteAddresses {
		at := a.load.Pc + a.immediateOffset
		if at+8 > int64(len(code)) {
			return nil, fmt.Errorf("BUG: absolute address at %d is out of code", at)
		}
		binary.LittleEndian.PutUint64(code[at:at+8], uint64(a.target.Pc))
		ret.relocations = append(ret.relocations, at)
	}
	return ret, nil
}
