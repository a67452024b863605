// Completion: 85% - atomic load/store/add on shared variables
package main

// sharedAddr stages a shared variable's address into scratchGP via a
// RIP-relative LEA, the one addressing mode every atomic op needs
// before it can touch the variable itself.
func (e *Encoder) sharedAddr(label string) Register {
	scratch := GetRegisterOrPanic(scratchGP)
	e.emit(rex(true, false, false, scratch.Encoding&8 != 0))
	e.emit(0x8D) // LEA
	e.emit(0x05 | (scratch.Encoding&7)<<3)
	e.addLabelReloc(label, RelRel32Data)
	return scratch
}

// encodeAtomicLoad lowers `ATOMIC_LOAD dst, shared_label`. An aligned
// 64-bit load is already atomic on x86-64, so this is a plain MOV/
// MOVSD once the address is staged; dst's name decides which file.
func (e *Encoder) encodeAtomicLoad(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandLabel {
		return encodingErr("ATOMIC_LOAD requires [dst, shared label]")
	}
	dstName := ins.Operands[0].Reg
	addr := e.sharedAddr(ins.Operands[1].Label)
	if isXMMName(dstName) {
		e.emitXMMStack3(physicalXMM(dstName), addr, 0, true)
		return nil
	}
	dst := physicalGP(dstName)
	e.emit(rex(true, dst.Encoding&8 != 0, false, addr.Encoding&8 != 0))
	e.emit(0x8B)
	e.emitModRMBase(dst, addr, 0)
	return nil
}

// encodeAtomicStore lowers `ATOMIC_STORE shared_label, src`. A GP
// source is stored with XCHG, which is implicitly locked (src receives
// the old value, which codegen discards with src's temporary); an xmm
// source is a plain MOVSD store, atomic for an aligned 64-bit slot.
func (e *Encoder) encodeAtomicStore(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandLabel || ins.Operands[1].Kind != OperandReg {
		return encodingErr("ATOMIC_STORE requires [shared label, src]")
	}
	srcName := ins.Operands[1].Reg
	addr := e.sharedAddr(ins.Operands[0].Label)
	if isXMMName(srcName) {
		e.emitXMMStack3(physicalXMM(srcName), addr, 0, false)
		return nil
	}
	src := physicalGP(srcName)
	e.emit(rex(true, src.Encoding&8 != 0, false, addr.Encoding&8 != 0))
	e.emit(0x87) // XCHG r/m64, r64
	e.emitModRMBase(src, addr, 0)
	return nil
}

// encodeAtomicAdd lowers `ATOMIC_ADD shared_label, src` as LOCK XADD:
// the shared slot receives the sum and src the previous value, which
// codegen never reads back (genAtomicOp releases src's temporary right
// after), so no compare-and-swap retry is needed.
func (e *Encoder) encodeAtomicAdd(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandLabel || ins.Operands[1].Kind != OperandReg {
		return encodingErr("ATOMIC_ADD requires [shared label, src]")
	}
	src := physicalGP(ins.Operands[1].Reg)
	addr := e.sharedAddr(ins.Operands[0].Label)
	e.emit(0xF0) // LOCK
	e.emit(rex(true, src.Encoding&8 != 0, false, addr.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0xC1) // XADD r/m64, r64
	e.emitModRMBase(src, addr, 0)
	return nil
}

// encodeAtomicFAdd lowers `ATOMIC_FADD shared_label, src`: there is no
// locked floating-point add, so this stages the update through a
// compare-and-swap retry loop on the underlying 64-bit pattern -
// reload, add in the float unit, CMPXCHG back, retry on contention.
func (e *Encoder) encodeAtomicFAdd(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandLabel || ins.Operands[1].Kind != OperandReg {
		return encodingErr("ATOMIC_FADD requires [shared label, src]")
	}
	src := physicalXMM(ins.Operands[1].Reg)
	addr := e.sharedAddr(ins.Operands[0].Label)
	rax := GetRegisterOrPanic("rax")
	r11 := GetRegisterOrPanic("r11")
	tmp := GetRegisterOrPanic(scratchXMM)

	loopStart := e.Offset()
	// MOV rax, [addr]
	e.emit(rex(true, false, false, addr.Encoding&8 != 0))
	e.emit(0x8B)
	e.emitModRMBase(rax, addr, 0)
	// MOVQ tmp, rax (66 REX.W 0F 6E /r)
	e.emit(0x66)
	e.emit(rex(true, tmp.Encoding&8 != 0, false, rax.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x6E)
	e.emit(modrmRegReg(tmp, rax))
	// ADDSD tmp, src
	e.emit(0xF2)
	if tmp.Encoding&8 != 0 || src.Encoding&8 != 0 {
		e.emit(rex(false, tmp.Encoding&8 != 0, false, src.Encoding&8 != 0))
	}
	e.emit(0x0F)
	e.emit(0x58)
	e.emit(modrmRegReg(tmp, src))
	// MOVQ r11, tmp (66 REX.W 0F 7E /r, reg=tmp, rm=r11)
	e.emit(0x66)
	e.emit(rex(true, tmp.Encoding&8 != 0, false, r11.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x7E)
	e.emit(modrmRegReg(tmp, r11))
	// LOCK CMPXCHG [addr], r11
	e.emit(0xF0)
	e.emit(rex(true, r11.Encoding&8 != 0, false, addr.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0xB1)
	e.emitModRMBase(r11, addr, 0)
	// JNE loopStart (rel8 - the loop body above is well under 127 bytes)
	jccEnd := e.Offset() + 2
	e.emit(0x75)
	e.emit(byte(int8(loopStart - jccEnd)))
	return nil
}

// emitXMMStack3 is emitXMMStack generalized to an arbitrary base
// register instead of RSP, for the atomic load/store paths that
// address a shared variable rather than a spill slot.
func (e *Encoder) emitXMMStack3(reg, base Register, disp int32, load bool) {
	e.emit(0xF2)
	if reg.Encoding&8 != 0 || base.Encoding&8 != 0 {
		e.emit(rex(false, reg.Encoding&8 != 0, false, base.Encoding&8 != 0))
	}
	e.emit(0x0F)
	if load {
		e.emit(0x10)
	} else {
		e.emit(0x11)
	}
	e.emitModRMBase(reg, base, disp)
}
