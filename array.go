// Completion: 80% - Array allocation and SIB-indexed load/store
package main

// encodeArrayAlloc lowers `ARRAY_ALLOC dst, count`: arrays live in the
// same spill-style stack region as ordinary spilled variables (spec
// 4.5), so allocation just reserves count*8 bytes from the function's
// running slot counter and loads dst with the block's address via LEA
// - every later ARRAY_LOAD/ARRAY_STORE addresses relative to dst, not
// to the slot index again.
func (e *Encoder) encodeArrayAlloc(ins Instruction, cx *frameContext) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandImm {
		return encodingErr("ARRAY_ALLOC requires [dst, count]")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	count := ins.Operands[1].Imm
	disp := stackDisp(int64(cx.nextArraySlot) * spillSlotSize)
	cx.nextArraySlot += int32(count)

	e.emit(rex(true, dst.Encoding&8 != 0, false, false))
	e.emit(0x8D) // LEA
	e.emitModRMStack(dst, disp)
	return nil
}

// encodeArrayLoad lowers `ARRAY_LOAD dst, base, idx` as
// `MOV dst, [base + idx*8]`.
func (e *Encoder) encodeArrayLoad(ins Instruction) *CompilerError {
	if len(ins.Operands) != 3 {
		return encodingErr("ARRAY_LOAD requires [dst, base, idx]")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	base := physicalGP(ins.Operands[1].Reg)
	idx := physicalGP(ins.Operands[2].Reg)
	e.emit(rex(true, dst.Encoding&8 != 0, idx.Encoding&8 != 0, base.Encoding&8 != 0))
	e.emit(0x8B)
	e.emitSIB(dst, base, idx, 3)
	return nil
}

// encodeArrayStore lowers `ARRAY_STORE base, idx, src` as
// `MOV [base + idx*8], src`. idx is a register for an indexed
// assignment (genArrayAssign, addressed through a SIB byte) or a
// compile-time immediate for an array literal's element (folded into
// the displacement).
func (e *Encoder) encodeArrayStore(ins Instruction) *CompilerError {
	if len(ins.Operands) != 3 {
		return encodingErr("ARRAY_STORE requires [base, idx, src]")
	}
	base := physicalGP(ins.Operands[0].Reg)
	src := physicalGP(ins.Operands[2].Reg)
	if ins.Operands[1].Kind == OperandReg {
		idx := physicalGP(ins.Operands[1].Reg)
		e.emit(rex(true, src.Encoding&8 != 0, idx.Encoding&8 != 0, base.Encoding&8 != 0))
		e.emit(0x89)
		e.emitSIB(src, base, idx, 3)
		return nil
	}
	disp := int32(ins.Operands[1].Imm * 8)
	e.emit(rex(true, src.Encoding&8 != 0, false, base.Encoding&8 != 0))
	e.emit(0x89)
	e.emitModRMBase(src, base, disp)
	return nil
}

// emitSIB writes the ModRM+SIB pair for `[base + index*2^scaleLog2]`
// with reg in the ModRM reg field; mod=00 (no displacement) since
// ARRAY_ALLOC always hands back a base pointer with the full offset
// already folded in via LEA.
func (e *Encoder) emitSIB(reg, base, index Register, scaleLog2 byte) {
	e.emit(0x04 | (reg.Encoding&7)<<3) // mod=00, rm=100 (SIB follows)
	e.emit(scaleLog2<<6 | (index.Encoding&7)<<3 | (base.Encoding & 7))
}

// emitModRMBase writes a `[base + disp]` operand with reg in the
// ModRM reg field, for an arbitrary GP base register (not just RSP).
// A SIB byte is required whenever the base's low 3 encoding bits are
// 100 (RSP or R12), since that rm value is reserved for the
// SIB-follows form; every other base encodes directly.
func (e *Encoder) emitModRMBase(reg, base Register, disp int32) {
	needsSIB := base.Encoding&7 == 4
	mod := byte(0x80) // mod=10, disp32
	if disp >= -128 && disp <= 127 {
		mod = 0x40 // mod=01, disp8
	}
	if needsSIB {
		e.emit(mod | (reg.Encoding&7)<<3 | 0x04)
		e.emit(0x20 | (base.Encoding & 7)) // scale=0, index=100 (none), base
	} else {
		e.emit(mod | (reg.Encoding&7)<<3 | (base.Encoding & 7))
	}
	if mod == 0x40 {
		e.emit(byte(int8(disp)))
	} else {
		e.emitU32(uint32(disp))
	}
}
