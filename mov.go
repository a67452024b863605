// Completion: 100% - MOV reg,reg / reg,imm64 / reg,label and stack load/store
package main

// encodeMov lowers `MOV dst, src` where src is a register, a 64-bit
// immediate, or a label (a string literal's address or a shared
// variable's RIP-relative address). An xmm destination is handed to
// encodeFMov; codegen emits FMOV for every float move, because
// DecodeSlot (misa.go's regNameFor) reads MOV's register operands
// back as GP names.
func (e *Encoder) encodeMov(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg {
		return encodingErr("MOV requires a register destination")
	}
	dstName := ins.Operands[0].Reg
	src := ins.Operands[1]

	if isXMMName(dstName) {
		return e.encodeFMov(ins)
	}
	dst := physicalGP(dstName)

	switch src.Kind {
	case OperandReg:
		e.emitRegRegOp(0x89, dst, physicalGP(src.Reg))
	case OperandImm:
		// MOV r64, imm64: REX.W + (B8+rd) + imm64.
		e.emit(rex(true, false, false, dst.Encoding&8 != 0))
		e.emit(0xB8 + dst.Encoding&7)
		e.emitU64(uint64(src.Imm))
	case OperandLabel:
		// LEA dst, [rip+label]: data addresses (strings, shared
		// variables) are always RIP-relative in a position-
		// independent-friendly image.
		e.emit(rex(true, false, false, dst.Encoding&8 != 0))
		e.emit(0x8D)
		e.emit(0x05 | (dst.Encoding&7)<<3)
		e.addLabelReloc(src.Label, RelRel32Data)
	}
	return nil
}

func isXMMName(name string) bool {
	return len(name) >= 4 && name[:3] == "xmm"
}

// encodeStackAccess lowers MLoad/MLoadStack (load=true) and
// MStore/MStoreStack (load=false): operands are [reg, imm byte offset
// of the slot within the spill area].
// The register allocator (register_allocator.go) is the only caller
// that emits these, always with this operand shape.
func (e *Encoder) encodeStackAccess(ins Instruction, load bool) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandImm {
		return encodingErr("stack access requires [reg, imm slot]")
	}
	regName := ins.Operands[0].Reg
	disp := stackDisp(ins.Operands[1].Imm)
	if isXMMName(regName) {
		e.emitXMMStack(physicalXMM(regName), disp, load)
		return nil
	}
	e.emitLoadStore(physicalGP(regName), disp, load)
	return nil
}
