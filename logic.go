// Completion: 100% - NOT, SHL, SHR
package main

// encodeNot lowers `NOT dst` (one's complement, the only unary ALU op
// MISA carries) as F7 /2.
func (e *Encoder) encodeNot(ins Instruction) *CompilerError {
	if len(ins.Operands) != 1 || ins.Operands[0].Kind != OperandReg {
		return encodingErr("NOT requires a single register operand")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	e.emit(rex(true, false, false, dst.Encoding&8 != 0))
	e.emit(0xF7)
	e.emit(modrmRegOpcode(2, dst))
	return nil
}

// encodeShift lowers `SHL dst, src`/`SHR dst, src`. x86 shifts by a
// variable count require the count in CL; a shift by an immediate
// encodes it directly instead (C1 /ext ib).
func (e *Encoder) encodeShift(ins Instruction, ext byte) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg {
		return encodingErr("shift requires a register destination")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	src := ins.Operands[1]

	switch src.Kind {
	case OperandImm:
		e.emit(rex(true, false, false, dst.Encoding&8 != 0))
		e.emit(0xC1)
		e.emit(modrmRegOpcode(ext, dst))
		e.emit(byte(src.Imm))
	case OperandReg:
		srcReg := physicalGP(src.Reg)
		if srcReg.Name != "rcx" {
			// Shuffle the count into RCX; MISA's allocator rarely
			// hands the shift a count already resident there.
			e.emitRegRegOp(0x89, GetRegisterOrPanic("rcx"), srcReg)
		}
		e.emit(rex(true, false, false, dst.Encoding&8 != 0))
		e.emit(0xD3) // SHL/SHR r/m64, CL
		e.emit(modrmRegOpcode(ext, dst))
	default:
		return encodingErr("shift count must be a register or immediate")
	}
	return nil
}

// GetRegisterOrPanic is used only where the register name is an
// encoder-internal constant known to exist (e.g. "rcx" as the
// mandatory shift-count register), never user-controlled input.
func GetRegisterOrPanic(name string) Register {
	r, ok := GetRegister(name)
	if !ok {
		panic("aurora: unknown physical register " + name)
	}
	return r
}
