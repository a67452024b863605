// Completion: 100% - IMUL/IDIV with CQO sign extension
package main

// encodeMul lowers `MUL dst, src` as the two-operand IMUL form
// (0F AF /r): dst = dst * src, signed.
func (e *Encoder) encodeMul(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandReg {
		return encodingErr("MUL requires two register operands")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	src := physicalGP(ins.Operands[1].Reg)
	e.emit(rex(true, dst.Encoding&8 != 0, false, src.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0xAF)
	e.emit(modrmRegReg(dst, src))
	return nil
}

// encodeDivRem lowers `DIV dst, src` / `REM dst, src`: x86 IDIV takes
// an implicit RDX:RAX dividend and a single register divisor,
// producing the quotient in RAX and remainder in RDX. dst is shuffled
// into RAX first (unless it's already there), the divisor is shuffled
// out of RDX/RAX if it collides, CQO sign-extends RAX into RDX, and
// the result is moved back into dst from whichever of RAX/RDX holds
// the operation's half.
func (e *Encoder) encodeDivRem(ins Instruction, rem bool) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandReg {
		return encodingErr("DIV/REM requires two register operands")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	src := physicalGP(ins.Operands[1].Reg)
	rax := GetRegisterOrPanic("rax")
	rdx := GetRegisterOrPanic("rdx")

	divisor := src
	if src.Name == "rax" || src.Name == "rdx" {
		// Divisor collides with the implicit dividend registers;
		// stage it through scratchGP (rbx), which never backs a
		// virtual register (reg.go).
		scratch := GetRegisterOrPanic(scratchGP)
		e.emitRegRegOp(0x89, scratch, src)
		divisor = scratch
	}
	if dst.Name != "rax" {
		e.emitRegRegOp(0x89, rax, dst)
	}
	e.emit(0x48) // REX.W
	e.emit(0x99) // CQO: sign-extend RAX into RDX:RAX
	e.emit(rex(true, false, false, divisor.Encoding&8 != 0))
	e.emit(0xF7)
	e.emit(modrmRegOpcode(7, divisor)) // IDIV r/m64 (/7)

	result := rax
	if rem {
		result = rdx
	}
	if dst.Name != result.Name {
		e.emitRegRegOp(0x89, dst, result)
	}
	return nil
}
