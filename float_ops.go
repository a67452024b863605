// Completion: 90% - SSE2 scalar-double float unit: MOV/ADD/SUB/MUL/DIV/CMP/convert
package main

import "math"

// encodeFMov lowers `FMOV xmm, src`. src is either another xmm
// register (codegen emits this for float variable loads and call
// result capture) or a float immediate carried as two manifest slots
// (codegen's genLiteralInto); ParseManifest/driver.go reassembles the
// immediate's raw bits from the second slot before this is called, so
// src.FImm already holds the value. There is no `FMOV xmm, label` form
// - float literals route through a GP-staged immediate instead of a
// memory operand, so .rdata never needs a float-constant pool.
func (e *Encoder) encodeFMov(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg {
		return encodingErr("FMOV requires an xmm destination")
	}
	dst := physicalXMM(ins.Operands[0].Reg)
	src := ins.Operands[1]

	switch src.Kind {
	case OperandReg:
		// MOVSD xmm1, xmm2/m64 (F2 0F 10 /r).
		e.emit(0xF2)
		if dst.Encoding&8 != 0 || physicalXMM(src.Reg).Encoding&8 != 0 {
			e.emit(rex(false, dst.Encoding&8 != 0, false, physicalXMM(src.Reg).Encoding&8 != 0))
		}
		e.emit(0x0F)
		e.emit(0x10)
		e.emit(modrmRegReg(dst, physicalXMM(src.Reg)))
	case OperandImm:
		bits := math.Float64bits(src.FImm)
		scratch := GetRegisterOrPanic("r11")
		e.emit(rex(true, false, false, scratch.Encoding&8 != 0))
		e.emit(0xB8 + scratch.Encoding&7)
		e.emitU64(bits)
		// MOVQ xmm, r/m64 (66 REX.W 0F 6E /r).
		e.emit(0x66)
		e.emit(rex(true, dst.Encoding&8 != 0, false, scratch.Encoding&8 != 0))
		e.emit(0x0F)
		e.emit(0x6E)
		e.emit(modrmRegReg(dst, scratch))
	default:
		return encodingErr("FMOV source must be a register or float immediate")
	}
	return nil
}

// encodeFArith lowers FADD/FSUB/FMUL/FDIV as the matching SSE2 scalar
// double opcode (ADDSD=0x58, SUBSD=0x5C, MULSD=0x59, DIVSD=0x5E), all
// sharing the `F2 0F op /r` shape with dst = dst op src.
func (e *Encoder) encodeFArith(ins Instruction, opcode byte) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandReg {
		return encodingErr(ins.Op.String() + " requires two xmm operands")
	}
	dst := physicalXMM(ins.Operands[0].Reg)
	src := physicalXMM(ins.Operands[1].Reg)
	e.emit(0xF2)
	if dst.Encoding&8 != 0 || src.Encoding&8 != 0 {
		e.emit(rex(false, dst.Encoding&8 != 0, false, src.Encoding&8 != 0))
	}
	e.emit(0x0F)
	e.emit(opcode)
	e.emit(modrmRegReg(dst, src))
	return nil
}

// encodeFCmp lowers FCMP via UCOMISD, which sets CF/ZF/PF rather than
// SF/OF/ZF - the encoder's caller records lastCompareWasFloat so the
// following CJMP picks the unsigned condition family (jmp.go,
// condOpcode).
func (e *Encoder) encodeFCmp(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandReg {
		return encodingErr("FCMP requires two xmm operands")
	}
	a := physicalXMM(ins.Operands[0].Reg)
	b := physicalXMM(ins.Operands[1].Reg)
	e.emit(0x66) // mandatory prefix for UCOMISD (vs UCOMISS)
	if a.Encoding&8 != 0 || b.Encoding&8 != 0 {
		e.emit(rex(false, a.Encoding&8 != 0, false, b.Encoding&8 != 0))
	}
	e.emit(0x0F)
	e.emit(0x2E)
	e.emit(modrmRegReg(a, b))
	return nil
}

// encodeCvtSi2Sd lowers `CVTSI2SD xmm_dst, gp_src` (F2 0F 2A /r).
func (e *Encoder) encodeCvtSi2Sd(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandReg {
		return encodingErr("CVTSI2SD requires [xmm dst, gp src]")
	}
	dst := physicalXMM(ins.Operands[0].Reg)
	src := physicalGP(ins.Operands[1].Reg)
	e.emit(0xF2)
	e.emit(rex(true, dst.Encoding&8 != 0, false, src.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x2A)
	e.emit(modrmRegReg(dst, src))
	return nil
}

// encodeCvtSd2Si lowers `CVTSD2SI gp_dst, xmm_src` (F2 0F 2D /r),
// which rounds by the MXCSR rounding mode (round-to-nearest-even by
// default) rather than truncating toward zero; the truncating form,
// CVTTSD2SI (F2 0F 2C), is not used here.
func (e *Encoder) encodeCvtSd2Si(ins Instruction) *CompilerError {
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandReg {
		return encodingErr("CVTSD2SI requires [gp dst, xmm src]")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	src := physicalXMM(ins.Operands[1].Reg)
	e.emit(0xF2)
	e.emit(rex(true, dst.Encoding&8 != 0, false, src.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x2D)
	e.emit(modrmRegReg(dst, src))
	return nil
}

// emitXMMStack is emitLoadStore's xmm counterpart: `MOVSD xmm,
// [RSP+disp]` (load) or `MOVSD [RSP+disp], xmm` (store), used for
// float spill/reload (register_allocator.go's MFStore/MFLoad).
func (e *Encoder) emitXMMStack(reg Register, disp int32, load bool) {
	e.emit(0xF2)
	if reg.Encoding&8 != 0 {
		e.emit(rex(false, reg.Encoding&8 != 0, false, false))
	}
	e.emit(0x0F)
	if load {
		e.emit(0x10) // MOVSD xmm, m64
	} else {
		e.emit(0x11) // MOVSD m64, xmm
	}
	e.emitModRMStack(reg, disp)
}
