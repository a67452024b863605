// Completion: 100% - unconditional/conditional jumps, calls, ret, halt, svc dispatch
package main

// condOpcode maps a MISA CondCode to the 0x0F-prefixed near-jump
// condition byte, selecting the signed family for integer compares
// and the unsigned family for float compares per UCOMISD's CF/ZF
// semantics (property 7).
func condOpcode(cond CondCode, floatCompare bool) byte {
	if floatCompare {
		switch cond {
		case CondEQ:
			return 0x84 // JE
		case CondNE:
			return 0x85 // JNE
		case CondLT:
			return 0x82 // JB
		case CondLE:
			return 0x86 // JBE
		case CondGT:
			return 0x87 // JA
		case CondGE:
			return 0x83 // JAE
		}
	}
	switch cond {
	case CondEQ:
		return 0x84 // JE
	case CondNE:
		return 0x85 // JNE
	case CondLT:
		return 0x8C // JL
	case CondLE:
		return 0x8E // JLE
	case CondGT:
		return 0x8F // JG
	case CondGE:
		return 0x8D // JGE
	}
	return 0x85
}

// encodeCJmp lowers `CJMP cond, label`. floatCompare is the driver's
// lastCompareWasFloat flag for the compare that precedes this branch.
func (e *Encoder) encodeCJmp(ins Instruction, floatCompare bool) *CompilerError {
	if len(ins.Operands) != 1 || ins.Operands[0].Kind != OperandLabel {
		return encodingErr("CJMP requires a label operand")
	}
	e.emit(0x0F)
	e.emit(condOpcode(ins.Cond, floatCompare))
	e.addLabelReloc(ins.Operands[0].Label, RelRel32)
	return nil
}

// encodeJmp lowers `JMP label` as a near, 32-bit-displacement jump.
func (e *Encoder) encodeJmp(ins Instruction) *CompilerError {
	if len(ins.Operands) != 1 || ins.Operands[0].Kind != OperandLabel {
		return encodingErr("JMP requires a label operand")
	}
	e.emit(0xE9)
	e.addLabelReloc(ins.Operands[0].Label, RelRel32)
	return nil
}

// encodeCall lowers `CALL label` as a near, 32-bit-displacement call.
func (e *Encoder) encodeCall(ins Instruction) *CompilerError {
	if len(ins.Operands) != 1 || ins.Operands[0].Kind != OperandLabel {
		return encodingErr("CALL requires a label operand")
	}
	e.emit(0xE8)
	e.addLabelReloc(ins.Operands[0].Label, RelRel32)
	return nil
}

// encodeEpilogue lowers MRet. `add rsp, frameSize` undoes the
// prologue's subtraction (skipped for frames the driver decided
// needed none) before the bare RET.
func (e *Encoder) encodeEpilogue(cx *frameContext) {
	if cx.frameSize > 0 {
		rsp := GetRegisterOrPanic("rsp")
		e.emitRegImmOp(0, 0x83, 0x81, rsp, int64(cx.frameSize))
	}
	e.emit(0xC3)
}

// encodeHalt lowers MHALT: the exit code sits in r0/RAX by codegen
// convention (Return lowers into r0 before this), so HALT is `MOV
// RCX, RAX; CALL ExitProcess` on Win64. callExternal (encoder.go)
// emits only the indirect CALL; the callee's shadow space is the
// bottom 0x20 bytes of the frame the driver's prologue reserves
// (calling_convention.go).
func (e *Encoder) encodeHalt(ins Instruction) *CompilerError {
	rax := GetRegisterOrPanic("rax")
	if e.target.IsELF() {
		rdi := GetRegisterOrPanic("rdi")
		e.emitRegRegOp(0x89, rdi, rax) // exit code in rdi
		// MOV eax, 60 (exit) - 32-bit form zero-extends, no REX needed
		e.emit(0xB8)
		e.emitU32(60)
		e.emitSyscall()
		return nil
	}
	rcx := GetRegisterOrPanic("rcx")
	e.emitRegRegOp(0x89, rcx, rax)
	e.callExternal("ExitProcess")
	return nil
}

// encodeSvc lowers `SVC code` by calling the shared runtime stub
// for that service code (runtime_stubs.go); the argument the stub
// needs (string pointer, int, or nothing) was already moved into r0
// by codegen's "MOV r0, arg" convention (spec 4.5), or into xmm6 for
// print_float.
func (e *Encoder) encodeSvc(ins Instruction, cx *frameContext) *CompilerError {
	if len(ins.Operands) != 1 || ins.Operands[0].Kind != OperandImm {
		return encodingErr("SVC requires a service-code immediate")
	}
	stub := stubLabelFor(ServiceCode(ins.Operands[0].Imm))
	if stub == "" {
		return encodingErr("unknown service code")
	}
	e.emit(0xE8) // CALL near
	e.addLabelReloc(stub, RelRel32)
	return nil
}
