// Completion: 85% - SPAWN/JOIN lowered onto CreateThread/WaitForSingleObject
package main

// encodeSpawn lowers `SPAWN dst, fn_label` onto Win64's
// CreateThread(NULL, 0, fn, NULL, 0, NULL): the first four arguments
// go in RCX/RDX/R8/R9, the remaining two in the stack slots just
// above the shadow space (calling_convention.go's apiScratchSize
// region exists for exactly this). The new thread's handle comes back
// in RAX and is moved into dst.
func (e *Encoder) encodeSpawn(ins Instruction) *CompilerError {
	if e.target.IsELF() {
		return encodingErr("SPAWN is not yet supported for the ELF64 target (no clone(2) lowering)")
	}
	if len(ins.Operands) != 2 || ins.Operands[0].Kind != OperandReg || ins.Operands[1].Kind != OperandLabel {
		return encodingErr("SPAWN requires [dst, function label]")
	}
	dst := physicalGP(ins.Operands[0].Reg)
	rcx := GetRegisterOrPanic("rcx")
	rdx := GetRegisterOrPanic("rdx")
	r8 := GetRegisterOrPanic("r8")
	r9 := GetRegisterOrPanic("r9")
	rsp := GetRegisterOrPanic("rsp")

	// arg6 (thread id ptr) and arg5 (creation flags) as m64 immediate
	// zero stores at [rsp+0x28] and [rsp+0x20].
	e.emitImm32Store(rsp, 0x28, 0)
	e.emitImm32Store(rsp, 0x20, 0)

	e.xorZero(rcx)
	e.xorZero(rdx)
	// LEA r8, [rip+fn_label]
	e.emit(rex(true, r8.Encoding&8 != 0, false, false))
	e.emit(0x8D)
	e.emit(0x05 | (r8.Encoding&7)<<3)
	e.addLabelReloc(ins.Operands[1].Label, RelRel32)
	e.xorZero(r9)

	e.callExternal("CreateThread")
	if dst.Name != "rax" {
		e.emitRegRegOp(0x89, dst, GetRegisterOrPanic("rax"))
	}
	return nil
}

// encodeJoin lowers `JOIN handle` onto
// WaitForSingleObject(handle, INFINITE).
func (e *Encoder) encodeJoin(ins Instruction) *CompilerError {
	if e.target.IsELF() {
		return encodingErr("JOIN is not yet supported for the ELF64 target (no clone(2) lowering)")
	}
	if len(ins.Operands) != 1 || ins.Operands[0].Kind != OperandReg {
		return encodingErr("JOIN requires a handle register operand")
	}
	handle := physicalGP(ins.Operands[0].Reg)
	rcx := GetRegisterOrPanic("rcx")
	rdx := GetRegisterOrPanic("rdx")
	if handle.Name != "rcx" {
		e.emitRegRegOp(0x89, rcx, handle)
	}
	// RDX = INFINITE (0xFFFFFFFF), loaded with a 64-bit immediate
	// move; WaitForSingleObject reads only the low DWORD.
	e.emit(rex(true, false, false, rdx.Encoding&8 != 0))
	e.emit(0xB8 + rdx.Encoding&7)
	e.emitU64(0xFFFFFFFF)
	e.callExternal("WaitForSingleObject")
	return nil
}

// xorZero zeroes reg via XOR reg,reg - shorter than a 64-bit MOV
// immediate and leaves no REX.W-sign-extension ambiguity.
func (e *Encoder) xorZero(reg Register) {
	e.emitRegRegOp(0x31, reg, reg)
}

// emitImm32Store writes `MOV qword [base+disp], imm32` (sign-extended
// to 64 bits), used to fill CreateThread's stack-passed arguments.
func (e *Encoder) emitImm32Store(base Register, disp int32, imm int32) {
	e.emit(rex(true, false, false, base.Encoding&8 != 0))
	e.emit(0xC7)
	e.emitModRMBase(Register{Encoding: 0}, base, disp)
	e.emitU32(uint32(imm))
}
