// Completion: 80% - Service Runtime stubs for the ELF64/Linux target
package main

// EmitLinuxRuntimeStubs is runtime_stubs.go's EmitRuntimeStubs for
// the ELF64 target: the same stub labels (stubLabelFor's names), but
// lowered onto raw `syscall` (write=1, read=0, exit=60) instead of
// the Win64 kernel32 IAT calls the PE64 stubs use. SPAWN/JOIN have no
// ELF lowering yet (thread.go), so no clone(2)-based thread stub
// exists here.
func EmitLinuxRuntimeStubs(e *Encoder) *CompilerError {
	stubs := []func(*Encoder) *CompilerError{
		(*Encoder).emitLinuxPrintStringStub,
		(*Encoder).emitLinuxPrintIntStub,
		(*Encoder).emitLinuxPrintFloatStub,
		(*Encoder).emitLinuxInputIntStub,
		(*Encoder).emitLinuxPauseStub,
		(*Encoder).emitLinuxPauseSilentStub,
		(*Encoder).emitLinuxExitStub,
	}
	for _, stub := range stubs {
		if err := stub(e); err != nil {
			return err
		}
	}
	e.emit(0xE9)
	e.addLabelReloc("__svc_stub_data_end", RelRel32)
	if err := e.placeLabel("__svc_pause_msg"); err != nil {
		return err
	}
	e.buf = append(e.buf, []byte(pauseMessage)...)
	return e.placeLabel("__svc_stub_data_end")
}

const (
	sysRead  = 0
	sysWrite = 1
	sysExit  = 60
)

// loadSyscallNumber emits `MOV eax, n`, the 32-bit form so it
// zero-extends rax without needing a REX prefix.
func (e *Encoder) loadSyscallNumber(n int64) {
	e.emit(0xB8)
	e.emitU32(uint32(n))
}

func (e *Encoder) emitLinuxExitStub() *CompilerError {
	if err := e.placeLabel("__svc_exit"); err != nil {
		return err
	}
	rax := GetRegisterOrPanic("rax")
	rdi := GetRegisterOrPanic("rdi")
	e.emitRegRegOp(0x89, rdi, rax)
	e.loadSyscallNumber(sysExit)
	e.emitSyscall()
	return nil
}

// emitLinuxPrintStringStub mirrors emitPrintStringStub's NUL-scan but
// calls write(1, ptr, len) directly: no handle lookup, and the
// syscall ABI's own callee-saved registers mean the pointer can stay
// live across it without the stack staging the PE64 path needs.
func (e *Encoder) emitLinuxPrintStringStub() *CompilerError {
	if err := e.placeLabel("__svc_print_string"); err != nil {
		return err
	}
	rax := GetRegisterOrPanic("rax")
	rdi := GetRegisterOrPanic("rdi")
	rsi := GetRegisterOrPanic("rsi")
	rdx := GetRegisterOrPanic("rdx")
	r10 := GetRegisterOrPanic("r10")
	r11 := GetRegisterOrPanic("r11")

	// r10 = string pointer (arg, in rax); r11 = cursor for the NUL
	// scan, kept off rdi/rsi/rdx so the syscall's own argument
	// registers are free to receive the final fd/ptr/len untouched.
	e.emitRegRegOp(0x89, r10, rax)
	e.emitRegRegOp(0x89, r11, r10)

	scanStart := e.Offset()
	e.emit(rex(false, false, false, r11.Encoding&8 != 0))
	e.emit(0x80)
	e.emitModRMBase(Register{Encoding: 7}, r11, 0)
	e.emit(0x00)
	jeOffset := e.Offset()
	e.emit(0x74)
	e.emit(0x00)
	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(0, r11))
	jmpEnd := e.Offset() + 2
	e.emit(0xEB)
	e.emit(byte(int8(scanStart - jmpEnd)))
	lenDone := e.Offset()
	e.buf[jeOffset+1] = byte(int8(lenDone - (jeOffset + 2)))

	// r10 = length = r11 - r10
	e.emitRegRegOp(0x29, r10, r11) // SUB r10, r11 -> r10 = r10-r11 (negative)
	e.emit(rex(true, false, false, r10.Encoding&8 != 0))
	e.emit(0xF7)
	e.emit(modrmRegOpcode(3, r10)) // NEG r10 -> length

	e.emit(0xBF) // MOV edi, 1 (stdout fd)
	e.emitU32(1)
	e.emitRegRegOp(0x89, rsi, r11)
	e.emitRegRegOp(0x29, rsi, r10) // rsi -= length -> original pointer
	e.emitRegRegOp(0x89, rdx, r10) // rdx = length
	e.loadSyscallNumber(sysWrite)
	e.emitSyscall()
	e.emit(0xC3)
	return nil
}

func (e *Encoder) emitLinuxPrintIntStub() *CompilerError {
	if err := e.placeLabel("__svc_print_int"); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rax := GetRegisterOrPanic("rax")
	rdi := GetRegisterOrPanic("rdi")
	rsi := GetRegisterOrPanic("rsi")
	rdx := GetRegisterOrPanic("rdx")
	r10 := GetRegisterOrPanic("r10")
	r11 := GetRegisterOrPanic("r11")
	r9 := GetRegisterOrPanic("r9")

	frame := int32(0x30)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame))

	e.emitRegRegOp(0x89, r10, rax) // r10 = value
	e.emit(rex(true, r11.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D) // LEA r11, [rsp+0x1F]
	e.emitModRMBase(r11, rsp, 0x1F)

	e.emit(rex(true, false, false, r9.Encoding&8 != 0))
	e.emit(0xB8 + r9.Encoding&7)
	e.emitU64(10)

	loopStart := e.Offset()
	e.emitRegRegOp(0x89, rax, r10)
	e.emit(0x48)
	e.emit(0x99) // CQO
	e.emit(rex(true, false, false, r9.Encoding&8 != 0))
	e.emit(0xF7)
	e.emit(modrmRegOpcode(7, r9)) // IDIV r9
	e.emitRegImmOp(0, 0x83, 0x81, rdx, '0')
	e.emit(rex(false, rdx.Encoding&8 != 0, false, r11.Encoding&8 != 0))
	e.emit(0x88)
	e.emitModRMBase(rdx, r11, 0)
	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(1, r11)) // DEC r11
	e.emitRegRegOp(0x89, r10, rax)
	e.emitRegImmOp(7, 0x83, 0x81, r10, 0)
	jneEnd := e.Offset() + 2
	e.emit(0x75)
	e.emit(byte(int8(loopStart - jneEnd)))

	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(0, r11)) // INC r11

	// write(1, r11, (rsp+0x20)-r11)
	e.emitRegRegOp(0x89, rsi, r11)
	e.emit(rex(true, rdi.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D)
	e.emitModRMBase(rdi, rsp, 0x20)
	e.emitRegRegOp(0x29, rdi, r11) // SUB rdi, r11 -> length
	e.emitRegRegOp(0x89, rdx, rdi)
	e.emit(0xBF) // MOV edi, 1 (stdout fd)
	e.emitU32(1)
	e.loadSyscallNumber(sysWrite)
	e.emitSyscall()

	e.emitRegImmOp(0, 0x83, 0x81, rsp, int64(frame))
	e.emit(0xC3)
	return nil
}

func (e *Encoder) emitLinuxPrintFloatStub() *CompilerError {
	if err := e.placeLabel("__svc_print_float"); err != nil {
		return err
	}
	rax := GetRegisterOrPanic("rax")
	r10 := GetRegisterOrPanic("r10")
	xmm6 := GetRegisterOrPanic("xmm6")
	scratchX := GetRegisterOrPanic(scratchXMM)

	bits := uint64(0x41CDCD6500000000) // float64(1e9)
	e.emit(rex(true, false, false, r10.Encoding&8 != 0))
	e.emit(0xB8 + r10.Encoding&7)
	e.emitU64(bits)
	e.emit(0x66)
	e.emit(rex(true, scratchX.Encoding&8 != 0, false, r10.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x6E)
	e.emit(modrmRegReg(scratchX, r10))

	e.emit(0xF2)
	e.emit(rex(false, scratchX.Encoding&8 != 0, false, xmm6.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x59)
	e.emit(modrmRegReg(scratchX, xmm6))

	e.emit(0xF2)
	e.emit(rex(true, rax.Encoding&8 != 0, false, scratchX.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x2C)
	e.emit(modrmRegReg(rax, scratchX))

	e.emit(0xE9)
	e.addLabelReloc("__svc_print_int", RelRel32)
	return nil
}

func (e *Encoder) emitLinuxInputIntStub() *CompilerError {
	if err := e.placeLabel("__svc_input_int"); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rax := GetRegisterOrPanic("rax")
	rdi := GetRegisterOrPanic("rdi")
	rsi := GetRegisterOrPanic("rsi")
	rdx := GetRegisterOrPanic("rdx")
	r9 := GetRegisterOrPanic("r9")
	r10 := GetRegisterOrPanic("r10")
	r11 := GetRegisterOrPanic("r11")

	frame := int32(0x20)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame))

	e.emit(0xBF) // MOV edi, 0 (stdin fd)
	e.emitU32(0)
	e.emit(rex(true, rsi.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D) // LEA rsi, [rsp]
	e.emitModRMBase(rsi, rsp, 0)
	e.emitRegImmOp(0, 0x83, 0x81, rdx, 16)
	e.loadSyscallNumber(sysRead)
	e.emitSyscall()

	e.emitRegRegOp(0x31, r10, r10)
	e.emit(rex(true, r11.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D)
	e.emitModRMBase(r11, rsp, 0)

	loopStart := e.Offset()
	e.emit(rex(false, false, false, r11.Encoding&8 != 0))
	e.emit(0x80)
	e.emitModRMBase(Register{Encoding: 7}, r11, 0)
	e.emit('0' - 1)
	jlOffset := e.Offset()
	e.emit(0x7C)
	e.emit(0x00)

	e.emit(rex(false, false, false, r11.Encoding&8 != 0))
	e.emit(0x80)
	e.emitModRMBase(Register{Encoding: 7}, r11, 0)
	e.emit('9' + 1)
	jgOffset := e.Offset()
	e.emit(0x7F)
	e.emit(0x00)

	// IMUL r10, r10, 10 (REX.W 6B /r ib)
	e.emit(rex(true, r10.Encoding&8 != 0, false, r10.Encoding&8 != 0))
	e.emit(0x6B)
	e.emit(modrmRegReg(r10, r10))
	e.emit(10)
	e.emit(rex(false, r9.Encoding&8 != 0, false, r11.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0xB6)
	e.emitModRMBase(r9, r11, 0)
	e.emitRegImmOp(5, 0x83, 0x81, r9, '0')
	e.emitRegRegOp(0x01, r10, r9)

	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(0, r11))
	jmpEnd := e.Offset() + 2
	e.emit(0xEB)
	e.emit(byte(int8(loopStart - jmpEnd)))

	end := e.Offset()
	e.buf[jlOffset+1] = byte(int8(end - (jlOffset + 2)))
	e.buf[jgOffset+1] = byte(int8(end - (jgOffset + 2)))

	e.emitRegRegOp(0x89, rax, r10)
	e.emitRegImmOp(0, 0x83, 0x81, rsp, int64(frame))
	e.emit(0xC3)
	return nil
}

func (e *Encoder) emitLinuxPauseStub() *CompilerError {
	return e.emitLinuxPauseStubVariant("__svc_pause", true)
}

func (e *Encoder) emitLinuxPauseSilentStub() *CompilerError {
	return e.emitLinuxPauseStubVariant("__svc_pause_silent", false)
}

func (e *Encoder) emitLinuxPauseStubVariant(label string, withPrompt bool) *CompilerError {
	if err := e.placeLabel(label); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rdi := GetRegisterOrPanic("rdi")
	rsi := GetRegisterOrPanic("rsi")
	rdx := GetRegisterOrPanic("rdx")

	frame := int32(0x20)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame))

	if withPrompt {
		e.emit(0xBF) // MOV edi, 1
		e.emitU32(1)
		e.emit(rex(true, rsi.Encoding&8 != 0, false, false))
		e.emit(0x8D)
		e.emit(0x05 | (rsi.Encoding&7)<<3)
		e.addLabelReloc("__svc_pause_msg", RelRel32Data)
		e.emitRegImmOp(0, 0x83, 0x81, rdx, int64(len(pauseMessage)))
		e.loadSyscallNumber(sysWrite)
		e.emitSyscall()
	}

	e.emit(0xBF) // MOV edi, 0 (stdin)
	e.emitU32(0)
	e.emit(rex(true, rsi.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D)
	e.emitModRMBase(rsi, rsp, 0)
	e.emitRegImmOp(0, 0x83, 0x81, rdx, 8)
	e.loadSyscallNumber(sysRead)
	e.emitSyscall()

	e.emitRegImmOp(0, 0x83, 0x81, rdi, 0)
	e.loadSyscallNumber(sysExit)
	e.emitSyscall()
	return nil
}
