// Completion: 60% - x86-64 instruction encoder, core dispatch and shared helpers
package main

import "encoding/binary"

// Encoder assembles a MISA instruction stream into x86-64 machine code.
// It owns the growing .text buffer and feeds label references into the
// shared LabelTable as relocations; ResolveImage (driver.go) resolves
// those once the Executable Writer has appended its own sections, and
// writeFixup patches each one into the buffer.
type Encoder struct {
	buf    []byte
	labels *LabelTable
	target Target
}

func NewEncoder(labels *LabelTable, target Target) *Encoder {
	return &Encoder{labels: labels, target: target}
}

func (e *Encoder) Bytes() []byte { return e.buf }
func (e *Encoder) Offset() int64 { return int64(len(e.buf)) }

func (e *Encoder) emit(b byte)        { e.buf = append(e.buf, b) }
func (e *Encoder) emitN(bs ...byte)   { e.buf = append(e.buf, bs...) }
func (e *Encoder) emitU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}
func (e *Encoder) emitU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// rex builds a REX prefix: W selects 64-bit operands, r/x/b extend the
// ModRM reg, SIB index and ModRM rm (or SIB base) fields respectively.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrmRegReg(reg, rm Register) byte {
	return 0xC0 | (reg.Encoding&7)<<3 | (rm.Encoding & 7)
}

// modrmRegOpcode builds a ModRM byte for the register-direct,
// opcode-extension forms (e.g. ADD r/m64, imm8 uses /0; NOT/NEG use
// /2 and /3). ext is the three-bit opcode extension carried in the
// ModRM reg field.
func modrmRegOpcode(ext byte, rm Register) byte {
	return 0xC0 | (ext&7)<<3 | (rm.Encoding & 7)
}

// emitRegRegOp emits REX.W + opcode + ModRM for a two-register
// instruction of the form `op dst, src` encoded as `op r/m64, r64`
// (ADD/SUB/CMP/AND/OR/XOR/MOV all share this shape, differing only in
// the opcode byte).
func (e *Encoder) emitRegRegOp(opcode byte, dst, src Register) {
	e.emit(rex(true, src.Encoding&8 != 0, false, dst.Encoding&8 != 0))
	e.emit(opcode)
	e.emit(modrmRegReg(src, dst))
}

// emitRegImmOp emits an opcode-extension instruction against an
// immediate, preferring the imm8 form (opcode8, shorter encoding) when
// imm fits in a signed byte and falling back to the imm32 form
// (opcode32) otherwise.
func (e *Encoder) emitRegImmOp(ext byte, opcode8, opcode32 byte, dst Register, imm int64) {
	e.emit(rex(true, false, false, dst.Encoding&8 != 0))
	if imm >= -128 && imm <= 127 {
		e.emit(opcode8)
		e.emit(modrmRegOpcode(ext, dst))
		e.emit(byte(imm))
	} else {
		e.emit(opcode32)
		e.emit(modrmRegOpcode(ext, dst))
		e.emitU32(uint32(int32(imm)))
	}
}

// stackDisp turns a byte offset into the spill area (the register
// allocator passes slot*spillSlotSize) into a displacement from RSP:
// the frame layout reserves 0x00-0x1F for the Win64 shadow space,
// 0x20-0x2F for API scratch and 0x30-0x4F for callee register saves
// (see calling_convention.go), so offset 0 begins at spillBase.
func stackDisp(slotImm int64) int32 {
	return int32(spillBase + slotImm)
}

// emitLoadStore emits `MOV reg, [RSP+disp]` (load=true) or
// `MOV [RSP+disp], reg` (load=false) for a GP register. SIB byte 0x24
// selects RSP as base with no index, matching the teacher's
// stack-addressing form; disp8 is used when it fits, disp32 otherwise.
// emitXMMStack (float_ops.go) is the xmm counterpart.
func (e *Encoder) emitLoadStore(reg Register, disp int32, load bool) {
	e.emit(rex(true, reg.Encoding&8 != 0, false, false))
	if load {
		e.emit(0x8B) // MOV r64, r/m64
	} else {
		e.emit(0x89) // MOV r/m64, r64
	}
	e.emitModRMStack(reg, disp)
}

// emitModRMStack writes the ModRM+SIB+disp for a [RSP+disp] operand
// with reg in the ModRM reg field.
func (e *Encoder) emitModRMStack(reg Register, disp int32) {
	if disp >= -128 && disp <= 127 {
		e.emit(0x44 | (reg.Encoding&7)<<3) // mod=01, rm=100 (SIB follows)
		e.emit(0x24)                       // SIB: scale=0, index=100 (none), base=100 (RSP)
		e.emit(byte(int8(disp)))
	} else {
		e.emit(0x84 | (reg.Encoding&7)<<3) // mod=10
		e.emit(0x24)
		e.emitU32(uint32(disp))
	}
}

// Emit lowers one MISA instruction into the text buffer, dispatching
// by opcode to the per-family encoders in add_sub.go, logic.go,
// muldiv.go, mov.go, jmp.go, array.go and float_ops.go. cx carries the
// per-function state (frame size, whether the last compare produced a
// float condition) needed to pick the right encoding.
func (e *Encoder) Emit(ins Instruction, cx *frameContext) *CompilerError {
	debugf(2, "  %-12s %v\n", ins.Op, ins.Operands)
	switch ins.Op {
	case MNop:
		e.emit(0x90)
	case MMov:
		return e.encodeMov(ins)
	case MLoad, MLoadStack:
		return e.encodeStackAccess(ins, true)
	case MStore, MStoreStack:
		return e.encodeStackAccess(ins, false)
	case MAdd:
		return e.encodeAddSub(ins, 0x01, 0)
	case MSub:
		return e.encodeAddSub(ins, 0x29, 5)
	case MCmp:
		cx.lastCompareWasFloat = false
		return e.encodeAddSub(ins, 0x39, 7)
	case MAnd:
		return e.encodeAddSub(ins, 0x21, 4)
	case MOr:
		return e.encodeAddSub(ins, 0x09, 1)
	case MXor:
		return e.encodeAddSub(ins, 0x31, 6)
	case MNot:
		return e.encodeNot(ins)
	case MShl:
		return e.encodeShift(ins, 4)
	case MShr:
		return e.encodeShift(ins, 5)
	case MMul:
		return e.encodeMul(ins)
	case MDiv, MRem:
		return e.encodeDivRem(ins, ins.Op == MRem)
	case MJmp:
		return e.encodeJmp(ins)
	case MCJmp:
		return e.encodeCJmp(ins, cx.lastCompareWasFloat)
	case MCall:
		return e.encodeCall(ins)
	case MRet:
		e.encodeEpilogue(cx)
		return nil
	case MHalt:
		return e.encodeHalt(ins)
	case MSvc:
		return e.encodeSvc(ins, cx)
	case MArrayAlloc:
		return e.encodeArrayAlloc(ins, cx)
	case MArrayLoad:
		return e.encodeArrayLoad(ins)
	case MArrayStore:
		return e.encodeArrayStore(ins)
	case MFMov:
		return e.encodeFMov(ins)
	case MFAdd:
		return e.encodeFArith(ins, 0x58)
	case MFSub:
		return e.encodeFArith(ins, 0x5C)
	case MFMul:
		return e.encodeFArith(ins, 0x59)
	case MFDiv:
		return e.encodeFArith(ins, 0x5E)
	case MFCmp:
		cx.lastCompareWasFloat = true
		return e.encodeFCmp(ins)
	case MCvtSi2Sd:
		return e.encodeCvtSi2Sd(ins)
	case MCvtSd2Si:
		return e.encodeCvtSd2Si(ins)
	case MSpawn:
		return e.encodeSpawn(ins)
	case MJoin:
		return e.encodeJoin(ins)
	case MAtomicLoad:
		return e.encodeAtomicLoad(ins)
	case MAtomicStore:
		return e.encodeAtomicStore(ins)
	case MAtomicAdd:
		return e.encodeAtomicAdd(ins)
	case MAtomicFAdd:
		return e.encodeAtomicFAdd(ins)
	default:
		return encodingErr("no x86-64 encoding for opcode " + ins.Op.String())
	}
	return nil
}

// addLabelReloc records a relocation against label, writing a
// placeholder rel32 of 0 at the current offset; the caller has already
// emitted the instruction bytes that precede the rel32 field.
func (e *Encoder) addLabelReloc(label string, kind RelocationKind) {
	id, _ := e.labels.Declare(label)
	patchOffset := e.Offset()
	e.emitU32(0)
	e.labels.AddRelocation(Relocation{
		PatchOffset: patchOffset,
		TargetID:    id,
		Kind:        kind,
		InstrEnd:    patchOffset + 4,
	})
}

// callExternal emits `CALL [rip+iat_name]`, an indirect call through
// the import address table slot the PE writer fills in for name (one
// of the eight kernel32 symbols named in the Executable Writer). The
// ELF64 target has no IAT; its runtime stubs (runtime_stubs_linux.go)
// use raw `syscall` instead and never reach this helper.
func (e *Encoder) callExternal(name string) {
	e.emit(0xFF) // CALL r/m64, ModRM /2
	e.emit(0x15) // mod=00, reg=010 (/2), rm=101 (RIP-relative disp32)
	e.addLabelReloc(iatLabel(name), RelRel32IAT)
}

// emitSyscall emits the two-byte SYSCALL instruction (0F 05), the
// Linux ELF64 equivalent of callExternal: syscall number in RAX,
// arguments in RDI, RSI, RDX, R10, R8, R9 per the Linux x86-64 ABI.
func (e *Encoder) emitSyscall() {
	e.emit(0x0F)
	e.emit(0x05)
}

// iatLabel is the internal label name under which the PE writer
// places each imported symbol's IAT slot.
func iatLabel(name string) string { return "__iat_" + name }

// frameContext is per-function encoder state the driver threads
// through Emit calls for one function body.
type frameContext struct {
	lastCompareWasFloat bool
	frameSize           int32 // total `sub rsp, N` for this function
	nextArraySlot       int32 // next free spill-style slot for ARRAY_ALLOC
}
