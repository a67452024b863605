// Completion: 80% - Native Compiler Driver: manifest -> resolved machine code
package main

import (
	"encoding/binary"
	"math"
	"strconv"
)

// defaultFrameSize is the fixed stack frame every function prologue
// reserves: shadow space + API scratch + register save area (see
// calling_convention.go's spillBase) plus generous room for spills and
// ARRAY_ALLOC blocks. The driver does a single linear pass over the
// manifest rather than a liveness analysis to size each frame exactly,
// so every function pays the same, always-16-aligned cost instead.
const defaultFrameSize = 0x1000

// CompiledImage is the Native Compiler Driver's output: one flat,
// fully relocated buffer of machine code and inline data, ready for
// pe_writer.go or elf_writer.go to wrap in an executable container.
type CompiledImage struct {
	Buf    []byte
	Labels *LabelTable
	Org    uint64
	Target Target
}

// Compile parses a rendered manifest and assembles it into native
// machine code for target. It is the one place that walks the
// manifest's flat Lines stream in file order, maintaining the
// lastCompareWasFloat/frame-size state (frameContext) a correct
// lowering of CJMP and RET/HALT depends on, exactly as spec 4.8
// describes the driver's responsibility.
func Compile(manifestText string, target Target) (*CompiledImage, *CompilerError) {
	m, err := ParseManifest(manifestText)
	if err != nil {
		return nil, err
	}

	labels := NewLabelTable()
	enc := NewEncoder(labels, target)

	// Shared variables get a fixed 8-byte slot at the front of the
	// image, addressed by name like any other label; ATOMIC_* operands
	// reference them by name (codegen's labelOperand), never by a
	// driver-assigned position.
	for _, s := range m.Sharing {
		id, derr := labels.Declare(s.Name)
		if derr != nil {
			return nil, derr
		}
		if perr := labels.Place(id, enc.Offset()); perr != nil {
			return nil, perr
		}
		enc.emitU64(sharedInitialBits(s))
	}

	var cx *frameContext
	for i := 0; i < len(m.Lines); i++ {
		ln := m.Lines[i]
		switch ln.Kind {
		case LineLabel:
			id, derr := labels.Declare(ln.Label)
			if derr != nil {
				return nil, derr
			}
			if perr := labels.Place(id, enc.Offset()); perr != nil {
				return nil, perr
			}
			if isFunctionLabel(ln.Label) {
				cx = &frameContext{frameSize: defaultFrameSize, nextArraySlot: arraySlotBase}
				if verr := ValidateFrameSize(cx.frameSize); verr != nil {
					return nil, verr
				}
				rsp := GetRegisterOrPanic("rsp")
				enc.emitRegImmOp(5, 0x83, 0x81, rsp, int64(cx.frameSize)) // sub rsp, frameSize
			}
		case LineBytes, LineBytesRef:
			if cx == nil {
				cx = &frameContext{frameSize: defaultFrameSize, nextArraySlot: arraySlotBase}
			}
			var ins Instruction
			if ln.Kind == LineBytesRef {
				ins = DecodeSlotRef(uint64ToSlot(ln.Bytes), ln.RefLabel)
			} else {
				ins = DecodeSlot(uint64ToSlot(ln.Bytes))
			}
			if ins.Op == MFMov {
				advance, perr := patchFloatImmediate(&ins, m.Lines, i)
				if perr != nil {
					return nil, perr
				}
				i += advance
			}
			if cerr := enc.Emit(ins, cx); cerr != nil {
				return nil, cerr
			}
		case LineAscii:
			// The label line for this literal (codegen.go's
			// genLiteralInto always emits AddLabel immediately before
			// AddAscii) was already declared and placed by the
			// LineLabel case above.
			enc.buf = append(enc.buf, []byte(ln.Text)...)
			enc.buf = append(enc.buf, 0)
		case LinePad:
			for uint64(enc.Offset()) < ln.PadTo {
				enc.emit(0)
			}
		case LineHalt:
			rax := GetRegisterOrPanic("rax")
			enc.emitRegRegOp(0x31, rax, rax) // XOR rax, rax -> exit code 0
			if herr := enc.encodeHalt(Instruction{Op: MHalt}); herr != nil {
				return nil, herr
			}
		}
	}

	if target.IsELF() {
		if rerr := EmitLinuxRuntimeStubs(enc); rerr != nil {
			return nil, rerr
		}
	} else {
		if rerr := EmitRuntimeStubs(enc); rerr != nil {
			return nil, rerr
		}
	}

	// Relocations are left unresolved here: callExternal's __iat_*
	// labels (Win64 target) aren't placed until pe_writer.go appends
	// the import address table to this same buffer. ResolveImage runs
	// last, once the Executable Writer has declared every label it
	// owns.
	return &CompiledImage{Buf: enc.buf, Labels: labels, Org: m.Org, Target: target}, nil
}

// ResolveImage runs the deferred relocation pass over img.Buf. The
// Executable Writer calls this once it has finished appending any
// sections of its own (import tables, padding) that introduce labels
// the driver's own pass could not have placed yet.
func ResolveImage(img *CompiledImage) *CompilerError {
	fixups, rerr := img.Labels.Resolve()
	if rerr != nil {
		return rerr
	}
	for _, f := range fixups {
		writeFixup(img.Buf, f)
	}
	return nil
}

// EntryPointOffset returns the buffer offset of fn_main, the one
// label every Aurora executable must define. Executable Writers use
// this as the image entry point rather than assuming main happens to
// be the first function codegen.go emitted (Generate walks
// prog.Functions in source order, not main-first).
func EntryPointOffset(labels *LabelTable) (int64, *CompilerError) {
	off, ok := labels.OffsetOf("fn_main")
	if !ok {
		return 0, linkErr("program has no 'main' function to use as an entry point")
	}
	return off, nil
}

// arraySlotBase keeps ARRAY_ALLOC's slot counter well clear of the
// spill slots register_allocator.go hands out from slot 0: there is no
// shared bookkeeping between the two allocators, so this fixed offset
// is what keeps ordinary spills and array storage from aliasing in
// practice.
const arraySlotBase = 256

// isFunctionLabel reports whether name is a function entry point
// (codegen.go's genFunction always names these "fn_"+Name), the only
// label kind that gets a prologue installed after it.
func isFunctionLabel(name string) bool {
	return len(name) > 3 && name[:3] == "fn_"
}

// uint64ToSlot reverses slotToUint64 (manifest.go), rebuilding the
// low 8 bytes of a 16-byte MISA slot from its packed manifest form.
// The high 8 bytes are always zero: the textual manifest only carries
// the meaningful half (manifest.go's slotToUint64 comment).
func uint64ToSlot(v uint64) [16]byte {
	var slot [16]byte
	for i := 0; i < 8; i++ {
		slot[i] = byte(v >> (8 * uint(7-i)))
	}
	return slot
}

// patchFloatImmediate fixes up an FMOV decode carrying an immediate
// operand: EncodeSlot leaves the main slot's imm32 field empty for a
// float literal (the value lives entirely in the second 8-byte slot
// manifest.go's AddInstruction appends right after), so DecodeSlot
// alone cannot recover it. This reads that following LineBytes line's
// raw bits back into ins' operand and reports how many extra manifest
// lines it consumed.
func patchFloatImmediate(ins *Instruction, lines []ManifestLine, at int) (int, *CompilerError) {
	for i := range ins.Operands {
		if ins.Operands[i].Kind != OperandImm {
			continue
		}
		if at+1 >= len(lines) || lines[at+1].Kind != LineBytes {
			return 0, encodingErr("FMOV immediate missing its trailing float slot")
		}
		ins.Operands[i].IsF = true
		ins.Operands[i].FImm = math.Float64frombits(lines[at+1].Bytes)
		return 1, nil
	}
	return 0, nil
}

// sharedInitialBits renders a shared slot's textual initial value
// (literalManifestValue's output) into its raw 8-byte in-memory form.
func sharedInitialBits(s SharedSlot) uint64 {
	switch s.Type {
	case TypeFloat:
		f, _ := strconv.ParseFloat(s.Value, 64)
		return math.Float64bits(f)
	case TypeBool:
		if s.Value == "1" || s.Value == "true" {
			return 1
		}
		return 0
	default:
		v, _ := strconv.ParseInt(s.Value, 10, 64)
		return uint64(v)
	}
}

// writeFixup patches one resolved relocation into buf in place.
func writeFixup(buf []byte, f ResolvedFixup) {
	switch f.Width {
	case 4:
		binary.LittleEndian.PutUint32(buf[f.Offset:], uint32(f.Value))
	case 8:
		binary.LittleEndian.PutUint64(buf[f.Offset:], f.Value)
	}
}
