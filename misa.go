// Completion: 100% - MISA instruction set and binary slot encoding complete
package main

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Opcode is MISA's closed one-byte instruction set.
// Constants carry an M prefix (MAdd, MJmp, ...) rather than Op, since
// Op is already used by the IR's BinaryOp/UnaryOp enumerations
// (ast.go) and several names (add, sub, and, or, shl, shr) would
// otherwise collide at package scope.
type Opcode byte

const (
	MNop         Opcode = 0x00
	MMov         Opcode = 0x01
	MLoad        Opcode = 0x02
	MStore       Opcode = 0x03
	MAdd         Opcode = 0x04
	MSub         Opcode = 0x05
	MCmp         Opcode = 0x06
	MJmp         Opcode = 0x07
	MCJmp        Opcode = 0x08
	MCall        Opcode = 0x09
	MRet         Opcode = 0x0A
	MSvc         Opcode = 0x0B
	MHalt        Opcode = 0x0C
	MMul         Opcode = 0x0D
	MDiv         Opcode = 0x0E
	MRem         Opcode = 0x0F
	MAnd         Opcode = 0x10
	MOr          Opcode = 0x11
	MXor         Opcode = 0x12
	MNot         Opcode = 0x13
	MShl         Opcode = 0x14
	MShr         Opcode = 0x15
	MStoreStack  Opcode = 0x16
	MLoadStack   Opcode = 0x17
	MArrayAlloc  Opcode = 0x18
	MArrayStore  Opcode = 0x19
	MArrayLoad   Opcode = 0x1A
	MFMov        Opcode = 0x20
	MFAdd        Opcode = 0x21
	MFSub        Opcode = 0x22
	MFMul        Opcode = 0x23
	MFDiv        Opcode = 0x24
	MFCmp        Opcode = 0x25
	MCvtSi2Sd    Opcode = 0x26
	MCvtSd2Si    Opcode = 0x29
	MSpawn       Opcode = 0x30
	MJoin        Opcode = 0x31
	MAtomicLoad  Opcode = 0x32
	MAtomicStore Opcode = 0x33
	MAtomicAdd   Opcode = 0x34
	MAtomicFAdd  Opcode = 0x35

	// MFStore/MFLoad are not part of the opcode catalog; the
	// register allocator's spill path reuses the generic stack slots
	// through the float unit's own MOV form (FMOV to/from a stack
	// operand), so these are aliases rather than distinct opcodes.
	MFStore = MStoreStack
	MFLoad  = MLoadStack
)

func (op Opcode) String() string {
	names := map[Opcode]string{
		MNop: "NOP", MMov: "MOV", MLoad: "LD", MStore: "ST",
		MAdd: "ADD", MSub: "SUB", MCmp: "CMP", MJmp: "JMP", MCJmp: "CJMP",
		MCall: "CALL", MRet: "RET", MSvc: "SVC", MHalt: "HALT",
		MMul: "MUL", MDiv: "DIV", MRem: "REM",
		MAnd: "AND", MOr: "OR", MXor: "XOR", MNot: "NOT",
		MShl: "SHL", MShr: "SHR",
		MStoreStack: "STORE_STACK", MLoadStack: "LOAD_STACK",
		MArrayAlloc: "ARRAY_ALLOC", MArrayStore: "ARRAY_STORE", MArrayLoad: "ARRAY_LOAD",
		MFMov: "FMOV", MFAdd: "FADD", MFSub: "FSUB", MFMul: "FMUL", MFDiv: "FDIV", MFCmp: "FCMP",
		MCvtSi2Sd: "CVTSI2SD", MCvtSd2Si: "CVTSD2SI",
		MSpawn: "SPAWN", MJoin: "JOIN",
		MAtomicLoad: "ATOMIC_LOAD", MAtomicStore: "ATOMIC_STORE",
		MAtomicAdd: "ATOMIC_ADD", MAtomicFAdd: "ATOMIC_FADD",
	}
	if n, ok := names[op]; ok {
		return n
	}
	return fmt.Sprintf("OP(0x%02X)", byte(op))
}

// ServiceCode selects the runtime behavior an SVC instruction invokes.
type ServiceCode byte

const (
	SvcPrintString ServiceCode = 0x01
	SvcExit        ServiceCode = 0x02
	SvcPause       ServiceCode = 0x03
	SvcPauseSilent ServiceCode = 0x04
	SvcPrintInt    ServiceCode = 0x05
	SvcInputInt    ServiceCode = 0x06
	SvcPrintFloat  ServiceCode = 0x07
)

// Sentinel byte values used in the op1 slot.
const (
	SentinelImmFollows   byte = 0xFF
	SentinelLabelFollows byte = 0xFE
)

// CondCode enumerates the conditional-jump test a CJMP instruction
// encodes. Integer compares use the signed variants; float compares
// (FCMP precedes) use the unsigned variants, since float comparisons
// have no signed/unsigned distinction to preserve.
type CondCode byte

const (
	CondEQ CondCode = iota
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
)

// OperandKind distinguishes the three operand shapes a MISA
// instruction slot can carry.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImm
	OperandLabel
)

// Operand is one operand of an Instruction: a virtual register name
// ("r0".."r7", "xmm0".."xmm7"), an immediate, or a label reference.
type Operand struct {
	Kind  OperandKind
	Reg   string
	Imm   int64
	FImm  float64
	IsF   bool
	Label string
}

// Instruction is a single MISA instruction prior to binary slot
// encoding: opcode plus up to three operands.
type Instruction struct {
	Op       Opcode
	Operands []Operand
	Comment  string // carried into the manifest's trailing `; comment`

	// Cond is meaningful only for MCJmp.
	Cond CondCode
}

// regIndex parses "r0".."r7" or "xmm0".."xmm7" into their numeric
// index; returns -1 for anything else (labels, etc).
func regIndex(name string) int {
	if len(name) < 2 {
		return -1
	}
	var prefix string
	switch {
	case len(name) >= 4 && name[:3] == "xmm":
		prefix = name[3:]
	case name[0] == 'r':
		prefix = name[1:]
	default:
		return -1
	}
	n := 0
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// EncodeSlot packs an Instruction into its 16-byte MISA binary
// representation: [opcode:1][op0:1][op1:1][op2:1][imm32:4][padding:8].
// At most one operand may be a register index at a given slot
// position; an Imm or Label operand writes its sentinel at that same
// position and the payload into the shared imm32 field, so an
// instruction may carry at most one non-register operand. Label
// operands carry the generator-local label id (from LabelTable.Declare),
// not an offset; the driver does not rely on that id and instead
// resolves the label name AddInstruction writes on the instruction's
// `bytesref` manifest line (see DecodeSlotRef).
// Float immediates are returned as a second 8-byte slot the caller
// appends immediately after this one, holding the raw IEEE-754 bits.
func EncodeSlot(ins Instruction) (slot [16]byte, floatSlot *uint64) {
	slot[0] = byte(ins.Op)

	for i := 0; i < 3 && i < len(ins.Operands); i++ {
		opnd := ins.Operands[i]
		switch opnd.Kind {
		case OperandReg:
			slot[1+i] = byte(regIndex(opnd.Reg))
		case OperandImm:
			slot[1+i] = SentinelImmFollows
			if opnd.IsF {
				bits := math.Float64bits(opnd.FImm)
				floatSlot = &bits
			} else {
				binary.LittleEndian.PutUint32(slot[4:8], uint32(opnd.Imm))
			}
		case OperandLabel:
			slot[1+i] = SentinelLabelFollows
			binary.LittleEndian.PutUint32(slot[4:8], uint32(opnd.Imm))
		}
	}
	if ins.Op == MCJmp {
		slot[2] = byte(ins.Cond)
	}
	return slot, floatSlot
}

// DecodeSlot reverses EncodeSlot for the Native Compiler Driver, which
// re-parses a manifest rather than holding the generator's original
// Instruction values in memory. It reads exactly slotArity(op) operand
// positions, since an unused position holds 0 and would otherwise be
// indistinguishable from a reference to r0.
func DecodeSlot(slot [16]byte) Instruction {
	ins := Instruction{Op: Opcode(slot[0])}
	for i := 0; i < slotArity(ins.Op); i++ {
		b := slot[1+i]
		switch b {
		case SentinelImmFollows:
			imm := int64(int32(binary.LittleEndian.Uint32(slot[4:8])))
			ins.Operands = append(ins.Operands, Operand{Kind: OperandImm, Imm: imm})
		case SentinelLabelFollows:
			id := int64(binary.LittleEndian.Uint32(slot[4:8]))
			ins.Operands = append(ins.Operands, Operand{Kind: OperandLabel, Imm: id})
		default:
			ins.Operands = append(ins.Operands, Operand{Kind: OperandReg, Reg: regNameFor(ins.Op, i, b)})
		}
	}
	if ins.Op == MCJmp {
		ins.Cond = CondCode(slot[2])
	}
	return ins
}

// DecodeSlotRef is DecodeSlot's counterpart for a LineBytesRef manifest
// line: the slot's own SentinelLabelFollows position carries an id the
// driver cannot trust across a forward reference, so ref (the name
// carried alongside the line in the manifest) replaces it instead.
func DecodeSlotRef(slot [16]byte, ref string) Instruction {
	ins := Instruction{Op: Opcode(slot[0])}
	for i := 0; i < slotArity(ins.Op); i++ {
		b := slot[1+i]
		switch b {
		case SentinelImmFollows:
			imm := int64(int32(binary.LittleEndian.Uint32(slot[4:8])))
			ins.Operands = append(ins.Operands, Operand{Kind: OperandImm, Imm: imm})
		case SentinelLabelFollows:
			ins.Operands = append(ins.Operands, Operand{Kind: OperandLabel, Label: ref})
		default:
			ins.Operands = append(ins.Operands, Operand{Kind: OperandReg, Reg: regNameFor(ins.Op, i, b)})
		}
	}
	if ins.Op == MCJmp {
		ins.Cond = CondCode(slot[2])
	}
	return ins
}

// slotArity is the number of operands codegen and the register
// allocator emit for op.
func slotArity(op Opcode) int {
	switch op {
	case MNop, MRet, MHalt:
		return 0
	case MJmp, MCJmp, MCall, MSvc, MNot, MJoin:
		return 1
	case MArrayStore, MArrayLoad:
		return 3
	}
	return 2
}

// regNameFor reconstructs a virtual register name from its raw index.
// Opcodes in the float unit (MFMov..MFCmp) and the float spill/reload
// aliases (MFStore/MFLoad) address the xmm file on every register
// operand; everything else addresses the GP file. The two
// conversion opcodes mix files by position: codegen always emits
// CVTSI2SD as (xmm dst, gp src) and CVTSD2SI as (gp dst, xmm src), so
// pos distinguishes them here rather than the opcode alone deciding.
func regNameFor(op Opcode, pos int, idx byte) string {
	switch op {
	case MFMov, MFAdd, MFSub, MFMul, MFDiv, MFCmp, MFStore, MFLoad:
		return xmmRegName(int(idx))
	case MCvtSi2Sd:
		if pos == 0 {
			return xmmRegName(int(idx))
		}
		return gpRegName(int(idx))
	case MCvtSd2Si:
		if pos == 1 {
			return xmmRegName(int(idx))
		}
		return gpRegName(int(idx))
	default:
		return gpRegName(int(idx))
	}
}
