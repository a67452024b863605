// Completion: 100% - x86-64 register definitions and Aurora's virtual register mapping
package main

// Register describes one physical x86-64 register: its name, width in
// bits and REX/ModRM encoding number (bit 3 is set for r8-r15 and
// xmm8, which need the matching REX extension bit).
type Register struct {
	Name     string
	Size     int
	Encoding uint8
}

// x86_64Registers holds every physical register Aurora's backend
// touches, either directly or as the encoder-internal scratch used by
// atomics and thread spawn.
var x86_64Registers = map[string]Register{
	"rax": {Name: "rax", Size: 64, Encoding: 0},
	"rcx": {Name: "rcx", Size: 64, Encoding: 1},
	"rdx": {Name: "rdx", Size: 64, Encoding: 2},
	"rbx": {Name: "rbx", Size: 64, Encoding: 3},
	"rsp": {Name: "rsp", Size: 64, Encoding: 4},
	"rbp": {Name: "rbp", Size: 64, Encoding: 5},
	"rsi": {Name: "rsi", Size: 64, Encoding: 6},
	"rdi": {Name: "rdi", Size: 64, Encoding: 7},
	"r8":  {Name: "r8", Size: 64, Encoding: 8},
	"r9":  {Name: "r9", Size: 64, Encoding: 9},
	"r10": {Name: "r10", Size: 64, Encoding: 10},
	"r11": {Name: "r11", Size: 64, Encoding: 11},
	"r12": {Name: "r12", Size: 64, Encoding: 12},
	"r13": {Name: "r13", Size: 64, Encoding: 13},
	"r14": {Name: "r14", Size: 64, Encoding: 14},
	"r15": {Name: "r15", Size: 64, Encoding: 15},

	"eax": {Name: "eax", Size: 32, Encoding: 0},
	"ecx": {Name: "ecx", Size: 32, Encoding: 1},
	"edx": {Name: "edx", Size: 32, Encoding: 2},
	"ebx": {Name: "ebx", Size: 32, Encoding: 3},

	"al": {Name: "al", Size: 8, Encoding: 0},
	"cl": {Name: "cl", Size: 8, Encoding: 1},
	"dl": {Name: "dl", Size: 8, Encoding: 2},
	"bl": {Name: "bl", Size: 8, Encoding: 3},

	"xmm0": {Name: "xmm0", Size: 128, Encoding: 0},
	"xmm1": {Name: "xmm1", Size: 128, Encoding: 1},
	"xmm2": {Name: "xmm2", Size: 128, Encoding: 2},
	"xmm3": {Name: "xmm3", Size: 128, Encoding: 3},
	"xmm4": {Name: "xmm4", Size: 128, Encoding: 4},
	"xmm5": {Name: "xmm5", Size: 128, Encoding: 5},
	"xmm6": {Name: "xmm6", Size: 128, Encoding: 6},
	"xmm7": {Name: "xmm7", Size: 128, Encoding: 7},
	"xmm8": {Name: "xmm8", Size: 128, Encoding: 8},
}

// GetRegister looks up a physical register by name. Aurora targets
// x86-64 only, so unlike the machine parameter this once took, there
// is a single table.
func GetRegister(regName string) (Register, bool) {
	reg, ok := x86_64Registers[regName]
	return reg, ok
}

func IsRegister(name string) bool {
	_, ok := GetRegister(name)
	return ok
}

// auroraGPPhysical maps MISA's virtual r0-r7 onto physical GP
// registers under the Win64 integer argument order, so a MISA
// CALL whose arguments already sit in r1-r5 costs no extra shuffling
// at the call site. rbx is excluded because it is scratchGP, which the
// atomic encoders (atomic.go) and DIV/REM's divisor staging (muldiv.go)
// clobber; rsi, rdi and r13-r15 back no virtual register, and rbp/rsp
// are the frame pointer and stack pointer.
var auroraGPPhysical = [8]string{
	"rax", // r0 - return value
	"rcx", // r1 - arg0 (Win64 integer arg 1)
	"rdx", // r2 - arg1
	"r8",  // r3 - arg2
	"r9",  // r4 - arg3
	"r10", // r5 - arg4, caller-saved scratch in Win64
	"r11", // r6 - caller-saved scratch
	"r12", // r7 - callee-saved, spared for values live across calls
}

var auroraXMMPhysical = [8]string{
	"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
}

// physicalGP resolves a MISA virtual register name ("r0".."r7") to
// its backing physical register.
func physicalGP(virtual string) Register {
	idx := regIndex(virtual)
	if idx < 0 || idx >= len(auroraGPPhysical) {
		panic("physicalGP: not a GP virtual register: " + virtual)
	}
	reg, _ := GetRegister(auroraGPPhysical[idx])
	return reg
}

// physicalXMM resolves "xmm0".."xmm7" to its physical register; MISA's
// xmm file maps onto the physical xmm file directly; no renaming.
func physicalXMM(virtual string) Register {
	idx := regIndex(virtual)
	if idx < 0 || idx >= len(auroraXMMPhysical) {
		panic("physicalXMM: not an xmm virtual register: " + virtual)
	}
	reg, _ := GetRegister(auroraXMMPhysical[idx])
	return reg
}

// scratchGP is the physical register the encoder itself may clobber
// between MISA instructions without disturbing resident values: it
// never backs a virtual register. LEA rbx,[rip+shared] in the atomic
// encoders and the divisor staging in muldiv.go both use it.
const scratchGP = "rbx"

// scratchXMM mirrors scratchGP for the float file: xmm8 sits outside
// auroraXMMPhysical's xmm0-xmm7 range, so the allocator never assigns
// it, leaving it free for atomic.go's compare-and-swap retry loop to
// stage the in-flight double value across the lock cmpxchg.
const scratchXMM = "xmm8"
