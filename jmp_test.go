package main

import "testing"

// TestCondOpcodeSignedFamily checks integer compares lower onto the
// signed Jcc family (JL/JLE/JG/JGE), not the unsigned one - using the
// unsigned family for a signed comparison would flip the result for
// any negative operand.
func TestCondOpcodeSignedFamily(t *testing.T) {
	want := map[CondCode]byte{
		CondEQ: 0x84, CondNE: 0x85,
		CondLT: 0x8C, CondLE: 0x8E,
		CondGT: 0x8F, CondGE: 0x8D,
	}
	for cond, op := range want {
		if got := condOpcode(cond, false); got != op {
			t.Errorf("condOpcode(%v, signed) = 0x%02X, want 0x%02X", cond, got, op)
		}
	}
}

// TestCondOpcodeUnsignedFamilyForFloat checks float compares lower
// onto the unsigned Jcc family (JB/JBE/JA/JAE), matching UCOMISD's
// CF/ZF semantics rather than the signed OF/SF/ZF ones.
func TestCondOpcodeUnsignedFamilyForFloat(t *testing.T) {
	want := map[CondCode]byte{
		CondEQ: 0x84, CondNE: 0x85,
		CondLT: 0x82, CondLE: 0x86,
		CondGT: 0x87, CondGE: 0x83,
	}
	for cond, op := range want {
		if got := condOpcode(cond, true); got != op {
			t.Errorf("condOpcode(%v, float) = 0x%02X, want 0x%02X", cond, got, op)
		}
	}
}

// TestCondOpcodeSignedUnsignedDiverge confirms the two families
// actually differ for the ordered comparisons: if they ever collapsed
// to the same byte, the signed/unsigned distinction this function
// exists to preserve would have silently vanished.
func TestCondOpcodeSignedUnsignedDiverge(t *testing.T) {
	for _, cond := range []CondCode{CondLT, CondLE, CondGT, CondGE} {
		signed := condOpcode(cond, false)
		unsigned := condOpcode(cond, true)
		if signed == unsigned {
			t.Errorf("condOpcode(%v) gives the same byte (0x%02X) for signed and float compares", cond, signed)
		}
	}
}
