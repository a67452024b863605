package main

import "testing"

func TestLabelTableDeclareIsIdempotent(t *testing.T) {
	lt := NewLabelTable()
	id1, err := lt.Declare("fn_main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := lt.Declare("fn_main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("Declare returned different ids for the same name: %d, %d", id1, id2)
	}
}

func TestLabelTablePlaceThenOffsetOf(t *testing.T) {
	lt := NewLabelTable()
	id, _ := lt.Declare("loop_start")
	if _, ok := lt.OffsetOf("loop_start"); ok {
		t.Fatalf("expected OffsetOf to report unplaced before Place")
	}
	if err := lt.Place(id, 128); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	off, ok := lt.OffsetOf("loop_start")
	if !ok || off != 128 {
		t.Errorf("OffsetOf = (%d, %v), want (128, true)", off, ok)
	}
}

func TestLabelTablePlaceTwiceIsLinkError(t *testing.T) {
	lt := NewLabelTable()
	id, _ := lt.Declare("fn_main")
	if err := lt.Place(id, 0); err != nil {
		t.Fatalf("unexpected error on first Place: %v", err)
	}
	if err := lt.Place(id, 16); err == nil {
		t.Fatalf("expected a LinkError placing the same label twice")
	}
}

func TestLabelTableOffsetOfUnknownName(t *testing.T) {
	lt := NewLabelTable()
	if _, ok := lt.OffsetOf("nope"); ok {
		t.Errorf("expected OffsetOf to report false for an undeclared name")
	}
}

func TestLabelTableDeclareAt(t *testing.T) {
	lt := NewLabelTable()
	id, err := lt.DeclareAt("__iat_ExitProcess", 512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	off, ok := lt.OffsetOf("__iat_ExitProcess")
	if !ok || off != 512 {
		t.Errorf("OffsetOf after DeclareAt = (%d, %v), want (512, true)", off, ok)
	}

	// Calling DeclareAt again for the same name must not move its
	// offset: appended sections declare-and-place in one step, so a
	// second call (e.g. a relocation referencing the same import twice)
	// must see the original placement.
	id2, err := lt.DeclareAt("__iat_ExitProcess", 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != id2 {
		t.Errorf("DeclareAt allocated a second id for the same name")
	}
	off, _ = lt.OffsetOf("__iat_ExitProcess")
	if off != 512 {
		t.Errorf("second DeclareAt moved the offset to %d, want 512", off)
	}
}

func TestLabelTableResolveRel32(t *testing.T) {
	lt := NewLabelTable()
	target, _ := lt.Declare("fn_add")
	if err := lt.Place(target, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lt.AddRelocation(Relocation{PatchOffset: 10, TargetID: target, Kind: RelRel32, InstrEnd: 14})

	fixups, err := lt.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixups) != 1 {
		t.Fatalf("expected 1 fixup, got %d", len(fixups))
	}
	f := fixups[0]
	if f.Offset != 10 || f.Width != 4 {
		t.Errorf("fixup offset/width = %d/%d, want 10/4", f.Offset, f.Width)
	}
	wantDisp := int32(100 - 14)
	if int32(uint32(f.Value)) != wantDisp {
		t.Errorf("fixup value = %d, want displacement %d", int32(uint32(f.Value)), wantDisp)
	}
}

func TestLabelTableResolveUnplacedIsError(t *testing.T) {
	lt := NewLabelTable()
	target, _ := lt.Declare("fn_never_defined")
	lt.AddRelocation(Relocation{PatchOffset: 0, TargetID: target, Kind: RelRel32, InstrEnd: 4})
	if _, err := lt.Resolve(); err == nil {
		t.Fatalf("expected an error resolving a relocation against an unplaced label")
	}
}

func TestLabelTableResolveAbs64Data(t *testing.T) {
	lt := NewLabelTable()
	target, _ := lt.Declare("str_lit_0")
	if err := lt.Place(target, 0x2000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lt.AddRelocation(Relocation{PatchOffset: 40, TargetID: target, Kind: RelAbs64Data})

	fixups, err := lt.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixups) != 1 || fixups[0].Width != 8 || fixups[0].Value != 0x2000 {
		t.Errorf("unexpected fixup: %+v", fixups[0])
	}
}
