// Completion: 100% - Flat label table and relocation fix-up pass complete
package main

import "fmt"

// RelocationKind distinguishes what a relocation patches.
type RelocationKind int

const (
	RelRel32     RelocationKind = iota // CALL/JMP/CJMP displacement into .text
	RelAbs64Data                       // absolute address of a .rdata/.data item
	RelRel32Data                       // RIP-relative displacement into .rdata/.data
	RelRel32IAT                        // RIP-relative displacement into the import address table
)

// Relocation is a deferred patch: write a displacement or address at
// patchOffset once target's final offset is known. Labels are
// referenced by integer id rather than by pointer so the table stays
// flat and free of reference cycles.
type Relocation struct {
	PatchOffset int64
	TargetID    int
	Kind        RelocationKind
	// InstrEnd is the file offset immediately after the 4-byte
	// displacement field, needed to compute a rel32 as target-InstrEnd.
	InstrEnd int64
}

// LabelTable is the flat, integer-indexed table of labels defined
// across an entire compilation unit (one Native Compiler Driver run).
// Label names are scoped by the caller (function-local labels get a
// function-prefixed name) so the table itself only enforces global
// uniqueness of whatever name it's given.
type LabelTable struct {
	nameToID map[string]int
	offsets  []int64 // offsets[id] == -1 until the label is placed
	names    []string
	relocs   []Relocation
}

func NewLabelTable() *LabelTable {
	return &LabelTable{nameToID: make(map[string]int)}
}

// Declare registers name and returns its id, allocating a fresh id if
// the name has not been seen before. It does not set the label's
// offset; Place does that once code layout reaches it.
func (lt *LabelTable) Declare(name string) (int, *CompilerError) {
	if id, ok := lt.nameToID[name]; ok {
		return id, nil
	}
	id := len(lt.offsets)
	lt.nameToID[name] = id
	lt.offsets = append(lt.offsets, -1)
	lt.names = append(lt.names, name)
	return id, nil
}

// Place records the file offset at which id's label sits. Calling it
// twice for the same id is a LinkError: no two labels may share a
// name, enforced at the point of definition rather than declaration.
func (lt *LabelTable) Place(id int, offset int64) *CompilerError {
	if lt.offsets[id] != -1 {
		return linkErr(fmt.Sprintf("label '%s' defined more than once", lt.names[id]))
	}
	lt.offsets[id] = offset
	return nil
}

// OffsetOf returns name's placed offset, if it was ever declared and
// placed. The bool is false for an unknown name or one declared but
// never placed.
func (lt *LabelTable) OffsetOf(name string) (int64, bool) {
	id, ok := lt.nameToID[name]
	if !ok || lt.offsets[id] == -1 {
		return 0, false
	}
	return lt.offsets[id], true
}

// DeclareAt declares name (if not already known) and places it at
// offset in one step, for callers (Executable Writers) that append
// trailing sections to an already-assembled buffer.
func (lt *LabelTable) DeclareAt(name string, offset int64) (int, *CompilerError) {
	id, err := lt.Declare(name)
	if err != nil {
		return 0, err
	}
	if lt.offsets[id] == -1 {
		lt.offsets[id] = offset
	}
	return id, nil
}

// AddRelocation records a patch to apply once every label is placed.
func (lt *LabelTable) AddRelocation(r Relocation) {
	lt.relocs = append(lt.relocs, r)
}

// Resolve walks every recorded relocation and returns the fix-ups to
// apply to the assembled byte buffer: (patchOffset, value, width).
// Callers write these back into the text/data sections after the full
// image layout (including import table placement) is known.
func (lt *LabelTable) Resolve() ([]ResolvedFixup, *CompilerError) {
	var out []ResolvedFixup
	for _, r := range lt.relocs {
		if r.TargetID < 0 || r.TargetID >= len(lt.offsets) {
			return nil, linkErr("relocation references unknown label id")
		}
		target := lt.offsets[r.TargetID]
		if target == -1 {
			return nil, linkErr(fmt.Sprintf("unresolved label '%s'", lt.names[r.TargetID]))
		}
		switch r.Kind {
		case RelRel32, RelRel32Data, RelRel32IAT:
			disp := int32(target - r.InstrEnd)
			out = append(out, ResolvedFixup{Offset: r.PatchOffset, Value: uint64(uint32(disp)), Width: 4})
		case RelAbs64Data:
			out = append(out, ResolvedFixup{Offset: r.PatchOffset, Value: uint64(target), Width: 8})
		}
	}
	return out, nil
}

// ResolvedFixup is a concrete byte-buffer patch ready to apply.
type ResolvedFixup struct {
	Offset int64
	Value  uint64
	Width  int
}
