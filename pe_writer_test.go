package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/aurora-lang/aurora/internal/platform"
)

// TestWritePEHeaderLayout checks the emitted file opens with the DOS
// "MZ" / PE "PE\0\0" magic, targets amd64, and that the import
// directory built for kernel32.dll resolves every __iat_* label
// before the deferred relocation pass runs.
func TestWritePEHeaderLayout(t *testing.T) {
	labels := NewLabelTable()
	id, _ := labels.Declare("fn_main")
	if err := labels.Place(id, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := &CompiledImage{
		Buf:    []byte{0x31, 0xC0, 0xC3}, // xor eax,eax ; ret
		Labels: labels,
		Target: platform.Platform{Arch: platform.ArchX86_64, OS: platform.OSWindows},
	}

	outPath := filepath.Join(t.TempDir(), "out.exe")
	if err := WritePE(img, outPath); err != nil {
		t.Fatalf("WritePE failed: %v", err)
	}

	data, rerr := os.ReadFile(outPath)
	if rerr != nil {
		t.Fatalf("failed to read written PE file: %v", rerr)
	}
	if data[0] != 'M' || data[1] != 'Z' {
		t.Fatalf("missing DOS 'MZ' magic, got % X", data[:2])
	}
	peOffset := binary.LittleEndian.Uint32(data[dosHeaderSize-4 : dosHeaderSize])
	if peOffset != uint32(dosHeaderSize+dosStubSize) {
		t.Errorf("PE header offset = %d, want %d", peOffset, dosHeaderSize+dosStubSize)
	}
	peStart := int(peOffset)
	if string(data[peStart:peStart+4]) != "PE\x00\x00" {
		t.Fatalf("missing PE signature at offset %d, got % X", peStart, data[peStart:peStart+4])
	}
	machine := binary.LittleEndian.Uint16(data[peStart+4 : peStart+6])
	if machine != 0x8664 {
		t.Errorf("machine type = 0x%X, want 0x8664 (amd64)", machine)
	}
	optMagic := binary.LittleEndian.Uint16(data[peStart+24 : peStart+26])
	if optMagic != 0x020B {
		t.Errorf("optional header magic = 0x%X, want 0x020B (PE32+)", optMagic)
	}
}

func TestWritePEImportDirectoryDeclaresEveryKernel32Symbol(t *testing.T) {
	labels := NewLabelTable()
	buildID, _ := labels.Declare("fn_main")
	if err := labels.Place(buildID, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idata, err := buildImportSection(labels, 0)
	if err != nil {
		t.Fatalf("buildImportSection failed: %v", err)
	}
	if len(idata) == 0 {
		t.Fatalf("expected a non-empty import section")
	}
	for _, name := range kernel32Imports {
		if _, ok := labels.OffsetOf(iatLabel(name)); !ok {
			t.Errorf("buildImportSection did not place an IAT label for %s", name)
		}
	}
}

func TestWritePEMissingMainIsError(t *testing.T) {
	img := &CompiledImage{
		Buf:    []byte{0x90},
		Labels: NewLabelTable(),
		Target: platform.Platform{Arch: platform.ArchX86_64, OS: platform.OSWindows},
	}
	outPath := filepath.Join(t.TempDir(), "out.exe")
	if err := WritePE(img, outPath); err == nil {
		t.Fatalf("expected an error writing an image with no fn_main label")
	}
}
