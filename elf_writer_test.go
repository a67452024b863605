package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/aurora-lang/aurora/internal/platform"
)

// TestWriteELFHeaderLayout checks the emitted file opens with the
// ELF64 magic, machine type, and entry point Aurora's loader contract
// (elf_writer.go) promises, for a minimal one-instruction program.
func TestWriteELFHeaderLayout(t *testing.T) {
	labels := NewLabelTable()
	id, _ := labels.Declare("fn_main")
	if err := labels.Place(id, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := &CompiledImage{
		Buf:    []byte{0x31, 0xC0, 0xC3}, // xor eax,eax ; ret
		Labels: labels,
		Target: platform.Platform{Arch: platform.ArchX86_64, OS: platform.OSLinux},
	}

	outPath := filepath.Join(t.TempDir(), "out.elf")
	if err := WriteELF(img, outPath); err != nil {
		t.Fatalf("WriteELF failed: %v", err)
	}

	data, rerr := os.ReadFile(outPath)
	if rerr != nil {
		t.Fatalf("failed to read written ELF file: %v", rerr)
	}
	if len(data) < elfHeaderTotal {
		t.Fatalf("written file too short: %d bytes", len(data))
	}
	if data[0] != 0x7F || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		t.Fatalf("missing ELF magic, got % X", data[:4])
	}
	if data[4] != 2 {
		t.Errorf("expected ELFCLASS64 (2), got %d", data[4])
	}
	machine := binary.LittleEndian.Uint16(data[18:20])
	if machine != 0x3E {
		t.Errorf("expected EM_X86_64 (0x3E), got 0x%X", machine)
	}
	entry := binary.LittleEndian.Uint64(data[24:32])
	wantEntry := uint64(elfBaseAddr + elfHeaderTotal)
	if entry != wantEntry {
		t.Errorf("entry point = 0x%X, want 0x%X", entry, wantEntry)
	}

	// The code buffer itself must appear unmodified right after the
	// fixed-size header+program-header prefix.
	tail := data[elfHeaderTotal:]
	if len(tail) != len(img.Buf) {
		t.Fatalf("trailing code length = %d, want %d", len(tail), len(img.Buf))
	}
	for i, b := range img.Buf {
		if tail[i] != b {
			t.Fatalf("code byte %d = 0x%02X, want 0x%02X", i, tail[i], b)
		}
	}
}

func TestWriteELFMissingMainIsError(t *testing.T) {
	img := &CompiledImage{Buf: []byte{0x90}, Labels: NewLabelTable(), Target: platform.Platform{Arch: platform.ArchX86_64, OS: platform.OSLinux}}
	outPath := filepath.Join(t.TempDir(), "out.elf")
	if err := WriteELF(img, outPath); err == nil {
		t.Fatalf("expected an error writing an image with no fn_main label")
	}
}
