// Completion: 90% - PE64 executable writer for the Windows target
package main

import (
	"encoding/binary"
	"fmt"
	"os"
)

// PE64 layout constants, grounded on the teacher's pe.go: DOS stub +
// COFF header + one PE32+ optional header + section table, a single
// combined RWX section (driver.go emits code and inline ascii data
// into one flat buffer rather than separate .text/.rdata streams),
// and a kernel32.dll import directory for the eight service symbols
// runtime_stubs.go and thread.go call through the IAT.
const (
	dosHeaderSize      = 64
	dosStubSize        = 128
	peSignatureSize    = 4
	coffHeaderSize     = 20
	optionalHeaderSize = 240
	sectionHeaderSize  = 40

	peImageBase    = 0x140000000
	peSectionAlign = 0x1000
	peFileAlign    = 0x200

	scnMemExecute  = 0x20000000
	scnMemRead     = 0x40000000
	scnMemWrite    = 0x80000000
	scnCntCode     = 0x00000020
	scnCntInitData = 0x00000040
)

// kernel32Imports is the fixed set of symbols the Service Runtime and
// thread encoder call through the IAT; order fixes each symbol's slot
// within the import address table.
var kernel32Imports = []string{
	"GetStdHandle", "WriteFile", "ReadFile", "ReadConsoleA",
	"CreateThread", "WaitForSingleObject", "ExitProcess", "CloseHandle",
}

// WritePE wraps img's flat code+data buffer in a PE64/Windows
// executable: DOS stub, COFF+PE32+ headers, one RWX section, and a
// kernel32.dll import directory. It appends the import table to
// img.Buf itself (so the RIP-relative __iat_* relocations resolve in
// the same coordinate space as every other label) before asking
// ResolveImage to run the deferred fix-up pass.
func WritePE(img *CompiledImage, outputPath string) *CompilerError {
	idataOffset := int64(len(img.Buf))
	importData, err := buildImportSection(img.Labels, idataOffset)
	if err != nil {
		return err
	}
	img.Buf = append(img.Buf, importData...)

	if rerr := ResolveImage(img); rerr != nil {
		return rerr
	}

	entryOffset, eerr := EntryPointOffset(img.Labels)
	if eerr != nil {
		return eerr
	}

	codeSize := alignTo(uint32(len(img.Buf)), peFileAlign)
	textVirtualAddr := uint32(peSectionAlign)
	entryRVA := textVirtualAddr + uint32(entryOffset)

	headerSize := alignTo(uint32(dosHeaderSize+dosStubSize+peSignatureSize+coffHeaderSize+
		optionalHeaderSize+sectionHeaderSize), peFileAlign)
	imageSize := alignTo(textVirtualAddr+uint32(len(img.Buf)), peSectionAlign)

	var out []byte
	out = appendDOSHeader(out)
	out = appendPEHeader(out, entryRVA, codeSize, imageSize, headerSize)
	out = appendSectionHeader(out, ".text", uint32(len(img.Buf)), textVirtualAddr, codeSize, headerSize,
		scnCntCode|scnCntInitData|scnMemExecute|scnMemRead|scnMemWrite)

	if pad := int(headerSize) - len(out); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	out = append(out, img.Buf...)
	if pad := int(codeSize) - len(img.Buf); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}

	if werr := os.WriteFile(outputPath, out, 0755); werr != nil {
		return ioErr(fmt.Sprintf("writing PE file: %v", werr))
	}
	return nil
}

func appendDOSHeader(out []byte) []byte {
	out = append(out, 0x4D, 0x5A) // "MZ"
	out = append(out, make([]byte, 58)...)
	peHeaderOffset := uint32(dosHeaderSize + dosStubSize)
	out = appendU32(out, peHeaderOffset)
	stub := []byte("This program requires Windows.\r\n$")
	out = append(out, stub...)
	out = append(out, make([]byte, dosStubSize-len(stub))...)
	return out
}

func appendPEHeader(out []byte, entryRVA, codeSize, imageSize, headerSize uint32) []byte {
	out = appendU32(out, 0x00004550) // "PE\0\0"
	out = appendU16(out, 0x8664)     // machine: amd64
	out = appendU16(out, 1)          // one section
	out = appendU32(out, 0)          // timestamp
	out = appendU32(out, 0)
	out = appendU32(out, 0)
	out = appendU16(out, optionalHeaderSize)
	out = appendU16(out, 0x0022) // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE

	out = appendU16(out, 0x020B) // PE32+ magic
	out = append(out, 1, 0)      // linker version
	out = appendU32(out, codeSize)
	out = appendU32(out, 0) // size of initialized data (folded into the one section)
	out = appendU32(out, 0)
	out = appendU32(out, entryRVA)
	out = appendU32(out, peSectionAlign) // base of code

	out = appendU64(out, peImageBase)
	out = appendU32(out, peSectionAlign)
	out = appendU32(out, peFileAlign)
	out = appendU16(out, 6) // OS version
	out = appendU16(out, 0)
	out = appendU16(out, 0)
	out = appendU16(out, 0)
	out = appendU16(out, 6) // subsystem version
	out = appendU16(out, 0)
	out = appendU32(out, 0)
	out = appendU32(out, imageSize)
	out = appendU32(out, headerSize)
	out = appendU32(out, 0) // checksum
	out = appendU16(out, 3) // subsystem: console
	out = appendU16(out, 0x8120)
	out = appendU64(out, 0x100000)
	out = appendU64(out, 0x1000)
	out = appendU64(out, 0x100000)
	out = appendU64(out, 0x1000)
	out = appendU32(out, 0)
	out = appendU32(out, 16)

	idataRVA, idataSize := importDirectoryLocation
	for i := 0; i < 16; i++ {
		if i == 1 {
			out = appendU32(out, idataRVA)
			out = appendU32(out, idataSize)
		} else {
			out = appendU64(out, 0)
		}
	}
	return out
}

// importDirectoryLocation is filled in by buildImportSection just
// before WritePE lays out the PE header; a PE image only has one
// import directory, so a package-level pair avoids threading it
// through every header-writing helper.
var importDirectoryLocation [2]uint32

func appendSectionHeader(out []byte, name string, virtualSize, virtualAddr, rawSize, rawAddr uint32, characteristics uint32) []byte {
	nameBytes := make([]byte, 8)
	copy(nameBytes, name)
	out = append(out, nameBytes...)
	out = appendU32(out, virtualSize)
	out = appendU32(out, virtualAddr)
	out = appendU32(out, rawSize)
	out = appendU32(out, rawAddr)
	out = appendU32(out, 0)
	out = appendU32(out, 0)
	out = appendU16(out, 0)
	out = appendU16(out, 0)
	out = appendU32(out, characteristics)
	return out
}

func appendU16(out []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(out, tmp[:]...)
}
func appendU32(out []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(out, tmp[:]...)
}
func appendU64(out []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(out, tmp[:]...)
}

func alignTo(v, align uint32) uint32 { return (v + align - 1) &^ (align - 1) }

// buildImportSection lays out a one-DLL import directory for
// kernel32.dll (Import Directory Table, Import Lookup Table, Import
// Address Table, Hint/Name Table, DLL name) at idataOffset within
// img's buffer, declaring and placing each "__iat_<symbol>" label at
// its IAT slot so callExternal's pending relocations resolve against
// real entries regardless of whether every symbol is actually called.
func buildImportSection(labels *LabelTable, idataOffset int64) ([]byte, *CompilerError) {
	n := len(kernel32Imports)
	idtSize := 2 * 20 // one library descriptor + null terminator
	iltSize := (n + 1) * 8
	iatSize := (n + 1) * 8

	iltOff := idtSize
	iatOff := iltOff + iltSize
	hintsOff := iatOff + iatSize

	hintOffsets := make([]int, n)
	cursor := hintsOff
	for i, name := range kernel32Imports {
		hintOffsets[i] = cursor
		entry := 2 + len(name) + 1
		if entry%2 != 0 {
			entry++
		}
		cursor += entry
	}
	nameOff := cursor
	total := nameOff + len("kernel32.dll") + 1

	buf := make([]byte, total)
	// rva converts an offset within this section back to an image RVA:
	// the PE header's import directory fields and the ILT/IAT hint
	// pointers are real RVAs (relative to peSectionAlign, the one
	// section's base), not raw buffer offsets, even though the labels
	// below stay in buffer-offset space to match every other relocation
	// the driver already placed.
	rva := func(off int) uint32 { return peSectionAlign + uint32(idataOffset) + uint32(off) }

	binary.LittleEndian.PutUint32(buf[0:], rva(iltOff))
	binary.LittleEndian.PutUint32(buf[12:], rva(nameOff))
	binary.LittleEndian.PutUint32(buf[16:], rva(iatOff))

	for i, name := range kernel32Imports {
		binary.LittleEndian.PutUint64(buf[iltOff+i*8:], uint64(rva(hintOffsets[i])))
		binary.LittleEndian.PutUint64(buf[iatOff+i*8:], uint64(rva(hintOffsets[i])))
		id, derr := labels.DeclareAt(iatLabel(name), idataOffset+int64(iatOff+i*8))
		if derr != nil {
			return nil, derr
		}
		_ = id
	}
	for i, name := range kernel32Imports {
		off := hintOffsets[i]
		// hint (uint16, 0 = search by name) + name + NUL, already
		// 2-byte aligned by construction above.
		copy(buf[off+2:], name)
	}
	copy(buf[nameOff:], "kernel32.dll")

	importDirectoryLocation[0] = rva(0)
	importDirectoryLocation[1] = uint32(total)
	return buf, nil
}
