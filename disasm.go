// Completion: 70% - --debug=3 Plan9-syntax listing via asmfmt
package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/klauspost/asmfmt"
)

// Disassemble renders img's flat buffer as a Plan9-style TEXT listing
// (one TEXT block per placed label, its bytes as BYTE directives), then
// runs it through asmfmt.Format the same way ajroetker-goat canonicalizes
// its generated assembly text before writing it out. This is not a real
// x86-64 disassembler: it documents layout (which label owns which
// bytes) rather than decoding mnemonics, which is enough for a
// --debug=3 structural listing of what the driver placed where.
func Disassemble(img *CompiledImage) (string, *CompilerError) {
	type entry struct {
		name   string
		offset int64
	}
	var entries []entry
	for i, name := range img.Labels.names {
		if off := img.Labels.offsets[i]; off != -1 {
			entries = append(entries, entry{name, off})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	var sb strings.Builder
	for i, e := range entries {
		end := int64(len(img.Buf))
		if i+1 < len(entries) {
			end = entries[i+1].offset
		}
		fmt.Fprintf(&sb, "TEXT %s(SB), $0\n", e.name)
		writeByteDirectives(&sb, img.Buf[e.offset:end])
	}

	formatted, err := asmfmt.Format(strings.NewReader(sb.String()))
	if err != nil {
		// asmfmt expects real Plan9 assembly; a listing with
		// directives it doesn't recognize still has value
		// unformatted, so fall back to the raw text rather than
		// discard the listing entirely.
		return sb.String(), nil
	}
	return string(formatted), nil
}

func writeByteDirectives(sb *strings.Builder, bs []byte) {
	for _, b := range bs {
		fmt.Fprintf(sb, "\tBYTE $0x%02x\n", b)
	}
}
