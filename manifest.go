// Completion: 100% - Manifest writer and parser complete
package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Manifest is the canonical intermediate artifact between the code
// generator and the Native Compiler Driver: a textual, line-oriented
// serialization of MISA instructions plus data/label/padding
// directives.
//
// Grammar (one directive per line, `;` starts a trailing comment):
//
//	header <name>
//	org <hex>
//	label <name>
//	bytes 0xHHHHHHHHHHHHHHHH [; comment]
//	bytesref 0xHHHHHHHHHHHHHHHH <label> [; comment]
//	ascii "text"
//	pad 0xN
//	shared <name> <type> <value>
//	halt
type Manifest struct {
	Header  string
	Org     uint64
	Lines   []ManifestLine
	Sharing []SharedSlot
}

type SharedSlot struct {
	Name  string
	Type  Type
	Value string
}

// ManifestLineKind tags which directive a line carries.
type ManifestLineKind int

const (
	LineLabel ManifestLineKind = iota
	LineBytes
	LineBytesRef
	LineAscii
	LinePad
	LineHalt
)

// ManifestLine is one parsed/rendered manifest directive. RefLabel is
// only set on LineBytesRef: the name of the label the instruction's
// single label operand targets, carried through the text form so the
// Native Compiler Driver can resolve it by name rather than replaying
// the code generator's label-id assignment order (which a forward
// reference, e.g. a CALL to a function defined later in the file,
// would otherwise make impossible to reconstruct).
type ManifestLine struct {
	Kind     ManifestLineKind
	Label    string
	Bytes    uint64
	RefLabel string
	Text     string
	PadTo    uint64
	Comment  string
}

// NewManifest starts an empty manifest for the given ISA profile name.
func NewManifest(header string, org uint64) *Manifest {
	return &Manifest{Header: header, Org: org}
}

func (m *Manifest) AddLabel(name string) {
	m.Lines = append(m.Lines, ManifestLine{Kind: LineLabel, Label: name})
}

func (m *Manifest) AddInstruction(ins Instruction, comment string) {
	slot, floatSlot := EncodeSlot(ins)
	ln := ManifestLine{Kind: LineBytes, Bytes: slotToUint64(slot), Comment: comment}
	for _, opnd := range ins.Operands {
		if opnd.Kind == OperandLabel {
			ln.Kind = LineBytesRef
			ln.RefLabel = opnd.Label
			break
		}
	}
	m.Lines = append(m.Lines, ln)
	if floatSlot != nil {
		m.Lines = append(m.Lines, ManifestLine{Kind: LineBytes, Bytes: *floatSlot})
	}
}

func (m *Manifest) AddHalt() {
	m.Lines = append(m.Lines, ManifestLine{Kind: LineHalt})
}

func (m *Manifest) AddAscii(text string) {
	m.Lines = append(m.Lines, ManifestLine{Kind: LineAscii, Text: text})
}

func (m *Manifest) AddPad(to uint64) {
	m.Lines = append(m.Lines, ManifestLine{Kind: LinePad, PadTo: to})
}

func (m *Manifest) AddShared(name string, ty Type, value string) {
	m.Sharing = append(m.Sharing, SharedSlot{Name: name, Type: ty, Value: value})
}

// slotToUint64 packs a 16-byte slot's low 8 bytes (opcode/operands/imm)
// into the `bytes` directive's single 64-bit value; the high 8 bytes
// are padding and carry no information in the textual form.
func slotToUint64(slot [16]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(slot[i]) << (8 * uint(7-i))
	}
	return v
}

// Render writes the manifest in its canonical textual form.
func (m *Manifest) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "header %s\n", m.Header)
	fmt.Fprintf(&sb, "org 0x%X\n", m.Org)
	for _, s := range m.Sharing {
		fmt.Fprintf(&sb, "shared %s %s %s\n", s.Name, s.Type, s.Value)
	}
	for _, ln := range m.Lines {
		switch ln.Kind {
		case LineLabel:
			fmt.Fprintf(&sb, "label %s\n", ln.Label)
		case LineBytes:
			if ln.Comment != "" {
				fmt.Fprintf(&sb, "bytes 0x%016X ; %s\n", ln.Bytes, ln.Comment)
			} else {
				fmt.Fprintf(&sb, "bytes 0x%016X\n", ln.Bytes)
			}
		case LineBytesRef:
			if ln.Comment != "" {
				fmt.Fprintf(&sb, "bytesref 0x%016X %s ; %s\n", ln.Bytes, ln.RefLabel, ln.Comment)
			} else {
				fmt.Fprintf(&sb, "bytesref 0x%016X %s\n", ln.Bytes, ln.RefLabel)
			}
		case LineAscii:
			fmt.Fprintf(&sb, "ascii %q\n", ln.Text)
		case LinePad:
			fmt.Fprintf(&sb, "pad 0x%X\n", ln.PadTo)
		case LineHalt:
			sb.WriteString("halt\n")
		}
	}
	return sb.String()
}

// ParseManifest re-parses a manifest's textual form, the first step of
// the Native Compiler Driver. It does not decode
// `bytes` lines into Instruction values; DecodeSlot/DecodeSlotRef do
// that in the driver (driver.go), which builds its own label table
// (label_table.go).
func ParseManifest(text string) (*Manifest, *CompilerError) {
	m := &Manifest{}
	sc := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		line := strings.TrimSpace(stripManifestComment(raw))
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		loc := SourceLocation{File: "<manifest>", Line: lineNo}
		switch fields[0] {
		case "header":
			if len(fields) < 2 {
				return nil, encodingErr("header directive missing name").withLoc(loc)
			}
			m.Header = fields[1]
		case "org":
			if len(fields) < 2 {
				return nil, encodingErr("org directive missing value").withLoc(loc)
			}
			v, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
			if err != nil {
				return nil, encodingErr("invalid org value '" + fields[1] + "'").withLoc(loc)
			}
			m.Org = v
		case "label":
			if len(fields) < 2 {
				return nil, encodingErr("label directive missing name").withLoc(loc)
			}
			m.Lines = append(m.Lines, ManifestLine{Kind: LineLabel, Label: fields[1]})
		case "bytes":
			if len(fields) < 2 {
				return nil, encodingErr("bytes directive missing value").withLoc(loc)
			}
			v, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
			if err != nil {
				return nil, encodingErr("invalid bytes value '" + fields[1] + "'").withLoc(loc)
			}
			m.Lines = append(m.Lines, ManifestLine{Kind: LineBytes, Bytes: v})
		case "bytesref":
			if len(fields) < 3 {
				return nil, encodingErr("bytesref directive missing value or label").withLoc(loc)
			}
			v, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
			if err != nil {
				return nil, encodingErr("invalid bytesref value '" + fields[1] + "'").withLoc(loc)
			}
			m.Lines = append(m.Lines, ManifestLine{Kind: LineBytesRef, Bytes: v, RefLabel: fields[2]})
		case "ascii":
			text, err := strconv.Unquote(strings.Join(fields[1:], " "))
			if err != nil {
				return nil, encodingErr("invalid ascii directive").withLoc(loc)
			}
			m.Lines = append(m.Lines, ManifestLine{Kind: LineAscii, Text: text})
		case "pad":
			if len(fields) < 2 {
				return nil, encodingErr("pad directive missing value").withLoc(loc)
			}
			v, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
			if err != nil {
				return nil, encodingErr("invalid pad value '" + fields[1] + "'").withLoc(loc)
			}
			m.Lines = append(m.Lines, ManifestLine{Kind: LinePad, PadTo: v})
		case "shared":
			if len(fields) < 4 {
				return nil, encodingErr("shared directive requires name, type, value").withLoc(loc)
			}
			m.Sharing = append(m.Sharing, SharedSlot{Name: fields[1], Type: parseManifestType(fields[2]), Value: fields[3]})
		case "halt":
			m.Lines = append(m.Lines, ManifestLine{Kind: LineHalt})
		default:
			return nil, encodingErr("unknown manifest directive '" + fields[0] + "'").withLoc(loc)
		}
	}
	return m, nil
}

func parseManifestType(s string) Type {
	switch s {
	case "int":
		return TypeInt
	case "float":
		return TypeFloat
	case "bool":
		return TypeBool
	case "string":
		return TypeString
	case "thread":
		return TypeThread
	default:
		return TypeUnknown
	}
}

func stripManifestComment(line string) string {
	if i := strings.Index(line, ";"); i >= 0 {
		return line[:i]
	}
	return line
}

// withLoc attaches a source location to an error built without one
// (the encodingErr/ioErr/etc. helpers omit it since most callers have
// no source position; the manifest parser does).
func (e *CompilerError) withLoc(loc SourceLocation) *CompilerError {
	e.Location = loc
	return e
}
