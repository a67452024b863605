package main

import "testing"

// TestManifestRenderParseRoundTrip builds a small manifest by hand,
// renders it to text, reparses it, and checks every line survives.
func TestManifestRenderParseRoundTrip(t *testing.T) {
	m := NewManifest("aurora-x86_64", 0x401000)
	m.AddShared("counter", TypeInt, "0")
	m.AddLabel("fn_main")
	m.AddInstruction(Instruction{
		Op:       MMov,
		Operands: []Operand{{Kind: OperandReg, Reg: "r0"}, {Kind: OperandImm, Imm: 42}},
	}, "load literal")
	m.AddLabel("str_lit_0")
	m.AddAscii("OK\n")
	m.AddPad(0x10)
	m.AddInstruction(Instruction{
		Op:       MCall,
		Operands: []Operand{{Kind: OperandLabel, Label: "fn_helper"}},
	}, "")
	m.AddHalt()

	text := m.Render()
	got, err := ParseManifest(text)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}

	if got.Header != m.Header {
		t.Errorf("header mismatch: got %q want %q", got.Header, m.Header)
	}
	if got.Org != m.Org {
		t.Errorf("org mismatch: got 0x%X want 0x%X", got.Org, m.Org)
	}
	if len(got.Sharing) != 1 || got.Sharing[0].Name != "counter" || got.Sharing[0].Type != TypeInt {
		t.Fatalf("shared slot mismatch: %+v", got.Sharing)
	}
	if len(got.Lines) != len(m.Lines) {
		t.Fatalf("line count mismatch: got %d want %d", len(got.Lines), len(m.Lines))
	}

	for i, want := range m.Lines {
		gotLine := got.Lines[i]
		if gotLine.Kind != want.Kind {
			t.Errorf("line %d kind mismatch: got %v want %v", i, gotLine.Kind, want.Kind)
			continue
		}
		switch want.Kind {
		case LineLabel:
			if gotLine.Label != want.Label {
				t.Errorf("line %d label mismatch: got %q want %q", i, gotLine.Label, want.Label)
			}
		case LineBytes:
			if gotLine.Bytes != want.Bytes {
				t.Errorf("line %d bytes mismatch: got 0x%X want 0x%X", i, gotLine.Bytes, want.Bytes)
			}
		case LineBytesRef:
			if gotLine.Bytes != want.Bytes || gotLine.RefLabel != want.RefLabel {
				t.Errorf("line %d bytesref mismatch: got (0x%X, %q) want (0x%X, %q)",
					i, gotLine.Bytes, gotLine.RefLabel, want.Bytes, want.RefLabel)
			}
		case LineAscii:
			if gotLine.Text != want.Text {
				t.Errorf("line %d ascii mismatch: got %q want %q", i, gotLine.Text, want.Text)
			}
		case LinePad:
			if gotLine.PadTo != want.PadTo {
				t.Errorf("line %d pad mismatch: got 0x%X want 0x%X", i, gotLine.PadTo, want.PadTo)
			}
		}
	}
}

func TestManifestCommentStrippedByParser(t *testing.T) {
	text := "header aurora-x86_64\norg 0x1000\nbytes 0x0000000000000000 ; a nop\nhalt\n"
	m, err := ParseManifest(text)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if len(m.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(m.Lines))
	}
	if m.Lines[0].Kind != LineBytes || m.Lines[0].Bytes != 0 {
		t.Errorf("unexpected first line: %+v", m.Lines[0])
	}
}

func TestParseManifestUnknownDirective(t *testing.T) {
	_, err := ParseManifest("header x\norg 0x0\nbogus 1\n")
	if err == nil {
		t.Fatalf("expected an error for an unknown manifest directive")
	}
}

func TestParseManifestMalformedHex(t *testing.T) {
	_, err := ParseManifest("header x\norg notHex\n")
	if err == nil {
		t.Fatalf("expected an error for a malformed org value")
	}
}
