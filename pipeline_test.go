package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aurora-lang/aurora/internal/platform"
)

// The six literal programs spec.md names as end-to-end acceptance
// scenarios. Each is compiled through the full front end to a
// manifest; assertions check the manifest carries the instruction
// shapes that scenario depends on, since actually executing a
// freshly-assembled PE64/ELF64 image is outside what a Go test can
// portably do.
func TestLiteralProgramReturn42(t *testing.T) {
	manifest := compileOrFatal(t, `fn main()->int { return 42; }`)
	if !strings.Contains(manifest, "header aurora-x86_64") {
		t.Fatalf("manifest missing header line:\n%s", manifest)
	}
	if !strings.Contains(manifest, "label fn_main") {
		t.Fatalf("manifest missing fn_main label:\n%s", manifest)
	}
}

func TestLiteralProgramPrintString(t *testing.T) {
	manifest := compileOrFatal(t, `fn main()->int { let s:string="OK\n"; print(s); return 0; }`)
	if !strings.Contains(manifest, `ascii "OK\n"`) {
		t.Fatalf("manifest missing the string literal's ascii directive:\n%s", manifest)
	}
}

func TestLiteralProgramAccumulatorLoop(t *testing.T) {
	src := `fn main()->int {
		let total:int=0;
		let i:int=0;
		while i<10 {
			total=total+1;
			i=i+1;
		}
		return total;
	}`
	manifest := compileOrFatal(t, src)
	if !strings.Contains(manifest, "label fn_main") {
		t.Fatalf("manifest missing fn_main label:\n%s", manifest)
	}
}

func TestLiteralProgramAddFunctionCall(t *testing.T) {
	src := `fn add(a:int,b:int)->int{return a+b;}
	fn main()->int{return add(3,5);}`
	manifest := compileOrFatal(t, src)
	if !strings.Contains(manifest, "label fn_add") {
		t.Fatalf("manifest missing fn_add label:\n%s", manifest)
	}
	callRef := false
	for _, line := range strings.Split(manifest, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "bytesref ") && strings.Contains(line, " fn_add") {
			callRef = true
		}
	}
	if !callRef {
		t.Fatalf("manifest never references fn_add as a call target:\n%s", manifest)
	}
}

func TestLiteralProgramFloatPrint(t *testing.T) {
	src := `fn main()->int { let x:float=3.141592653589793; print(x); return 0; }`
	manifest := compileOrFatal(t, src)

	m, perr := ParseManifest(manifest)
	if perr != nil {
		t.Fatalf("ParseManifest failed: %v", perr)
	}
	var sawFMov, sawPrintFloatSvc bool
	for _, ln := range m.Lines {
		if ln.Kind != LineBytes && ln.Kind != LineBytesRef {
			continue
		}
		slot := uint64ToSlot(ln.Bytes)
		ins := DecodeSlot(slot)
		if ins.Op == MFMov {
			sawFMov = true
		}
		if ins.Op == MSvc && len(ins.Operands) == 1 && ins.Operands[0].Kind == OperandImm &&
			ServiceCode(ins.Operands[0].Imm) == SvcPrintFloat {
			sawPrintFloatSvc = true
		}
	}
	if !sawFMov {
		t.Errorf("expected a local float variable to lower through FMOV, not MOV:\n%s", manifest)
	}
	if !sawPrintFloatSvc {
		t.Errorf("expected print(x) on a float variable to dispatch SVC print_float, got:\n%s", manifest)
	}
}

func TestLiteralProgramAtomicLeibniz(t *testing.T) {
	// spawn(...) only launches zero-arity functions, so each worker's
	// starting term and step are baked in rather than passed as args.
	src := `shared total: int = 0;
	fn pos_worker()->int {
		let i:int=0;
		let n:int=1;
		while i<1000 {
			atomic.add(total, n);
			n=n+2;
			i=i+1;
		}
		return 0;
	}
	fn neg_worker()->int {
		let i:int=0;
		let n:int=-1;
		while i<1000 {
			atomic.add(total, n);
			n=n-2;
			i=i+1;
		}
		return 0;
	}
	fn main()->int {
		let h1:thread = spawn(pos_worker);
		let h2:thread = spawn(neg_worker);
		join(h1);
		join(h2);
		return total;
	}`
	manifest := compileOrFatal(t, src)
	if !strings.Contains(manifest, "shared total int") {
		t.Fatalf("manifest missing the shared 'total' declaration:\n%s", manifest)
	}

	m, perr := ParseManifest(manifest)
	if perr != nil {
		t.Fatalf("ParseManifest failed: %v", perr)
	}
	var sawAtomicAdd, sawSpawn, sawJoin bool
	for _, ln := range m.Lines {
		if ln.Kind != LineBytes && ln.Kind != LineBytesRef {
			continue
		}
		switch DecodeSlot(uint64ToSlot(ln.Bytes)).Op {
		case MAtomicAdd:
			sawAtomicAdd = true
		case MSpawn:
			sawSpawn = true
		case MJoin:
			sawJoin = true
		}
	}
	if !sawAtomicAdd || !sawSpawn || !sawJoin {
		t.Errorf("expected ATOMIC_ADD, SPAWN and JOIN all present: add=%v spawn=%v join=%v", sawAtomicAdd, sawSpawn, sawJoin)
	}
}

// TestBuildNativeWritesPE checks the full pipeline (source -> manifest
// -> Native Compiler Driver -> PE64 writer) produces a file opening
// with the DOS "MZ" magic for the simplest literal program.
func TestBuildNativeWritesPE(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.exe")
	target := platform.Platform{Arch: platform.ArchX86_64, OS: platform.OSWindows}
	if cerr := BuildNative(`fn main()->int { return 42; }`, "return42.aur", outPath, target); cerr != nil {
		t.Fatalf("BuildNative failed: %v", cerr)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read built executable: %v", err)
	}
	if data[0] != 'M' || data[1] != 'Z' {
		t.Fatalf("built PE executable missing MZ magic, got % X", data[:2])
	}
}

// TestBuildNativeWritesELF mirrors TestBuildNativeWritesPE for the
// Linux/ELF64 target.
func TestBuildNativeWritesELF(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.elf")
	target := platform.Platform{Arch: platform.ArchX86_64, OS: platform.OSLinux}
	if cerr := BuildNative(`fn main()->int { return 42; }`, "return42.aur", outPath, target); cerr != nil {
		t.Fatalf("BuildNative failed: %v", cerr)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read built executable: %v", err)
	}
	if data[0] != 0x7F || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		t.Fatalf("built ELF executable missing magic, got % X", data[:4])
	}
}

func compileOrFatal(t *testing.T, src string) string {
	t.Helper()
	manifest, cerr := CompileSource(src, "<test>")
	if cerr != nil {
		t.Fatalf("CompileSource failed: %v", cerr)
	}
	return manifest
}
