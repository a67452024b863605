// Completion: 100% - top-level source-to-artifact pipeline
package main

import (
	"os"
)

// CompileSource runs the full front end (lex -> parse -> validate ->
// codegen) and renders the result to the textual MISA manifest, the
// one artifact `aurora compile` writes and `aurora native` feeds
// straight into Compile/WritePE/WriteELF without reparsing it.
func CompileSource(src, filename string) (string, *CompilerError) {
	p := NewParser(src, filename)
	prog, perr := p.ParseProgram()
	if perr != nil {
		return "", perr
	}
	if verr := NewValidator(prog).Validate(); verr != nil {
		return "", verr
	}
	m, _, cerr := NewCodeGenerator(prog).Generate(prog)
	if cerr != nil {
		return "", cerr
	}
	return m.Render(), nil
}

// BuildNative runs the whole pipeline from source text to an on-disk
// native executable: front end -> manifest -> Native Compiler Driver
// -> the Executable Writer matching target.
func BuildNative(src, filename, outputPath string, target Target) *CompilerError {
	manifestText, cerr := CompileSource(src, filename)
	if cerr != nil {
		return cerr
	}
	debugf(1, "-> generated manifest (%d bytes)\n", len(manifestText))

	img, derr := Compile(manifestText, target)
	if derr != nil {
		return derr
	}
	debugf(1, "-> assembled %d bytes of machine code\n", len(img.Buf))

	if DebugLevel >= 3 {
		if listing, derr := Disassemble(img); derr == nil {
			os.Stderr.WriteString(listing)
		}
	}

	if target.IsELF() {
		return WriteELF(img, outputPath)
	}
	return WritePE(img, outputPath)
}
