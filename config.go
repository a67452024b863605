// Completion: 100% - Compile options and environment-variable resolution
package main

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/aurora-lang/aurora/internal/platform"
)

// VerboseMode gates the extra stderr tracing the lexer/encoder/driver
// print when --debug requests it; the watch-mode file watchers
// (filewatcher_unix.go, filewatcher_darwin.go) check it directly
// rather than threading a logger through every call.
var VerboseMode bool

// DebugLevel is --debug's 0..3 verbosity: 0 silent, 1 phase
// transitions, 2 per-instruction encoding traces, 3 also emits the
// asmfmt-formatted disassembly listing (see disasm.go).
var DebugLevel int

// OutputKind selects how far the pipeline runs.
type OutputKind int

const (
	OutputManifest OutputKind = iota // `compile`: source -> .aurs manifest only
	OutputNative                     // `native`: source -> PE64/ELF64 executable
)

// CompileOptions is the resolved configuration for one compiler
// invocation: CLI flags layered over environment overrides, the same
// precedence the corpus's own CLI establishes between explicit flags
// and ambient environment state.
type CompileOptions struct {
	Input   string
	Output  string
	Kind    OutputKind
	Target  platform.Platform
	Debug   int
	Watch   bool
	NoColor bool
}

// ResolveOptions layers environment overrides under the already-parsed
// CLI flags in opts: an explicit flag always wins; AURORA_DEBUG,
// AURORA_TARGET and AURORA_NO_COLOR only fill in a field the flags
// left at its zero value.
func ResolveOptions(opts CompileOptions) CompileOptions {
	if opts.Debug == 0 {
		if lvl := env.Int("AURORA_DEBUG", 0); lvl != 0 {
			opts.Debug = lvl
		}
	}
	if opts.Target == (platform.Platform{}) {
		if s := env.Str("AURORA_TARGET"); s != "" {
			if t, err := parseTargetString(s); err == nil {
				opts.Target = t
			}
		}
	}
	if env.Bool("AURORA_NO_COLOR") {
		opts.NoColor = true
	}
	VerboseMode = opts.Debug >= 1
	DebugLevel = opts.Debug
	return opts
}

// parseTargetString accepts a bare OS name ("windows", "linux") since
// Aurora's only arch is x86-64.
func parseTargetString(s string) (platform.Platform, error) {
	o, err := platform.ParseOS(s)
	if err != nil {
		return platform.Platform{}, err
	}
	return platform.Platform{Arch: platform.ArchX86_64, OS: o}, nil
}

// debugf prints a trace line to stderr when DebugLevel is at least
// min, mirroring the teacher's own VerboseMode-gated Fprintf calls.
func debugf(min int, format string, args ...any) {
	if DebugLevel < min {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
