// Completion: 95% - CLI entry point, flag parsing and subcommand dispatch
package main

import (
	"flag"
	"fmt"
	"os"
)

const versionString = "aurora 0.1.0"

// main mirrors the teacher's own flag-then-subcommand layering: flags
// must precede the input file (`aurora --target linux native hello.aur`,
// not `aurora native hello.aur --target linux`), the same Go flag
// package limitation the teacher's main.go documents.
func main() {
	var (
		outputFlag  = flag.String("o", "", "output path")
		targetFlag  = flag.String("target", "", "target OS: windows (PE64, default) or linux (ELF64)")
		debugFlag   = flag.Int("debug", 0, "verbosity 0-3")
		watchFlag   = flag.Bool("watch", false, "recompile on source change (build only)")
		noColorFlag = flag.Bool("no-color", false, "disable ANSI color in diagnostics")
		versionFlag = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Println(versionString)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage()
		return
	case "version", "--version":
		fmt.Println(versionString)
		return
	}

	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: aurora <compile|native|build> <input.aur>\n")
		os.Exit(1)
	}
	subcmd, input := args[0], args[1]

	target := defaultTarget()
	if *targetFlag != "" {
		t, terr := parseTargetString(*targetFlag)
		if terr != nil {
			fmt.Fprintf(os.Stderr, "invalid --target %q: %v\n", *targetFlag, terr)
			os.Exit(1)
		}
		target = t
	}

	globalNoColor = *noColorFlag
	opts := ResolveOptions(CompileOptions{
		Input:   input,
		Output:  *outputFlag,
		Target:  target,
		Debug:   *debugFlag,
		Watch:   *watchFlag,
		NoColor: *noColorFlag,
	})

	var err error
	switch subcmd {
	case "compile":
		opts.Kind = OutputManifest
		err = runCompile(opts)
	case "native":
		opts.Kind = OutputNative
		err = runNative(opts)
	case "build":
		opts.Kind = OutputNative
		err = runBuild(opts)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'aurora help' for usage information\n", subcmd)
		os.Exit(1)
	}

	if err != nil {
		os.Exit(1)
	}
}
