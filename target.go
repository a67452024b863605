// Completion: 100% - Target selection complete
package main

import "github.com/aurora-lang/aurora/internal/platform"

// Target is the (arch, OS) pair the Native Compiler Driver assembles
// an image for. Aurora's arch is always x86-64; OS picks PE64 vs
// ELF64 and, with it, the syscall/import convention the runtime stubs
// use.
type Target = platform.Platform

func defaultTarget() Target {
	return platform.DefaultPlatform()
}
