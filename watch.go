// Completion: 90% - `aurora build --watch` recompile loop
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// watchAndRebuild recompiles src to outputPath once, then keeps
// rebuilding on every source change reported by FileWatcher
// (filewatcher_unix.go/_darwin.go/_windows.go, selected by build tag)
// until interrupted, mirroring the teacher's watchAndRecompile loop
// without the game-process relaunch machinery Aurora has no use for.
func watchAndRebuild(srcPath, outputPath string, target Target) error {
	absPath, err := filepath.Abs(srcPath)
	if err != nil {
		return err
	}

	rebuild := func(reason string) {
		fmt.Fprintf(os.Stderr, "[watch] %s\n", reason)
		src, rerr := os.ReadFile(absPath)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "watch: read failed: %v\n", rerr)
			return
		}
		if cerr := BuildNative(string(src), absPath, outputPath, target); cerr != nil {
			fmt.Fprint(os.Stderr, cerr.Format(!noColorRequested()))
			return
		}
		fmt.Fprintf(os.Stderr, "[watch] rebuilt %s\n", outputPath)
	}

	rebuild("initial build")

	watcher, err := NewFileWatcher(func(path string) {
		rebuild(fmt.Sprintf("changed: %s", filepath.Base(path)))
	})
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.AddFile(absPath); err != nil {
		return fmt.Errorf("failed to watch %s: %v", absPath, err)
	}

	watcher.Watch()
	return nil
}

// noColorRequested mirrors the NoColor option without threading
// CompileOptions through every helper that formats a CompilerError.
var globalNoColor bool

func noColorRequested() bool {
	return globalNoColor
}
