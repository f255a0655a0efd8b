// Completion: 100% - Platform-specific module complete
//go:build !windows

package main

import "golang.org/x/sys/unix"

// markExecutable gives the emitted ELF executable mode 0755 so it can be
// spawned right after compilation.
func markExecutable(path string) error {
	return unix.Chmod(path, 0o755)
}
