// Completion: 100% - Platform-specific module complete
//go:build windows

package main

// markExecutable is a no-op on Windows, which has no executable
// permission bit.
func markExecutable(path string) error {
	return nil
}
