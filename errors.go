// Completion: 100% - Error handling complete, clear and helpful messages
package main

import "errors"

// errors.go - Compiler error values
//
// The compiler detects exactly two structural failures in the source
// program. Both are fatal, print one diagnostic line and exit with
// status 1. I/O failures are reported at the driver boundary.

var (
	// errUnmatchedOpen is reported when a '[' is never closed.
	errUnmatchedOpen = errors.New("']' corresponding to '[' is not found.")

	// errUnmatchedClose is reported when a ']' appears with no open loop.
	errUnmatchedClose = errors.New("'[' corresponding to ']' is not found.")
)
