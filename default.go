// Completion: 100% - Module complete
package main

import "github.com/xyproto/env/v2"

// default.go - Environment-overridable defaults
//
// The classic workflow is "compile ./source.bf, produce ./a.out, run
// it"; these defaults keep that working with no arguments at all while
// letting the environment redirect it.

var (
	defaultSourcePath = env.Str("BFC_SOURCE", "./source.bf")
	defaultTargetName = env.Str("BFC_TARGET", "elf64")
	defaultVerbose    = env.Bool("BFC_VERBOSE")
)
