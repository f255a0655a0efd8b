// Completion: 100% - Utility module complete
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// cli.go - Compile-and-run driver
//
// The driver reads the source, compiles it for the selected target,
// writes the image, marks it executable (ELF), runs it and propagates
// the child's exit status. Open failures on either end produce a single
// diagnostic line and exit status 1.

// CompileProgram compiles Brainfuck source into a complete executable
// image for the given target.
func CompileProgram(source []byte, target Target) ([]byte, error) {
	src := normalizeSource(source)
	gen := newCodeGenerator(target, src)
	if err := generateCode(gen, src); err != nil {
		return nil, err
	}

	code := gen.Buffer().Bytes()
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "\n%s code region: %d bytes\n", target, len(code))
	}

	switch target {
	case TargetELF32:
		return writeELF32Image(code), nil
	case TargetPE64:
		return writePEImage(code, gen.(*pe64Gen)), nil
	default:
		return writeELF64Image(code), nil
	}
}

// CompileAndRun drives a full compilation. When run is true the freshly
// written executable is spawned and its exit status becomes ours.
func CompileAndRun(sourcePath, outputPath string, target Target, run bool) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("Failed to open %s", sourcePath)
	}

	image, err := CompileProgram(source, target)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, image, 0o644); err != nil {
		return fmt.Errorf("Failed to open %s", outputPath)
	}
	if target.IsELF() {
		if err := markExecutable(outputPath); err != nil {
			return err
		}
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", len(image), outputPath)
	}

	if !run {
		return nil
	}
	return runExecutable(outputPath)
}

// runExecutable spawns the compiled program with our standard streams
// attached. A non-zero child exit becomes our own exit status.
func runExecutable(path string) error {
	if !strings.ContainsAny(path, `/\`) {
		path = "./" + path
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Running %s\n", path)
	}

	cmd := exec.Command(path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("execution failed: %v", err)
	}
	return nil
}
