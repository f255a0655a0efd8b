// Completion: 100% - Backend interface complete
package main

// backend.go - Per-target code generation interface
//
// The three targets share the token scanning, run folding, peephole and
// bracket matching logic in codegen.go; everything instruction-set or
// ABI specific sits behind CodeGenerator. Each backend owns a CodeBuffer
// holding only the code region of the final image, so buffer positions
// are code-relative and the container emitters translate them to file
// offsets.

// CodeGenerator is the interface that all target backends must implement.
type CodeGenerator interface {
	// Prologue establishes the data pointer register and any values the
	// per-command sequences rely on (e.g. edx = 1 on the ELF targets).
	Prologue()

	// Epilogue terminates the emitted program.
	Epilogue()

	// PointerForward moves the data pointer n cells right (n >= 1).
	PointerForward(n int)

	// PointerBack moves the data pointer n cells left (n >= 1).
	PointerBack(n int)

	// CellAdd adds n to the current cell (1 <= n <= 255; the caller has
	// already reduced the run length modulo 256).
	CellAdd(n int)

	// CellSub subtracts n from the current cell (1 <= n <= 255).
	CellSub(n int)

	// OutputCell writes the current cell to stdout.
	OutputCell()

	// InputCell reads one byte from stdin into the current cell.
	InputCell()

	// ClearCell stores zero into the current cell (the [-]/[+] peephole).
	ClearCell()

	// LoopBegin emits the conditional forward branch with a zeroed rel32
	// slot and returns the position of the cmp instruction.
	LoopBegin() int

	// CondSlotOffset returns the distance from the start of the LoopBegin
	// sequence to its rel32 slot. This depends on the cmp encoding the
	// backend chose, so shared code must not assume a constant.
	CondSlotOffset() int

	// Buffer exposes the backend's code buffer.
	Buffer() *CodeBuffer
}

// newCodeGenerator creates a code generator backend for the given target.
// src is the normalized token stream; the i386 backend scans it to decide
// whether the write syscall setup can be hoisted into the prologue.
func newCodeGenerator(target Target, src []byte) CodeGenerator {
	switch target {
	case TargetELF32:
		return &elf32Gen{code: &CodeBuffer{}, outputOnly: !hasInput(src)}
	case TargetPE64:
		return &pe64Gen{code: &CodeBuffer{}}
	default:
		return &elf64Gen{code: &CodeBuffer{}}
	}
}
