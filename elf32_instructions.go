// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// elf32_instructions.go - i386 lowering for the Linux ELF target
//
// The data pointer lives in ecx, the buffer argument of the int 0x80
// read/write calls. edx = 1 from the prologue is the length argument and
// supplies dh as a zero byte. When the program never reads input, eax
// (syscall number 4 = write) and ebx (fd 1) are hoisted into the prologue
// as well, so every . shrinks to a bare int 0x80.

type elf32Gen struct {
	code       *CodeBuffer
	outputOnly bool
}

func (g *elf32Gen) Buffer() *CodeBuffer { return g.code }

func (g *elf32Gen) Prologue() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov ecx, 0x%x; mov edx, 1:", elfBssAddr)
	}
	g.code.Write(0xb9)
	g.code.WriteU32(elfBssAddr)
	g.code.Write(0xba)
	g.code.WriteU32(1)
	if g.outputOnly {
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "\nmov eax, 4; mov ebx, edx:")
		}
		g.code.Write(0xb8)
		g.code.WriteU32(4)
		g.code.WriteBytes(0x89, 0xd3)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf32Gen) PointerForward(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "add ecx, %d:", n)
	}
	switch {
	case n > 127:
		g.code.WriteBytes(0x81, 0xc1)
		g.code.WriteU32(uint32(n))
	case n > 1:
		g.code.WriteBytes(0x83, 0xc1, byte(n))
	default:
		// inc ecx
		g.code.Write(0x41)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf32Gen) PointerBack(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "sub ecx, %d:", n)
	}
	switch {
	case n > 127:
		g.code.WriteBytes(0x81, 0xe9)
		g.code.WriteU32(uint32(n))
	case n > 1:
		g.code.WriteBytes(0x83, 0xe9, byte(n))
	default:
		// dec ecx
		g.code.Write(0x49)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf32Gen) CellAdd(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "add byte [ecx], %d:", n)
	}
	if n > 1 {
		g.code.WriteBytes(0x80, 0x01, byte(n))
	} else {
		// inc byte [ecx]
		g.code.WriteBytes(0xfe, 0x01)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf32Gen) CellSub(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "sub byte [ecx], %d:", n)
	}
	if n > 1 {
		g.code.WriteBytes(0x80, 0x29, byte(n))
	} else {
		// dec byte [ecx]
		g.code.WriteBytes(0xfe, 0x09)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// OutputCell performs write(1, ecx, 1) via int 0x80. For mixed I/O
// programs eax and ebx are reloaded every time; output-only programs keep
// them live from the prologue.
func (g *elf32Gen) OutputCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "write; int 0x80:")
	}
	if !g.outputOnly {
		g.code.Write(0xb8)
		g.code.WriteU32(4)
		g.code.WriteBytes(0x89, 0xd3)
	}
	g.code.WriteBytes(0xcd, 0x80)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// InputCell performs read(0, ecx, 1) via int 0x80.
func (g *elf32Gen) InputCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov eax, 3; xor ebx, ebx; int 0x80:")
	}
	g.code.Write(0xb8)
	g.code.WriteU32(3)
	g.code.WriteBytes(0x31, 0xdb)
	g.code.WriteBytes(0xcd, 0x80)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// ClearCell stores dh (zero, since edx == 1) into the cell.
func (g *elf32Gen) ClearCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov byte [ecx], dh:")
	}
	g.code.WriteBytes(0x88, 0x31)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf32Gen) LoopBegin() int {
	pos := g.code.Pos()
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "cmp byte [ecx], dh; je <fwd>:")
	}
	g.code.WriteBytes(0x38, 0x31)
	g.code.WriteBytes(0x0f, 0x84)
	g.code.WriteU32(0)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
	return pos
}

// CondSlotOffset is 4: two bytes of cmp plus the two-byte je opcode.
func (g *elf32Gen) CondSlotOffset() int { return 4 }

// Epilogue performs exit(0). edx still holds 1, the exit syscall number.
func (g *elf32Gen) Epilogue() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov eax, edx; xor ebx, ebx; int 0x80:")
	}
	g.code.WriteBytes(0x89, 0xd0)
	g.code.WriteBytes(0x31, 0xdb)
	g.code.WriteBytes(0xcd, 0x80)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
