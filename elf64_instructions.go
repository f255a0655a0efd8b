// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// elf64_instructions.go - x86-64 lowering for the Linux ELF target
//
// The data pointer lives in rsi, which doubles as the buffer argument of
// the read/write syscalls. The prologue sets edx = 1 once; it is never
// clobbered, so it serves as the syscall length argument, as fd 1 for
// write, and its high byte dh as a zero for the shorter cmp/mov
// encodings.

type elf64Gen struct {
	code *CodeBuffer
}

func (g *elf64Gen) Buffer() *CodeBuffer { return g.code }

func (g *elf64Gen) Prologue() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "movabs rsi, 0x%x:", elfBssAddr)
	}
	g.code.WriteBytes(0x48, 0xbe)
	g.code.WriteU64(elfBssAddr)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "\nmov edx, 1:")
	}
	g.code.Write(0xba)
	g.code.WriteU32(1)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf64Gen) PointerForward(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "add rsi, %d:", n)
	}
	switch {
	case n > 127:
		g.code.WriteBytes(0x48, 0x81, 0xc6)
		g.code.WriteU32(uint32(n))
	case n > 1:
		g.code.WriteBytes(0x48, 0x83, 0xc6, byte(n))
	default:
		// inc rsi
		g.code.WriteBytes(0x48, 0xff, 0xc6)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf64Gen) PointerBack(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "sub rsi, %d:", n)
	}
	switch {
	case n > 127:
		g.code.WriteBytes(0x48, 0x81, 0xee)
		g.code.WriteU32(uint32(n))
	case n > 1:
		g.code.WriteBytes(0x48, 0x83, 0xee, byte(n))
	default:
		// dec rsi
		g.code.WriteBytes(0x48, 0xff, 0xce)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf64Gen) CellAdd(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "add byte [rsi], %d:", n)
	}
	if n > 1 {
		g.code.WriteBytes(0x80, 0x06, byte(n))
	} else {
		// inc byte [rsi]
		g.code.WriteBytes(0xfe, 0x06)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf64Gen) CellSub(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "sub byte [rsi], %d:", n)
	}
	if n > 1 {
		g.code.WriteBytes(0x80, 0x2e, byte(n))
	} else {
		// dec byte [rsi]
		g.code.WriteBytes(0xfe, 0x0e)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// OutputCell performs write(1, rsi, 1). eax and edi are both loaded from
// edx, which still holds 1 from the prologue.
func (g *elf64Gen) OutputCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov eax, edx; mov edi, edx; syscall:")
	}
	g.code.WriteBytes(0x89, 0xd0)
	g.code.WriteBytes(0x89, 0xd7)
	g.code.WriteBytes(0x0f, 0x05)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// InputCell performs read(0, rsi, 1).
func (g *elf64Gen) InputCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "xor eax, eax; xor edi, edi; syscall:")
	}
	g.code.WriteBytes(0x31, 0xc0)
	g.code.WriteBytes(0x31, 0xff)
	g.code.WriteBytes(0x0f, 0x05)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// ClearCell stores dh (zero, since edx == 1) into the cell.
func (g *elf64Gen) ClearCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov byte [rsi], dh:")
	}
	g.code.WriteBytes(0x88, 0x36)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *elf64Gen) LoopBegin() int {
	pos := g.code.Pos()
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "cmp byte [rsi], dh; je <fwd>:")
	}
	g.code.WriteBytes(0x38, 0x36)
	g.code.WriteBytes(0x0f, 0x84)
	g.code.WriteU32(0)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
	return pos
}

// CondSlotOffset is 4: two bytes of cmp plus the two-byte je opcode.
func (g *elf64Gen) CondSlotOffset() int { return 4 }

// Epilogue performs exit_group(0).
func (g *elf64Gen) Epilogue() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov eax, 60; xor edi, edi; syscall:")
	}
	g.code.Write(0xb8)
	g.code.WriteU32(60)
	g.code.WriteBytes(0x31, 0xff)
	g.code.WriteBytes(0x0f, 0x05)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
