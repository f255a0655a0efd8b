// Completion: 100% - Instruction implementation complete
package main

import (
	"fmt"
	"os"
)

// pe64_instructions.go - x86-64 lowering for the Windows PE target
//
// The emitted program calls msvcrt's putchar and getchar through function
// pointers held in rsi and rdi; the data pointer lives in rbx. The three
// prologue address slots (putchar IAT entry, getchar IAT entry, .bss
// base) and the epilogue exit slot are emitted as zeros and their
// code-relative positions recorded for the container emitter, which fills
// them once the import table layout is fixed.

type pe64Gen struct {
	code *CodeBuffer

	// Code-relative positions of the 32-bit address slots.
	putcharSlot int
	getcharSlot int
	bssSlot     int
	exitSlot    int
}

func (g *pe64Gen) Buffer() *CodeBuffer { return g.code }

func (g *pe64Gen) Prologue() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "push rsi; push rdi; push rbp:")
	}
	g.code.WriteBytes(0x56, 0x57, 0x55)

	// mov rsi, ds:<putchar IAT entry>
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "\nmov rsi, ds:<putchar>:")
	}
	g.code.WriteBytes(0x48, 0x8b, 0x34, 0x25)
	g.putcharSlot = g.code.Pos()
	g.code.WriteU32(0)

	// mov rdi, ds:<getchar IAT entry>
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "\nmov rdi, ds:<getchar>:")
	}
	g.code.WriteBytes(0x48, 0x8b, 0x3c, 0x25)
	g.getcharSlot = g.code.Pos()
	g.code.WriteU32(0)

	// mov rbx, <.bss base>
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "\nmov rbx, <bss>:")
	}
	g.code.WriteBytes(0x48, 0xc7, 0xc3)
	g.bssSlot = g.code.Pos()
	g.code.WriteU32(0)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *pe64Gen) PointerForward(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "add rbx, %d:", n)
	}
	switch {
	case n > 127:
		g.code.WriteBytes(0x48, 0x81, 0xc3)
		g.code.WriteU32(uint32(n))
	case n > 1:
		g.code.WriteBytes(0x48, 0x83, 0xc3, byte(n))
	default:
		// inc rbx
		g.code.WriteBytes(0x48, 0xff, 0xc3)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *pe64Gen) PointerBack(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "sub rbx, %d:", n)
	}
	switch {
	case n > 127:
		g.code.WriteBytes(0x48, 0x81, 0xeb)
		g.code.WriteU32(uint32(n))
	case n > 1:
		g.code.WriteBytes(0x48, 0x83, 0xeb, byte(n))
	default:
		// dec rbx
		g.code.WriteBytes(0x48, 0xff, 0xcb)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *pe64Gen) CellAdd(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "add byte [rbx], %d:", n)
	}
	if n > 1 {
		g.code.WriteBytes(0x80, 0x03, byte(n))
	} else {
		// inc byte [rbx]
		g.code.WriteBytes(0xfe, 0x03)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *pe64Gen) CellSub(n int) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "sub byte [rbx], %d:", n)
	}
	if n > 1 {
		g.code.WriteBytes(0x80, 0x2b, byte(n))
	} else {
		// dec byte [rbx]
		g.code.WriteBytes(0xfe, 0x0b)
	}
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// OutputCell calls putchar(cell) with the 32 bytes of shadow space the
// Win64 calling convention requires.
func (g *pe64Gen) OutputCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov rcx, [rbx]; call rsi:")
	}
	g.code.WriteBytes(0x48, 0x8b, 0x0b)
	// sub rsp, 0x20
	g.code.WriteBytes(0x48, 0x83, 0xec, 0x20)
	// call rsi
	g.code.WriteBytes(0xff, 0xd6)
	// add rsp, 0x20
	g.code.WriteBytes(0x48, 0x83, 0xc4, 0x20)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// InputCell calls getchar() and stores al into the cell.
func (g *pe64Gen) InputCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "call rdi; mov [rbx], al:")
	}
	// sub rsp, 0x20
	g.code.WriteBytes(0x48, 0x83, 0xec, 0x20)
	// call rdi
	g.code.WriteBytes(0xff, 0xd7)
	// add rsp, 0x20
	g.code.WriteBytes(0x48, 0x83, 0xc4, 0x20)
	// mov byte [rbx], al
	g.code.WriteBytes(0x88, 0x03)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *pe64Gen) ClearCell() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov byte [rbx], 0:")
	}
	g.code.WriteBytes(0xc6, 0x03, 0x00)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (g *pe64Gen) LoopBegin() int {
	pos := g.code.Pos()
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "cmp byte [rbx], 0; je <fwd>:")
	}
	g.code.WriteBytes(0x80, 0x3b, 0x00)
	g.code.WriteBytes(0x0f, 0x84)
	g.code.WriteU32(0)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
	return pos
}

// CondSlotOffset is 5: three bytes of cmp plus the two-byte je opcode.
func (g *pe64Gen) CondSlotOffset() int { return 5 }

// Epilogue restores the saved registers and returns zero to the loader.
// A 32-bit slot for the exit IAT address follows the ret; the active code
// path never reaches it, but the container emitter still fills it so the
// image matches the compile-time import layout.
func (g *pe64Gen) Epilogue() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "pop; xor rax, rax; ret:")
	}
	g.code.WriteBytes(0x5d, 0x5f, 0x5e)
	// xor rax, rax
	g.code.WriteBytes(0x48, 0x31, 0xc0)
	// retq
	g.code.Write(0xc3)
	g.exitSlot = g.code.Pos()
	g.code.WriteU32(0)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
