// Completion: 100% - Single-pass code generation complete
package main

import (
	"fmt"
	"os"
)

// codegen.go - Single-pass Brainfuck lowering
//
// The token stream is lowered in one pass with three peepholes applied
// during emission: run-length folding of > < + -, the [-]/[+] zero-store,
// and short/near selection for the backward jump at ]. Forward branches
// at [ are back-patched through the code buffer once the matching ] is
// reached. The loop stack holds code-relative positions of the cmp
// instruction that opens each unclosed loop.

// generateCode lowers the normalized source through gen. On return the
// backend's buffer holds the complete code region, prologue through
// epilogue.
func generateCode(gen CodeGenerator, src []byte) error {
	gen.Prologue()

	var loopStack []int
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '>':
			n := countRun(src, i, '>')
			i += n - 1
			gen.PointerForward(n)
		case '<':
			n := countRun(src, i, '<')
			i += n - 1
			gen.PointerBack(n)
		case '+':
			n := countRun(src, i, '+')
			i += n - 1
			if n %= 256; n > 0 {
				gen.CellAdd(n)
			}
		case '-':
			n := countRun(src, i, '-')
			i += n - 1
			if n %= 256; n > 0 {
				gen.CellSub(n)
			}
		case '.':
			gen.OutputCell()
		case ',':
			gen.InputCell()
		case '[':
			if isClearLoop(src, i) {
				gen.ClearCell()
				i += 2
				break
			}
			loopStack = append(loopStack, gen.LoopBegin())
		case ']':
			if len(loopStack) == 0 {
				return errUnmatchedClose
			}
			openPos := loopStack[len(loopStack)-1]
			loopStack = loopStack[:len(loopStack)-1]
			closeLoop(gen, openPos)
		}
	}

	if len(loopStack) != 0 {
		return errUnmatchedOpen
	}

	gen.Epilogue()
	return nil
}

// closeLoop emits the backward jump for a ] and patches the forward rel32
// of the matching [. openPos is the position of the cmp instruction; the
// rel32 slot of its je sits CondSlotOffset bytes further in.
func closeLoop(gen CodeGenerator, openPos int) {
	w := gen.Buffer()

	// Displacement from the end of a would-be 1-byte opcode back to the
	// cmp. A short jump spends one more byte on its operand, a near jump
	// four more.
	offset := openPos - w.Pos() - 1
	if offset-1 < -128 {
		// jmp rel32 (near)
		w.Write(0xe9)
		w.WriteU32(uint32(int32(offset - 4)))
	} else {
		// jmp rel8 (short)
		w.Write(0xeb)
		w.Write(byte(offset - 1))
	}

	// The je at the loop head skips to just past the jump emitted above.
	slot := openPos + gen.CondSlotOffset()
	w.PatchU32(slot, uint32(int32(w.Pos()-slot-4)))

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "\nloop [0x%x..0x%x] closed", openPos, w.Pos())
	}
}
