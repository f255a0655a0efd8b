// Completion: 100% - Emission buffer complete
package main

import (
	"encoding/binary"
	"fmt"
	"os"
)

// emit.go - Position-addressable machine code emission buffer
//
// CodeBuffer replaces the seek-and-overwrite discipline of a raw output
// stream: bytes are appended at the cursor, and previously reserved slots
// are patched in place by position. The code generators record positions
// with Pos() and resolve forward references with PatchU32 once the jump
// target is known.

type CodeBuffer struct {
	buf []byte
}

func (cb *CodeBuffer) Write(b byte) int {
	cb.buf = append(cb.buf, b)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %02x", b)
	}
	return 1
}

func (cb *CodeBuffer) WriteBytes(bs ...byte) int {
	cb.buf = append(cb.buf, bs...)
	if VerboseMode {
		for _, b := range bs {
			fmt.Fprintf(os.Stderr, " %02x", b)
		}
	}
	return len(bs)
}

// WriteN appends n copies of b. Used for padding regions up to an
// alignment boundary.
func (cb *CodeBuffer) WriteN(b byte, n int) int {
	for i := 0; i < n; i++ {
		cb.buf = append(cb.buf, b)
	}
	return n
}

func (cb *CodeBuffer) WriteU16(v uint16) int {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	cb.buf = append(cb.buf, tmp[:]...)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %02x %02x", tmp[0], tmp[1])
	}
	return 2
}

func (cb *CodeBuffer) WriteU32(v uint32) int {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	cb.buf = append(cb.buf, tmp[:]...)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %02x %02x %02x %02x", tmp[0], tmp[1], tmp[2], tmp[3])
	}
	return 4
}

func (cb *CodeBuffer) WriteU64(v uint64) int {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	cb.buf = append(cb.buf, tmp[:]...)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %x", v)
	}
	return 8
}

// Pos returns the current cursor position, i.e. the offset the next write
// lands at.
func (cb *CodeBuffer) Pos() int {
	return len(cb.buf)
}

func (cb *CodeBuffer) Len() int {
	return len(cb.buf)
}

func (cb *CodeBuffer) Bytes() []byte {
	return cb.buf
}

// PatchU32 overwrites a previously written 4-byte little-endian slot.
// The position must have been recorded while the slot was emitted.
func (cb *CodeBuffer) PatchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(cb.buf[pos:pos+4], v)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "\npatch u32 at 0x%x: 0x%08x", pos, v)
	}
}

// alignTo rounds size up to the next multiple of alignment.
func alignTo(size, alignment uint32) uint32 {
	return alignment * ((size + alignment - 1) / alignment)
}
