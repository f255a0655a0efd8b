// Completion: 100% - ELF generation complete for Linux x86-64 and i386
package main

// elf.go - ELF executable generation for the Linux targets
//
// The emitted image is as small as a loader-valid ELF gets: the ELF
// header and two program headers, the code, the section name string
// table, and four section headers. There is no symbol table and no
// relocations; the .bss tape is an anonymous RW segment the kernel zero
// fills. Both word sizes share the same layout, addresses and section
// list, only the structure sizes differ.

// Memory layout for the ELF targets
const (
	elfBaseAddr = 0x04048000 // PT_LOAD RX segment (headers + code)
	elfBssAddr  = 0x04248000 // PT_LOAD RW segment (the tape)
	tapeSize    = 0x10000    // 65536 cells

	elfProgramHeaders = 2
	elfSectionHeaders = 4
)

// Structure sizes per ELF class
const (
	elf64EhdrSize = 64
	elf64PhdrSize = 56
	elf64ShdrSize = 64
	elf32EhdrSize = 52
	elf32PhdrSize = 32
	elf32ShdrSize = 40

	elf64HeaderSize = elf64EhdrSize + elfProgramHeaders*elf64PhdrSize
	elf32HeaderSize = elf32EhdrSize + elfProgramHeaders*elf32PhdrSize
)

// Section name string table. Offsets: .text at 1, .shstrtab at 7,
// .bss at 17.
var elfShStrTab = []byte("\x00.text\x00.shstrtab\x00.bss\x00")

// ELF constants (subset used here)
const (
	elfClass64   = 2
	elfClass32   = 1
	elfDataLSB   = 1
	elfOSABILnx  = 3
	etExec       = 2
	emX86_64     = 62
	em386        = 3
	ptLoad       = 1
	pfX          = 1
	pfW          = 2
	pfR          = 4
	shtProgbits  = 1
	shtStrtab    = 3
	shtNobits    = 8
	shfWrite     = 1
	shfAlloc     = 2
	shfExecinstr = 4
)

// writeELF64Image assembles the complete ELF64 file around the code
// region.
func writeELF64Image(code []byte) []byte {
	codeSize := uint64(len(code))
	strTabSize := uint64(len(elfShStrTab))
	footerSize := uint64(elfSectionHeaders * elf64ShdrSize)
	w := &CodeBuffer{}

	// ELF header
	w.WriteBytes(0x7f, 'E', 'L', 'F')
	w.WriteBytes(elfClass64, elfDataLSB, 1, elfOSABILnx)
	w.WriteN(0, 8)                                       // ABI version + padding
	w.WriteU16(etExec)                                   // e_type
	w.WriteU16(emX86_64)                                 // e_machine
	w.WriteU32(1)                                        // e_version
	w.WriteU64(elfBaseAddr + elf64HeaderSize)            // e_entry
	w.WriteU64(elf64EhdrSize)                            // e_phoff
	w.WriteU64(elf64HeaderSize + strTabSize + codeSize)  // e_shoff
	w.WriteU32(0)                                        // e_flags
	w.WriteU16(elf64EhdrSize)                            // e_ehsize
	w.WriteU16(elf64PhdrSize)                            // e_phentsize
	w.WriteU16(elfProgramHeaders)                        // e_phnum
	w.WriteU16(elf64ShdrSize)                            // e_shentsize
	w.WriteU16(elfSectionHeaders)                        // e_shnum
	w.WriteU16(1)                                        // e_shstrndx

	// Program header: RX segment covering headers, code, strtab, footer
	loadSize := elf64HeaderSize + strTabSize + footerSize + codeSize
	w.WriteU32(ptLoad)
	w.WriteU32(pfR | pfX)
	w.WriteU64(0)           // p_offset
	w.WriteU64(elfBaseAddr) // p_vaddr
	w.WriteU64(elfBaseAddr) // p_paddr
	w.WriteU64(loadSize)    // p_filesz
	w.WriteU64(loadSize)    // p_memsz
	w.WriteU64(0x1000)      // p_align

	// Program header: anonymous RW segment for the tape
	w.WriteU32(ptLoad)
	w.WriteU32(pfR | pfW)
	w.WriteU64(0)
	w.WriteU64(elfBssAddr)
	w.WriteU64(elfBssAddr)
	w.WriteU64(0)        // p_filesz: zero filled by the kernel
	w.WriteU64(tapeSize) // p_memsz
	w.WriteU64(0x1000)

	w.WriteBytes(code...)
	w.WriteBytes(elfShStrTab...)

	// Section header 0: null
	w.WriteN(0, elf64ShdrSize)

	// Section header 1: .shstrtab
	w.WriteU32(7)
	w.WriteU32(shtStrtab)
	w.WriteU64(0)                               // sh_flags
	w.WriteU64(0)                               // sh_addr
	w.WriteU64(elf64HeaderSize + codeSize)      // sh_offset
	w.WriteU64(strTabSize)                      // sh_size
	w.WriteU32(0)                               // sh_link
	w.WriteU32(0)                               // sh_info
	w.WriteU64(1)                               // sh_addralign
	w.WriteU64(0)                               // sh_entsize

	// Section header 2: .text
	w.WriteU32(1)
	w.WriteU32(shtProgbits)
	w.WriteU64(shfExecinstr | shfAlloc)
	w.WriteU64(elfBaseAddr + elf64HeaderSize)
	w.WriteU64(elf64HeaderSize)
	w.WriteU64(codeSize)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU64(4)
	w.WriteU64(0)

	// Section header 3: .bss
	w.WriteU32(17)
	w.WriteU32(shtNobits)
	w.WriteU64(shfAlloc | shfWrite)
	w.WriteU64(elfBssAddr)
	w.WriteU64(0x1000)
	w.WriteU64(tapeSize)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU64(16)
	w.WriteU64(0)

	return w.Bytes()
}

// writeELF32Image assembles the complete ELF32 file around the code
// region. Mirrors writeELF64Image with 32-bit structures and EM_386.
func writeELF32Image(code []byte) []byte {
	codeSize := uint32(len(code))
	strTabSize := uint32(len(elfShStrTab))
	footerSize := uint32(elfSectionHeaders * elf32ShdrSize)
	w := &CodeBuffer{}

	// ELF header
	w.WriteBytes(0x7f, 'E', 'L', 'F')
	w.WriteBytes(elfClass32, elfDataLSB, 1, elfOSABILnx)
	w.WriteN(0, 8)
	w.WriteU16(etExec)
	w.WriteU16(em386)
	w.WriteU32(1)
	w.WriteU32(elfBaseAddr + elf32HeaderSize)
	w.WriteU32(elf32EhdrSize)
	w.WriteU32(elf32HeaderSize + strTabSize + codeSize)
	w.WriteU32(0)
	w.WriteU16(elf32EhdrSize)
	w.WriteU16(elf32PhdrSize)
	w.WriteU16(elfProgramHeaders)
	w.WriteU16(elf32ShdrSize)
	w.WriteU16(elfSectionHeaders)
	w.WriteU16(1)

	// Program header: RX segment
	// Elf32_Phdr field order differs from Elf64_Phdr: p_flags comes last.
	loadSize := elf32HeaderSize + strTabSize + footerSize + codeSize
	w.WriteU32(ptLoad)
	w.WriteU32(0)           // p_offset
	w.WriteU32(elfBaseAddr) // p_vaddr
	w.WriteU32(elfBaseAddr) // p_paddr
	w.WriteU32(loadSize)    // p_filesz
	w.WriteU32(loadSize)    // p_memsz
	w.WriteU32(pfR | pfX)   // p_flags
	w.WriteU32(0x1000)      // p_align

	// Program header: RW tape segment
	w.WriteU32(ptLoad)
	w.WriteU32(0)
	w.WriteU32(elfBssAddr)
	w.WriteU32(elfBssAddr)
	w.WriteU32(0)
	w.WriteU32(tapeSize)
	w.WriteU32(pfR | pfW)
	w.WriteU32(0x1000)

	w.WriteBytes(code...)
	w.WriteBytes(elfShStrTab...)

	// Section header 0: null
	w.WriteN(0, elf32ShdrSize)

	// Section header 1: .shstrtab
	w.WriteU32(7)
	w.WriteU32(shtStrtab)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU32(elf32HeaderSize + codeSize)
	w.WriteU32(strTabSize)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU32(1)
	w.WriteU32(0)

	// Section header 2: .text
	w.WriteU32(1)
	w.WriteU32(shtProgbits)
	w.WriteU32(shfExecinstr | shfAlloc)
	w.WriteU32(elfBaseAddr + elf32HeaderSize)
	w.WriteU32(elf32HeaderSize)
	w.WriteU32(codeSize)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU32(4)
	w.WriteU32(0)

	// Section header 3: .bss
	w.WriteU32(17)
	w.WriteU32(shtNobits)
	w.WriteU32(shfAlloc | shfWrite)
	w.WriteU32(elfBssAddr)
	w.WriteU32(0x1000)
	w.WriteU32(tapeSize)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU32(16)
	w.WriteU32(0)

	return w.Bytes()
}
