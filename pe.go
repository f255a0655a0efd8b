// Completion: 100% - PE generation complete for Windows x86-64
package main

import "time"

// pe.go - PE executable generation for the Windows x86-64 target
//
// File layout: [DOS+PE headers, padded to 0x200] [.idata raw data, padded
// to 0x200] [.text raw data, padded to 0x1000]. In memory: .text at RVA
// 0x1000, .idata directly after the aligned code, .bss one section
// alignment later. The import section binds putchar, getchar and exit
// from msvcrt.dll; once its layout is fixed the four address slots the
// code generator reserved are patched with absolute addresses.

// PE format constants
const (
	peImageBase   = 0x00400000
	peHeadersSize = 0x0200 // DOS + PE headers with padding
	peIdataSize   = 0x0200 // import section with padding
	peCodeAlign   = 0x1000
	peSectAlign   = 0x1000
	peFileAlign   = 0x0200

	coffHeaderSize     = 20
	optionalHeaderSize = 240 // PE32+
	sectionHeaderSize  = 40
	importDescSize     = 20
	thunkSize          = 8
)

// COFF characteristics: RELOCS_STRIPPED | EXECUTABLE_IMAGE |
// LINE_NUMS_STRIPPED | LOCAL_SYMS_STRIPPED | DEBUG_STRIPPED
const peCharacteristics = 0x0001 | 0x0002 | 0x0004 | 0x0008 | 0x0200

// Section characteristics
const (
	scnCntCode       = 0x00000020
	scnCntInitData   = 0x00000040
	scnCntUninitData = 0x00000080
	scnAlign4Bytes   = 0x00300000
	scnAlign8Bytes   = 0x00400000
	scnAlign16Bytes  = 0x00500000
	scnMemExecute    = 0x20000000
	scnMemRead       = 0x40000000
	scnMemWrite      = 0x80000000
)

// dosStub is the 16-bit real mode program at file offset 0x40. It prints
// the usual message and exits via int 0x21.
var dosStub = []byte("\x0e" + // push cs
	"\x1f" + // pop ds
	"\xba\x0e\x00" + // mov dx, 0x000e
	"\xb4\x09" + // mov ah, 0x09 (print)
	"\xcd\x21" + // int 0x21
	"\xb8\x01\x4c" + // mov ax, 0x4c01 (exit)
	"\xcd\x21" + // int 0x21
	"This program cannot be run in DOS mode.\r\r\n$" +
	"\x00\x00\x00\x00\x00\x00\x00")

// Imported names. The DLL name is padded so the hint/name entries that
// follow keep the original layout; each function name slot is 8 bytes.
var (
	peDllName     = []byte("msvcrt.dll\x00\x00\x00\x00\x00\x00")
	pePutcharName = []byte("putchar\x00")
	peGetcharName = []byte("getchar\x00")
	peExitName    = []byte("exit\x00\x00\x00\x00")
)

// writePEImage assembles the complete PE file around the code region and
// patches the address slots recorded by the code generator.
func writePEImage(code []byte, gen *pe64Gen) []byte {
	codeSize := uint32(len(code))
	alignedCode := alignTo(codeSize, peCodeAlign)
	ts := uint32(time.Now().Unix())

	textRVA := uint32(0x1000)
	idataRVA := textRVA + alignedCode
	bssRVA := idataRVA + peSectAlign
	textRaw := uint32(peHeadersSize + peIdataSize)

	w := &CodeBuffer{}

	// === DOS header (64 bytes) ===
	w.WriteU16(0x5a4d) // "MZ"
	w.WriteU16(0x0090) // e_cblp
	w.WriteU16(0x0003) // e_cp
	w.WriteU16(0x0000) // e_crlc
	w.WriteU16(0x0004) // e_cparhdr
	w.WriteU16(0x0000) // e_minalloc
	w.WriteU16(0xffff) // e_maxalloc
	w.WriteU16(0x0000) // e_ss
	w.WriteU16(0x00b8) // e_sp
	w.WriteU16(0x0000) // e_csum
	w.WriteU16(0x0000) // e_ip
	w.WriteU16(0x0000) // e_cs
	w.WriteU16(0x0040) // e_lfarlc
	w.WriteU16(0x0000) // e_ovno
	w.WriteN(0, 8)     // e_res
	w.WriteU16(0x0000) // e_oemid
	w.WriteU16(0x0000) // e_oeminfo
	w.WriteN(0, 20)    // e_res2
	w.WriteU32(0x0080) // e_lfanew

	// === DOS stub (64 bytes) ===
	w.WriteBytes(dosStub...)

	// === PE signature ===
	w.WriteU32(0x00004550) // "PE\0\0"

	// === COFF file header ===
	w.WriteU16(0x8664) // Machine: AMD64
	w.WriteU16(3)      // NumberOfSections
	w.WriteU32(ts)     // TimeDateStamp
	w.WriteU32(0)      // PointerToSymbolTable
	w.WriteU32(0)      // NumberOfSymbols
	w.WriteU16(optionalHeaderSize)
	w.WriteU16(peCharacteristics)

	// === Optional header (PE32+) ===
	w.WriteU16(0x020b)      // Magic
	w.Write(14)             // MajorLinkerVersion
	w.Write(26)             // MinorLinkerVersion
	w.WriteU32(codeSize)    // SizeOfCode
	w.WriteU32(0)           // SizeOfInitializedData
	w.WriteU32(tapeSize)    // SizeOfUninitializedData
	w.WriteU32(textRVA)     // AddressOfEntryPoint
	w.WriteU32(textRVA)     // BaseOfCode
	w.WriteU64(peImageBase) // ImageBase
	w.WriteU32(peSectAlign) // SectionAlignment
	w.WriteU32(peFileAlign) // FileAlignment
	w.WriteU16(6)           // MajorOperatingSystemVersion
	w.WriteU16(0)           // MinorOperatingSystemVersion
	w.WriteU16(0)           // MajorImageVersion
	w.WriteU16(0)           // MinorImageVersion
	w.WriteU16(6)           // MajorSubsystemVersion
	w.WriteU16(0)           // MinorSubsystemVersion
	w.WriteU32(0)           // Win32VersionValue
	w.WriteU32(0x10000 + alignedCode + 2*peSectAlign) // SizeOfImage
	w.WriteU32(peHeadersSize)                         // SizeOfHeaders
	w.WriteU32(0)                                     // CheckSum
	w.WriteU16(3)                                     // Subsystem: WINDOWS_CUI
	w.WriteU16(0)                                     // DllCharacteristics
	w.WriteU64(1024 * 1024)                           // SizeOfStackReserve
	w.WriteU64(8 * 1024)                              // SizeOfStackCommit
	w.WriteU64(1024 * 1024)                           // SizeOfHeapReserve
	w.WriteU64(4 * 1024)                              // SizeOfHeapCommit
	w.WriteU32(0)                                     // LoaderFlags
	w.WriteU32(16)                                    // NumberOfRvaAndSizes

	// Data directories; only the import directory is populated
	for i := 0; i < 16; i++ {
		if i == 1 {
			w.WriteU32(idataRVA)
			w.WriteU32(100)
		} else {
			w.WriteU64(0)
		}
	}

	// === Section headers ===
	// .text
	w.WriteBytes('.', 't', 'e', 'x', 't', 0, 0, 0)
	w.WriteU32(codeSize) // VirtualSize
	w.WriteU32(textRVA)
	w.WriteU32(codeSize) // SizeOfRawData
	w.WriteU32(textRaw)
	w.WriteN(0, 12) // relocations, line numbers
	w.WriteU32(scnCntCode | scnAlign16Bytes | scnMemExecute | scnMemRead)

	// .idata
	w.WriteBytes('.', 'i', 'd', 'a', 't', 'a', 0, 0)
	w.WriteU32(100)
	w.WriteU32(idataRVA)
	w.WriteU32(512)
	w.WriteU32(peHeadersSize)
	w.WriteN(0, 12)
	w.WriteU32(scnCntInitData | scnAlign4Bytes | scnMemRead)

	// .bss
	w.WriteBytes('.', 'b', 's', 's', 0, 0, 0, 0)
	w.WriteU32(tapeSize)
	w.WriteU32(bssRVA)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteN(0, 12)
	w.WriteU32(scnCntUninitData | scnAlign8Bytes | scnMemRead | scnMemWrite)

	// Pad the header region out to its file alignment
	w.WriteN(0, peHeadersSize-w.Pos())

	// === Import section at file offset 0x200 ===
	// Two descriptors: msvcrt.dll and the zero sentinel.
	intRVA := idataRVA + 2*importDescSize
	nameRVA := intRVA + 4*thunkSize
	iatRVA := nameRVA + uint32(len(peDllName))

	w.WriteU32(intRVA) // OriginalFirstThunk
	w.WriteU32(ts)     // TimeDateStamp
	w.WriteU32(0)      // ForwarderChain
	w.WriteU32(nameRVA)
	w.WriteU32(iatRVA) // FirstThunk
	w.WriteU32(0)
	w.WriteU32(ts)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU32(0)

	// Hint/name entry RVAs: past descriptors, INT, DLL name and IAT
	putcharRVA := iatRVA + 4*thunkSize
	getcharRVA := putcharRVA + 2 + uint32(len(pePutcharName))
	exitRVA := getcharRVA + 2 + uint32(len(peGetcharName))

	// Import name table
	w.WriteU64(uint64(putcharRVA))
	w.WriteU64(uint64(getcharRVA))
	w.WriteU64(uint64(exitRVA))
	w.WriteU64(0)

	w.WriteBytes(peDllName...)

	// Import address table, identical to the INT until the loader
	// resolves it
	w.WriteU64(uint64(putcharRVA))
	w.WriteU64(uint64(getcharRVA))
	w.WriteU64(uint64(exitRVA))
	w.WriteU64(0)

	// Hint/name pairs, hint 0
	w.WriteU16(0)
	w.WriteBytes(pePutcharName...)
	w.WriteU16(0)
	w.WriteBytes(peGetcharName...)
	w.WriteU16(0)
	w.WriteBytes(peExitName...)

	// Pad the import section out to its file alignment
	w.WriteN(0, int(textRaw)-w.Pos())

	// === Code region, padded to the code alignment ===
	w.WriteBytes(code...)
	w.WriteN(0, int(alignedCode-codeSize))

	// === Patch the reserved address slots inside the code ===
	iat := peImageBase + iatRVA
	w.PatchU32(int(textRaw)+gen.putcharSlot, iat)
	w.PatchU32(int(textRaw)+gen.getcharSlot, iat+thunkSize)
	w.PatchU32(int(textRaw)+gen.exitSlot, iat+2*thunkSize)
	w.PatchU32(int(textRaw)+gen.bssSlot, peImageBase+bssRVA)

	return w.Bytes()
}
