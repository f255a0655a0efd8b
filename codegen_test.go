package main

import (
	"bytes"
	"strings"
	"testing"
)

// generateFor normalizes and lowers source for the given target,
// returning the raw code region.
func generateFor(t *testing.T, target Target, source string) []byte {
	t.Helper()
	src := normalizeSource([]byte(source))
	gen := newCodeGenerator(target, src)
	if err := generateCode(gen, src); err != nil {
		t.Fatalf("Code generation failed: %v", err)
	}
	return gen.Buffer().Bytes()
}

// body strips the prologue and epilogue from a generated code region.
func body(code []byte, prologueLen, epilogueLen int) []byte {
	return code[prologueLen : len(code)-epilogueLen]
}

const (
	elf64PrologueLen = 15 // movabs rsi, imm64 + mov edx, 1
	elf64EpilogueLen = 9  // mov eax, 60 + xor edi, edi + syscall
	elf32PrologueLen = 10 // mov ecx, imm32 + mov edx, 1
	elf32HoistedLen  = 17 // ... + mov eax, 4 + mov ebx, edx
	elf32EpilogueLen = 6  // mov eax, edx + xor ebx, ebx + int 0x80
	pe64PrologueLen  = 26 // pushes + two IAT loads + bss load
	pe64EpilogueLen  = 11 // pops + xor rax, rax + ret + exit slot
)

// TestELF64AddAndOutput checks the full code region for "+++."
func TestELF64AddAndOutput(t *testing.T) {
	code := generateFor(t, TargetELF64, "+++.")

	want := []byte{
		// movabs rsi, 0x04248000
		0x48, 0xbe, 0x00, 0x80, 0x24, 0x04, 0, 0, 0, 0,
		// mov edx, 1
		0xba, 0x01, 0x00, 0x00, 0x00,
		// add byte [rsi], 3
		0x80, 0x06, 0x03,
		// mov eax, edx; mov edi, edx; syscall
		0x89, 0xd0, 0x89, 0xd7, 0x0f, 0x05,
		// mov eax, 60; xor edi, edi; syscall
		0xb8, 0x3c, 0x00, 0x00, 0x00, 0x31, 0xff, 0x0f, 0x05,
	}
	if !bytes.Equal(code, want) {
		t.Errorf("Expected\n% x\ngot\n% x", want, code)
	}
}

// TestELF64PointerRuns checks imm8/imm32 selection for > and <
func TestELF64PointerRuns(t *testing.T) {
	tests := []struct {
		source string
		want   []byte
	}{
		{">", []byte{0x48, 0xff, 0xc6}},
		{">>>", []byte{0x48, 0x83, 0xc6, 0x03}},
		{strings.Repeat(">", 127), []byte{0x48, 0x83, 0xc6, 0x7f}},
		{strings.Repeat(">", 128), []byte{0x48, 0x81, 0xc6, 0x80, 0x00, 0x00, 0x00}},
		{strings.Repeat(">", 200), []byte{0x48, 0x81, 0xc6, 0xc8, 0x00, 0x00, 0x00}},
		{"<", []byte{0x48, 0xff, 0xce}},
		{"<<", []byte{0x48, 0x83, 0xee, 0x02}},
		{strings.Repeat("<", 300), []byte{0x48, 0x81, 0xee, 0x2c, 0x01, 0x00, 0x00}},
	}

	for _, tt := range tests {
		code := generateFor(t, TargetELF64, tt.source)
		got := body(code, elf64PrologueLen, elf64EpilogueLen)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%q: expected % x, got % x", tt.source, tt.want, got)
		}
	}
}

// TestELF64CellRuns checks mod-256 reduction for + and -
func TestELF64CellRuns(t *testing.T) {
	tests := []struct {
		source string
		want   []byte
	}{
		{"+", []byte{0xfe, 0x06}},
		{"++", []byte{0x80, 0x06, 0x02}},
		{strings.Repeat("+", 255), []byte{0x80, 0x06, 0xff}},
		{strings.Repeat("+", 256), nil}, // full wrap emits nothing
		{strings.Repeat("+", 257), []byte{0xfe, 0x06}},
		{"-", []byte{0xfe, 0x0e}},
		{"-----", []byte{0x80, 0x2e, 0x05}},
		{strings.Repeat("-", 512), nil},
	}

	for _, tt := range tests {
		code := generateFor(t, TargetELF64, tt.source)
		got := body(code, elf64PrologueLen, elf64EpilogueLen)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%q: expected % x, got % x", tt.source, tt.want, got)
		}
	}
}

// TestELF64Input checks the read syscall sequence
func TestELF64Input(t *testing.T) {
	code := generateFor(t, TargetELF64, ",")
	want := []byte{0x31, 0xc0, 0x31, 0xff, 0x0f, 0x05}
	got := body(code, elf64PrologueLen, elf64EpilogueLen)
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % x, got % x", want, got)
	}
}

// TestZeroStorePeephole checks that [-] and [+] lower to one store and
// produce identical bytes
func TestZeroStorePeephole(t *testing.T) {
	minus := generateFor(t, TargetELF64, "[-]")
	plus := generateFor(t, TargetELF64, "[+]")

	if !bytes.Equal(minus, plus) {
		t.Errorf("[-] and [+] differ:\n% x\n% x", minus, plus)
	}

	got := body(minus, elf64PrologueLen, elf64EpilogueLen)
	want := []byte{0x88, 0x36} // mov byte [rsi], dh
	if !bytes.Equal(got, want) {
		t.Errorf("Expected single zero store % x, got % x", want, got)
	}
}

// TestZeroStoreAfterRun checks the spec scenario "+++++[-]"
func TestZeroStoreAfterRun(t *testing.T) {
	code := generateFor(t, TargetELF64, "+++++[-]")
	want := []byte{0x80, 0x06, 0x05, 0x88, 0x36}
	got := body(code, elf64PrologueLen, elf64EpilogueLen)
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % x, got % x", want, got)
	}
}

// TestELF64EmptyLoop checks je back-patching and the short backward jump
func TestELF64EmptyLoop(t *testing.T) {
	code := generateFor(t, TargetELF64, "[]")

	want := []byte{
		// cmp byte [rsi], dh; je +2
		0x38, 0x36, 0x0f, 0x84, 0x02, 0x00, 0x00, 0x00,
		// jmp -10 (short, back to the cmp)
		0xeb, 0xf6,
	}
	got := body(code, elf64PrologueLen, elf64EpilogueLen)
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % x, got % x", want, got)
	}
}

// TestShortJumpBoundary checks the short/near selection at the 8-bit
// displacement limit. Alternating single + and - lower to 2 bytes each,
// so 59 of them put the backward displacement at exactly -128.
func TestShortJumpBoundary(t *testing.T) {
	alternating := func(n int) string {
		var sb strings.Builder
		sb.WriteByte('[')
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				sb.WriteByte('+')
			} else {
				sb.WriteByte('-')
			}
		}
		sb.WriteByte(']')
		return sb.String()
	}

	// 8 bytes of loop head + 118 bytes of body: rel8 = -128 still fits
	code := generateFor(t, TargetELF64, alternating(59))
	got := body(code, elf64PrologueLen, elf64EpilogueLen)
	if got[len(got)-2] != 0xeb || got[len(got)-1] != 0x80 {
		t.Errorf("Expected short jump eb 80 at the limit, got % x", got[len(got)-2:])
	}

	// Two more body bytes push it past -128: near jump
	code = generateFor(t, TargetELF64, alternating(60))
	got = body(code, elf64PrologueLen, elf64EpilogueLen)
	tail := got[len(got)-5:]
	if tail[0] != 0xe9 {
		t.Errorf("Expected near jump e9, got % x", tail)
	}
	// displacement -133 back to the cmp
	if !bytes.Equal(tail[1:], []byte{0x7b, 0xff, 0xff, 0xff}) {
		t.Errorf("Expected displacement 7b ff ff ff, got % x", tail[1:])
	}
}

// TestNestedLoops checks that the forward branches of nested loops all
// land one past their matching backward jump
func TestNestedLoops(t *testing.T) {
	code := generateFor(t, TargetELF64, "[[]]")
	got := body(code, elf64PrologueLen, elf64EpilogueLen)

	want := []byte{
		0x38, 0x36, 0x0f, 0x84, 0x0c, 0x00, 0x00, 0x00, // outer je +12
		0x38, 0x36, 0x0f, 0x84, 0x02, 0x00, 0x00, 0x00, // inner je +2
		0xeb, 0xf6, // inner jmp -10
		0xeb, 0xec, // outer jmp -20
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected\n% x\ngot\n% x", want, got)
	}
}

// TestUnmatchedBrackets checks both structural failures and their exact
// diagnostics
func TestUnmatchedBrackets(t *testing.T) {
	src := normalizeSource([]byte("["))
	gen := newCodeGenerator(TargetELF64, src)
	err := generateCode(gen, src)
	if err == nil {
		t.Fatal("Expected error for unmatched [")
	}
	if err.Error() != "']' corresponding to '[' is not found." {
		t.Errorf("Wrong diagnostic: %q", err.Error())
	}

	src = normalizeSource([]byte("]"))
	gen = newCodeGenerator(TargetELF64, src)
	err = generateCode(gen, src)
	if err == nil {
		t.Fatal("Expected error for unmatched ]")
	}
	if err.Error() != "'[' corresponding to ']' is not found." {
		t.Errorf("Wrong diagnostic: %q", err.Error())
	}

	src = normalizeSource([]byte("[[]"))
	gen = newCodeGenerator(TargetELF64, src)
	if err := generateCode(gen, src); err != errUnmatchedOpen {
		t.Errorf("Expected errUnmatchedOpen for [[], got %v", err)
	}

	src = normalizeSource([]byte("]["))
	gen = newCodeGenerator(TargetELF64, src)
	if err := generateCode(gen, src); err != errUnmatchedClose {
		t.Errorf("Expected errUnmatchedClose for ][, got %v", err)
	}
}

// TestELF32OutputOnlyHoisting checks that the write syscall setup moves
// into the prologue when the program never reads
func TestELF32OutputOnlyHoisting(t *testing.T) {
	code := generateFor(t, TargetELF32, ".")

	want := []byte{
		// mov ecx, 0x04248000; mov edx, 1
		0xb9, 0x00, 0x80, 0x24, 0x04, 0xba, 0x01, 0x00, 0x00, 0x00,
		// hoisted: mov eax, 4; mov ebx, edx
		0xb8, 0x04, 0x00, 0x00, 0x00, 0x89, 0xd3,
		// bare int 0x80
		0xcd, 0x80,
		// mov eax, edx; xor ebx, ebx; int 0x80
		0x89, 0xd0, 0x31, 0xdb, 0xcd, 0x80,
	}
	if !bytes.Equal(code, want) {
		t.Errorf("Expected\n% x\ngot\n% x", want, code)
	}
}

// TestELF32MixedIO checks that mixed I/O reloads eax/ebx at every .
func TestELF32MixedIO(t *testing.T) {
	code := generateFor(t, TargetELF32, ",.")

	want := []byte{
		// mov ecx, 0x04248000; mov edx, 1 (no hoisting)
		0xb9, 0x00, 0x80, 0x24, 0x04, 0xba, 0x01, 0x00, 0x00, 0x00,
		// mov eax, 3; xor ebx, ebx; int 0x80
		0xb8, 0x03, 0x00, 0x00, 0x00, 0x31, 0xdb, 0xcd, 0x80,
		// mov eax, 4; mov ebx, edx; int 0x80
		0xb8, 0x04, 0x00, 0x00, 0x00, 0x89, 0xd3, 0xcd, 0x80,
		// epilogue
		0x89, 0xd0, 0x31, 0xdb, 0xcd, 0x80,
	}
	if !bytes.Equal(code, want) {
		t.Errorf("Expected\n% x\ngot\n% x", want, code)
	}
}

// TestELF32PointerRuns checks the one-byte inc/dec encodings of i386
func TestELF32PointerRuns(t *testing.T) {
	tests := []struct {
		source string
		want   []byte
	}{
		{">", []byte{0x41}},
		{"<", []byte{0x49}},
		{">>", []byte{0x83, 0xc1, 0x02}},
		{strings.Repeat(">", 200), []byte{0x81, 0xc1, 0xc8, 0x00, 0x00, 0x00}},
		{strings.Repeat("<", 200), []byte{0x81, 0xe9, 0xc8, 0x00, 0x00, 0x00}},
		{"+", []byte{0xfe, 0x01}},
		{"--", []byte{0x80, 0x29, 0x02}},
		{"[-]", []byte{0x88, 0x31}},
	}

	for _, tt := range tests {
		code := generateFor(t, TargetELF32, tt.source)
		got := body(code, elf32HoistedLen, elf32EpilogueLen)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%q: expected % x, got % x", tt.source, tt.want, got)
		}
	}
}

// TestELF32EmptyLoop checks loop patching with the ecx-based cmp
func TestELF32EmptyLoop(t *testing.T) {
	code := generateFor(t, TargetELF32, "[]")
	want := []byte{
		0x38, 0x31, 0x0f, 0x84, 0x02, 0x00, 0x00, 0x00,
		0xeb, 0xf6,
	}
	got := body(code, elf32HoistedLen, elf32EpilogueLen)
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % x, got % x", want, got)
	}
}

// TestPE64Prologue checks the reserved address slots and their recorded
// positions
func TestPE64Prologue(t *testing.T) {
	src := normalizeSource(nil)
	gen := newCodeGenerator(TargetPE64, src)
	if err := generateCode(gen, src); err != nil {
		t.Fatalf("Code generation failed: %v", err)
	}
	pg := gen.(*pe64Gen)
	code := pg.code.Bytes()

	wantPrologue := []byte{
		0x56, 0x57, 0x55, // push rsi; push rdi; push rbp
		0x48, 0x8b, 0x34, 0x25, 0, 0, 0, 0, // mov rsi, ds:<putchar>
		0x48, 0x8b, 0x3c, 0x25, 0, 0, 0, 0, // mov rdi, ds:<getchar>
		0x48, 0xc7, 0xc3, 0, 0, 0, 0, // mov rbx, <bss>
	}
	if !bytes.Equal(code[:pe64PrologueLen], wantPrologue) {
		t.Errorf("Expected prologue\n% x\ngot\n% x", wantPrologue, code[:pe64PrologueLen])
	}

	if pg.putcharSlot != 7 {
		t.Errorf("putchar slot at %d, expected 7", pg.putcharSlot)
	}
	if pg.getcharSlot != 15 {
		t.Errorf("getchar slot at %d, expected 15", pg.getcharSlot)
	}
	if pg.bssSlot != 22 {
		t.Errorf("bss slot at %d, expected 22", pg.bssSlot)
	}
	if pg.exitSlot != len(code)-4 {
		t.Errorf("exit slot at %d, expected %d", pg.exitSlot, len(code)-4)
	}

	wantEpilogue := []byte{
		0x5d, 0x5f, 0x5e, // pops
		0x48, 0x31, 0xc0, // xor rax, rax
		0xc3,       // retq
		0, 0, 0, 0, // exit slot
	}
	if !bytes.Equal(code[pe64PrologueLen:], wantEpilogue) {
		t.Errorf("Expected epilogue\n% x\ngot\n% x", wantEpilogue, code[pe64PrologueLen:])
	}
}

// TestPE64Calls checks the shadow-space call sequences for . and ,
func TestPE64Calls(t *testing.T) {
	code := generateFor(t, TargetPE64, ".,")
	got := body(code, pe64PrologueLen, pe64EpilogueLen)

	want := []byte{
		// mov rcx, [rbx]; sub rsp, 0x20; call rsi; add rsp, 0x20
		0x48, 0x8b, 0x0b,
		0x48, 0x83, 0xec, 0x20,
		0xff, 0xd6,
		0x48, 0x83, 0xc4, 0x20,
		// sub rsp, 0x20; call rdi; add rsp, 0x20; mov [rbx], al
		0x48, 0x83, 0xec, 0x20,
		0xff, 0xd7,
		0x48, 0x83, 0xc4, 0x20,
		0x88, 0x03,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected\n% x\ngot\n% x", want, got)
	}
}

// TestPE64Loop checks loop patching with the 3-byte cmp encoding
func TestPE64Loop(t *testing.T) {
	code := generateFor(t, TargetPE64, "[]")
	got := body(code, pe64PrologueLen, pe64EpilogueLen)

	want := []byte{
		0x80, 0x3b, 0x00, 0x0f, 0x84, 0x02, 0x00, 0x00, 0x00,
		0xeb, 0xf5,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % x, got % x", want, got)
	}
}

// TestPE64CellOps checks rbx-based cell and pointer encodings
func TestPE64CellOps(t *testing.T) {
	tests := []struct {
		source string
		want   []byte
	}{
		{">", []byte{0x48, 0xff, 0xc3}},
		{"<", []byte{0x48, 0xff, 0xcb}},
		{">>>>", []byte{0x48, 0x83, 0xc3, 0x04}},
		{strings.Repeat("<", 150), []byte{0x48, 0x81, 0xeb, 0x96, 0x00, 0x00, 0x00}},
		{"+", []byte{0xfe, 0x03}},
		{"-", []byte{0xfe, 0x0b}},
		{"+++", []byte{0x80, 0x03, 0x03}},
		{"---", []byte{0x80, 0x2b, 0x03}},
		{"[-]", []byte{0xc6, 0x03, 0x00}},
	}

	for _, tt := range tests {
		code := generateFor(t, TargetPE64, tt.source)
		got := body(code, pe64PrologueLen, pe64EpilogueLen)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%q: expected % x, got % x", tt.source, tt.want, got)
		}
	}
}
