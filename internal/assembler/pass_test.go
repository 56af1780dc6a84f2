package assembler

import (
	"os"
	"path/filepath"
	"testing"
)

func assembleSrc(t *testing.T, src string, cfg Config) *Output {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.asm")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	ls := NewDefaultLineStream(nil)
	eng := NewEngine(cfg, ls)
	out, err := eng.ProcessFile(path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	return out
}

func assembleSrcErr(t *testing.T, src string, cfg Config) error {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.asm")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	ls := NewDefaultLineStream(nil)
	eng := NewEngine(cfg, ls)
	_, err := eng.ProcessFile(path)
	return err
}

// assembleSrcWarn is assembleSrc plus the accumulated warnings, for tests
// that care about diagnostics rather than just the emitted bytes.
func assembleSrcWarn(t *testing.T, src string, cfg Config) (*Output, []Warning) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.asm")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	ls := NewDefaultLineStream(nil)
	eng := NewEngine(cfg, ls)
	out, err := eng.ProcessFile(path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	return out, eng.Warnings()
}

func countMessage(warnings []Warning, msg string) int {
	n := 0
	for _, w := range warnings {
		if w.Message == msg {
			n++
		}
	}
	return n
}

// Scenario: ORG/LD/RET byte sequence.
func TestOrgLdRetBytes(t *testing.T) {
	out := assembleSrc(t, "\torg 0x8000\n\tld a,1\n\tret\n", Config{})
	want := []byte{0x3E, 0x01, 0xC9}
	got := out.Code()
	if string(got) != string(want) {
		t.Fatalf("got % X, want % X", got, want)
	}
	if out.MinUsed != 0x8000 || out.MaxUsed != 0x8002 {
		t.Fatalf("min/max used = %d/%d, want 0x8000/0x8002", out.MinUsed, out.MaxUsed)
	}
}

// Scenario: forward reference, LD HL,foo / foo: NOP with base=0x8000.
func TestForwardReference(t *testing.T) {
	out := assembleSrc(t, "\tld hl,foo\nfoo:\n\tnop\n", Config{Base: 0x8000})
	want := []byte{0x21, 0x03, 0x80, 0x00}
	got := out.Code()
	if string(got) != string(want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// Scenario: label before a DEFB array.
func TestLabelBeforeDefbArray(t *testing.T) {
	out := assembleSrc(t, "data:\n\tdefb 1,2,3\n\tld a,(data)\n", Config{Base: 0})
	if out.CodeSize() != 3+3 {
		t.Fatalf("code size = %d, want 6", out.CodeSize())
	}
	got := out.Code()[:3]
	if string(got) != string([]byte{1, 2, 3}) {
		t.Fatalf("DEFB bytes = % X, want 01 02 03", got)
	}
}

// Scenario: conditional skip, IF 0 / DEFB 0FFH / ELSE / DEFB 0AAH / ENDIF.
func TestConditionalSkip(t *testing.T) {
	out := assembleSrc(t, "\tif 0\n\tdefb 0FFh\n\telse\n\tdefb 0AAh\n\tendif\n", Config{})
	if out.CodeSize() != 1 || out.Code()[0] != 0xAA {
		t.Fatalf("code = % X, want AA", out.Code())
	}
}

// Scenario: REPT with a counter.
func TestReptWithCounter(t *testing.T) {
	out := assembleSrc(t, "\trept 3, i\n\tdefb i\n\tendm\n", Config{})
	want := []byte{0, 1, 2}
	if string(out.Code()) != string(want) {
		t.Fatalf("got % X, want % X", out.Code(), want)
	}
}

// Scenario: IX-offset encoding, a positive displacement and the -1 end
// of the asymmetric +0..255/-1..128 displacement range (encoded as FF).
func TestIXOffsetEncoding(t *testing.T) {
	out := assembleSrc(t, "\tld a,(ix+5)\n\tld a,(ix-1)\n", Config{})
	want := []byte{0xDD, 0x7E, 0x05, 0xDD, 0x7E, 0xFF}
	if string(out.Code()) != string(want) {
		t.Fatalf("got % X, want % X", out.Code(), want)
	}
}

func TestIXOffsetOutOfRange(t *testing.T) {
	err := assembleSrcErr(t, "\tld a,(ix+256)\n", Config{})
	if err == nil {
		t.Fatalf("expected an out-of-range error, got nil")
	}
}

// Scenario: relative jump range check.
func TestRelativeJumpOutOfRange(t *testing.T) {
	var b []byte
	b = append(b, []byte("\tjr toofar\n")...)
	for i := 0; i < 200; i++ {
		b = append(b, []byte("\tnop\n")...)
	}
	b = append(b, []byte("toofar:\n\tret\n")...)
	err := assembleSrcErr(t, string(b), Config{})
	if err == nil {
		t.Fatalf("expected a relative-out-of-range error, got nil")
	}
}

// Scenario: phase escalation to a third pass.
//
// DEFS's length is a symbol ("len") defined by EQU after the block:
// pass 1 sees it as 0 and pass 2 as 2, so the label after the block
// gets a different value on each pass, which must trigger the
// lastpass=3 escalation path.
func TestPhaseEscalationToThirdPass(t *testing.T) {
	src := "\torg 0x8000\nstart:\n\tdefs len\nafter:\nlen equ 2\n"
	out, warnings := assembleSrcWarn(t, src, Config{})
	if out.MinUsed != 0x8000 {
		t.Fatalf("min used = %#x, want 0x8000", out.MinUsed)
	}
	msg := "value changed on pass 2, switching to 3 pass mode"
	if n := countMessage(warnings, msg); n != 1 {
		t.Fatalf("want exactly one %q warning, got %d (all: %v)", msg, n, warnings)
	}
}

func TestUndefinedVariableIsAnError(t *testing.T) {
	err := assembleSrcErr(t, "\tld a,nosuch\n", Config{})
	if err == nil {
		t.Fatalf("expected an undefined-variable error, got nil")
	}
}

func TestRedefinedEquIsAnError(t *testing.T) {
	err := assembleSrcErr(t, "foo equ 1\nfoo equ 2\n", Config{})
	if err == nil {
		t.Fatalf("expected a redefined-EQU error, got nil")
	}
}

func TestDeflMayBeRedefinedFreely(t *testing.T) {
	out := assembleSrc(t, "foo defl 1\nfoo defl 2\n\tld a,foo\n", Config{})
	if out.CodeSize() != 2 || out.Code()[1] != 2 {
		t.Fatalf("got % X, want 3E 02", out.Code())
	}
}

func TestUnbalancedIfIsAnError(t *testing.T) {
	err := assembleSrcErr(t, "\tif 1\n\tnop\n", Config{})
	if err == nil {
		t.Fatalf("expected an IF-without-ENDIF error, got nil")
	}
}

func TestDivisionByZeroRequiredIsAnError(t *testing.T) {
	err := assembleSrcErr(t, "foo equ 1/0\n", Config{})
	if err == nil {
		t.Fatalf("expected a division-by-zero error, got nil")
	}
}

// Scenario: MACRO definition followed by a call that substitutes its
// one parameter into the captured body.
func TestMacroExpansionWithParam(t *testing.T) {
	src := "setbyte MACRO v\n\tdefb v\n\tendm\ncall1: setbyte 7\n"
	out := assembleSrc(t, src, Config{})
	want := []byte{7}
	if string(out.Code()) != string(want) {
		t.Fatalf("got % X, want % X", out.Code(), want)
	}
}

// Scenario: IRP expands its body once per argument, substituting each
// in turn.
func TestIrpExpandsEachArgument(t *testing.T) {
	out := assembleSrc(t, "\tirp n 1,2,3\n\tdefb n\n\tendm\n", Config{})
	want := []byte{1, 2, 3}
	if string(out.Code()) != string(want) {
		t.Fatalf("got % X, want % X", out.Code(), want)
	}
}

// Scenario: ENDP's three-way scope-hygiene classification — a local
// that is both undefined and unreferenced fires the single merged
// message, never the two single-cause messages.
func TestEndpWarnsUndefinedAndUnreferencedOnce(t *testing.T) {
	src := "foo proc\n\tlocal x\n\tnop\n\tendp\n"
	_, warnings := assembleSrcWarn(t, src, Config{})
	both := "local symbol declared but never referenced: x"
	if n := countMessage(warnings, both); n != 1 {
		t.Fatalf("want exactly one %q warning, got %d (all: %v)", both, n, warnings)
	}
	for _, bad := range []string{
		"local symbol never defined: x",
		"local symbol never referenced: x",
	} {
		if countMessage(warnings, bad) != 0 {
			t.Fatalf("merged case must not also fire %q: %v", bad, warnings)
		}
	}
}

// Scenario: a local referenced only through IFDEF (which resolves it
// without assigning it a value) fires the never-defined message alone.
func TestEndpWarnsUndefinedOnly(t *testing.T) {
	src := "bar proc\n\tlocal y\n\tifdef y\n\tendif\n\tendp\n"
	_, warnings := assembleSrcWarn(t, src, Config{})
	want := "local symbol never defined: y"
	if n := countMessage(warnings, want); n != 1 {
		t.Fatalf("want exactly one %q warning, got %d (all: %v)", want, n, warnings)
	}
	for _, bad := range []string{
		"local symbol declared but never referenced: y",
		"local symbol never referenced: y",
	} {
		if countMessage(warnings, bad) != 0 {
			t.Fatalf("unexpected warning %q alongside the never-defined one: %v", bad, warnings)
		}
	}
}

// Scenario: PROC/LOCAL shadow-restore — a name's prior global binding
// comes back unchanged once the frame that shadowed it closes.
func TestLocalShadowRestoredAtEndp(t *testing.T) {
	src := "x equ 10\nfoo proc\n\tlocal x\nx:\n\tnop\n\tendp\n\tld a,x\n"
	out := assembleSrc(t, src, Config{})
	want := []byte{0x00, 0x3E, 0x0A}
	if string(out.Code()) != string(want) {
		t.Fatalf("got % X, want % X", out.Code(), want)
	}
}

// Scenario: DEFINED reports false for a genuinely undefined symbol
// rather than conflating a forward-reference-tolerant lookup's "no
// error" with "is defined".
func TestDefinedPredicate(t *testing.T) {
	src := "foo equ 1\n\tif defined foo\n\tdefb 0AAh\n\tendif\n\tif defined bar\n\tdefb 0BBh\n\tendif\n"
	out := assembleSrc(t, src, Config{})
	want := []byte{0xAA}
	if string(out.Code()) != string(want) {
		t.Fatalf("got % X, want % X", out.Code(), want)
	}
}

// Scenario: defining a local (as a label) must not count as a
// reference to it — only an expression read should.
func TestLocalDefinitionDoesNotCountAsUse(t *testing.T) {
	src := "foo proc\n\tlocal x\nx:\n\tnop\n\tendp\n"
	_, warnings := assembleSrcWarn(t, src, Config{})
	want := "local symbol never referenced: x"
	if n := countMessage(warnings, want); n != 1 {
		t.Fatalf("want exactly one %q warning, got %d (all: %v)", want, n, warnings)
	}
}

// Scenario: ## at the start or end of a substituted line has no token
// on one side to join and must be rejected, not silently stripped.
func TestConcatAtLineBoundaryIsInvalid(t *testing.T) {
	src := "m MACRO v\n\t## v\n\tendm\n\tm 1\n"
	if err := assembleSrcErr(t, src, Config{}); err == nil {
		t.Fatalf("expected an error for ## at the start of a substituted line")
	}
}

// Scenario: an IF whose false branch is never closed before the
// enclosing macro's own ENDM must abort the skip at that ENDM rather
// than scanning past it into unrelated source looking for ENDIF — the
// line after the macro call must still be reached, not swallowed by a
// skip that ran off the end of the body hunting for a match.
func TestSkipStopsAtMacroEndm(t *testing.T) {
	src := "m MACRO\n\tif 0\n\tdefb 1\n\tendm\n\tdefb 2\n\tm\n"
	if err := assembleSrcErr(t, src, Config{}); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
}

// Scenario: a parenthesized operand accepted as a plain immediate
// because the instruction has no (nn) encoding in that slot earns the
// non-existent-instruction warning on pass >= 2.
func TestParenImmediateWarnsOnNonExistentForm(t *testing.T) {
	src := "\tld b,(1)\n"
	out, warnings := assembleSrcWarn(t, src, Config{})
	want := []byte{0x06, 0x01}
	if string(out.Code()) != string(want) {
		t.Fatalf("got % X, want % X", out.Code(), want)
	}
	msg := "looks like a non existent instruction"
	if n := countMessage(warnings, msg); n != 1 {
		t.Fatalf("want exactly one %q warning, got %d (all: %v)", msg, n, warnings)
	}
}

// Scenario: the same operand shape with a bracket, under --bracket-only,
// is unambiguous by configuration and never warns.
func TestBracketOnlyImmediateDoesNotWarn(t *testing.T) {
	src := "\tld b,[1]\n"
	_, warnings := assembleSrcWarn(t, src, Config{BracketOnly: true})
	msg := "looks like a non existent instruction"
	if n := countMessage(warnings, msg); n != 0 {
		t.Fatalf("bracket-only build must not warn, got %d: %v", n, warnings)
	}
}
