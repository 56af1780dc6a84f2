package emit

import (
	"io"
	"strings"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// TAP/TZX/CDT are explicitly not bit-exact against any reference tool:
// the engine only promises min_used/code_size/mem/entry_point/
// header_name, and no Go tape-container library covers these formats
// (see DESIGN.md), so this file writes the standard ZX Spectrum TAP
// block shape directly and wraps it in a TZX container for the two
// formats that need one; CDT reuses the TZX container verbatim since
// the Amstrad CPC's .cdt format is the same TZX block structure under
// a different file extension.

const tapHeaderDataLen = 17 // type + 10-byte name + length + param1 + param2

func tapChecksum(flag byte, data []byte) byte {
	c := flag
	for _, b := range data {
		c ^= b
	}
	return c
}

func tapBlockBytes(flag byte, data []byte) []byte {
	block := make([]byte, 0, len(data)+2)
	block = append(block, flag)
	block = append(block, data...)
	block = append(block, tapChecksum(flag, data))
	return block
}

func padName(name string) [10]byte {
	var b [10]byte
	for i := range b {
		b[i] = ' '
	}
	copy(b[:], strings.ToUpper(name))
	return b
}

// codeHeaderBlock builds the 17-byte "CODE" header payload: type=3,
// a 10-char space-padded filename, code length, and the load address
// in the param1 slot.
func codeHeaderBlock(name string, length, loadAddr int) []byte {
	data := make([]byte, 0, tapHeaderDataLen)
	data = append(data, 3)
	nameBytes := padName(name)
	data = append(data, nameBytes[:]...)
	lenLo, lenHi := loHi(int64(length))
	addrLo, addrHi := loHi(int64(loadAddr))
	data = append(data, lenLo, lenHi, addrLo, addrHi, 0, 0)
	return data
}

func tapBlocksFor(out *assembler.Output, headerName string) (header, code []byte) {
	code = out.Code()
	start := minUsed(out)
	header = tapBlockBytes(0x00, codeHeaderBlock(headerName, len(code), start))
	codeBlock := tapBlockBytes(0xFF, code)
	return header, codeBlock
}

func writeTAPBlock(w io.Writer, block []byte) error {
	lenLo, lenHi := loHi(int64(len(block)))
	if _, err := w.Write([]byte{lenLo, lenHi}); err != nil {
		return err
	}
	_, err := w.Write(block)
	return err
}

// writeTAP emits a standard header+code TAP pair.
func writeTAP(w io.Writer, out *assembler.Output, headerName string) error {
	header, code := tapBlocksFor(out, headerName)
	if err := writeTAPBlock(w, header); err != nil {
		return err
	}
	return writeTAPBlock(w, code)
}

func writeTZXFileHead(w io.Writer) error {
	_, err := w.Write([]byte("ZXTape!\x1A\x01\x14")) // version 1.20
	return err
}

// writeTZXStandardBlock wraps a TAP-shaped block as a TZX "standard
// speed data block" (ID 0x10): 2-byte pause-after-block in ms, then a
// 2-byte length and the block itself.
func writeTZXStandardBlock(w io.Writer, block []byte, pauseMs uint16) error {
	pauseLo, pauseHi := loHi(int64(pauseMs))
	lenLo, lenHi := loHi(int64(len(block)))
	if _, err := w.Write([]byte{0x10, pauseLo, pauseHi, lenLo, lenHi}); err != nil {
		return err
	}
	_, err := w.Write(block)
	return err
}

func writeTZXBody(w io.Writer, out *assembler.Output, headerName string) error {
	if err := writeTZXFileHead(w); err != nil {
		return err
	}
	header, code := tapBlocksFor(out, headerName)
	if err := writeTZXStandardBlock(w, header, 1000); err != nil {
		return err
	}
	return writeTZXStandardBlock(w, code, 1000)
}

// writeTZX emits a minimal TZX container (file header plus two
// standard-speed blocks for the CODE header and the code itself).
func writeTZX(w io.Writer, out *assembler.Output, headerName string) error {
	return writeTZXBody(w, out, headerName)
}

// writeCDT emits the Amstrad CPC .cdt container, which reuses the TZX
// block structure.
func writeCDT(w io.Writer, out *assembler.Output, headerName string) error {
	return writeTZXBody(w, out, headerName)
}
