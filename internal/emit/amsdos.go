package emit

import (
	"io"
	"strings"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// amsdosHead builds the 128-byte Amstrad CPC AMSDOS header: an
// 8.3 filename, a binary file-type byte, load/logical/entry
// addresses, the real file length near the tail, and a 16-bit
// additive checksum over bytes 0-66 — the same header-plus-checksum
// shape as plus3Head, with AMSDOS's own field layout; the offsets
// are not checked against a reference implementation (see DESIGN.md).
func amsdosHead(name string, codeSize, loadAddr, entryAddr int) [128]byte {
	var h [128]byte
	base := strings.ToUpper(name)
	ext := ""
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		ext = base[dot+1:]
		base = base[:dot]
	}
	for i := 0; i < 8; i++ {
		if i < len(base) {
			h[1+i] = base[i]
		} else {
			h[1+i] = ' '
		}
	}
	for i := 0; i < 3; i++ {
		if i < len(ext) {
			h[9+i] = ext[i]
		} else {
			h[9+i] = ' '
		}
	}
	h[14] = 2 // binary file type
	lenLo, lenHi := loHi(int64(codeSize))
	h[15], h[16] = lenLo, lenHi
	h[17], h[18] = loHi(int64(loadAddr))
	h[19] = 0xFF // first (and only) block
	h[20], h[21] = lenLo, lenHi
	h[22], h[23] = loHi(int64(entryAddr))
	h[64], h[65] = lenLo, lenHi
	h[66] = 0
	var sum uint16
	for i := 0; i < 67; i++ {
		sum += uint16(h[i])
	}
	h[67], h[68] = loHi(int64(sum))
	return h
}

// writeAmsdos emits the AMSDOS header followed by the raw code.
func writeAmsdos(w io.Writer, out *assembler.Output, headerName string) error {
	code := out.Code()
	head := amsdosHead(headerName, len(code), minUsed(out), int(entryPoint(out)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(code)
	return err
}
