package emit

import (
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// writeMSX emits the 7-byte MSX BLOAD header (0xFE, start, end, exec,
// all little-endian) followed by the code.
func writeMSX(w io.Writer, out *assembler.Output) error {
	startLo, startHi := loHi(int64(minUsed(out)))
	endLo, endHi := loHi(int64(out.MaxUsed))
	entryLo, entryHi := loHi(entryPoint(out))
	head := []byte{0xFE, startLo, startHi, endLo, endHi, entryLo, entryHi}
	if _, err := w.Write(head); err != nil {
		return err
	}
	_, err := w.Write(out.Code())
	return err
}
