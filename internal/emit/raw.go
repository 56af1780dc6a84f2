package emit

import (
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// writeRaw emits mem[min_used..=max_used] verbatim.
func writeRaw(w io.Writer, out *assembler.Output) error {
	_, err := w.Write(out.Code())
	return err
}
