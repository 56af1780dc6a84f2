package emit

import (
	"fmt"
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// writeHex emits Intel HEX: 16-byte records of "len addr 00 data... csum",
// CRLF-terminated, followed by the type-01 end-of-file record carrying
// the entry point.
func writeHex(w io.Writer, out *assembler.Output) error {
	code := out.Code()
	start := minUsed(out)
	for off := 0; off < len(code); off += 16 {
		n := len(code) - off
		if n > 16 {
			n = 16
		}
		addr := start + off
		chunk := code[off : off+n]
		sum := byte(n) + byte(addr>>8) + byte(addr)
		for _, b := range chunk {
			sum += b
		}
		if _, err := fmt.Fprintf(w, ":%02X%04X00", n, addr&0xFFFF); err != nil {
			return err
		}
		for _, b := range chunk {
			if _, err := fmt.Fprintf(w, "%02X", b); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%02X\r\n", byte(0x100-int(sum))); err != nil {
			return err
		}
	}
	entry := entryPoint(out) & 0xFFFF
	sum := byte(entry>>8) + byte(entry) + 1
	_, err := fmt.Fprintf(w, ":00%04X01%02X\r\n", entry, byte(0x100-int(sum)))
	return err
}
