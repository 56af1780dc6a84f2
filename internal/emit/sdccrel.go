package emit

import (
	"fmt"
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// writeSDCCRel emits a textual SDCC .rel module: a header naming one
// area (_CODE) and every PUBLIC symbol, then a sequence of T records
// (up to 14 bytes of literal code each) interrupted by R records
// wherever a byte pair's value depends on the load address — detected
// the same way PRL detects it, via a shadow assembly offset by 0x103.
func writeSDCCRel(w io.Writer, out *assembler.Output, shadow *Shadow, headerName string) error {
	publics := out.Publics()
	size := out.CodeSize()

	if _, err := fmt.Fprintf(w, "XL2\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "M %s\n", headerName); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "H 1 areas %d global symbols\n", len(publics)+1); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "O -mz80\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "S .__.ABS. Def0000\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "A _CODE size %04X flags 0 addr 0\n", size); err != nil {
		return err
	}
	for _, p := range publics {
		if _, err := fmt.Fprintf(w, "S %s Def%04X\n", p.Name, p.Value&0xFFFF); err != nil {
			return err
		}
	}

	off := shadow.Offset
	start := minUsed(out)
	tsize := 0
	for i := 0; i < size; i++ {
		addr := start + i
		b := out.Mem[addr&0xFFFF]
		b2 := shadow.Output.Mem[(int64(addr)+off)&0xFFFF]
		if b != b2 {
			if i+1 >= size {
				return ErrOutOfSyncPRL
			}
			bh := out.Mem[(addr+1)&0xFFFF]
			word := int64(b) | int64(bh)<<8
			word2 := int64(b2) | int64(shadow.Output.Mem[(int64(addr)+off+1)&0xFFFF])<<8
			if word2-word != off {
				return ErrOutOfSyncPRL
			}
			if tsize > 0 {
				if _, err := fmt.Fprintf(w, "\nR 00 00 00 00\n"); err != nil {
					return err
				}
				tsize = 0
			}
			if _, err := fmt.Fprintf(w, "T %02X %02X %02X %02X\n", addr&0xFF, (addr>>8)&0xFF, b, bh); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "R 00 00 00 00 00 02 00 00\n"); err != nil {
				return err
			}
			i++
			continue
		}
		if tsize == 14 {
			if _, err := fmt.Fprintf(w, "\nR 00 00 00 00\n"); err != nil {
				return err
			}
			tsize = 0
		}
		if tsize == 0 {
			if _, err := fmt.Fprintf(w, "T %02X %02X", addr&0xFF, (addr>>8)&0xFF); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " %02X", b); err != nil {
			return err
		}
		tsize++
	}
	if tsize > 0 {
		if _, err := fmt.Fprintf(w, "\nR 00 00 00 00\n"); err != nil {
			return err
		}
	}
	return nil
}
