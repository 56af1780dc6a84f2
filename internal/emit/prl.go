package emit

import (
	"errors"
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// ErrOutOfSyncPRL is raised when the shadow assembly's bytes diverge
// from the primary assembly by something other than the page offset
// used to rebase it — meaning the program isn't actually
// high-byte-relocatable.
var ErrOutOfSyncPRL = errors.New("PRL generation failed: out of sync")

var bitMask = [8]byte{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01}

// writePRL emits the CP/M PRL format: a 256-byte header (code length
// little-endian at bytes 1-2), the shadow-assembled code, then a
// relocation bitmap marking every byte whose value in the page-offset
// shadow assembly differs by exactly offset/256 from the primary
// assembly — those are the bytes whose value depends on the high byte
// of the load address.
func writePRL(w io.Writer, out *assembler.Output, shadow *Shadow) error {
	size := out.CodeSize()
	var head [256]byte
	head[1], head[2] = loHi(int64(size))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}

	off := shadow.Offset
	start := minUsed(out)
	reloc := make([]byte, (size+7)/8)
	for i := 0; i < size; i++ {
		addr := start + i
		b := out.Mem[addr&0xFFFF]
		b2 := shadow.Output.Mem[(int64(addr)+off)&0xFFFF]
		if b == b2 {
			continue
		}
		if int64(b2)-int64(b) != off/256 {
			return ErrOutOfSyncPRL
		}
		reloc[i/8] |= bitMask[i%8]
	}

	shadowStart := minUsed(shadow.Output)
	shadowCode := shadow.Output.Mem[shadowStart : shadowStart+size]
	if _, err := w.Write(shadowCode); err != nil {
		return err
	}
	_, err := w.Write(reloc)
	return err
}
