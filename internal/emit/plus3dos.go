package emit

import (
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// plus3Head builds the 128-byte PLUS3DOS header: identifier/EOF/
// issue/version at 0-11, type=3 (code) at 15, code size at 16-17,
// start address at 18-19, the unexplained 0x80,0x80 pair at 20-21,
// and a mod-256 checksum of bytes 0-126 at 127.
func plus3Head(codeSize, start int) [128]byte {
	var h [128]byte
	copy(h[:], "PLUS3DOS")
	h[8] = 0x1A
	h[9] = 1
	h[10] = 0
	h[15] = 3
	fileSize := codeSize + 128
	h[11] = byte(fileSize)
	h[12] = byte(fileSize >> 8)
	h[13] = byte(fileSize >> 16)
	h[14] = byte(fileSize >> 24)
	h[16], h[17] = loHi(int64(codeSize))
	h[18], h[19] = loHi(int64(start))
	h[20] = 0x80
	h[21] = 0x80
	var check byte
	for i := 0; i < 127; i++ {
		check += h[i]
	}
	h[127] = check
	return h
}

// writePlus3DOS emits the PLUS3DOS header followed by the code,
// padded out to a 128-byte multiple.
func writePlus3DOS(w io.Writer, out *assembler.Output) error {
	code := out.Code()
	head := plus3Head(len(code), minUsed(out))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	if _, err := w.Write(code); err != nil {
		return err
	}
	round := 128 - len(code)%128
	if round == 128 {
		return nil
	}
	_, err := w.Write(make([]byte, round))
	return err
}
