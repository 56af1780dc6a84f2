package emit

import (
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// cmdGroup is one 9-byte CP/M-86 .CMD group descriptor: a type byte
// followed by four little-endian words (length, base, minimum,
// maximum).
type cmdGroup struct {
	kind              byte
	length, base      uint16
	minimum, maximum  uint16
}

func cmdPara(n int) uint16 { return uint16((n + 15) / 16) }

func codeCmdGroup(codeSize int) cmdGroup {
	length := cmdPara(codeSize) + 0x0010
	return cmdGroup{kind: 1, length: length, base: 0, minimum: length, maximum: 0x0FFF}
}

func (g cmdGroup) put(w io.Writer) error {
	lenLo, lenHi := loHi(int64(g.length))
	baseLo, baseHi := loHi(int64(g.base))
	minLo, minHi := loHi(int64(g.minimum))
	maxLo, maxHi := loHi(int64(g.maximum))
	_, err := w.Write([]byte{
		g.kind, lenLo, lenHi, baseLo, baseHi, minLo, minHi, maxLo, maxHi,
	})
	return err
}

// writeCMD emits eight 9-byte group descriptors (the first describing
// the code, the rest empty), zero-padded to 128 bytes, a 256-byte
// 8080-model prefix, then the code itself.
func writeCMD(w io.Writer, out *assembler.Output) error {
	code := out.Code()
	if err := codeCmdGroup(len(code)).put(w); err != nil {
		return err
	}
	var empty cmdGroup
	for i := 1; i < 8; i++ {
		if err := empty.put(w); err != nil {
			return err
		}
	}
	if _, err := w.Write(make([]byte, 128-72)); err != nil {
		return err
	}
	if _, err := w.Write(make([]byte, 256)); err != nil {
		return err
	}
	_, err := w.Write(code)
	return err
}
