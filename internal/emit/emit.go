// Package emit holds the container-format writers: each one is a pure
// function over the engine's finished, immutable Output plus whatever
// extra metadata its on-disk format needs. None of them touch
// assembler internals beyond the exported Output view, keeping
// parsing/encoding and on-disk rendering separate concerns.
package emit

import (
	"fmt"
	"io"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
)

// Format is the closed set of container formats the CLI can select.
type Format string

const (
	FormatRaw      Format = "raw"
	FormatHex      Format = "hex"
	FormatPlus3DOS Format = "plus3dos"
	FormatTAP      Format = "tap"
	FormatTZX      Format = "tzx"
	FormatCDT      Format = "cdt"
	FormatPRL      Format = "prl"
	FormatCMD      Format = "cmd"
	FormatMSX      Format = "msx"
	FormatAmsdos   Format = "amsdos"
	FormatSDCCREL  Format = "sdccrel"
)

// Formats lists every valid --format value, in the order the CLI help
// should show them.
var Formats = []Format{
	FormatRaw, FormatHex, FormatPlus3DOS, FormatTAP, FormatTZX, FormatCDT,
	FormatPRL, FormatCMD, FormatMSX, FormatAmsdos, FormatSDCCREL,
}

// Shadow carries the second, offset-rebased assembly that PRL and
// SDCC-REL need to detect which bytes are address-relocatable: run a
// shadow assembly offset by 0x100 (PRL) or 0x103 (SDCC-REL) and diff
// against the primary assembly byte-for-byte. The caller (cmd/z80asm)
// produces it by re-running the engine with Config.Base bumped by
// Offset.
type Shadow struct {
	Output *assembler.Output
	Offset int64
}

// NeedsShadow reports whether format requires a second, offset pass
// before it can be written.
func NeedsShadow(f Format) bool {
	return f == FormatPRL || f == FormatSDCCREL
}

// ShadowOffset is the base offset the second pass must use for format.
func ShadowOffset(f Format) int64 {
	switch f {
	case FormatPRL:
		return 0x100
	case FormatSDCCREL:
		return 0x103
	default:
		return 0
	}
}

// Write dispatches to the concrete emitter for format. headerName is
// the tape/disk header filename (TAP/TZX/CDT/Amsdos); shadow is
// required (non-nil) exactly when NeedsShadow(format) is true.
func Write(format Format, w io.Writer, out *assembler.Output, headerName string, shadow *Shadow) error {
	switch format {
	case FormatRaw:
		return writeRaw(w, out)
	case FormatHex:
		return writeHex(w, out)
	case FormatPlus3DOS:
		return writePlus3DOS(w, out)
	case FormatTAP:
		return writeTAP(w, out, headerName)
	case FormatTZX:
		return writeTZX(w, out, headerName)
	case FormatCDT:
		return writeCDT(w, out, headerName)
	case FormatPRL:
		if shadow == nil {
			return fmt.Errorf("emit: PRL requires a shadow assembly")
		}
		return writePRL(w, out, shadow)
	case FormatCMD:
		return writeCMD(w, out)
	case FormatMSX:
		return writeMSX(w, out)
	case FormatAmsdos:
		return writeAmsdos(w, out, headerName)
	case FormatSDCCREL:
		if shadow == nil {
			return fmt.Errorf("emit: SDCC REL requires a shadow assembly")
		}
		return writeSDCCRel(w, out, shadow, headerName)
	default:
		return fmt.Errorf("emit: unknown format %q", format)
	}
}

func entryPoint(out *assembler.Output) int64 {
	if out.EntryPoint == nil {
		return int64(out.MinUsed)
	}
	return *out.EntryPoint
}

func minUsed(out *assembler.Output) int {
	if out.MinUsed < 0 {
		return 0
	}
	return out.MinUsed
}

func loHi(v int64) (byte, byte) { return byte(v & 0xFF), byte((v >> 8) & 0xFF) }
