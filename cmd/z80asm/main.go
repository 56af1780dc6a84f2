// z80asm: command-line driver for the internal/assembler pass engine.
// Parse flags with kingpin, feed a LineStream rooted at the source
// file, and render whatever comes out.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/term"
	"gopkg.in/alecthomas/kingpin.v1"

	"github.com/nmlgc-fork/z80asm/internal/assembler"
	"github.com/nmlgc-fork/z80asm/internal/emit"
)

// fileConfig is the shape of an optional --config TOML file
//; command-line flags override whatever it sets.
type fileConfig struct {
	CPU           string   `toml:"cpu"`
	Warn8080      bool     `toml:"warn8080"`
	CaseSensitive bool     `toml:"caseSensitive"`
	BracketOnly   bool     `toml:"bracketOnly"`
	AutoLocal     bool     `toml:"autoLocal"`
	WError        bool     `toml:"werror"`
	Include       []string `toml:"include"`
	Predefine     []string `toml:"predefine"`
}

func main() {
	var (
		configPath    = kingpin.Flag("config", "TOML configuration file.").String()
		base          = kingpin.Flag("base", "Starting value of the location counter.").Default("0").String()
		pass3         = kingpin.Flag("pass3", "Force a third pass unconditionally.").Bool()
		werror        = kingpin.Flag("werror", "Promote every warning to an error.").Bool()
		bracketOnly   = kingpin.Flag("bracket-only", "Only [expr] denotes indirection; (expr) is never speculative.").Bool()
		autoLocal     = kingpin.Flag("auto-local", "Treat _-prefixed identifiers as automatically local.").Bool()
		caseSensitive = kingpin.Flag("case-sensitive", "Treat symbol names as case-sensitive.").Bool()
		warn8080      = kingpin.Flag("warn8080", "Warn on instructions with no 8080 equivalent.").Bool()
		is8086        = kingpin.Flag("86", "Translate the small common subset of Z80 opcodes to 8086.").Bool()
		predefines    = kingpin.Flag("predefine", "Predefine NAME=VALUE (repeatable).").Strings()
		includeDirs   = kingpin.Flag("include", "Add a directory to the INCLUDE/INCBIN search path (repeatable).").Short('I').Strings()
		format        = kingpin.Flag("format", "Output container format.").Short('f').Required().Enum(
			"raw", "hex", "plus3dos", "tap", "tzx", "cdt", "prl", "cmd", "msx", "amsdos", "sdccrel",
		)
		output = kingpin.Flag("output", "Output file.").Short('o').Required().String()
		symdump = kingpin.Flag("symdump", "Write the final symbol table as CBOR to this file.").String()
		source  = kingpin.Arg("source", "Z80 assembly source file.").Required().ExistingFile()
	)
	kingpin.Parse()

	useColor := term.IsTerminal(int(os.Stderr.Fd()))

	cfg := assembler.Config{Predefined: map[string]int64{}}
	if *configPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(*configPath, &fc); err != nil {
			fatal(useColor, "%v", err)
		}
		applyFileConfig(&cfg, fc)
		includeDirsFromFile := fc.Include
		*includeDirs = append(includeDirsFromFile, *includeDirs...)
	}

	baseVal, err := parseAddress(*base)
	if err != nil {
		fatal(useColor, "--base: %v", err)
	}
	cfg.Base = baseVal
	cfg.ForcePass3 = cfg.ForcePass3 || *pass3
	cfg.WError = cfg.WError || *werror
	cfg.BracketOnly = cfg.BracketOnly || *bracketOnly
	cfg.AutoLocal = cfg.AutoLocal || *autoLocal
	cfg.CaseSensitive = cfg.CaseSensitive || *caseSensitive
	cfg.Warn8080 = cfg.Warn8080 || *warn8080
	if *is8086 {
		cfg.CPUMode = assembler.CPU8086
	}
	for _, p := range *predefines {
		name, val, err := parsePredefine(p)
		if err != nil {
			fatal(useColor, "--predefine: %v", err)
		}
		cfg.Predefined[name] = val
	}

	out, err := assembleOnce(cfg, *includeDirs, *source)
	if err != nil {
		fatal(useColor, "%v", err)
	}

	f := emit.Format(*format)
	var shadow *emit.Shadow
	if emit.NeedsShadow(f) {
		shadowCfg := cfg
		shadowCfg.Base = cfg.Base + emit.ShadowOffset(f)
		shadowOut, err := assembleOnce(shadowCfg, *includeDirs, *source)
		if err != nil {
			fatal(useColor, "shadow assembly: %v", err)
		}
		shadow = &emit.Shadow{Output: shadowOut, Offset: emit.ShadowOffset(f)}
	}

	outFile, err := os.Create(*output)
	if err != nil {
		fatal(useColor, "%v", err)
	}
	defer outFile.Close()

	headerName := strings.ToUpper(baseName(*source))
	if err := emit.Write(f, outFile, out, headerName, shadow); err != nil {
		fatal(useColor, "%v", err)
	}

	if *symdump != "" {
		if err := writeSymdump(*symdump, out); err != nil {
			fatal(useColor, "--symdump: %v", err)
		}
	}

	fmt.Fprintf(os.Stderr, "%s written, entry point 0x%04X\n",
		humanize.Bytes(uint64(out.CodeSize())), entryPointOf(out))
}

// assembleOnce runs one full pass set. Warnings are printed as they are
// emitted, by the engine's own diagnostic logger; nothing here re-prints
// eng.Warnings().
func assembleOnce(cfg assembler.Config, includeDirs []string, source string) (*assembler.Output, error) {
	ls := assembler.NewDefaultLineStream(includeDirs)
	eng := assembler.NewEngine(cfg, ls)
	return eng.ProcessFile(source)
}

func applyFileConfig(cfg *assembler.Config, fc fileConfig) {
	cfg.Warn8080 = fc.Warn8080
	cfg.CaseSensitive = fc.CaseSensitive
	cfg.BracketOnly = fc.BracketOnly
	cfg.AutoLocal = fc.AutoLocal
	cfg.WError = fc.WError
	if strings.EqualFold(fc.CPU, "8086") {
		cfg.CPUMode = assembler.CPU8086
	}
	for _, p := range fc.Predefine {
		if name, val, err := parsePredefine(p); err == nil {
			cfg.Predefined[name] = val
		}
	}
}

func parsePredefine(s string) (string, int64, error) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return "", 0, fmt.Errorf("expected NAME=VALUE, got %q", s)
	}
	name := s[:eq]
	val, err := parseAddress(s[eq+1:])
	if err != nil {
		return "", 0, err
	}
	return name, val, nil
}

// parseAddress accepts decimal, 0x-prefixed, $-prefixed, or H-suffixed
// hexadecimal, the way assembler source literals do (lexstream.go's
// scanNumber).
func parseAddress(s string) (int64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		return strconv.ParseInt(s[2:], 16, 64)
	case strings.HasPrefix(s, "$"):
		return strconv.ParseInt(s[1:], 16, 64)
	case strings.HasSuffix(strings.ToUpper(s), "H"):
		return strconv.ParseInt(s[:len(s)-1], 16, 64)
	default:
		return strconv.ParseInt(s, 10, 64)
	}
}

func baseName(path string) string {
	s := path
	if i := strings.LastIndexAny(s, "/\\"); i >= 0 {
		s = s[i+1:]
	}
	if dot := strings.LastIndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	return s
}

func entryPointOf(out *assembler.Output) int64 {
	if out.EntryPoint == nil {
		if out.MinUsed < 0 {
			return 0
		}
		return int64(out.MinUsed)
	}
	return *out.EntryPoint
}

// symdumpEntry is the CBOR-serializable shape of one symbol-table row.
type symdumpEntry struct {
	Name  string `cbor:"name"`
	Value int64  `cbor:"value"`
	State int    `cbor:"state"`
}

func writeSymdump(path string, out *assembler.Output) error {
	syms := out.Symbols()
	entries := make([]symdumpEntry, 0, len(syms))
	for _, s := range syms {
		entries = append(entries, symdumpEntry{Name: s.Name, Value: s.Value, State: int(s.State)})
	}
	b, err := cbor.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func fatal(color bool, format string, a ...interface{}) {
	prefix := "error: "
	if color {
		prefix = "\x1b[31merror:\x1b[0m "
	}
	fmt.Fprint(os.Stderr, prefix)
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}
