// Engine ties the components together: one long-lived struct owns the
// whole run, holding a flat 64 KiB memory image plus the pass-driven
// symbol resolution state that settles it.

package assembler

import "strings"

// Config holds every user-facing knob the driver needs.
type Config struct {
	Base          int64
	CaseSensitive bool
	AutoLocal     bool
	BracketOnly   bool
	Warn8080      bool
	CPUMode       CPUMode
	WError        bool
	ForcePass3    bool
	Predefined    map[string]int64
}

// Engine is the single owner of assembly state for one run.
type Engine struct {
	cfg Config

	out *Output

	locCounter int64
	pass       int
	lastPass   int

	sym         *SymbolTable
	scope       *ScopeStack
	cond        *CondState
	macros      *MacroTable
	macroFrames *MacroFrameStack

	warnings []Warning
	diag     *DiagLogger

	ls  LineStream
	tok Tokenizer

	commentDelim string
	usedSet      map[string]bool
}

// NewEngine constructs an engine ready to run ProcessFile.
func NewEngine(cfg Config, ls LineStream) *Engine {
	e := &Engine{
		cfg:          cfg,
		sym:          NewSymbolTable(cfg.CaseSensitive),
		scope:        NewScopeStack(cfg.AutoLocal),
		cond:         NewCondState(),
		macros:       NewMacroTable(cfg.CaseSensitive),
		macroFrames:  NewMacroFrameStack(),
		diag:         NewDiagLogger(),
		ls:           ls,
		commentDelim: ";",
		lastPass:     2,
	}
	for name, v := range cfg.Predefined {
		e.sym.AddPredefined(name, v)
	}
	return e
}

func (e *Engine) pc() int64    { return e.locCounter }
func (e *Engine) passNum() int { return e.pass }

func (e *Engine) warn(line int, msg string) error {
	w := Warning{Line: line, Message: msg}
	e.warnings = append(e.warnings, w)
	e.diag.Warn(w)
	if e.cfg.WError {
		return errf(line, msg)
	}
	return nil
}

func (e *Engine) warnAt(line int, msg string) {
	_ = e.warn(line, msg)
}

// Warnings returns every warning accumulated across the run.
func (e *Engine) Warnings() []Warning { return e.warnings }

// emitByte writes one byte at the location counter, advances it mod
// 2^16, and updates min_used/max_used.
func (e *Engine) emitByte(b byte) {
	addr := int(e.locCounter & 0xFFFF)
	e.out.Mem[addr] = b
	if e.out.MinUsed < 0 || addr < e.out.MinUsed {
		e.out.MinUsed = addr
	}
	if addr > e.out.MaxUsed {
		e.out.MaxUsed = addr
	}
	e.locCounter = (e.locCounter + 1) & 0xFFFF
}

// lookupVar resolves scope-local names to their globalized form first,
// then looks the result up in the symbol table.
func (e *Engine) lookupVar(name string, required, ignored bool) (int64, error) {
	resolved := e.scope.Resolve(name)
	v, ok := e.sym.Lookup(resolved)
	defined := ok && v.State != NoDefined
	if defined {
		e.markUsed(resolved)
		return v.Value, nil
	}
	if e.pass == 1 {
		if required {
			return 0, errUndefinedVar(e.currentLine(), name)
		}
		return 0, nil
	}
	if ignored {
		return 0, nil
	}
	return 0, errUndefinedVar(e.currentLine(), name)
}

// isDefined reports whether name currently holds a usable value,
// without marking it used or raising on a missing symbol — the
// predicate DEFINED needs, distinct from lookupVar's error-suppressing
// "ignored" path which reports no error (not "is defined") for a
// missing forward reference.
func (e *Engine) isDefined(name string) bool {
	resolved := e.scope.Resolve(name)
	return e.sym.IsDefined(resolved)
}

func (e *Engine) markUsed(resolved string) {
	// "used" tracking piggybacks on VarData via a side map keyed by the
	// resolved (globalized where applicable) name, since VarData itself
	// has no used flag.
	if e.usedSet == nil {
		e.usedSet = make(map[string]bool)
	}
	e.usedSet[e.sym.key(resolved)] = true
}

func (e *Engine) currentLine() int {
	if e.ls == nil {
		return 0
	}
	return e.ls.CurrentLineNumber()
}

// setLocCounter implements ORG: explicit location
// counter assignment, distinct from implicit advancement by emitByte.
func (e *Engine) setLocCounter(v int64) {
	e.locCounter = v & 0xFFFF
}

func toUpperWord(s string) string { return strings.ToUpper(s) }
