// Pass driver and the top-level per-line parser that ties label
// handling, directive dispatch, and mnemonic dispatch together behind
// a single per-line entry point: each physical line resolves to
// label-handling, directive dispatch, or mnemonic dispatch, in that
// order, before the next line is read.

package assembler

import "strings"

// ProcessFile runs the full 2-or-3-pass assembly of path and returns
// the finished Output.
func (e *Engine) ProcessFile(path string) (*Output, error) {
	if err := e.ls.LoadFile(path); err != nil {
		return nil, err
	}
	e.out = &Output{MinUsed: -1, MaxUsed: -1, sym: e.sym}
	e.lastPass = 2
	if e.cfg.ForcePass3 {
		e.lastPass = 3
	}

	e.pass = 1
	if err := e.dopass(); err != nil {
		return nil, err
	}
	e.pass = 2
	if err := e.dopass(); err != nil {
		return nil, err
	}
	if e.lastPass > 2 {
		e.pass = 3
		if err := e.dopass(); err != nil {
			return nil, err
		}
	}
	if err := e.finalCheck(); err != nil {
		return nil, err
	}
	return e.out, nil
}

// dopass resets per-pass state, walks every line from the beginning,
// dispatches each one, and checks end-of-pass invariants.
func (e *Engine) dopass() error {
	e.locCounter = e.cfg.Base
	e.scope.ResetForPass()
	e.macros.Clear()
	e.sym.ClearDeflAll()
	e.cond.ResetForPass()
	e.usedSet = make(map[string]bool)

	e.ls.BeginLine()
	for e.ls.NextLine() {
		tok := e.ls.CurrentLineTokenizer()
		if tok == nil {
			continue
		}
		e.tok = tok
		if err := e.parseLine(e.ls.CurrentLineNumber(), tok); err != nil {
			return err
		}
	}

	if e.cond.Level() > 0 {
		return errIFWithoutENDIF(e.currentLine())
	}
	if e.scope.HasOpenProc() {
		return errUnbalancedPROC(e.currentLine())
	}
	return nil
}

// parseLine implements "label handling ∪ directive dispatch ∪ mnemonic
// dispatch" for one physical line.
func (e *Engine) parseLine(line int, tok Tokenizer) error {
	first, err := tok.GetToken()
	if err != nil {
		return err
	}
	if first.Kind == TokEndLine {
		return nil
	}

	label := ""
	word := first

	if first.Kind == TokIdentifier {
		nxt, err := tok.GetToken()
		if err != nil {
			return err
		}
		switch nxt.Kind {
		case TokColon:
			label = first.Text
			word, err = tok.GetToken()
			if err != nil {
				return err
			}
		case TokEq:
			return e.doEqu(line, first.Text, tok)
		default:
			tok.PushBack(nxt)
			_, isMacro := e.macros.Lookup(first.Text)
			if isReservedWord(first.Text) || (isMacro && !isReservedWord(nxt.Text)) {
				word = first
			} else {
				label = first.Text
				word, err = tok.GetToken()
				if err != nil {
					return err
				}
			}
		}
	}

	if word.Kind == TokEndLine {
		return e.bindLabel(line, label)
	}
	if word.Kind != TokIdentifier && !isReservedWord(word.Text) {
		return errf(line, "expected directive or mnemonic, got %s", word.String())
	}

	handled, err := e.dispatchDirective(line, label, word.Text, tok)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	if def, ok := e.macros.Lookup(word.Text); ok {
		return e.expandMacroCall(def, line, tok)
	}

	if err := e.bindLabel(line, label); err != nil {
		return err
	}
	return e.EncodeInstruction(line, word.Text, tok)
}

// skipToElseOrEndif scans a false IF branch: consumes lines
// (re-tokenizing each from raw text, since the skip happens outside
// the normal dispatch loop) until a matching ELSE/ENDIF at the same
// nesting level, honoring inner IF*/MACRO-family nesting.
func (e *Engine) skipToElseOrEndif(openLine int) error {
	depth := 0
	for e.ls.NextLine() {
		text := e.ls.CurrentLineText()
		word := firstWord(text)
		switch classifyDirectiveForSkip(word) {
		case skipOpensIf:
			depth++
		case skipElse:
			if depth == 0 {
				e.cond.HandleElse(e.ls.CurrentLineNumber())
				return nil
			}
		case skipEndif:
			if depth == 0 {
				return e.cond.HandleEndif(e.ls.CurrentLineNumber())
			}
			depth--
		case skipOpensMacroBody:
			if err := e.skipMacroBody(); err != nil {
				return err
			}
		case skipHitsEndm:
			// The enclosing macro body ends with this IF's false branch
			// still open. Rewind so the ENDM is seen again by whoever
			// resumes from here, and let the macro engine's if-level
			// restore silently close the dangling IF.
			e.ls.SetLine(e.ls.CurrentLineNumber() - 1)
			return nil
		}
	}
	return errIFWithoutENDIF(openLine)
}

// skipMacroBody consumes a whole MACRO/REPT/IRP/IRPC body (and its
// ENDM) while inside a conditional skip, treating the body as opaque
// rather than descending into its own IF nesting.
func (e *Engine) skipMacroBody() error {
	depth := 1
	for e.ls.NextLine() {
		word := toUpperASCII(firstWord(e.ls.CurrentLineText()))
		switch word {
		case "MACRO", "REPT", "IRP", "IRPC":
			depth++
		case "ENDM":
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return errMacroWithoutENDM(e.currentLine(), "MACRO/REPT/IRP/IRPC")
}

// firstWord returns, upper-cased, the first of a raw line's first three
// whitespace-separated words that classifyDirectiveForSkip recognizes
// (so a label field is skipped), or "" if none of them is; the skip
// scanner and body capture only need that lightweight classification,
// never full tokenization.
func firstWord(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		f = strings.TrimSuffix(f, ":")
		up := toUpperASCII(f)
		if classifyDirectiveForSkip(up) != skipNone {
			return up
		}
		if i > 1 {
			break
		}
	}
	return ""
}

// finalCheck warns for each non-local symbol that is undefined, or
// defined but neither used nor PUBLIC.
func (e *Engine) finalCheck() error {
	for _, name := range e.sym.Names() {
		if strings.HasPrefix(name, "??") {
			continue // globalized local name, already warned at ENDP
		}
		v := e.sym.Snapshot(name)
		if v == nil {
			continue
		}
		if v.State == NoDefined {
			if err := e.warn(v.Line, "undefined symbol: "+name); err != nil {
				return err
			}
			continue
		}
		if !v.Public && !e.usedSet[e.sym.key(name)] {
			if err := e.warn(v.Line, "symbol defined but never used: "+name); err != nil {
				return err
			}
		}
	}
	return nil
}
