// MACRO/REPT/IRP/IRPC directive handlers: definition capture and
// expansion. Split from directives.go because these drive the line
// stream directly (seek/replay) rather than just consuming the
// current line's tokenizer.

package assembler

// gotoLineAndLoad repositions the line stream so that line number ln is
// the current line, loading its tokenizer.
func (e *Engine) gotoLineAndLoad(ln int) bool {
	e.ls.SetLine(ln - 1)
	return e.ls.NextLine()
}

// captureMacroBody scans forward from the current (directive) line to
// the matching ENDM, honoring nested MACRO/REPT/IRP/IRPC. Returns the inclusive body range and the ENDM
// line itself.
func (e *Engine) captureMacroBody() (first, last, endmLine int, err error) {
	first = e.ls.CurrentLineNumber() + 1
	depth := 1
	for e.ls.NextLine() {
		switch toUpperASCII(firstWord(e.ls.CurrentLineText())) {
		case "MACRO", "REPT", "IRP", "IRPC":
			depth++
		case "ENDM":
			depth--
			if depth == 0 {
				endmLine = e.ls.CurrentLineNumber()
				return first, endmLine - 1, endmLine, nil
			}
		}
	}
	return 0, 0, 0, errMacroWithoutENDM(e.currentLine(), "MACRO/REPT/IRP/IRPC")
}

// runBodyRange re-lexes and parses each line in [first,last], applying
// the current macro-frame chain's substitution first. Stops early on EXITM.
func (e *Engine) runBodyRange(first, last int) error {
	for ln := first; ln <= last; ln = e.ls.CurrentLineNumber() + 1 {
		if !e.gotoLineAndLoad(ln) {
			break
		}
		substituted, err := e.macroFrames.SubstituteTop(e.ls.CurrentLineNumber(), e.ls.CurrentLineText())
		if err != nil {
			return err
		}
		subTok := newLineTokenizer(substituted)
		if err := e.parseLine(e.ls.CurrentLineNumber(), subTok); err != nil {
			return err
		}
		if top := e.macroFrames.Top(); top != nil && top.exitm {
			return nil
		}
	}
	return nil
}

// collectMacroArgs splits the remainder of the invocation line into
// comma-separated argument token runs, respecting paren/bracket nesting
// so an argument like `(a,b)` is not split.
func (e *Engine) collectMacroArgs(tok Tokenizer) ([][]string, error) {
	var args [][]string
	var cur []string
	depth := 0
	for {
		tk, err := tok.GetToken()
		if err != nil {
			return nil, err
		}
		if tk.Kind == TokEndLine {
			args = append(args, cur)
			return args, nil
		}
		if tk.Kind == TokComma && depth == 0 {
			args = append(args, cur)
			cur = nil
			continue
		}
		switch tk.Kind {
		case TokOpen, TokOpenBr:
			depth++
		case TokClose, TokCloseBr:
			depth--
		}
		cur = append(cur, tk.String())
	}
}

// parseIdentList reads a comma-separated identifier list up to
// end-of-line, used for MACRO parameter lists.
func parseIdentList(tok Tokenizer) ([]string, error) {
	var out []string
	for {
		tk, err := tok.GetToken()
		if err != nil {
			return nil, err
		}
		if tk.Kind == TokEndLine {
			tok.PushBack(tk)
			return out, nil
		}
		if tk.Kind == TokComma {
			continue
		}
		if tk.Kind == TokIdentifier {
			out = append(out, tk.Text)
		}
	}
}

// doMacroDef captures a MACRO name[, params] / name MACRO params
// definition.
func (e *Engine) doMacroDef(line int, label string, tok Tokenizer) error {
	name := label
	if name == "" {
		nameTok, err := tok.GetToken()
		if err != nil {
			return err
		}
		if nameTok.Kind != TokIdentifier {
			return errf(line, "MACRO requires a name")
		}
		name = nameTok.Text
	}
	params, err := parseIdentList(tok)
	if err != nil {
		return err
	}
	first, last, _, err := e.captureMacroBody()
	if err != nil {
		return err
	}
	e.macros.Define(&MacroDef{Name: name, Params: params, FirstLine: first, LastLine: last})
	return nil
}

// expandMacroCall binds the call's arguments to the macro's formal
// parameters and replays the captured body with substitution applied.
func (e *Engine) expandMacroCall(def *MacroDef, line int, tok Tokenizer) error {
	resume := e.ls.CurrentLineNumber()
	args, err := e.collectMacroArgs(tok)
	if err != nil {
		return err
	}
	e.scope.EnterMacro(line, e.sym)
	frame := &MacroFrame{Kind: MacroKindMacro, CallLine: line, Params: def.Params, Args: args}
	e.macroFrames.Push(frame, e.cond)
	runErr := e.runBodyRange(def.FirstLine, def.LastLine)
	e.macroFrames.Pop(e.cond)
	e.scope.ExitTop(e.sym)
	if runErr != nil {
		return runErr
	}
	e.gotoLineAndLoad(resume)
	return nil
}

// doRept implements REPT n[, counter[, init[, step]]].
func (e *Engine) doRept(line int, label string, tok Tokenizer) error {
	n, err := EvalExpr(e, tok, line, true)
	if err != nil {
		return err
	}
	var counterName string
	var initVal, step int64 = 0, 1
	hasCounter := false
	if sep, _ := tok.GetToken(); sep.Kind == TokComma {
		nameTok, err := tok.GetToken()
		if err != nil {
			return err
		}
		counterName = nameTok.Text
		hasCounter = true
		if sep2, _ := tok.GetToken(); sep2.Kind == TokComma {
			initVal, err = EvalExpr(e, tok, line, true)
			if err != nil {
				return err
			}
			if sep3, _ := tok.GetToken(); sep3.Kind == TokComma {
				step, err = EvalExpr(e, tok, line, true)
				if err != nil {
					return err
				}
			} else {
				tok.PushBack(sep3)
			}
		} else {
			tok.PushBack(sep2)
		}
	} else {
		tok.PushBack(sep)
	}

	first, last, endmLine, err := e.captureMacroBody()
	if err != nil {
		return err
	}
	frame := &MacroFrame{
		Kind: MacroKindRept, CallLine: line,
		ReptCounterName: counterName, ReptHasCounter: hasCounter,
		ReptCounterVal: initVal, ReptStep: step,
	}
	e.macroFrames.Push(frame, e.cond)
	for i := int64(0); i < n; i++ {
		if hasCounter {
			global := e.scope.ResolveQuiet(counterName)
			if err := e.sym.SetDefl(line, global, frame.ReptCounterVal); err != nil {
				e.macroFrames.Pop(e.cond)
				return err
			}
		}
		if err := e.runBodyRange(first, last); err != nil {
			e.macroFrames.Pop(e.cond)
			return err
		}
		if frame.exitm {
			break
		}
		frame.ReptCounterVal += frame.ReptStep
	}
	e.macroFrames.Pop(e.cond)
	e.gotoLineAndLoad(endmLine)
	return nil
}

// doIrp implements IRP var, arg1, arg2, ....
func (e *Engine) doIrp(line int, label string, tok Tokenizer) error {
	varTok, err := tok.GetToken()
	if err != nil {
		return err
	}
	if varTok.Kind != TokIdentifier {
		return errf(line, "IRP requires a parameter name")
	}
	if sep, _ := tok.GetToken(); sep.Kind != TokComma {
		tok.PushBack(sep)
	}
	args, err := e.collectMacroArgs(tok)
	if err != nil {
		return err
	}
	if len(args) == 1 && len(args[0]) == 0 {
		return errIRPWithoutParameters(line)
	}

	first, last, endmLine, err := e.captureMacroBody()
	if err != nil {
		return err
	}
	frame := &MacroFrame{Kind: MacroKindIrp, CallLine: line, IrpVar: varTok.Text}
	e.macroFrames.Push(frame, e.cond)
	for _, a := range args {
		frame.currentIrpArg = joinTokenTexts(a)
		if err := e.runBodyRange(first, last); err != nil {
			e.macroFrames.Pop(e.cond)
			return err
		}
		if frame.exitm {
			break
		}
	}
	e.macroFrames.Pop(e.cond)
	e.gotoLineAndLoad(endmLine)
	return nil
}

// doIrpc implements IRPC var, string.
func (e *Engine) doIrpc(line int, label string, tok Tokenizer) error {
	varTok, err := tok.GetToken()
	if err != nil {
		return err
	}
	if varTok.Kind != TokIdentifier {
		return errf(line, "IRPC requires a parameter name")
	}
	comma, err := tok.GetToken()
	if err != nil {
		return err
	}
	if comma.Kind != TokComma {
		return errf(line, "IRPC requires a string")
	}
	strTok, err := tok.GetToken()
	if err != nil {
		return err
	}
	chars := strTok.Text
	if strTok.Kind != TokString {
		chars = strTok.String()
	}

	first, last, endmLine, err := e.captureMacroBody()
	if err != nil {
		return err
	}
	frame := &MacroFrame{Kind: MacroKindIrpc, CallLine: line, IrpcVar: varTok.Text}
	e.macroFrames.Push(frame, e.cond)
	for i := 0; i < len(chars); i++ {
		frame.currentIrpcChar = string(chars[i])
		if err := e.runBodyRange(first, last); err != nil {
			e.macroFrames.Pop(e.cond)
			return err
		}
		if frame.exitm {
			break
		}
	}
	e.macroFrames.Pop(e.cond)
	e.gotoLineAndLoad(endmLine)
	return nil
}

func joinTokenTexts(texts []string) string {
	out := ""
	for i, t := range texts {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}
