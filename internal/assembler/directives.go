// Directive dispatch: a flat set of reserved words (every Z80 mnemonic
// and directive name) and a switch that executes each directive;
// mnemonics are left to the instruction encoder.

package assembler

import "strings"

var mnemonicWords = []string{
	"NOP", "LD", "PUSH", "POP", "EX", "EXX", "JP", "JR", "CALL", "RET",
	"RETI", "RETN", "DJNZ", "RST", "IN", "OUT", "IM", "ADD", "ADC", "SUB",
	"SBC", "AND", "XOR", "OR", "CP", "INC", "DEC", "RLC", "RRC", "RL",
	"RR", "SLA", "SRA", "SLL", "SRL", "BIT", "RES", "SET", "DAA", "CPL",
	"SCF", "CCF", "RLCA", "RRCA", "RLA", "RRA", "HALT", "DI", "EI",
	"NEG", "LDI", "LDD", "LDIR", "LDDR", "CPI", "CPD", "CPIR", "CPDR",
	"INI", "IND", "INIR", "INDR", "OUTI", "OUTD", "OTIR", "OTDR", "RRD", "RLD",
}

var directiveWords = []string{
	"EQU", "DEFL", "ORG", "END", "PUBLIC", "LOCAL", "PROC", "ENDP",
	"MACRO", "ENDM", "EXITM", ".SHIFT", "REPT", "IRP", "IRPC",
	"IF", "IFDEF", "IFNDEF", "ELSE", "ENDIF",
	"INCLUDE", "INCBIN", "DEFB", "DB", "DEFW", "DW", "DEFM", "DEFS", "DS",
	".COMMENT",
}

var reservedWords = func() map[string]bool {
	m := make(map[string]bool)
	for _, w := range mnemonicWords {
		m[w] = true
	}
	for _, w := range directiveWords {
		m[w] = true
	}
	return m
}()

func isReservedWord(word string) bool {
	return reservedWords[strings.ToUpper(word)]
}

// dispatchDirective handles every non-mnemonic keyword. label is the
// bareword that preceded it on the line, if any ("" if none). Returns
// (handled, error): handled is false for mnemonics, so the caller
// proceeds to the instruction encoder.
func (e *Engine) dispatchDirective(line int, label, word string, tok Tokenizer) (bool, error) {
	up := strings.ToUpper(word)
	switch up {
	case "EQU":
		return true, e.doEqu(line, label, tok)
	case "DEFL":
		return true, e.doDefl(line, label, tok)
	case "ORG":
		return true, e.doOrg(line, label, tok)
	case "END":
		return true, e.doEnd(line, tok)
	case "PUBLIC":
		return true, e.doPublic(line, tok)
	case "LOCAL":
		return true, e.doLocal(line, tok)
	case "PROC":
		return true, e.doProc(line, label)
	case "ENDP":
		return true, e.doEndp(line)
	case "MACRO":
		return true, e.doMacroDef(line, label, tok)
	case "ENDM":
		return true, errf(line, "ENDM outside macro/REPT/IRP/IRPC")
	case "EXITM":
		if e.macroFrames.Top() == nil {
			return true, errEXITMWithoutENDM(line)
		}
		e.macroFrames.requestExitm()
		return true, nil
	case ".SHIFT":
		return true, e.macroFrames.Shift(line)
	case "REPT":
		return true, e.doRept(line, label, tok)
	case "IRP":
		return true, e.doIrp(line, label, tok)
	case "IRPC":
		return true, e.doIrpc(line, label, tok)
	case "IF", "IFDEF", "IFNDEF":
		return true, e.doIf(line, up, tok)
	case "ELSE":
		return true, e.doElse(line)
	case "ENDIF":
		return true, e.cond.HandleEndif(line)
	case "INCLUDE":
		return true, e.doInclude(line, tok)
	case "INCBIN":
		return true, e.doIncbin(line, label, tok)
	case "DEFB", "DB":
		return true, e.doDefb(line, label, tok)
	case "DEFW", "DW":
		return true, e.doDefw(line, label, tok)
	case "DEFM":
		return true, e.doDefm(line, label, tok)
	case "DEFS", "DS":
		return true, e.doDefs(line, label, tok)
	case ".COMMENT":
		return true, e.doCommentDelim(line, tok)
	}
	return false, nil
}

// bindLabel defines label as a code/data symbol at the current location
// counter, resolving
// auto-local/LOCAL scoping first.
func (e *Engine) bindLabel(line int, label string) error {
	if label == "" {
		return nil
	}
	e.scope.EnterAutoIfNeeded(label, line)
	global := e.scope.ResolveQuiet(label)
	escalate, err := e.sym.SetEquOrLabel(line, global, e.pc(), true, e.pass)
	if err != nil {
		return err
	}
	if escalate {
		e.lastPass = 3
		if err := e.warn(line, "value changed on pass 2, switching to 3 pass mode"); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) doEqu(line int, label string, tok Tokenizer) error {
	if label == "" {
		return errf(line, "EQU requires a label")
	}
	v, err := EvalExpr(e, tok, line, true)
	if err != nil {
		return err
	}
	e.scope.EnterAutoIfNeeded(label, line)
	global := e.scope.ResolveQuiet(label)
	escalate, err := e.sym.SetEquOrLabel(line, global, v, false, e.pass)
	if err != nil {
		return err
	}
	if escalate {
		e.lastPass = 3
		return e.warn(line, "value changed on pass 2, switching to 3 pass mode")
	}
	return nil
}

func (e *Engine) doDefl(line int, label string, tok Tokenizer) error {
	if label == "" {
		return errf(line, "DEFL requires a label")
	}
	v, err := EvalExpr(e, tok, line, true)
	if err != nil {
		return err
	}
	global := e.scope.ResolveQuiet(label)
	return e.sym.SetDefl(line, global, v)
}

func (e *Engine) doOrg(line int, label string, tok Tokenizer) error {
	v, err := EvalExpr(e, tok, line, true)
	if err != nil {
		return err
	}
	e.setLocCounter(v)
	return e.bindLabel(line, label)
}

func (e *Engine) doEnd(line int, tok Tokenizer) error {
	next, _ := tok.GetToken()
	if next.Kind == TokEndLine {
		return nil
	}
	tok.PushBack(next)
	v, err := EvalExpr(e, tok, line, true)
	if err != nil {
		return err
	}
	ep := v
	e.out.EntryPoint = &ep
	return nil
}

func (e *Engine) doPublic(line int, tok Tokenizer) error {
	for {
		tk, err := tok.GetToken()
		if err != nil {
			return err
		}
		if tk.Kind == TokEndLine {
			return nil
		}
		if tk.Kind == TokIdentifier {
			e.sym.MarkPublic(e.scope.ResolveQuiet(tk.Text))
		}
		sep, _ := tok.GetToken()
		if sep.Kind != TokComma {
			tok.PushBack(sep)
			return nil
		}
	}
}

func (e *Engine) doLocal(line int, tok Tokenizer) error {
	frame := e.scope.Top()
	if frame == nil {
		return errf(line, "LOCAL outside PROC/MACRO")
	}
	for {
		tk, err := tok.GetToken()
		if err != nil {
			return err
		}
		if tk.Kind == TokEndLine {
			return nil
		}
		if tk.Kind == TokIdentifier {
			e.scope.DeclareLocal(e.sym, frame, tk.Text)
		}
		sep, _ := tok.GetToken()
		if sep.Kind != TokComma {
			tok.PushBack(sep)
			return nil
		}
	}
}

func (e *Engine) doProc(line int, label string) error {
	e.scope.EnterProc(line, e.sym)
	return e.bindLabel(line, label)
}

func (e *Engine) doEndp(line int) error {
	frame := e.scope.ExitTop(e.sym)
	if frame == nil || frame.Kind != FrameProc {
		return errUnbalancedPROC(line)
	}
	if e.pass >= 2 {
		for _, w := range frame.CheckLocals() {
			e.warnAt(line, w.Message)
		}
	}
	return nil
}

func (e *Engine) doInclude(line int, tok Tokenizer) error {
	tk, err := tok.GetToken()
	if err != nil {
		return err
	}
	name := tk.Text
	if inc, ok := e.ls.(*DefaultLineStream); ok {
		return inc.IncludeFile(name)
	}
	return bug("LineStream does not support INCLUDE")
}

func (e *Engine) doIncbin(line int, label string, tok Tokenizer) error {
	if err := e.bindLabel(line, label); err != nil {
		return err
	}
	tk, err := tok.GetToken()
	if err != nil {
		return err
	}
	inc, ok := e.ls.(*DefaultLineStream)
	if !ok {
		return bug("LineStream does not support INCBIN")
	}
	data, err := inc.IncludeBinary(tk.Text)
	if err != nil {
		return err
	}
	for _, b := range data {
		e.emitByte(b)
	}
	return nil
}

func (e *Engine) doDefb(line int, label string, tok Tokenizer) error {
	if err := e.bindLabel(line, label); err != nil {
		return err
	}
	for {
		tk, err := tok.GetToken()
		if err != nil {
			return err
		}
		if tk.Kind == TokString && len(tk.Text) != 1 {
			for i := 0; i < len(tk.Text); i++ {
				e.emitByte(tk.Text[i])
			}
		} else {
			tok.PushBack(tk)
			v, err := EvalExpr(e, tok, line, true)
			if err != nil {
				return err
			}
			if v < -128 || v > 255 {
				e.warnAt(line, "DEFB value truncated to byte")
			}
			e.emitByte(byte(v))
		}
		sep, _ := tok.GetToken()
		if sep.Kind != TokComma {
			tok.PushBack(sep)
			return nil
		}
	}
}

func (e *Engine) doDefw(line int, label string, tok Tokenizer) error {
	if err := e.bindLabel(line, label); err != nil {
		return err
	}
	for {
		v, err := EvalExpr(e, tok, line, true)
		if err != nil {
			return err
		}
		e.emitByte(byte(v))
		e.emitByte(byte(v >> 8))
		sep, _ := tok.GetToken()
		if sep.Kind != TokComma {
			tok.PushBack(sep)
			return nil
		}
	}
}

func (e *Engine) doDefm(line int, label string, tok Tokenizer) error {
	if err := e.bindLabel(line, label); err != nil {
		return err
	}
	for {
		tk, err := tok.GetToken()
		if err != nil {
			return err
		}
		if tk.Kind != TokString {
			return errf(line, "DEFM requires a string literal")
		}
		for i := 0; i < len(tk.Text); i++ {
			e.emitByte(tk.Text[i])
		}
		sep, _ := tok.GetToken()
		if sep.Kind != TokComma {
			tok.PushBack(sep)
			return nil
		}
	}
}

func (e *Engine) doDefs(line int, label string, tok Tokenizer) error {
	if err := e.bindLabel(line, label); err != nil {
		return err
	}
	n, err := EvalExpr(e, tok, line, false)
	if err != nil {
		return err
	}
	fill := byte(0)
	sep, _ := tok.GetToken()
	if sep.Kind == TokComma {
		v, err := EvalExpr(e, tok, line, true)
		if err != nil {
			return err
		}
		fill = byte(v)
	} else {
		tok.PushBack(sep)
	}
	for i := int64(0); i < n; i++ {
		e.emitByte(fill)
	}
	return nil
}

func (e *Engine) doCommentDelim(line int, tok Tokenizer) error {
	tk, err := tok.GetToken()
	if err != nil {
		return err
	}
	if tk.Text != "" {
		e.commentDelim = tk.Text[:1]
	}
	return nil
}

// doIf handles IF/IFDEF/IFNDEF.
func (e *Engine) doIf(line int, directive string, tok Tokenizer) error {
	var taken bool
	switch directive {
	case "IF":
		v, err := EvalExpr(e, tok, line, true)
		if err != nil {
			return err
		}
		taken = v != falsy
	case "IFDEF":
		name, err := tok.GetToken()
		if err != nil {
			return err
		}
		taken = e.sym.IsDefined(e.scope.Resolve(name.Text))
	case "IFNDEF":
		name, err := tok.GetToken()
		if err != nil {
			return err
		}
		taken = !e.sym.IsDefined(e.scope.Resolve(name.Text))
	}
	e.cond.EnterIf(line, taken)
	if !taken {
		return e.skipToElseOrEndif(line)
	}
	return nil
}

func (e *Engine) doElse(line int) error {
	takeBranch, err := e.cond.HandleElse(line)
	if err != nil {
		return err
	}
	if !takeBranch {
		return e.skipToElseOrEndif(line)
	}
	return nil
}
