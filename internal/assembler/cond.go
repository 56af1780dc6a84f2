// Conditional engine: IF/IFDEF/IFNDEF/ELSE/ENDIF.
//
// Each directive function dispatches through the same keyword table as
// every other directive; the skip-forward mechanics scan line by line
// the way the rest of the line stream is consumed, one physical line at
// a time, so a false branch never has to be re-tokenized differently
// from a true one.

package assembler

// ifFrame is one entry on the if-stack.
type ifFrame struct {
	openLine  int
	taken     bool // true if the currently active branch is being assembled
	sawElse   bool
}

// CondState holds if_level and its diagnostic line stack.
type CondState struct {
	frames []ifFrame
}

func NewCondState() *CondState { return &CondState{} }

// ResetForPass clears if_level at the start of a pass.
func (c *CondState) ResetForPass() { c.frames = c.frames[:0] }

// Level returns the current if_level.
func (c *CondState) Level() int { return len(c.frames) }

// SaveForMacro returns and resets if_level on macro entry, restored by
// RestoreAfterMacro on exit.
func (c *CondState) SaveForMacro() []ifFrame {
	saved := c.frames
	c.frames = nil
	return saved
}

func (c *CondState) RestoreAfterMacro(saved []ifFrame) {
	c.frames = saved
}

// EnterIf pushes a new frame for an IF/IFDEF/IFNDEF; taken says whether
// its first branch is assembled.
func (c *CondState) EnterIf(line int, taken bool) {
	c.frames = append(c.frames, ifFrame{openLine: line, taken: taken})
}

// HandleElse flips the top frame's active branch. Returns an error if there is no open IF.
func (c *CondState) HandleElse(line int) (takeBranch bool, err error) {
	if len(c.frames) == 0 {
		return false, errELSEWithoutIF(line)
	}
	top := &c.frames[len(c.frames)-1]
	if top.sawElse {
		return false, errf(line, "multiple ELSE for the same IF")
	}
	top.sawElse = true
	takeBranch = !top.taken
	top.taken = takeBranch
	return takeBranch, nil
}

// HandleEndif pops the top frame.
func (c *CondState) HandleEndif(line int) error {
	if len(c.frames) == 0 {
		return errENDIFWithoutIF(line)
	}
	c.frames = c.frames[:len(c.frames)-1]
	return nil
}

// classifyDirectiveForSkip classifies the first word of a skipped line
// so skipToElseOrEndif can track IF/ENDIF nesting depth and hand
// MACRO/REPT/IRP/IRPC bodies to skipMacroBody.
type skipAction int

const (
	skipNone skipAction = iota
	skipOpensIf
	skipElse
	skipEndif
	skipOpensMacroBody // MACRO/REPT/IRP/IRPC: must be skipped whole via skipMacroBody
	skipHitsEndm       // the enclosing macro body's own ENDM, reached with the IF still open
)

func classifyDirectiveForSkip(word string) skipAction {
	switch toUpperASCII(word) {
	case "IF", "IFDEF", "IFNDEF", "IFB", "IFNB", "IF1", "IF2":
		return skipOpensIf
	case "ELSE":
		return skipElse
	case "ENDIF":
		return skipEndif
	case "MACRO", "REPT", "IRP", "IRPC":
		return skipOpensMacroBody
	case "ENDM":
		return skipHitsEndm
	}
	return skipNone
}
