// Diagnostic sinks: a thin wrapper over the standard log package
// rather than a structured-logging library, since warnings here are
// single lines with no fields worth structuring.

package assembler

import (
	"fmt"
	"log"
	"os"
)

// DiagLogger renders warnings as line:message pairs against source
// line numbers rather than file names, since the LineStream owns
// file/include identity and already folds it into each line number's
// context.
type DiagLogger struct {
	w *log.Logger
}

// NewDiagLogger wraps os.Stderr with no prefix or timestamp.
func NewDiagLogger() *DiagLogger {
	return &DiagLogger{w: log.New(os.Stderr, "", 0)}
}

func (d *DiagLogger) Warn(w Warning) {
	d.w.Println(w.String())
}

func (d *DiagLogger) Warnf(line int, format string, a ...interface{}) {
	d.Warn(Warning{Line: line, Message: fmt.Sprintf(format, a...)})
}
