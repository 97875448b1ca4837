package regalloc

import (
	"fmt"
	"io"
	"os"
)

// tracef writes a line to the allocator's trace sink iff tracing is
// enabled. It has no effect on allocation decisions — it exists purely
// so a developer debugging a miscompile can see why the allocator made
// the choice it made.
func (a *Allocator) tracef(format string, args ...any) {
	if !a.cfg.TraceRegalloc {
		return
	}
	w := a.traceOut
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "regalloc: "+format+"\n", args...)
}

// SetTraceOutput overrides where tracef writes (default os.Stderr).
func (a *Allocator) SetTraceOutput(w io.Writer) {
	a.traceOut = w
}
