// Package vmpanic provides Fatal, the crash-report-then-panic path the
// frame allocator takes on out-of-memory. A real kernel's panic path
// hooks a symbolizer once; Fatal is where vmdiag's demangling
// backtrace attaches. The module's other fatal checks (bootstrap
// inconsistencies, bad free_kernel/free_user arguments, invariant
// violations found by coremap.CheckInvariants) call panic directly and
// write no crash report.
package vmpanic

import (
	"fmt"
	"io"
	"os"

	"vmkern/vmdiag"
)

// / Output is where the crash report is written before the panic
// / unwinds. Tests may redirect it to capture the report.
var Output io.Writer = os.Stderr

// / Fatal formats msg, writes a crash report containing the message
// / and a demangled backtrace to Output, and panics. It never returns.
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(Output, "vmkern: fatal: %s\n%s", msg, vmdiag.Backtrace(2))
	panic(msg)
}
