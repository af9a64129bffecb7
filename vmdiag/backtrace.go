package vmdiag

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// / Backtrace captures the call stack starting skip frames above its
// / own frame (skip 0 starts at Backtrace itself, 1 at its caller),
// / the way biscuit's caller.Callerdump walks
// / runtime.Caller in a loop. Each frame's function name is passed
// / through demangle.Filter, which is a no-op for ordinary Go symbols
// / but recovers readable names for any C++/Rust-ABI trampoline that
// / ends up on the stack (the pairing google/pprof symbolization and
// / demangle.Filter naturally share in the teacher's own dependency
// / set).
func Backtrace(skip int) string {
	var b strings.Builder
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		name := "?"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = demangle.Filter(fn.Name())
		}
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", name, file, line)
	}
	return b.String()
}
