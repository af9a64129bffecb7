// Package vmdiag supplies the VM core's diagnostics: allocation
// counters, an out-of-memory notification tap, a pprof-format core-map
// census, and a demangling backtrace dumper for fatal crash reports.
// None of this is required by spec.md's invariants; it is the ambient
// stack a real kernel would carry alongside the VM core, grounded in
// biscuit's stats, oommsg and caller packages.
package vmdiag

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// / Counter is an int64-backed atomic counter, the same shape as
// / biscuit's stats.Counter_t but built on sync/atomic.Int64 instead of
// / an unsafe.Pointer cast, since this package has no reason to avoid
// / the typed atomic API.
type Counter struct {
	v atomic.Int64
}

// / Inc increments the counter by one.
func (c *Counter) Inc() { c.v.Add(1) }

// / Add adds delta to the counter.
func (c *Counter) Add(delta int64) { c.v.Add(delta) }

// / Load returns the counter's current value.
func (c *Counter) Load() int64 { return c.v.Load() }

// / Counters groups the allocation-path counters a VM core naturally
// / accrues. Default is the process-wide instance the coremap, vm and
// / tlb packages update, and the only one they update; a separately
// / constructed Counters changes only when its owner updates it, which
// / lets tests exercise Report in isolation.
type Counters struct {
	Faults          Counter
	KernAllocs      Counter
	UserAllocs      Counter
	Frees           Counter
	TLBInstalls     Counter
	TLBReplacements Counter
}

// / Default is the process-wide counter set.
var Default = &Counters{}

var reportPrinter = message.NewPrinter(language.English)

// / Report walks st with reflect the way biscuit's stats.Stats2String
// / does, formatting every exported Counter field with thousands
// / separators via golang.org/x/text/message so a long-running kernel's
// / diagnostic dump stays readable at large counts.
func Report(st interface{}) string {
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	var b strings.Builder
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Type() != reflect.TypeOf(Counter{}) {
			continue
		}
		c := f.Addr().Interface().(*Counter)
		fmt.Fprintf(&b, "%s: %s\n", t.Field(i).Name,
			reportPrinter.Sprintf("%d", c.Load()))
	}
	return b.String()
}
