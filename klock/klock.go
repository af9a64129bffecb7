// Package klock provides the small set of locking primitives the VM
// core needs from the kernel's lock library: a mutex usable as the
// core-map lock, a spinlock for the primitive stealer, and
// interrupt-level save/restore around TLB writes. It mirrors the
// embedded sync.Mutex plus Lock_pmap/Unlock_pmap/Lockassert_pmap
// pattern biscuit's vm.Vm_t uses, as a standalone, non-reentrant gate.
package klock

import (
	"sync"
	"sync/atomic"
)

// / Spinlock_t serializes access to the primitive stealer during
// / bootstrap. It is a plain mutex; there is no busy-wait distinction
// / to make in a hosted Go program, but the type exists so call sites
// / read the way the kernel's own spinlock_acquire/spinlock_release do.
type Spinlock_t struct {
	mu sync.Mutex
}

// / Acquire takes the spinlock.
func (s *Spinlock_t) Acquire() { s.mu.Lock() }

// / Release releases the spinlock.
func (s *Spinlock_t) Release() { s.mu.Unlock() }

// / Gate_t is a mutex plus a "currently held" flag. It is not
// / reentrant: a second Lock by a caller that already holds the gate
// / blocks forever, and nothing detects it (Go exposes no stable
// / goroutine id). Callers avoid re-entry by ordering their work so the
// / gate is never taken twice on one call path. Lockassert checks only
// / that the gate is held by someone.
type Gate_t struct {
	mu    sync.Mutex
	taken bool
}

// / Lock acquires the gate for the full duration of a critical
// / section.
func (g *Gate_t) Lock() {
	g.mu.Lock()
	g.taken = true
}

// / Unlock releases the gate.
func (g *Gate_t) Unlock() {
	g.taken = false
	g.mu.Unlock()
}

// / Lockassert panics if the gate is not currently held. Functions that
// / require the caller to already hold the lock (vm's As_t.Walk) call
// / this instead of acquiring it again.
func (g *Gate_t) Lockassert() {
	if !g.taken {
		panic("klock: gate must be held")
	}
}

// / intr simulates the CPU's interrupt-enable flag for
// / WithInterruptsDisabled. Real hardware has one such flag per CPU;
// / this module runs hosted, so a single process-wide flag stands in
// / for it. mu serializes the interrupts-disabled sections; enabled is
// / atomic so InterruptsEnabled can read it from inside one of them.
var intr struct {
	mu      sync.Mutex
	enabled atomic.Bool
}

func init() {
	intr.enabled.Store(true)
}

// / WithInterruptsDisabled disables interrupts for the duration of f
// / and restores the prior state afterward, the way TLB entry
// / installation must run with interrupts masked to make the
// / scan-then-write atomic with respect to this CPU.
func WithInterruptsDisabled(f func()) {
	intr.mu.Lock()
	prev := intr.enabled.Load()
	intr.enabled.Store(false)
	defer func() {
		intr.enabled.Store(prev)
		intr.mu.Unlock()
	}()
	f()
}

// / InterruptsEnabled reports the simulated interrupt state; it exists
// / for tests that assert TLB installation happens with interrupts
// / masked.
func InterruptsEnabled() bool {
	return intr.enabled.Load()
}
