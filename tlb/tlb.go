// Package tlb implements the software TLB manager of spec.md §4.5: it
// writes entries with interrupts disabled, uses round-robin
// replacement once every slot is full, and exposes no-op shootdown
// hooks for a future multi-processor eviction path. It is grounded in
// biscuit's vm.Tlbshoot/tlb_shootdown call and in gopher-os's
// kernel/mem/vmm/tlb.go, adapted to the explicit software-managed
// entry table a MIPS-style CPU exposes instead of x86's hardware-walked
// page tables.
package tlb

import (
	"vmkern/coremap"
	"vmkern/klock"
	"vmkern/vmdiag"
)

// / Entry_t is one software TLB slot.
type Entry_t struct {
	VA    uintptr
	Frame coremap.Pa_t
	Valid bool
	// / Dirty marks the slot writable, set whenever the mapping that
	// / produced it was installed as writable.
	Dirty bool
}

// / Manager_t holds a fixed number of TLB slots and the round-robin
// / cursor used once all slots are valid. A single Manager_t models one
// / CPU's TLB; a multi-CPU kernel would hold one per CPU.
type Manager_t struct {
	slots  []Entry_t
	cursor int
}

// / NewManager allocates a TLB manager with the given number of
// / hardware slots.
func NewManager(nslots int) *Manager_t {
	if nslots < 1 {
		panic("tlb: need at least one slot")
	}
	return &Manager_t{slots: make([]Entry_t, nslots)}
}

// / NumSlots reports the number of hardware TLB slots.
func (m *Manager_t) NumSlots() int { return len(m.slots) }

// / Cursor reports the current round-robin replacement cursor, for
// / tests asserting P7.
func (m *Manager_t) Cursor() int { return m.cursor }

// / Slot returns a copy of TLB slot i, for tests and diagnostics.
func (m *Manager_t) Slot(i int) Entry_t { return m.slots[i] }

// / Install writes (va, frame, valid, writable) into the TLB: the first
// / invalid slot found by a full scan, or the round-robin slot if every
// / slot is already valid. Per spec.md §4.5 the whole scan-then-write
// / must be atomic with respect to this CPU, so it runs with
// / interrupts disabled.
func (m *Manager_t) Install(va uintptr, frame coremap.Pa_t, writable bool) {
	klock.WithInterruptsDisabled(func() {
		for i := range m.slots {
			if !m.slots[i].Valid {
				m.slots[i] = Entry_t{VA: va, Frame: frame, Valid: true, Dirty: writable}
				vmdiag.Default.TLBInstalls.Inc()
				return
			}
		}
		i := m.cursor
		m.slots[i] = Entry_t{VA: va, Frame: frame, Valid: true, Dirty: writable}
		m.cursor = (m.cursor + 1) % len(m.slots)
		vmdiag.Default.TLBInstalls.Inc()
		vmdiag.Default.TLBReplacements.Inc()
	})
}

// / FlushLocal clears every slot in this CPU's TLB. It is the local
// / flush a context switch needs (spec.md §6's as_activate "flush TLB
// / on context switch"), which is distinct from the cross-CPU shootdown
// / hooks below: this CPU's own TLB entries are never valid for the
// / address space being switched into, so they must be evicted
// / unconditionally rather than selectively invalidated.
func (m *Manager_t) FlushLocal() {
	klock.WithInterruptsDisabled(func() {
		for i := range m.slots {
			m.slots[i] = Entry_t{}
		}
		m.cursor = 0
	})
}

// / InvalidateAll is a shootdown hook; it is a no-op in this
// / specification (multi-processor coherence is a non-goal), per
// / spec.md §4.5. Any future eviction path must call this before
// / clearing a PTE so stale translations cannot outlive their mapping.
func (m *Manager_t) InvalidateAll() {}

// / InvalidateOne invalidates the single entry mapping va; it is a
// / no-op for the same reason as InvalidateAll.
func (m *Manager_t) InvalidateOne(va uintptr) {}
