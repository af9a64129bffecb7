// Package coremap implements the core map: a contiguous, physical
// frame number indexed array recording the state of every physical
// page frame, plus the single- and multi-frame allocators built on top
// of it. It is grounded in biscuit's mem.Physmem_t/Physpg_t and in the
// original smartvm.c core_map/struct page, adapted to the simpler
// FREE/FIXED/DIRTY (+ reserved CLEAN) state machine spec.md describes
// instead of biscuit's refcounted COW pages.
package coremap

import (
	"fmt"

	"vmkern/klock"
)

// / PageShift is the base-2 exponent of the page size.
const PageShift uint = 12

// / PageSize is the size of a single frame in bytes.
const PageSize int = 1 << PageShift

// / PageOffsetMask masks the in-page offset of an address.
const PageOffsetMask uintptr = uintptr(PageSize - 1)

// / Pa_t is a physical address.
type Pa_t uintptr

// / Frame_t tags the state of one physical frame. CLEAN is defined but
// / never assigned by any operation in this package: spec.md reserves
// / it for a future eviction path that is explicitly out of scope.
type Frame_t uint8

const (
	FREE Frame_t = iota
	FIXED
	DIRTY
	CLEAN
)

func (f Frame_t) String() string {
	switch f {
	case FREE:
		return "FREE"
	case FIXED:
		return "FIXED"
	case DIRTY:
		return "DIRTY"
	case CLEAN:
		return "CLEAN"
	default:
		return "?"
	}
}

// / Owner is a weak, opaque handle to an owning address space. It is
// / advisory: a live Owner value does not guarantee the address space
// / still exists. See the vm package's owner registry, which is the
// / only thing allowed to resolve an Owner back into a live pointer,
// / and only for as long as the address space remains registered.
type Owner uint64

// / Entry_t is one core-map record, satisfying invariants I1-I8 of
// / spec.md.
type Entry_t struct {
	PA        Pa_t
	State     Frame_t
	Owner     Owner
	VA        uintptr
	RunLength uint32
}

// / Map_t is the core map: one Entry_t per physical frame, plus the
// / bookkeeping the frame allocator needs. The Lock gate is the
// / core-map lock of spec.md §5, held for the full duration of every
// / allocate/free critical section.
type Map_t struct {
	Lock    klock.Gate_t
	entries []Entry_t
	nfree   int
	arena   []byte
}

// / PageCount reports the number of frames tracked by the core map.
func (m *Map_t) PageCount() int {
	return len(m.entries)
}

// / Free reports the current count of FREE frames.
func (m *Map_t) Free() int {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	return m.nfree
}

// / At returns a copy of the entry for frame index i. It is intended
// / for diagnostics and tests; callers mutating core-map state must go
// / through the allocator.
func (m *Map_t) At(i int) Entry_t {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	return m.entries[i]
}

// / Counts returns the number of frames in each state, for P1-style
// / accounting checks.
func (m *Map_t) Counts() (free, fixed, dirty, clean int) {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	for i := range m.entries {
		switch m.entries[i].State {
		case FREE:
			free++
		case FIXED:
			fixed++
		case DIRTY:
			dirty++
		case CLEAN:
			clean++
		}
	}
	return
}

// / newMap is called only by New; package boot, which calls New, is
// / what places the backing array and computes the initial FIXED/FREE
// / split (spec.md §4.1). pageCount is the number of frames RAM can hold;
// / reservedFrames is the count of frames, starting at index 0, that
// / are FIXED with no owner because they back the core map itself (and
// / whatever else was stolen before bootstrap).
func newMap(pageCount, reservedFrames int) *Map_t {
	if reservedFrames > pageCount {
		panic("coremap: reserved_end exceeds ram_end")
	}
	m := &Map_t{entries: make([]Entry_t, pageCount)}
	for i := range m.entries {
		e := &m.entries[i]
		e.PA = Pa_t(i * PageSize) // I1
		if i < reservedFrames {
			e.State = FIXED // I5
		} else {
			e.State = FREE
			m.nfree++
		}
	}
	return m
}

// / CheckInvariants walks the whole core map and verifies I1, I2, I3,
// / the core-map half of I4 (a DIRTY frame has an owner and a nonzero
// / VA) and I6, and that the cached free count matches the scan. It
// / does not check I8, or that the owner's page table maps VA to the
// / frame. It is meant for debug builds and tests, per
// / spec.md §7's "assertion-violation... fatal in debug builds";
// / violations panic immediately rather than returning an error, since
// / an invariant failure means the allocator's bookkeeping is already
// / corrupt.
func (m *Map_t) CheckInvariants() {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	free, fixed, dirty, clean := 0, 0, 0, 0
	for i := range m.entries {
		e := &m.entries[i]
		if int(e.PA) != i*PageSize { // I1
			panic(fmt.Sprintf("coremap: I1 violated at frame %d", i))
		}
		switch e.State {
		case FREE:
			if e.Owner != 0 || e.VA != 0 { // I2
				panic(fmt.Sprintf("coremap: I2 violated at frame %d", i))
			}
			free++
		case FIXED:
			if e.Owner != 0 { // I3
				panic(fmt.Sprintf("coremap: I3 violated at frame %d", i))
			}
			fixed++
		case DIRTY:
			if e.Owner == 0 || e.VA == 0 { // I4 (partial: mapping match checked by vm package)
				panic(fmt.Sprintf("coremap: I4 violated at frame %d", i))
			}
			dirty++
		case CLEAN:
			clean++
		}
	}
	if free+fixed+dirty+clean != len(m.entries) { // I6
		panic("coremap: I6 violated")
	}
	if free != m.nfree {
		panic("coremap: free-count cache diverged from scan")
	}
}
