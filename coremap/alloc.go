package coremap

import (
	"vmkern/vmdiag"
	"vmkern/vmpanic"
)

// / KernelDirectBase is the lowest kernel-direct-mapped virtual
// / address; every physical address pa is reachable at
// / KernelDirectBase+pa without going through any page table. It is
// / numerically identical to spec.md's USERSPACETOP (0x80000000): that
// / address is simultaneously "the top of user space" and "the start
// / of the direct map", which is exactly why a user fault at or above
// / it is always invalid.
const KernelDirectBase uintptr = 0x80000000

// / PageTable is the minimal capability the frame allocator needs from
// / an address space to service allocate_user (spec.md §4.2): find or
// / create the second-level table for va and install a frame there.
// / vm.As_t implements this; coremap depends only on the interface so
// / the frame allocator and the page-table walker stay in separate,
// / non-cyclic packages.
type PageTable interface {
	InstallUser(va uintptr, pa Pa_t, perms uint8) bool
}

// / New creates a core map over memory backed by arena, whose length
// / must be pageCount*PageSize bytes. It is called only from package
// / boot; arena models the physical RAM the kernel-direct-mapped
// / region gives byte-level access to.
func New(arena []byte, pageCount, reservedFrames int) *Map_t {
	if len(arena) != pageCount*PageSize {
		panic("coremap: arena size does not match page_count")
	}
	m := newMap(pageCount, reservedFrames)
	m.arena = arena
	return m
}

func (m *Map_t) zero(pa Pa_t) {
	clear(m.arena[int(pa) : int(pa)+PageSize])
}

// / Frame returns the PageSize-byte slice of simulated physical memory
// / backing frame pa, the way biscuit's mem.Physmem.Dmap8 returns a
// / direct-mapped byte slice for a physical address.
func (m *Map_t) Frame(pa Pa_t) []byte {
	return m.arena[int(pa) : int(pa)+PageSize]
}

func (m *Map_t) firstFree() int {
	for i := range m.entries {
		if m.entries[i].State == FREE {
			return i
		}
	}
	return -1
}

// / AllocateKernelSingle implements spec.md's allocate_kernel_single:
// / first-fit linear scan, mark FIXED, zero-fill, run_length=1. It
// / panics (spec's out-of-memory is fatal) when no frame is free.
func (m *Map_t) AllocateKernelSingle() uintptr {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	i := m.firstFree()
	if i < 0 {
		m.oom(1)
	}
	e := &m.entries[i]
	e.State = FIXED
	e.RunLength = 1
	m.nfree--
	m.zero(e.PA)
	vmdiag.Default.KernAllocs.Inc()
	return KernelDirectBase + uintptr(e.PA)
}

// / AllocateKernelRun implements spec.md's allocate_kernel_run(n):
// / first-fit lowest-index contiguous run, no rotation of the starting
// / point. The first frame of the run records run_length=n; the rest
// / record zero, per I7.
func (m *Map_t) AllocateKernelRun(n int) uintptr {
	if n < 1 {
		panic("coremap: allocate_kernel_run requires n >= 1")
	}
	m.Lock.Lock()
	defer m.Lock.Unlock()
	start := -1
	run := 0
	for i := range m.entries {
		if m.entries[i].State == FREE {
			if run == 0 {
				start = i
			}
			run++
			if run == n {
				break
			}
		} else {
			run = 0
			start = -1
		}
	}
	if run < n {
		m.oom(n)
	}
	for j := start; j < start+n; j++ {
		e := &m.entries[j]
		e.State = FIXED
		e.RunLength = 0
		m.zero(e.PA)
	}
	m.entries[start].RunLength = uint32(n)
	m.nfree -= n
	vmdiag.Default.KernAllocs.Inc()
	return KernelDirectBase + uintptr(m.entries[start].PA)
}

// / AllocateUser implements spec.md's allocate_user: first-fit FREE
// / frame, marked DIRTY and owned, with the page table entry installed
// / via table.InstallUser before the frame is zero-filled (mirroring
// / the teacher's "mark state -> set owner/va -> write PTE -> zero-fill
// / -> return" ordering from spec.md §5). It panics on OOM, like the
// / kernel allocators. table.InstallUser runs with Lock held, so the
// / second-level table for va must already exist: callers (the fault
// / handler, As_copy) create it with Walk(va, true) first, because a
// / table allocation from inside InstallUser would take Lock again and
// / deadlock on the non-reentrant gate.
func (m *Map_t) AllocateUser(owner Owner, table PageTable, va uintptr, perms uint8) Pa_t {
	m.Lock.Lock()
	defer m.Lock.Unlock()
	i := m.firstFree()
	if i < 0 {
		m.oom(1)
	}
	e := &m.entries[i]
	e.State = DIRTY
	e.Owner = owner
	e.VA = va
	e.RunLength = 0
	m.nfree--
	if !table.InstallUser(va, e.PA, perms) {
		// the second-level table itself could not be allocated; undo
		// the frame reservation and fail the same way an OOM would.
		e.State = FREE
		e.Owner = 0
		e.VA = 0
		m.nfree++
		m.oom(1)
	}
	m.zero(e.PA)
	vmdiag.Default.UserAllocs.Inc()
	return e.PA
}

// / FreeKernel implements spec.md's free_kernel: converts a
// / kernel-direct-mapped address back to a frame index and releases
// / frames i..i+run_length-1. Freeing an address outside the managed
// / range, or one whose frame has run_length==0, is fatal.
func (m *Map_t) FreeKernel(kva uintptr) {
	if kva < KernelDirectBase {
		panic("coremap: free_kernel requires a kernel-direct-mapped address")
	}
	pa := kva - KernelDirectBase
	if pa%uintptr(PageSize) != 0 {
		panic("coremap: free_kernel address not page aligned")
	}
	i := int(pa) / PageSize
	m.Lock.Lock()
	defer m.Lock.Unlock()
	if i < 0 || i >= len(m.entries) {
		panic("coremap: free_kernel address outside managed range")
	}
	e := &m.entries[i]
	if e.RunLength == 0 {
		panic("coremap: free_kernel on a frame with run_length == 0")
	}
	n := int(e.RunLength)
	for j := i; j < i+n; j++ {
		fe := &m.entries[j]
		fe.State = FREE
		fe.Owner = 0
		fe.VA = 0
		fe.RunLength = 0
	}
	m.nfree += n
	vmdiag.Default.Frees.Inc()
}

// / FreeUser releases a single user frame, as Destroy does for every
// / present page-table entry when an address space is torn down.
func (m *Map_t) FreeUser(pa Pa_t) {
	i := int(pa) / PageSize
	m.Lock.Lock()
	defer m.Lock.Unlock()
	e := &m.entries[i]
	if e.State != DIRTY {
		panic("coremap: free_user on a non-DIRTY frame")
	}
	e.State = FREE
	e.Owner = 0
	e.VA = 0
	e.RunLength = 0
	m.nfree++
	vmdiag.Default.Frees.Inc()
}

// / oom notifies the diagnostics OOM tap and then panics fatally, per
// / spec.md §7: out-of-memory has no swap-backed recovery in this
// / specification. Must be called with Lock held.
func (m *Map_t) oom(need int) {
	vmdiag.NotifyOOM(need)
	vmpanic.Fatal("coremap: out of memory allocating %d frame(s), %d free", need, m.nfree)
}
