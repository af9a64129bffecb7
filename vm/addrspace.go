package vm

import (
	"unsafe"

	"vmkern/coremap"
	"vmkern/klock"
	"vmkern/tlb"
)

// / UserSpaceTop is the lowest kernel-direct-mapped address and the
// / highest possible user-virtual address; it is numerically the same
// / constant as coremap.KernelDirectBase, per spec.md §6.
const UserSpaceTop = coremap.KernelDirectBase

// / VMStackPages is the maximum number of pages the user stack may
// / grow to hold.
const VMStackPages = 256

// / UserStackLimit is the lowest user-virtual address the stack may
// / grow to.
const UserStackLimit = UserSpaceTop - uintptr(VMStackPages)*uintptr(coremap.PageSize)

type dirent_t struct {
	tbl *Table_t
	pa  coremap.Pa_t
}

type segment_t struct {
	start, end uintptr
	perms      Perm
}

// / As_t is a process address space: the spec.md "Address space" data
// / model plus the lock guarding it. Every field below is mutated only
// / while the embedded Gate_t is held, matching spec.md §5's "each
// / address space is owned by a single process; its page directory and
// / second-level tables are mutated only by threads within that
// / process."
type As_t struct {
	klock.Gate_t

	Dir            [1024]*dirent_t
	HeapStart      uintptr
	HeapEnd        uintptr
	StackBottom    uintptr
	UsePermissions bool
	LoadELFDone    bool

	segments []segment_t

	owner coremap.Owner
	cm    *coremap.Map_t
	tlbm  *tlb.Manager_t
}

// / As_create implements spec.md's as_create: a fresh address space
// / with an empty page directory, no heap yet, and the stack bottom set
// / to the top of user space (nothing mapped there yet). cm and tlbm
// / are the core map and TLB manager this address space's faults will
// / be serviced against; a real kernel has exactly one of each system
// / wide (or one tlbm per CPU), wired in at boot.
func As_create(cm *coremap.Map_t, tlbm *tlb.Manager_t) *As_t {
	as := &As_t{
		StackBottom:    UserSpaceTop,
		UsePermissions: true,
		cm:             cm,
		tlbm:           tlbm,
	}
	as.owner = registerOwner(as)
	return as
}

// / As_define_stack implements spec.md's as_define_stack: it reports
// / the initial user stack pointer. No page is mapped yet; the first
// / push below it will fault and grow the stack on demand.
func As_define_stack(as *As_t) (initialSP uintptr) {
	return UserSpaceTop
}

// / As_prepare_load implements spec.md's as_prepare_load: disables
// / permission checking so the ELF loader can write to segments it will
// / later mark read-only.
func As_prepare_load(as *As_t) {
	as.Lock()
	defer as.Unlock()
	as.UsePermissions = false
}

// / As_complete_load implements spec.md's as_complete_load: re-enables
// / permission checking and marks loading done, after which Fault
// / rejects every fault between the heap top and UserStackLimit (the
// / dead zone), whether or not a declared segment covers it.
func As_complete_load(as *As_t) {
	as.Lock()
	defer as.Unlock()
	as.UsePermissions = true
	as.LoadELFDone = true
}

// / As_define_region implements spec.md's as_define_region: it records
// / intent to map [start, start+len) with the given permissions without
// / eagerly allocating any frame. The first region defined while the
// / heap bounds are both still zero becomes the heap (HeapStart and
// / HeapEnd are set to it, and its permissions are not recorded); every
// / later region is appended to the segment list the fault handler
// / consults for misses outside heap and stack.
func As_define_region(as *As_t, start uintptr, length int, r, w, x bool) {
	as.Lock()
	defer as.Unlock()
	if length <= 0 {
		panic("vm: as_define_region requires a positive length")
	}
	end := start + uintptr(length)
	var perms Perm
	if r {
		perms |= PermR
	}
	if w {
		perms |= PermW
	}
	if x {
		perms |= PermX
	}
	if as.HeapStart == 0 && as.HeapEnd == 0 {
		as.HeapStart, as.HeapEnd = start, end
		return
	}
	as.segments = append(as.segments, segment_t{start: start, end: end, perms: perms})
}

// / Sbrk implements the sbrk-equivalent primitive spec.md's data model
// / describes: it grows heap_end by delta bytes (which may be
// / negative, down to heap_start) and returns the heap's previous end,
// / the conventional sbrk return value.
func Sbrk(as *As_t, delta int) uintptr {
	as.Lock()
	defer as.Unlock()
	prev := as.HeapEnd
	next := uintptr(int64(prev) + int64(delta))
	if next < as.HeapStart {
		panic("vm: sbrk would shrink heap below heap_start")
	}
	as.HeapEnd = next
	return prev
}

// / Walk implements spec.md's walk(as, va, create): it splits va into a
// / 10-bit directory index and a 10-bit table index and returns a
// / pointer to the resulting page-table entry. When the second-level
// / table is absent and create is false it returns ok=false; when
// / absent and create is true it allocates a fresh zero-initialized
// / table via the kernel heap (coremap's single-frame kernel
// / allocator — a table is exactly one page) and installs it in the
// / directory first.
func (as *As_t) Walk(va uintptr, create bool) (*Pte_t, bool) {
	as.Lockassert()
	dirIdx, tblIdx := splitVA(va)
	d := as.Dir[dirIdx]
	if d == nil {
		if !create {
			return nil, false
		}
		kva := as.cm.AllocateKernelSingle()
		pa := coremap.Pa_t(kva - coremap.KernelDirectBase)
		tbl := tableAt(as.cm, pa)
		d = &dirent_t{tbl: tbl, pa: pa}
		as.Dir[dirIdx] = d
	}
	return &d.tbl[tblIdx], true
}

func tableAt(cm *coremap.Map_t, pa coremap.Pa_t) *Table_t {
	frame := cm.Frame(pa)
	return (*Table_t)(unsafe.Pointer(&frame[0]))
}

// / InstallUser implements coremap.PageTable, the capability the frame
// / allocator needs to service allocate_user: find or create the
// / table for va and write a present PTE mapping it to pa with perms.
// / It must be called with as's lock already held, since it touches
// / as's page table (spec.md §5). allocate_user calls it with the
// / core-map lock held, and creating an absent table goes through
// / AllocateKernelSingle, which takes that lock again; the table must
// / therefore already exist (callers run Walk(va, true) first).
func (as *As_t) InstallUser(va uintptr, pa coremap.Pa_t, perms uint8) bool {
	pte, ok := as.Walk(va, true)
	if !ok {
		return false
	}
	*pte = mkpte(pa, Perm(perms))
	return true
}

// / As_destroy implements spec.md's as_destroy/destroy: for every present
// / page-table entry, release the backing user frame; then release
// / each second-level table; finally unregister the address space's
// / weak owner handle.
func As_destroy(as *As_t) {
	as.Lock()
	defer as.Unlock()
	for _, d := range as.Dir {
		if d == nil {
			continue
		}
		for i := range d.tbl {
			pte := d.tbl[i]
			if pte.Present() {
				as.cm.FreeUser(pte.FrameNumber())
			}
		}
	}
	for i, d := range as.Dir {
		if d == nil {
			continue
		}
		as.cm.FreeKernel(coremap.KernelDirectBase + uintptr(d.pa))
		as.Dir[i] = nil
	}
	unregisterOwner(as.owner)
}

// / As_activate implements spec.md's as_activate: flush the TLB on a
// / context switch into as. This is a real local flush (tlb.FlushLocal),
// / distinct from the no-op cross-CPU shootdown hooks of spec.md §4.5:
// / the incoming address space's translations cannot be trusted to be
// / absent from a TLB shared with the outgoing one, so every entry is
// / evicted unconditionally on every switch.
func As_activate(as *As_t) {
	as.tlbm.FlushLocal()
}
