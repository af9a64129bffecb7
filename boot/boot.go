// Package boot implements the bootstrap sequencer of spec.md §4.1: the
// one-time transition from the primitive, steal-only allocator to a
// core-map-backed frame allocator, and the alloc_kpages/free_kpages
// seam the kernel heap allocator calls through before and after that
// transition. It is grounded in biscuit's vm.Vm_t initialization in
// kernel/main.go's boot sequence and in the original smartvm.c's
// vm_bootstrap, adapted to the explicit first_free/ram_end contract
// spec.md describes.
package boot

import (
	"unsafe"

	"vmkern/coremap"
	"vmkern/klock"
	"vmkern/ramio"
	"vmkern/tlb"
	"vmkern/util"
)

// / entrySize is sizeof(coremap.Entry_t) as the bootstrap sequencer
// / must reason about it: the number of bytes the core-map array itself
// / occupies, which the sequencer must reserve before anything else
// / can use the frames it lives in. Computed with unsafe.Sizeof rather
// / than a hardcoded constant so it always tracks Entry_t's real size,
// / whatever that struct's layout happens to be.
var entrySize = uintptr(unsafe.Sizeof(coremap.Entry_t{}))

// / Sequencer carries out spec.md §4.1's bootstrap exactly once and
// / then stands in as the kernel heap allocator's alloc_kpages/
// / free_kpages seam (spec.md §6): before vm_initialized it forwards to
// / the primitive stealer under a spinlock, after that it forwards to
// / the frame allocator.
type Sequencer struct {
	oracle ramio.Oracle
	steal  klock.Spinlock_t

	vmInitialized bool
	cm            *coremap.Map_t
	tlbm          *tlb.Manager_t
}

// / NewSequencer wraps an Oracle. No bootstrap work happens until Boot
// / is called; alloc_kpages may be used beforehand and will forward to
// / the primitive stealer.
func NewSequencer(oracle ramio.Oracle) *Sequencer {
	return &Sequencer{oracle: oracle}
}

// / Boot performs the one-time steal-only -> core-map-backed
// / transition. It must be called exactly once, before any call into
// / the frame allocator that could use the core map; calling it twice
// / is a programming error and panics.
func (s *Sequencer) Boot(nslots int) (*coremap.Map_t, *tlb.Manager_t) {
	if s.vmInitialized {
		panic("boot: Boot called more than once")
	}

	s.steal.Acquire()
	first, last := s.oracle.GetSize()
	s.steal.Release()

	pageCount := int(last) / coremap.PageSize

	reservedEnd := util.Roundup(first+uintptr(pageCount)*entrySize, uintptr(coremap.PageSize))
	if reservedEnd > last {
		panic("boot: reserved_end exceeds ram_end")
	}
	reservedFrames := int(reservedEnd) / coremap.PageSize

	arena, ok := s.oracle.(interface{ Bytes() []byte })
	if !ok {
		panic("boot: oracle does not expose a direct-mapped byte view")
	}
	cm := coremap.New(arena.Bytes(), pageCount, reservedFrames)

	s.cm = cm
	s.tlbm = tlb.NewManager(nslots)
	s.vmInitialized = true
	return s.cm, s.tlbm
}

// / AllocKpages implements spec.md's alloc_kpages(n): before
// / vm_initialized it forwards to the primitive stealer; afterward it
// / uses the frame allocator. n < 1 is fatal; n == 1 takes the
// / single-frame path, n > 1 the contiguous-run path.
func (s *Sequencer) AllocKpages(n int) uintptr {
	if n < 1 {
		panic("boot: alloc_kpages requires n >= 1")
	}
	if !s.vmInitialized {
		s.steal.Acquire()
		defer s.steal.Release()
		return coremap.KernelDirectBase + s.oracle.StealMem(n)
	}
	if n == 1 {
		return s.cm.AllocateKernelSingle()
	}
	return s.cm.AllocateKernelRun(n)
}

// / FreeKpages implements spec.md's free_kpages(kva). Freeing memory
// / obtained from the primitive stealer is not supported, matching the
// / original: the stealer never reclaims.
func (s *Sequencer) FreeKpages(kva uintptr) {
	if !s.vmInitialized {
		panic("boot: free_kpages called before vm_initialized")
	}
	s.cm.FreeKernel(kva)
}

// / Initialized reports whether Boot has run.
func (s *Sequencer) Initialized() bool { return s.vmInitialized }
