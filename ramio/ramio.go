// Package ramio describes the two primitive collaborators the VM core
// needs before it can manage memory itself: the RAM boundary oracle and
// the steal-only allocator. Both live outside this module in a real
// kernel (the physical RAM driver); Oracle is the seam the VM core
// depends on instead of the driver directly.
package ramio

// / Oracle reports physical memory boundaries and hands out contiguous
// / runs of physical frames before the core map exists. Implementations
// / must serialize StealMem themselves; the VM core's boot.Sequencer
// / additionally holds its stealer spinlock around every GetSize and
// / StealMem call it makes.
type Oracle interface {
	// / GetSize reports the first free physical address after
	// / whatever the oracle has already stolen for itself, and the
	// / address one past the end of physical RAM.
	GetSize() (first, last uintptr)

	// / StealMem hands back the physical address of npages
	// / contiguous, never-before-returned pages. It panics if physical
	// / memory is exhausted; there is no failure return because the
	// / primitive stealer has no recovery path.
	StealMem(npages int) uintptr
}
