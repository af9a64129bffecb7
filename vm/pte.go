// Package vm implements per-address-space state: the two-level page
// table, heap/stack bookkeeping, the page-table walk, fork (As_copy) and
// teardown (As_destroy), and the fault handler that ties them to the
// frame allocator and TLB manager. It is grounded in biscuit's
// vm.Vm_t/vm/as.go (Lock_pmap/Unlock_pmap/Lockassert_pmap,
// Page_insert, Sys_pgfault, Uvmfree), adapted from biscuit's x86-64
// hardware-walked, COW-capable page table to the simpler MIPS-style
// 10+10+12 two-level table spec.md describes, with no sharing or
// copy-on-write.
package vm

import "vmkern/coremap"

// / pageDirShift, pageTableShift and indexMask give the 10+10 bit split
// / of a 32-bit user-virtual address above its 12-bit page offset, per
// / spec.md §6.
const (
	pageDirShift   = 22
	pageTableShift = 12
	indexMask      = 0x3FF // 10 bits
)

// / Perm bits pack into the low 3 bits of a PTE, per spec.md's PTE
// / layout (bits 31..12 frame number, bits 2..0 = {R, W, X}).
type Perm uint8

const (
	PermR Perm = 1 << 0
	PermW Perm = 1 << 1
	PermX Perm = 1 << 2
)

// / Pte_t is a 32-bit page-table entry: bits 31..12 are a frame number,
// / bits 2..0 are permission flags, all other bits reserved zero. A
// / value of zero means "no mapping."
type Pte_t uint32

// / Present reports whether the entry has a nonzero frame number.
func (p Pte_t) Present() bool { return p&^0xFFF != 0 }

// / FrameNumber extracts the physical frame this entry maps to.
func (p Pte_t) FrameNumber() coremap.Pa_t { return coremap.Pa_t(p &^ 0xFFF) }

// / Perms extracts the R/W/X permission bits.
func (p Pte_t) Perms() Perm { return Perm(p & 0x7) }

func mkpte(pa coremap.Pa_t, perms Perm) Pte_t {
	if uint32(pa)&0xFFF != 0 {
		panic("vm: frame address not page aligned")
	}
	return Pte_t(uint32(pa)) | Pte_t(perms&0x7)
}

// / Table_t is a second-level page table: 1024 32-bit entries, exactly
// / one physical frame (1024*4 == coremap.PageSize), so a table can be
// / carved directly out of a frame the kernel heap hands back instead
// / of needing its own separate allocator.
type Table_t [1024]Pte_t

func splitVA(va uintptr) (dirIdx, tblIdx int) {
	dirIdx = int((va >> pageDirShift) & indexMask)
	tblIdx = int((va >> pageTableShift) & indexMask)
	return
}
