package vm

import (
	"testing"

	"vmkern/coremap"
	"vmkern/tlb"
)

func newTestAS(t *testing.T) *As_t {
	t.Helper()
	pageCount := 64
	arena := make([]byte, pageCount*coremap.PageSize)
	cm := coremap.New(arena, pageCount, 4)
	tlbm := tlb.NewManager(4)
	return As_create(cm, tlbm)
}

func TestPteRoundTrip(t *testing.T) {
	pte := mkpte(0x3000, PermR|PermW)
	if !pte.Present() {
		t.Fatal("expected constructed PTE to be present")
	}
	if pte.FrameNumber() != 0x3000 {
		t.Errorf("frame number = %#x, want 0x3000", pte.FrameNumber())
	}
	if pte.Perms() != PermR|PermW {
		t.Errorf("perms = %#x, want R|W", pte.Perms())
	}
}

func TestZeroPteIsAbsent(t *testing.T) {
	var pte Pte_t
	if pte.Present() {
		t.Fatal("zero PTE must not be present")
	}
}

func TestSplitVA(t *testing.T) {
	dirIdx, tblIdx := splitVA(0x00401000)
	if dirIdx != 1 || tblIdx != 1 {
		t.Errorf("splitVA(0x00401000) = (%d, %d), want (1, 1)", dirIdx, tblIdx)
	}
}

func TestWalkCreatesTableOnDemand(t *testing.T) {
	as := newTestAS(t)
	as.Lock()
	defer as.Unlock()

	pte, ok := as.Walk(0x00401000, false)
	if ok {
		t.Fatal("Walk with create=false should report absent before any table exists")
	}
	pte, ok = as.Walk(0x00401000, true)
	if !ok || pte == nil {
		t.Fatal("Walk with create=true should allocate a table")
	}
	if pte.Present() {
		t.Fatal("freshly created PTE slot should not be present")
	}
}

// Scenario 4: a heap fault allocates a user frame, installs an R|W
// PTE, and installs a TLB entry.
func TestFaultGrowsHeap(t *testing.T) {
	as := newTestAS(t)
	as.Lock()
	as.HeapStart = 0x400000
	as.HeapEnd = 0x401000
	as.Unlock()

	if err := Fault(as, WriteMiss, 0x400abc); err != nil {
		t.Fatalf("Fault returned %v, want nil", err)
	}

	as.Lock()
	pte, ok := as.Walk(0x400000, false)
	as.Unlock()
	if !ok || !pte.Present() {
		t.Fatal("expected a present PTE at the faulted page after heap growth")
	}
	if pte.Perms() != PermR|PermW {
		t.Errorf("perms = %#x, want R|W", pte.Perms())
	}

	found := false
	for i := 0; i < as.tlbm.NumSlots(); i++ {
		s := as.tlbm.Slot(i)
		if s.Valid && s.VA == 0x400000 {
			found = true
			if !s.Dirty {
				t.Error("TLB entry for a writable fault should be marked dirty")
			}
		}
	}
	if !found {
		t.Fatal("expected a TLB entry installed for the faulted page")
	}
}

// Scenario 5: a stack fault below stack_bottom grows the stack
// downward by exactly one page and allocates a frame there.
func TestFaultGrowsStack(t *testing.T) {
	as := newTestAS(t)
	as.Lock()
	as.StackBottom = 0x7FFFF000
	as.Unlock()

	if err := Fault(as, WriteMiss, 0x7FFFEF00); err != nil {
		t.Fatalf("Fault returned %v, want nil", err)
	}

	as.Lock()
	defer as.Unlock()
	if as.StackBottom != 0x7FFFE000 {
		t.Errorf("stack_bottom = %#x, want 0x7FFFE000", as.StackBottom)
	}
	pte, ok := as.Walk(0x7FFFE000, false)
	if !ok || !pte.Present() {
		t.Fatal("expected a present PTE at the new stack page")
	}
}

// Scenario 6 / P8: a null-pointer fault in a fully loaded address
// space fails with ErrInvalidAccess and touches no state.
func TestFaultNullPointerInvalidAccess(t *testing.T) {
	as := newTestAS(t)
	as.Lock()
	as.HeapStart, as.HeapEnd = 0x400000, 0x401000
	as.UsePermissions = true
	as.LoadELFDone = true
	as.Unlock()

	before := as.cm.Free()
	if err := Fault(as, ReadMiss, 0); err != ErrInvalidAccess {
		t.Fatalf("Fault(0) = %v, want ErrInvalidAccess", err)
	}
	if as.cm.Free() != before {
		t.Error("a failed fault must not touch the core map")
	}
}

// P8: a fault at or above the kernel-direct-mapped boundary fails.
func TestFaultKernelRangeInvalidAccess(t *testing.T) {
	as := newTestAS(t)
	if err := Fault(as, ReadMiss, UserSpaceTop); err != ErrInvalidAccess {
		t.Fatalf("Fault(UserSpaceTop) = %v, want ErrInvalidAccess", err)
	}
}

// P8: once loading has completed, a fault strictly between the heap
// top and the stack-growth limit fails without allocating.
func TestFaultDeadZoneInvalidAccess(t *testing.T) {
	as := newTestAS(t)
	as.Lock()
	as.HeapStart, as.HeapEnd = 0x400000, 0x401000
	as.StackBottom = 0x7FFFF000
	as.LoadELFDone = true
	as.Unlock()

	if err := Fault(as, ReadMiss, 0x500000); err != ErrInvalidAccess {
		t.Fatalf("Fault in dead zone = %v, want ErrInvalidAccess", err)
	}
}

func TestFaultReadonlyViolation(t *testing.T) {
	as := newTestAS(t)
	if err := Fault(as, ReadonlyViolation, 0x400000); err != ErrInvalidAccess {
		t.Fatalf("Fault(ReadonlyViolation) = %v, want ErrInvalidAccess", err)
	}
}

// P6: fork-copy duplicates every mapping with equal contents and
// permissions, and the two address spaces do not share frames.
func TestAsCopyEquivalenceAndIsolation(t *testing.T) {
	src := newTestAS(t)
	src.Lock()
	src.HeapStart, src.HeapEnd = 0x400000, 0x402000
	src.Unlock()

	if err := Fault(src, WriteMiss, 0x400abc); err != nil {
		t.Fatal(err)
	}

	src.Lock()
	pte, _ := src.Walk(0x400000, false)
	copy(src.cm.Frame(pte.FrameNumber()), []byte("hello"))
	src.Unlock()

	dst := As_copy(src)

	src.Lock()
	dst.Lock()
	srcPte, _ := src.Walk(0x400000, false)
	dstPte, _ := dst.Walk(0x400000, false)
	dst.Unlock()
	src.Unlock()

	if srcPte.FrameNumber() == dstPte.FrameNumber() {
		t.Fatal("fork copy must not share the source frame")
	}
	if srcPte.Perms() != dstPte.Perms() {
		t.Errorf("copied perms = %#x, want %#x", dstPte.Perms(), srcPte.Perms())
	}

	srcBytes := src.cm.Frame(srcPte.FrameNumber())[:5]
	dstBytes := dst.cm.Frame(dstPte.FrameNumber())[:5]
	if string(srcBytes) != string(dstBytes) {
		t.Fatalf("copied contents = %q, want %q", dstBytes, srcBytes)
	}

	dst.cm.Frame(dstPte.FrameNumber())[0] = 'X'
	if src.cm.Frame(srcPte.FrameNumber())[0] == 'X' {
		t.Fatal("mutating dst's frame must not affect src's frame")
	}
}

func TestOwnerRegistryIsWeak(t *testing.T) {
	as := newTestAS(t)
	owner := as.owner
	if _, ok := LookupOwner(owner); !ok {
		t.Fatal("expected owner to resolve while address space is live")
	}
	As_destroy(as)
	if _, ok := LookupOwner(owner); ok {
		t.Fatal("expected owner to no longer resolve after As_destroy")
	}
}

func TestAsActivateFlushesTLB(t *testing.T) {
	as := newTestAS(t)
	as.tlbm.Install(0x1000, 0, false)
	As_activate(as)
	if as.tlbm.Slot(0).Valid {
		t.Fatal("expected As_activate to flush the TLB on context switch")
	}
}
