package vm

import (
	"errors"

	"vmkern/coremap"
	"vmkern/util"
	"vmkern/vmdiag"
)

// / FaultKind identifies the trap code's classification of a page
// / fault, per spec.md §4.4's entry contract (fault_type, fault_va).
type FaultKind int

const (
	ReadMiss FaultKind = iota
	WriteMiss
	ReadonlyViolation
)

func (k FaultKind) String() string {
	switch k {
	case ReadMiss:
		return "read-miss"
	case WriteMiss:
		return "write-miss"
	case ReadonlyViolation:
		return "readonly-violation"
	default:
		return "unknown-fault"
	}
}

// / ErrInvalidAccess is returned by Fault for every one of spec.md
// / §4.4's "fail with invalid-access" outcomes: a readonly violation
// / while permissions are enforced, a null-pointer dereference, a
// / fault into the kernel-direct-mapped range, a fault in the dead
// / zone between heap and stack once loading has completed, or a miss
// / outside the heap, the stack-growth range and every declared segment.
var ErrInvalidAccess = errors.New("vm: invalid access")

const pageSize = uintptr(coremap.PageSize)

func pageAlign(va uintptr) uintptr {
	return util.Rounddown(va, pageSize)
}

// / Fault implements spec.md's vm_fault(fault_type, fault_va): the
// / eight-step policy in §4.4, verbatim. It is the only entry point
// / the trap handler calls; every outcome is either a TLB-updated
// / success or a single ErrInvalidAccess, with no partial state left
// / on failure (step 6's page-table mutation is the only durable
// / change a failing path could make, and it never runs on a path
// / that then fails).
func Fault(as *As_t, kind FaultKind, faultVA uintptr) error {
	as.Lock()
	defer as.Unlock()

	if kind == ReadonlyViolation && as.UsePermissions {
		vmdiag.Faults.Push(vmdiag.FaultRecord{VA: faultVA, Kind: kind.String(), Err: ErrInvalidAccess})
		vmdiag.Default.Faults.Inc()
		return ErrInvalidAccess
	}
	if faultVA == 0 {
		vmdiag.Faults.Push(vmdiag.FaultRecord{VA: faultVA, Kind: kind.String(), Err: ErrInvalidAccess})
		vmdiag.Default.Faults.Inc()
		return ErrInvalidAccess
	}

	va := pageAlign(faultVA)

	if va >= UserSpaceTop {
		vmdiag.Faults.Push(vmdiag.FaultRecord{VA: va, Kind: kind.String(), Err: ErrInvalidAccess})
		vmdiag.Default.Faults.Inc()
		return ErrInvalidAccess
	}

	if as.LoadELFDone && va < UserStackLimit && va > as.HeapEnd {
		vmdiag.Faults.Push(vmdiag.FaultRecord{VA: va, Kind: kind.String(), Err: ErrInvalidAccess})
		vmdiag.Default.Faults.Inc()
		return ErrInvalidAccess
	}

	pte, ok := as.Walk(va, false)
	if !ok || !pte.Present() {
		switch {
		case UserStackLimit < va && va < as.StackBottom:
			as.StackBottom -= pageSize
			// Create the second-level table only now that a grow
			// path has actually been chosen; an invalid-access miss
			// (the default case below, outside every segment) must
			// leave the page table untouched, not leak an unused table
			// into it.
			as.Walk(as.StackBottom, true)
			as.cm.AllocateUser(as.owner, as, as.StackBottom, uint8(PermR|PermW))
		case as.HeapStart <= va && va < as.HeapEnd:
			as.Walk(va, true)
			as.cm.AllocateUser(as.owner, as, va, uint8(PermR|PermW))
		default:
			inSegment := false
			var perms Perm
			for _, s := range as.segments {
				if s.start <= faultVA && faultVA < s.end {
					inSegment, perms = true, s.perms
					break
				}
			}
			if !inSegment {
				vmdiag.Faults.Push(vmdiag.FaultRecord{VA: va, Kind: kind.String(), Err: ErrInvalidAccess})
				vmdiag.Default.Faults.Inc()
				return ErrInvalidAccess
			}
			as.Walk(va, true)
			as.cm.AllocateUser(as.owner, as, va, uint8(perms))
		}
	}

	pte, _ = as.Walk(va, false)
	writable := pte.Perms()&PermW != 0 || !as.UsePermissions

	as.tlbm.Install(va, pte.FrameNumber(), writable)
	vmdiag.Faults.Push(vmdiag.FaultRecord{VA: va, Kind: kind.String(), Err: nil})
	vmdiag.Default.Faults.Inc()
	return nil
}
