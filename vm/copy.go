package vm

// / As_copy implements spec.md's as_copy (fork): a fresh address space
// / with every present mapping in src duplicated into a freshly
// / allocated frame at the same virtual address and permissions. There
// / is no copy-on-write or sharing in this specification; every page is
// / eagerly duplicated, matching the teacher's Uvmcopy before biscuit
// / introduced COW, which spec.md §9 notes as the closest non-shared
// / analogue.
func As_copy(src *As_t) *As_t {
	src.Lock()
	defer src.Unlock()

	dst := As_create(src.cm, src.tlbm)
	dst.Lock()
	defer dst.Unlock()
	dst.HeapStart = src.HeapStart
	dst.HeapEnd = src.HeapEnd
	dst.StackBottom = src.StackBottom
	dst.UsePermissions = src.UsePermissions
	dst.LoadELFDone = src.LoadELFDone
	dst.segments = append([]segment_t(nil), src.segments...)

	for dirIdx, d := range src.Dir {
		if d == nil {
			continue
		}
		for tblIdx, pte := range d.tbl {
			if !pte.Present() {
				continue
			}
			va := uintptr(dirIdx)<<pageDirShift | uintptr(tblIdx)<<pageTableShift
			// Walk(create=true) must run before AllocateUser, the same
			// order the fault handler uses: it allocates the
			// second-level table (if absent) via the kernel heap
			// before taking the core-map lock, so AllocateUser's own
			// InstallUser call never needs to allocate a table itself
			// and re-enter the non-reentrant core-map gate.
			dst.Walk(va, true)
			pa := src.cm.AllocateUser(dst.owner, dst, va, uint8(pte.Perms()))
			copy(dst.cm.Frame(pa), src.cm.Frame(pte.FrameNumber()))
		}
	}

	return dst
}
