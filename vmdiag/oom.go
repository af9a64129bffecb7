package vmdiag

// / OOMEvent describes one out-of-memory notification, mirroring
// / biscuit's oommsg.Oommsg_t. Unlike the teacher's version, Resume is
// / absent: spec.md §7 treats out-of-memory as fatal in this
// / specification, so there is nothing for a receiver to resume. A
// / future swap-backed eviction path would add a Resume channel back.
type OOMEvent struct {
	// / Need is the number of frames the failed request wanted.
	Need int
}

// / OomCh is notified, best-effort, immediately before the VM core
// / panics on out-of-memory. It exists purely as a diagnostic tap: a
// / host kernel or a test can observe the event that preceded the
// / crash, but nothing reads it to recover the allocation.
var OomCh = make(chan OOMEvent, 8)

// / NotifyOOM sends a best-effort OOMEvent; it never blocks, since the
// / caller is about to panic regardless of whether anyone is listening.
func NotifyOOM(need int) {
	select {
	case OomCh <- OOMEvent{Need: need}:
	default:
	}
}
