package coremap

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"
)

// P1 under concurrency: many goroutines allocating and freeing
// single frames simultaneously must never corrupt the core map's
// invariants or its free-count bookkeeping, since the core-map lock
// serializes every allocate/free critical section (spec.md §5).
func TestConcurrentAllocateFreeHoldsInvariants(t *testing.T) {
	const pageCount = 256
	const reserved = 16
	const workers = 32
	const rounds = 64

	m := newTestMap(t, pageCount, reserved)
	before := m.Free()

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				kva := m.AllocateKernelSingle()
				m.FreeKernel(kva)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if m.Free() != before {
		t.Errorf("free count after concurrent churn = %d, want %d", m.Free(), before)
	}
	m.CheckInvariants()
}
