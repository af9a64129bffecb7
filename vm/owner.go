package vm

import (
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"

	"vmkern/coremap"
)

// / ownerShards is the bucket count for the weak owner registry, the
// / same sharded-bucket shape as biscuit's hashtable package (one
// / sync.RWMutex per bucket, entries hashed with hash/fnv), scaled down
// / from a generic interface{}-keyed table to a small fixed-size
// / coremap.Owner -> *As_t map. Registering an As_t is how a core-map
// / Entry_t's Owner field becomes resolvable; unregistering it (done by
// / As_destroy) is what makes the reference "weak": a stale Owner handle
// / simply stops resolving instead of dangling.
const ownerShards = 16

type ownerBucket struct {
	mu sync.RWMutex
	m  map[coremap.Owner]*As_t
}

var ownerTable = func() [ownerShards]ownerBucket {
	var t [ownerShards]ownerBucket
	for i := range t {
		t[i].m = make(map[coremap.Owner]*As_t)
	}
	return t
}()

var nextOwner atomic.Uint64

func bucketFor(o coremap.Owner) *ownerBucket {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(uint64(o), 16)))
	return &ownerTable[h.Sum32()%ownerShards]
}

// / registerOwner assigns a fresh, never-reused handle to as and makes
// / it resolvable via LookupOwner.
func registerOwner(as *As_t) coremap.Owner {
	id := coremap.Owner(nextOwner.Add(1))
	b := bucketFor(id)
	b.mu.Lock()
	b.m[id] = as
	b.mu.Unlock()
	return id
}

// / unregisterOwner removes as's handle, after which LookupOwner will
// / report it not found even though the integer value of the handle may
// / still be held elsewhere (e.g. in a core-map entry not yet
// / overwritten).
func unregisterOwner(o coremap.Owner) {
	b := bucketFor(o)
	b.mu.Lock()
	delete(b.m, o)
	b.mu.Unlock()
}

// / LookupOwner resolves a core-map Owner handle to a live address
// / space. It must never be treated as authoritative proof that the
// / address space is still in active use beyond this call, only that it
// / had not yet been destroyed at the moment of the lookup.
func LookupOwner(o coremap.Owner) (*As_t, bool) {
	if o == 0 {
		return nil, false
	}
	b := bucketFor(o)
	b.mu.RLock()
	defer b.mu.RUnlock()
	as, ok := b.m[o]
	return as, ok
}
