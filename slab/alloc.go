//go:build go1.23

package slab

import (
	"unsafe"

	"github.com/flier/goutil/internal/debug"
	"github.com/flier/goutil/pkg/xiter"
)

// Alloc returns an uninitialized slot of sizeClass bytes, or nil if every
// partition is exhausted (spec §4.3). Slots sit at sizeClass-byte strides
// from the start of the slot region, two pages into the backing region, so
// a slot is sizeClass-aligned only when that start address is.
//
// Alloc never blocks: a lost CAS is retried, with no bound on the number of
// retries, so it is wait-free per attempt and lock-free overall.
func (a *Arena) Alloc() unsafe.Pointer {
	p := a.affinity.Get()
	if p == nil {
		idx := a.header.rrCounter.Add(1) - 1
		p = a.partitions[idx%uint64(len(a.partitions))]
		a.affinity.Set(p)
	}

	for {
		if p.exhausted(a.sizeClass) {
			stolen := a.steal(p)
			if stolen == nil {
				return nil // OOM across all partitions.
			}
			p = stolen
			continue
		}

		if slot, ok := a.tryAlloc(p); ok {
			return slot
		}
		// CAS lost the race, or the partition was already exhausted at the
		// moment of the snapshot; re-evaluate exhaustion and possibly steal
		// before retrying, per spec §4.3 step 6.
	}
}

// steal linearly probes the other partitions starting at (start.offset+1)
// mod npartitions, per spec §4.2, returning the first non-exhausted one, or
// nil if they are all exhausted (out of memory).
func (a *Arena) steal(start *partition) *partition {
	n := len(a.partitions)

	for idx := range xiter.Take(xiter.Skip(xiter.Cycle(xiter.Range(0, n)), int(start.offset)+1), n-1) {
		candidate := a.partitions[idx]
		if !candidate.exhausted(a.sizeClass) {
			debug.Log(nil, "steal", "partition %d -> %d", start.offset, candidate.offset)
			return candidate
		}
	}

	return nil
}

// tryAlloc attempts a single CAS2-equivalent allocation from p: snapshot
// (generation, first_free), read the target slot's next_free word, compute
// the new head, and CAS both fields at once (spec §4.3 steps 2-5).
//
// ok reports whether the CAS succeeded. On success, slot is always a valid,
// in-bounds pointer: idx was checked against the exhaustion sentinel before
// the CAS was attempted, and the sentinel is itself never stored as
// first_free for any slot that has already been handed out.
func (a *Arena) tryAlloc(p *partition) (slot unsafe.Pointer, ok bool) {
	old := p.state.Load()
	gen, idx := unpackState(old)

	if idx >= p.nelem(a.sizeClass) {
		return nil, false
	}

	next := loadEntry(p.base, a.sizeClass, idx)
	newIdx, hasNext := next.index()
	if !hasNext {
		newIdx = idx + 1 // virgin continuation: the following slot is next.
	}

	updated := packState(gen+1, newIdx)
	if !p.state.CompareAndSwap(old, updated) {
		return nil, false
	}

	p.used.Add(int64(a.sizeClass))
	debug.Log(nil, "alloc", "partition %d: slot %d, gen %d", p.offset, idx, gen+1)

	return unsafe.Pointer(slotAddr(p.base, a.sizeClass, idx).AssertValid()), true
}
