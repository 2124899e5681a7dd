//go:build go1.23

package slab

import (
	"unsafe"

	"github.com/flier/goutil/internal/debug"
	"github.com/flier/goutil/pkg/tuple"
)

// Free returns a slot previously returned by [Arena.Alloc] to its owning
// partition's freelist (spec §4.4). Freeing nil is a no-op. Double-free and
// freeing a foreign pointer are undefined, exactly as in spec §7.
//
// Free may be called concurrently by any number of goroutines, as long as
// no two of them are freeing the same slot at once (spec §5 "Intended
// safety envelope").
func (a *Arena) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	addr := uintptr(p)
	part := a.partitions[(addr-a.slot0)/a.partitionSize()]

	bounds := tuple.New2(part.base, part.base+part.size)
	lo, hi := bounds.Unpack()
	debug.Assert(addr >= lo && addr < hi, "free: address %#x outside its partition's range [%#x, %#x)", addr, lo, hi)

	idx := (addr - part.base) / a.sizeClass

	for {
		old := part.state.Load()
		gen, head := unpackState(old)

		storeEntry(part.base, a.sizeClass, idx, nextEntry(head))

		updated := packState(gen, idx) // no generation bump on the free side.
		if part.state.CompareAndSwap(old, updated) {
			break
		}
	}

	part.used.Add(-int64(a.sizeClass))
	debug.Log(nil, "free", "partition %d: slot %d", part.offset, idx)
}

// partitionSize returns the byte extent of each partition. All partitions
// in an arena are the same size (spec §3 "Arena").
func (a *Arena) partitionSize() uint64 {
	return (a.sizeClass * a.nelem) / uint64(len(a.partitions))
}
