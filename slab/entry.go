//go:build go1.23

package slab

import "github.com/flier/goutil/pkg/xunsafe"

// entry is the first machine word of any free slot.
//
// Its value is either 0, meaning "virgin: the slot immediately after this
// one is also free and has never been touched", or slotIndex+1, meaning
// "the next free slot is at slotIndex within this partition".
//
// Slot indices, not absolute addresses, are stored here (and packed into
// [partition.state]) so that the whole free/generation pair fits in a
// single machine word CAS — see the doc comment on [partition]
// for why.
type entry uint64

const virgin entry = 0

func nextEntry(idx uint64) entry { return entry(idx + 1) }

// index returns the slot index this entry points to and whether it is set.
func (e entry) index() (idx uint64, ok bool) {
	if e == virgin {
		return 0, false
	}
	return uint64(e) - 1, true
}

// slotAddr returns the address of slot idx within a partition based at base.
func slotAddr(base uintptr, sizeClass, idx uint64) xunsafe.Addr[entry] {
	return xunsafe.Addr[entry](base).ByteAdd(int(idx * sizeClass))
}

// loadEntry reads the free-entry header at the start of the slot at idx.
func loadEntry(base uintptr, sizeClass, idx uint64) entry {
	return *slotAddr(base, sizeClass, idx).AssertValid()
}

// storeEntry writes the free-entry header at the start of the slot at idx.
func storeEntry(base uintptr, sizeClass, idx uint64, e entry) {
	*slotAddr(base, sizeClass, idx).AssertValid() = e
}
