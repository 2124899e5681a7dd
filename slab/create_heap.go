//go:build go1.23

package slab

import "github.com/flier/goutil/pkg/res"

// CreateHeap creates an arena backed by ordinary Go-heap memory: a single
// make([]byte, ...) allocation, never shared with another process (spec §3
// "Heap-backed arenas"). This is the cheapest backing to create and the
// right default for single-process use and for tests.
//
// Destroy this arena with [DestroyHeap], never [DestroyMap].
func CreateHeap(sizeClass SizeClass, nelem, npartitions Count) res.Result[*Arena] {
	total, partSize, err := computeLayout(uint64(sizeClass), uint64(nelem), uint64(npartitions))
	if err != nil {
		return res.Err[*Arena](&CreateError{Op: "heap", Err: err})
	}

	mem := make([]byte, total)
	a := initLayout(mem, uint64(sizeClass), uint64(nelem), uint64(npartitions), partSize)
	a.backing = backingHeap

	return res.Ok(a)
}
