//go:build go1.23 && (linux || darwin)

package slab

import (
	"github.com/flier/goutil/pkg/opt"
	"github.com/flier/goutil/pkg/res"
)

// CreateAnonymous creates an arena backed by an anonymous, private mmap
// region: visible only to this process and its forked children, not
// associated with any file (spec §3 "Anonymous-mmap arenas"). Unlike
// [CreateHeap], the backing memory is not scanned by the Go garbage
// collector and can be mapped at a caller-chosen fixed address via base.
//
// Destroy this arena with [DestroyMap], never [DestroyHeap].
func CreateAnonymous(base opt.Option[uintptr], sizeClass SizeClass, nelem, npartitions Count) res.Result[*Arena] {
	total, partSize, err := computeLayout(uint64(sizeClass), uint64(nelem), uint64(npartitions))
	if err != nil {
		return res.Err[*Arena](&CreateError{Op: "anonymous", Err: err})
	}

	mem, err := mmapRegion(-1, 0, total, base)
	if err != nil {
		return res.Err[*Arena](&CreateError{Op: "anonymous", Err: err})
	}

	a := initLayout(mem, uint64(sizeClass), uint64(nelem), uint64(npartitions), partSize)
	a.backing = backingAnonymous

	return res.Ok(a)
}
