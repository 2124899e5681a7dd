//go:build go1.23 && (linux || darwin)

package slab

import "github.com/flier/goutil/internal/debug"

// DestroyHeap releases an arena created by [CreateHeap]. Since the backing
// memory is an ordinary Go slice, there's nothing to do beyond letting the
// garbage collector reclaim it once the last reference is dropped; this
// method exists so that callers don't need to special-case the heap
// backing, and so that using the wrong destroyer on a heap-backed arena is
// at least detectable.
func (a *Arena) DestroyHeap() error {
	if a.backing != backingHeap {
		return &DestroyError{Op: "heap", Err: errWrongDestroyer(a.backing)}
	}

	a.mem = nil
	a.header = nil
	a.partitions = nil
	debug.Log(nil, "destroy", "heap arena released")

	return nil
}

// DestroyMap releases an arena created by [CreateAnonymous] or [CreateFile]
// by unmapping its entire backing region: the two header pages plus every
// partition's slots (spec §9's open question about the header pages is
// resolved by unmapping the full extent, not just the slot area).
func (a *Arena) DestroyMap() error {
	if a.backing != backingAnonymous && a.backing != backingFile {
		return &DestroyError{Op: "map", Err: errWrongDestroyer(a.backing)}
	}

	if err := munmapRegion(a.mem); err != nil {
		return &DestroyError{Op: "map", Err: err}
	}

	a.mem = nil
	a.header = nil
	a.partitions = nil
	debug.Log(nil, "destroy", "mapped arena unmapped")

	return nil
}

func errWrongDestroyer(b backingKind) error {
	names := map[backingKind]string{
		backingHeap:      "heap",
		backingAnonymous: "anonymous mmap",
		backingFile:      "file-backed mmap",
	}
	return wrongDestroyerError{backing: names[b]}
}

type wrongDestroyerError struct{ backing string }

func (e wrongDestroyerError) Error() string {
	return "uslab: wrong destroyer for a " + e.backing + " arena"
}
