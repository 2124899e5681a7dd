//go:build go1.23 && (linux || darwin)

package slab

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/flier/goutil/pkg/either"
	"github.com/flier/goutil/pkg/opt"
)

// CreateFile creates, or reopens, a file-backed arena: a shared mmap over a
// regular file, so that the arena's contents (and its partitions' freelist
// state) survive across process restarts, as long as every attaching
// process maps the file at a mutually compatible address (spec §3
// "Persistent (file-backed) arenas").
//
// If path does not exist, or is empty, it is created and grown to the
// layout implied by sizeClass, nelem, and npartitions, and initialized
// exactly as [CreateHeap]/[CreateAnonymous] do. If path already holds a
// uslab arena of that same layout, its existing partition state (used,
// first-free, generation) is preserved rather than reset.
//
// Destroy this arena with [DestroyMap], never [DestroyHeap].
func CreateFile(path string, base opt.Option[uintptr], sizeClass SizeClass, nelem, npartitions Count) (*Arena, error) {
	total, partSize, err := computeLayout(uint64(sizeClass), uint64(nelem), uint64(npartitions))
	if err != nil {
		return nil, &CreateError{Op: "file", Err: err}
	}

	state, err := openOrCreate(path, total)
	if err != nil {
		return nil, &CreateError{Op: "file", Err: err}
	}

	mem, err := mmapRegion(int(state.fd), 0, total, base)
	_ = state.f.Close() // the mapping stays valid after the descriptor is closed.
	if err != nil {
		return nil, &CreateError{Op: "file", Err: err}
	}

	if state.fresh.HasRight() {
		a := initLayout(mem, uint64(sizeClass), uint64(nelem), uint64(npartitions), partSize)
		a.backing = backingFile
		return a, nil
	}

	a, err := attachLayout(mem)
	if err != nil {
		_ = munmapRegion(mem)
		return nil, &CreateError{Op: "file", Err: err}
	}
	if a.sizeClass != uint64(sizeClass) || a.nelem != uint64(nelem) || len(a.partitions) != int(npartitions) {
		_ = munmapRegion(mem)
		return nil, &CreateError{Op: "file", Err: fmt.Errorf(
			"uslab: %s holds an arena with a different layout (size class %d, nelem %d, %d partitions)",
			path, a.sizeClass, a.nelem, len(a.partitions))}
	}
	a.backing = backingFile

	return a, nil
}

type fileState struct {
	f     *os.File
	fd    uintptr
	fresh either.Either[struct{}, struct{}] // Left: reopened existing file; Right: freshly created
}

// openOrCreate opens path for read-write, creating it if absent, and grows
// it to exactly total bytes when newly created or found empty. Existing
// files of any other size are rejected here; an existing file of the right
// size is checked against the requested layout by the caller once its
// arena header has been parsed.
func openOrCreate(path string, total int) (*fileState, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if fi.Size() == 0 {
		if err := growSparse(f, int64(total)); err != nil {
			_ = f.Close()
			return nil, err
		}
		return &fileState{f: f, fd: f.Fd(), fresh: either.Right[struct{}, struct{}](struct{}{})}, nil
	}

	if fi.Size() != int64(total) {
		_ = f.Close()
		return nil, fmt.Errorf("uslab: %s is %d bytes, expected %d for this layout", path, fi.Size(), total)
	}

	return &fileState{f: f, fd: f.Fd(), fresh: either.Left[struct{}, struct{}](struct{}{})}, nil
}

// growSparse extends f to size bytes without requiring platform-specific
// ftruncate bindings: seeking past the current end and writing a single
// zero byte creates a sparse hole up to that offset on every filesystem
// that matters here. Short writes and EINTR are retried, since this runs
// directly against the raw file descriptor semantics rather than through
// a buffered writer.
func growSparse(f *os.File, size int64) error {
	if size == 0 {
		return nil
	}

	for {
		if _, err := f.Seek(size-1, io.SeekStart); err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
		break
	}

	for {
		n, err := f.Write([]byte{0})
		if n == 1 {
			return nil
		}
		if err != nil && errors.Is(err, syscall.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
	}
}
