//go:build go1.23 && (linux || darwin)

package slab

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/flier/goutil/pkg/opt"
)

// mmapRegion maps length bytes from fd at the given offset. If base is Some,
// the mapping is requested at that exact address via MAP_FIXED, failing
// loudly if the kernel cannot honor it (spec §3 "fixed-address mapping" open
// question, resolved: fail rather than silently relocate).
//
// fd == -1 requests an anonymous, swap-backed mapping.
func mmapRegion(fd int, offset int64, length int, base opt.Option[uintptr]) ([]byte, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	flags := unix.MAP_SHARED
	if fd == -1 {
		flags = unix.MAP_ANON | unix.MAP_PRIVATE
	}

	if base.IsNone() {
		mem, err := unix.Mmap(fd, offset, length, prot, flags)
		if err != nil {
			return nil, fmt.Errorf("mmap: %w", err)
		}
		return mem, nil
	}

	addr := base.Unwrap()

	// unix.Mmap never exposes the addr argument, since MAP_FIXED is rarely
	// what callers want; uslab genuinely does (spec §3), so this goes
	// straight to the raw syscall.
	got, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(prot),
		uintptr(flags|unix.MAP_FIXED),
		uintptr(fd),
		uintptr(offset),
	)
	if errno != 0 {
		return nil, fmt.Errorf("mmap(MAP_FIXED, %#x): %w", addr, errno)
	}
	if got != addr {
		return nil, fmt.Errorf("mmap(MAP_FIXED, %#x): kernel returned %#x", addr, got)
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(got)), length), nil
}

func munmapRegion(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}
