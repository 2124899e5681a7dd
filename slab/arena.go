//go:build go1.23

package slab

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/timandy/routine"

	"github.com/flier/goutil/internal/debug"
	"github.com/flier/goutil/pkg/untrust"
	"github.com/flier/goutil/pkg/xunsafe"
	"github.com/flier/goutil/pkg/zc"
)

// backingKind records which creator produced an [Arena], so that the wrong
// destroyer can at least be caught where it's cheap to detect. Per spec
// §4.5/§7, using the wrong destroyer is ultimately undefined behavior; this
// is a best-effort guard, not a guarantee.
type backingKind int

const (
	backingHeap backingKind = iota
	backingAnonymous
	backingFile
)

// arenaHeader is the arena descriptor, laid out at the start of the backing
// region (spec §3 "Arena", §6 "File-backed layout").
type arenaHeader struct {
	sizeClass   uint64
	nelem       uint64
	npartitions uint32
	pageSize    uint32
	rrCounter   atomic.Uint64 // round-robin counter for initial affinity assignment
	magic       uint64
}

const arenaMagic = 0x75736c6162763031 // "uslabv01"

// Arena is a partitioned slab allocator over a contiguous backing region.
//
// The zero Arena is not usable; construct one with [CreateHeap],
// [CreateAnonymous], or [CreateFile].
type Arena struct {
	_ xunsafe.NoCopy

	mem        []byte
	header     *arenaHeader
	partitions []*partition
	slot0      uintptr

	sizeClass uint64
	nelem     uint64
	backing   backingKind

	affinity routine.ThreadLocal[*partition]
}

// PartitionStats is a point-in-time snapshot of one partition, for
// diagnostics and the bench harness.
type PartitionStats struct {
	Offset    int
	Used      int64
	Exhausted bool
}

// pageSize returns the system page size, spec's "P".
func pageSize() int { return os.Getpagesize() }

// computeLayout computes the total backing-region size and the byte size of each
// of the npartitions partitions, failing if the parameters don't divide
// evenly into non-empty partitions (spec §3 "Arena", §7).
func computeLayout(sizeClass uint64, nelem, npartitions uint64) (total int, partSize uint64, err error) {
	if sizeClass < uint64(unsafe.Sizeof(uintptr(0))) {
		return 0, 0, fmt.Errorf("uslab: size class %d smaller than a pointer", sizeClass)
	}
	if nelem == 0 {
		return 0, 0, fmt.Errorf("uslab: nelem must be >= 1")
	}
	if npartitions == 0 {
		return 0, 0, fmt.Errorf("uslab: npartitions must be >= 1")
	}

	slabLen := sizeClass * nelem
	if slabLen%npartitions != 0 {
		return 0, 0, fmt.Errorf("uslab: %d partitions do not evenly divide %d bytes", npartitions, slabLen)
	}

	partSize = slabLen / npartitions
	if partSize == 0 {
		return 0, 0, fmt.Errorf("uslab: %d partitions over %d bytes would be empty", npartitions, slabLen)
	}

	p := uint64(pageSize())
	if npartitions*uint64(unsafe.Sizeof(partition{})) > p {
		return 0, 0, fmt.Errorf("uslab: %d partitions do not fit in one page of descriptors", npartitions)
	}

	total = int(2*p + slabLen)
	return total, partSize, nil
}

// initLayout writes the arena header and partition descriptor array into a
// freshly-zeroed backing region and points first_free at each partition's
// base, per spec §4.1.
func initLayout(mem []byte, sizeClass, nelem, npartitions uint64, partSize uint64) *Arena {
	p := uint32(pageSize())

	header := (*arenaHeader)(unsafe.Pointer(&mem[0]))
	header.sizeClass = sizeClass
	header.nelem = nelem
	header.npartitions = uint32(npartitions)
	header.pageSize = p
	header.magic = arenaMagic

	a := &Arena{
		mem:        mem,
		header:     header,
		partitions: make([]*partition, npartitions),
		slot0:      uintptr(unsafe.Pointer(&mem[2*p])),
		sizeClass:  sizeClass,
		nelem:      nelem,
		affinity:   routine.NewThreadLocal[*partition](),
	}

	partsBase := uintptr(unsafe.Pointer(&mem[p]))
	slotsBase := a.slot0

	for i := uint64(0); i < npartitions; i++ {
		pt := (*partition)(unsafe.Pointer(partsBase + i*unsafe.Sizeof(partition{})))
		pt.base = slotsBase + i*partSize
		pt.size = partSize
		pt.offset = uint32(i)
		pt.state.Store(packState(0, 0)) // first_free = base (index 0), generation 0
		a.partitions[i] = pt
		debug.Log(nil, "create", "partition %d: base=%#x size=%d", i, pt.base, pt.size)
	}

	return a
}

type fileHeaderFields struct {
	sizeClass   uint64
	nelem       uint64
	npartitions uint32
	page        uint32
}

// validateHeader parses the first bytes of a reopened backing region as
// untrusted input before any of it is treated as a live *arenaHeader: a
// file handed to [CreateFile] might belong to a different program
// entirely, might be truncated, or might just be garbage, and that has to
// be ruled out before a single unsafe.Pointer cast is taken over it.
func validateHeader(mem []byte) (fields fileHeaderFields, err error) {
	in := untrust.Input(mem)
	if in.Len() < int(unsafe.Sizeof(arenaHeader{})) {
		return fields, fmt.Errorf("uslab: backing region too small to hold an arena header")
	}

	return untrust.ReadAll(in[:unsafe.Sizeof(arenaHeader{})], fmt.Errorf("uslab: malformed arena header"),
		func(r *untrust.Reader) (fields fileHeaderFields, err error) {
			read64 := func() (uint64, error) {
				b, err := r.ReadBytes(8)
				if err != nil {
					return 0, err
				}
				return binary.LittleEndian.Uint64(b.AsSliceLessSafe()), nil
			}
			read32 := func() (uint32, error) {
				b, err := r.ReadBytes(4)
				if err != nil {
					return 0, err
				}
				return binary.LittleEndian.Uint32(b.AsSliceLessSafe()), nil
			}

			if fields.sizeClass, err = read64(); err != nil {
				return fields, err
			}
			if fields.nelem, err = read64(); err != nil {
				return fields, err
			}
			if fields.npartitions, err = read32(); err != nil {
				return fields, err
			}
			if fields.page, err = read32(); err != nil {
				return fields, err
			}
			if err := r.Skip(8); err != nil { // rrCounter: live state, not validated
				return fields, err
			}
			magic, err := read64()
			if err != nil {
				return fields, err
			}
			if magic != arenaMagic {
				return fields, fmt.Errorf("uslab: backing file is not a uslab arena (bad magic)")
			}
			if fields.npartitions == 0 || fields.npartitions > uint32(pageSize())/uint32(unsafe.Sizeof(partition{})) {
				return fields, fmt.Errorf("uslab: backing file claims an implausible partition count %d", fields.npartitions)
			}

			return fields, nil
		},
	)
}

// attachLayout wraps an already-initialized backing region (a reopened
// file-backed arena) without touching any partition's freelist state, per
// spec §3 "Persistent (file-backed) arenas".
//
// base/size/offset are re-derived from the fresh mapping rather than taken
// from the persisted partition descriptor bytes: a reopen is not guaranteed
// to land at the same virtual address as the mapping that wrote them (the
// caller may have passed a different, or no, fixed base), and computing
// slot addresses from a stale base would hand out pointers outside the new
// mapping (spec §8 invariant 1). The freelist head and used counter packed
// into the very same descriptor are index/byte-count based, not address
// based, and survive the reopen untouched.
func attachLayout(mem []byte) (*Arena, error) {
	p := uintptr(pageSize())

	fields, err := validateHeader(mem)
	if err != nil {
		return nil, err
	}
	if uintptr(fields.page) != p {
		return nil, fmt.Errorf("uslab: backing file page size %d does not match this system's %d", fields.page, p)
	}
	if fields.sizeClass < uint64(unsafe.Sizeof(uintptr(0))) {
		return nil, fmt.Errorf("uslab: backing file has an invalid size class %d", fields.sizeClass)
	}

	npartitions := uint64(fields.npartitions)
	slabLen := fields.sizeClass * fields.nelem
	if slabLen%npartitions != 0 {
		return nil, fmt.Errorf("uslab: backing file layout is inconsistent (%d bytes over %d partitions)", slabLen, npartitions)
	}
	partSize := slabLen / npartitions

	header := (*arenaHeader)(unsafe.Pointer(&mem[0]))

	a := &Arena{
		mem:        mem,
		header:     header,
		partitions: make([]*partition, npartitions),
		slot0:      uintptr(unsafe.Pointer(&mem[2*p])),
		sizeClass:  header.sizeClass,
		nelem:      header.nelem,
		affinity:   routine.NewThreadLocal[*partition](),
	}

	partsBase := uintptr(unsafe.Pointer(&mem[p]))
	slotsBase := a.slot0
	for i := uint64(0); i < npartitions; i++ {
		pt := (*partition)(unsafe.Pointer(partsBase + i*unsafe.Sizeof(partition{})))
		pt.base = slotsBase + i*partSize
		pt.size = partSize
		pt.offset = uint32(i)
		a.partitions[i] = pt
	}

	return a, nil
}

// Unbind clears the calling goroutine's cached partition affinity, forcing
// the next [Arena.Alloc] call to re-select a partition by round robin. Per
// spec §9, the allocator never does this on its own: a long-exhausted
// partition keeps being tried first (and keeps failing the exhaustion
// check) until its affined callers either free something back into it or
// call Unbind.
func (a *Arena) Unbind() {
	a.affinity.Remove()
}

// Used returns the observational byte count currently allocated from the
// partition at the given offset.
func (a *Arena) Used(partitionIndex int) int64 {
	return a.partitions[partitionIndex].usedBytes()
}

// Stats returns a point-in-time snapshot of every partition.
func (a *Arena) Stats() []PartitionStats {
	out := make([]PartitionStats, len(a.partitions))
	for i, p := range a.partitions {
		out[i] = PartitionStats{
			Offset:    i,
			Used:      p.usedBytes(),
			Exhausted: p.exhausted(a.sizeClass),
		}
	}
	return out
}

// Base returns the virtual address of the start of this arena's backing
// region (the address a fixed-base caller passed to [CreateAnonymous] or
// [CreateFile] comes back out as, per spec §6 "Fixed-address mapping").
func (a *Arena) Base() uintptr { return uintptr(unsafe.Pointer(&a.mem[0])) }

// SizeClass returns the fixed slot size of this arena.
func (a *Arena) SizeClass() SizeClass { return SizeClass(a.sizeClass) }

// NumPartitions returns the partition count of this arena.
func (a *Arena) NumPartitions() int { return len(a.partitions) }

// SlotView returns a zero-copy view of the slot at p, relative to the
// arena's backing region, for use in debug dumps. In debug builds, panics
// (via [debug.Assert]) if p does not point into this arena's backing memory.
func (a *Arena) SlotView(p unsafe.Pointer) zc.View {
	src := unsafe.SliceData(a.mem)
	start := (*byte)(p)

	debug.Assert(uintptr(p) >= uintptr(unsafe.Pointer(src)) && uintptr(p) < uintptr(unsafe.Pointer(src))+uintptr(len(a.mem)),
		"SlotView: %#x does not point into this arena", uintptr(p))

	return zc.New(src, start, int(a.sizeClass))
}
