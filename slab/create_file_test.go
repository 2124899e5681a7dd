//go:build go1.23 && (linux || darwin)

package slab_test

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/goutil/pkg/opt"
	"github.com/flier/goutil/slab"
)

// fixedBase probes the kernel for an address range this process can later
// re-request with MAP_FIXED: map an arena with no base preference, read
// back where it landed, then unmap it. The window between that unmap and
// the caller's fixed-address remap is not race-free against the rest of
// the process's own mmap traffic, but it is the same discovery trick any
// caller without a hardcoded address reservation has to use, and it keeps
// these tests from depending on a literal address being free on every
// machine and architecture.
func fixedBase(t *testing.T) uintptr {
	t.Helper()

	probe := slab.CreateAnonymous(opt.None[uintptr](), 8, 1, 1)
	So(probe.IsOk(), ShouldBeTrue)
	pa := probe.Unwrap()
	base := pa.Base()
	So(pa.DestroyMap(), ShouldBeNil)

	return base
}

func TestCreateFile_PersistsAcrossRemap(t *testing.T) {
	Convey("Given a file-backed arena with some slots allocated and freed", t, func() {
		path := filepath.Join(t.TempDir(), "arena.uslab")

		a, err := slab.CreateFile(path, opt.None[uintptr](), 64, 8, 2)
		So(err, ShouldBeNil)

		var kept []unsafe.Pointer
		for i := 0; i < 3; i++ {
			p := a.Alloc()
			So(p, ShouldNotBeNil)
			kept = append(kept, p)
		}
		a.Free(kept[0])
		kept = kept[1:]

		wantUsed := a.Used(0) + a.Used(1)
		So(a.DestroyMap(), ShouldBeNil)

		Convey("Reopening the same path restores partition state instead of resetting it", func() {
			b, err := slab.CreateFile(path, opt.None[uintptr](), 64, 8, 2)
			So(err, ShouldBeNil)
			defer b.DestroyMap()

			So(b.Used(0)+b.Used(1), ShouldEqual, wantUsed)

			Convey("And the reopened arena can still allocate", func() {
				p := b.Alloc()
				So(p, ShouldNotBeNil)
			})
		})
	})
}

func TestCreateFile_RejectsMismatchedLayoutOnReopen(t *testing.T) {
	Convey("Given a file already holding an arena of one layout", t, func() {
		path := filepath.Join(t.TempDir(), "arena.uslab")

		a, err := slab.CreateFile(path, opt.None[uintptr](), 64, 8, 2)
		So(err, ShouldBeNil)
		So(a.DestroyMap(), ShouldBeNil)

		Convey("Reopening it with a different size class is rejected", func() {
			_, err := slab.CreateFile(path, opt.None[uintptr](), 128, 8, 2)
			So(err, ShouldNotBeNil)
		})

		Convey("Reopening it with a different partition count is rejected", func() {
			_, err := slab.CreateFile(path, opt.None[uintptr](), 64, 8, 1)
			So(err, ShouldNotBeNil)
		})
	})
}

// TestCreateFile_FixedAddressPersistsAcrossRemap is spec scenario E1:
// allocate at a fixed base, stamp the pointer's own value into the slot,
// destroy the mapping without touching the file, remap at the same base,
// and confirm both the address identity and the stamped data survived.
func TestCreateFile_FixedAddressPersistsAcrossRemap(t *testing.T) {
	Convey("Given a fixed base address available in this process", t, func() {
		base := fixedBase(t)
		page := uintptr(os.Getpagesize())
		path := filepath.Join(t.TempDir(), "arena.uslab")

		Convey("Allocating at that fixed address returns base+2P, and the slot's contents survive an unmap/remap cycle", func() {
			a, err := slab.CreateFile(path, opt.Some(base), 8, 1, 1)
			So(err, ShouldBeNil)
			So(a.Base(), ShouldEqual, base)

			p := a.Alloc()
			So(p, ShouldNotBeNil)
			So(uintptr(p), ShouldEqual, base+2*page)

			word := (*uintptr)(p)
			*word = uintptr(p)

			So(a.DestroyMap(), ShouldBeNil)

			b, err := slab.CreateFile(path, opt.Some(base), 8, 1, 1)
			So(err, ShouldBeNil)
			defer b.DestroyMap()
			So(b.Base(), ShouldEqual, base)

			Convey("The slot is still marked used by the persisted freelist head, so allocation fails", func() {
				So(b.Alloc(), ShouldBeNil)
			})

			Convey("And the value stamped before the remap reads back unchanged", func() {
				readBack := (*uintptr)(unsafe.Pointer(base + 2*page))
				So(*readBack, ShouldEqual, base+2*page)
			})
		})
	})
}

// TestCreateFile_HugeNelemVirginProgressionSurvivesRemap is spec scenario
// E2: a single partition with a huge nelem must create instantly (no
// per-slot pre-pass threading the freelist) and its lazy virgin-chain
// progression must still advance by exactly one slot across an
// unmap/remap cycle, the same as the small-nelem case in E1.
func TestCreateFile_HugeNelemVirginProgressionSurvivesRemap(t *testing.T) {
	Convey("Given a file-backed arena with a single partition and a huge nelem", t, func() {
		const hugeNelem = slab.Count(1) << 40

		base := fixedBase(t)
		path := filepath.Join(t.TempDir(), "arena.uslab")

		Convey("The virgin chain advances exactly one slot across an unmap/remap", func() {
			a, err := slab.CreateFile(path, opt.Some(base), 8, hugeNelem, 1)
			So(err, ShouldBeNil)

			p1 := a.Alloc()
			So(p1, ShouldNotBeNil)

			w1 := (*uintptr)(p1)
			*w1 = uintptr(p1)

			So(a.DestroyMap(), ShouldBeNil)

			b, err := slab.CreateFile(path, opt.Some(base), 8, hugeNelem, 1)
			So(err, ShouldBeNil)
			defer b.DestroyMap()

			p2 := b.Alloc()
			So(p2, ShouldNotBeNil)
			So(uintptr(p2), ShouldEqual, uintptr(p1)+8)

			So(*(*uintptr)(p1), ShouldEqual, uintptr(p1))
		})
	})
}

func TestCreateFile_EmptyExistingFileIsTreatedAsFresh(t *testing.T) {
	Convey("Given an empty file created ahead of time", t, func() {
		path := filepath.Join(t.TempDir(), "arena.uslab")
		So(os.WriteFile(path, nil, 0o644), ShouldBeNil)

		a, err := slab.CreateFile(path, opt.None[uintptr](), 64, 4, 1)
		So(err, ShouldBeNil)
		defer a.DestroyMap()

		So(a.Used(0), ShouldEqual, 0)
		So(a.Alloc(), ShouldNotBeNil)
	})
}
