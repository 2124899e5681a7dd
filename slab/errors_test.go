//go:build go1.23

package slab_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/flier/goutil/pkg/xerrors"
	"github.com/flier/goutil/slab"
)

func TestCreateError_ExtractableByType(t *testing.T) {
	Convey("Given a CreateHeap call with an invalid layout", t, func() {
		r := slab.CreateHeap(1, 16, 1)
		So(r.IsErr(), ShouldBeTrue)

		Convey("Its error unwraps to a *CreateError via xerrors.AsA", func() {
			ce, ok := xerrors.AsA[*slab.CreateError](r.UnwrapErr())
			So(ok, ShouldBeTrue)
			So(ce.Op, ShouldEqual, "heap")
		})
	})
}

func TestDestroyError_ExtractableByType(t *testing.T) {
	Convey("Given a heap arena destroyed through the wrong destroyer", t, func() {
		r := slab.CreateHeap(64, 4, 1)
		So(r.IsOk(), ShouldBeTrue)
		a := r.Unwrap()
		defer a.DestroyHeap()

		err := a.DestroyMap()
		So(err, ShouldNotBeNil)

		Convey("Its error unwraps to a *DestroyError via xerrors.AsA", func() {
			de, ok := xerrors.AsA[*slab.DestroyError](err)
			So(ok, ShouldBeTrue)
			So(de.Op, ShouldEqual, "map")
		})
	})
}
