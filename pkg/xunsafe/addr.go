//go:build go1.20

package xunsafe

import (
	"fmt"
	"unsafe"

	"github.com/flier/goutil/pkg/xunsafe/layout"
)

// Addr is an untyped address of a T, represented as a uintptr.
//
// Unlike *T, an Addr[T] is not tracked by the garbage collector, and
// arithmetic on it is not subject to Go's usual pointer-arithmetic
// restrictions. Callers are responsible for keeping the underlying memory
// alive for as long as an Addr derived from it is in use.
type Addr[T any] uintptr

// AddrOf returns the address of p.
func AddrOf[T any](p *T) Addr[T] {
	return Addr[T](unsafe.Pointer(p))
}

// EndOf returns the address immediately following the last element of s.
func EndOf[S ~[]E, E any](s S) Addr[E] {
	return AddrOf(unsafe.SliceData(s)).Add(len(s))
}

// AssertValid casts this address back to a *T.
//
// It is named AssertValid as a reminder that the caller is asserting that
// the address is both non-zero and points to live memory of the right
// shape; violating this is undefined behavior.
func (a Addr[T]) AssertValid() *T {
	return (*T)(unsafe.Pointer(uintptr(a)))
}

// Add adds n*sizeof(T) to this address.
func (a Addr[T]) Add(n int) Addr[T] {
	return a.ByteAdd(n * layout.Size[T]())
}

// ByteAdd adds n bytes to this address, without scaling by sizeof(T).
func (a Addr[T]) ByteAdd(n int) Addr[T] {
	return Addr[T](uintptr(int(a) + n))
}

// Sub computes (a-b)/sizeof(T), the number of elements between a and b.
func (a Addr[T]) Sub(b Addr[T]) int {
	return int(uintptr(a)-uintptr(b)) / layout.Size[T]()
}

// Padding returns the number of bytes needed to round this address up to
// align, which must be a power of two.
func (a Addr[T]) Padding(align int) int {
	return int(layout.Padding(uintptr(a), uintptr(align)))
}

// RoundUpTo rounds this address up to the given power-of-two alignment.
func (a Addr[T]) RoundUpTo(align int) Addr[T] {
	return Addr[T](layout.RoundUp(uintptr(a), uintptr(align)))
}

// RoundDownTo rounds this address down to the given power-of-two alignment.
func (a Addr[T]) RoundDownTo(align int) Addr[T] {
	return Addr[T](layout.RoundDown(uintptr(a), uintptr(align)))
}

// SignBit returns whether the topmost bit of this address is set.
func (a Addr[T]) SignBit() bool {
	return a.SignBitMask() != 0
}

// SignBitMask returns all-ones if SignBit is set, and all-zeros otherwise.
func (a Addr[T]) SignBitMask() Addr[T] {
	return Addr[T](int(a) >> (unsafe.Sizeof(uintptr(0))*8 - 1))
}

// ClearSignBit returns this address with its topmost bit cleared.
func (a Addr[T]) ClearSignBit() Addr[T] {
	return a &^ (Addr[T](1) << (unsafe.Sizeof(uintptr(0))*8 - 1))
}

// Format implements [fmt.Formatter], printing this address as a hex pointer.
func (a Addr[T]) Format(f fmt.State, verb rune) {
	switch verb {
	case 'x':
		fmt.Fprintf(f, "%x", uintptr(a))
	default:
		fmt.Fprintf(f, "%#x", uintptr(a))
	}
}
