package xunsafe

import "unsafe"

// eface mirrors the runtime's layout for an empty interface (any) value: a
// pointer to its type descriptor followed by a pointer to its data.
type eface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

// AnyData returns the data word of an interface value: the pointer an any
// holds to its underlying value (or, for directly-stored types such as
// pointers, maps, and channels, the value itself reinterpreted as a
// pointer).
func AnyData(v any) unsafe.Pointer {
	return (*eface)(unsafe.Pointer(&v)).data
}
