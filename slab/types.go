//go:build go1.23

package slab

// SizeClass is the fixed byte size of every slot in an arena. It must be at
// least as large as a pointer, since a free slot's header doubles as the
// slot's payload until it is handed out (spec §3 "size_class").
type SizeClass uint64

// Count is a generic element or partition count: nelem and npartitions in
// the constructors below are both Count.
type Count uint64
