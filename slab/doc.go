//go:build go1.23

// Package slab implements a fixed-size-class, partitioned, lock-free slab
// allocator over a contiguous arena.
//
// It is meant as a building block inside higher-level systems — request
// pipelines, connection caches, object pools — where a general-purpose
// allocator is a contention bottleneck or cannot provide the placement
// guarantees this package offers: a fixed virtual address, a persistent
// backing file, or shared memory.
//
// # Model
//
// An [Arena] owns a backing region of exactly 2*P + sizeClass*nelem bytes,
// where P is the system page size. The first page holds the arena
// descriptor; the second holds an array of partition descriptors, one per
// partition; the remainder is the slot region, sliced evenly across
// partitions. Each partition is an independent freelist: allocation and
// deallocation on disjoint partitions never contend with one another.
//
// Allocation is safe for an arbitrary number of concurrent callers.
// Deallocation is safe for an arbitrary number of concurrent callers too, as
// long as no two callers attempt to free the same slot (the "single freer"
// framing in the allocator this package is modeled on describes an ownership
// discipline, not a concurrency limit).
//
// This package allocates fixed-size objects only: there is no variable-size
// allocation, no coalescing, no defragmentation, and no reclamation of
// retired objects. It is deliberately a much smaller and stricter tool than
// a general-purpose allocator.
package slab
