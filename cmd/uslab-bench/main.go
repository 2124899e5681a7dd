// Command uslab-bench drives a concurrent allocate/free workload against a
// slab arena and reports per-partition utilization and throughput.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/flier/goutil/internal/debug"
	"github.com/flier/goutil/internal/xflag"
	"github.com/flier/goutil/internal/xsync"
	"github.com/flier/goutil/pkg/arena"
	"github.com/flier/goutil/pkg/arena/slice"
	"github.com/flier/goutil/pkg/opt"
	"github.com/flier/goutil/slab"
)

var (
	sizeClass   = flag.Uint64("size-class", 64, "bytes per slot")
	nelem       = flag.Uint64("nelem", 1<<16, "total slots in the arena")
	npartitions = flag.Uint64("npartitions", 8, "number of partitions")
	workers     = flag.Int("workers", 4, "number of concurrent worker goroutines")
	iterations  = flag.Int("iterations", 1<<20, "alloc/free pairs per worker")
	backingFlag = xflag.Func("backing", "heap, anonymous, or file", parseBacking)
	filePath    = flag.String("file", "", "path for -backing=file")
)

type backingKind int

const (
	backingHeap backingKind = iota
	backingAnonymous
	backingFile
)

func parseBacking(s string) (backingKind, error) {
	switch s {
	case "", "heap":
		return backingHeap, nil
	case "anonymous", "anon":
		return backingAnonymous, nil
	case "file":
		return backingFile, nil
	default:
		return 0, fmt.Errorf("unknown backing %q", s)
	}
}

// workerStat is allocated out of a scratch arena rather than the Go heap,
// so that the bookkeeping this tool does on the side never competes with
// the slab arena it's measuring for GC attention.
type workerStat struct {
	allocs, frees int64
}

func main() {
	flag.Parse()

	a, err := createArena()
	if err != nil {
		fmt.Fprintln(os.Stderr, "uslab-bench:", err)
		os.Exit(1)
	}

	scratch := new(arena.Arena)
	stats := slice.Make[*workerStat](scratch, *workers)

	var exhausted xsync.Set[int]
	var totalSeconds xsync.AtomicFloat64

	var wg sync.WaitGroup
	wg.Add(*workers)
	for w := 0; w < *workers; w++ {
		go func(w int) {
			defer wg.Done()

			st := arena.New(scratch, workerStat{})
			stats.Store(w, st)

			start := time.Now()
			for i := 0; i < *iterations; i++ {
				p := a.Alloc()
				if p == nil {
					debug.Log(nil, "bench", "worker %d: arena exhausted at iteration %d", w, i)
					exhausted.Store(w)
					break
				}
				st.allocs++

				a.Free(p)
				st.frees++
			}
			totalSeconds.Add(time.Since(start).Seconds())
		}(w)
	}
	wg.Wait()

	report(a, stats, totalSeconds.Load(), &exhausted)

	for _, st := range stats.Raw() {
		arena.Free(scratch, st)
	}

	if err := destroyArena(a); err != nil {
		fmt.Fprintln(os.Stderr, "uslab-bench: destroy:", err)
		os.Exit(1)
	}
}

func createArena() (*slab.Arena, error) {
	sc, n, np := slab.SizeClass(*sizeClass), slab.Count(*nelem), slab.Count(*npartitions)

	switch *backingFlag {
	case backingAnonymous:
		r := slab.CreateAnonymous(opt.None[uintptr](), sc, n, np)
		if r.IsErr() {
			return nil, r.UnwrapErr()
		}
		return r.Unwrap(), nil
	case backingFile:
		if *filePath == "" {
			return nil, fmt.Errorf("-backing=file requires -file")
		}
		return slab.CreateFile(*filePath, opt.None[uintptr](), sc, n, np)
	default:
		r := slab.CreateHeap(sc, n, np)
		if r.IsErr() {
			return nil, r.UnwrapErr()
		}
		return r.Unwrap(), nil
	}
}

func destroyArena(a *slab.Arena) error {
	switch *backingFlag {
	case backingAnonymous, backingFile:
		return a.DestroyMap()
	default:
		return a.DestroyHeap()
	}
}

func report(a *slab.Arena, stats slice.Slice[*workerStat], totalSeconds float64, exhausted *xsync.Set[int]) {
	var allocs, frees int64
	for _, st := range stats.Raw() {
		allocs += st.allocs
		frees += st.frees
	}

	fmt.Printf("workers=%d iterations=%d size-class=%d\n", *workers, *iterations, *sizeClass)
	fmt.Printf("allocs=%d frees=%d worker-seconds=%.3fs\n", allocs, frees, totalSeconds)

	for w := range exhausted.All() {
		fmt.Printf("worker %d: hit exhaustion before completing its iterations\n", w)
	}

	for _, s := range a.Stats() {
		fmt.Printf("partition %2d: used=%d exhausted=%v\n", s.Offset, s.Used, s.Exhausted)
	}
}
