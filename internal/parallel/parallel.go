// Package parallel splits index ranges across goroutines for CPU kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how Range splits work.
type Config struct {
	Workers  int // goroutines to use; 1 or less runs inline
	MinChunk int // smallest range handed to one goroutine
}

// DefaultConfig uses one worker per schedulable CPU and chunks large enough
// that goroutine start-up stays negligible next to an element-wise kernel.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.GOMAXPROCS(0),
		MinChunk: 4096,
	}
}

// Sequential runs every range inline on the caller's goroutine.
func Sequential() Config {
	return Config{Workers: 1}
}

// Range calls f on disjoint [lo, hi) chunks that cover [0, n), so f may write
// dst[lo:hi] without locking. It returns once every chunk is done. A panic in
// f is re-raised on the caller's goroutine after the other chunks finish.
func Range(n int, cfg Config, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk := max(cfg.MinChunk, 1)
	if cfg.Workers > 1 {
		chunk = max(chunk, (n+cfg.Workers-1)/cfg.Workers)
	}
	if cfg.Workers <= 1 || n <= chunk {
		f(0, n)
		return
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		panicked any
	)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicked = r })
				}
			}()
			f(lo, hi)
		}()
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

// Rows is Range over the rows of a rows×cols row-major layout, with
// MinChunk still counted in elements.
func Rows(rows, cols int, cfg Config, f func(r0, r1 int)) {
	if cols > 0 {
		cfg.MinChunk = max(cfg.MinChunk/cols, 1)
	}
	Range(rows, cfg, f)
}
