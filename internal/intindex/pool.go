package intindex

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

// parallel runs fn(0..tasks-1) on a pool of at most workers goroutines and
// waits for all of them. With one worker (or one task) fn runs inline.
func parallel(workers, tasks int, fn func(task int)) error {
	if tasks <= 0 {
		return nil
	}
	if workers > tasks {
		workers = tasks
	}
	if workers <= 1 {
		for i := 0; i < tasks; i++ {
			fn(i)
		}
		return nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return nil
}

// chunkBounds returns the half-open range of chunk c when n items are cut
// into k contiguous chunks.
func chunkBounds(n, k, c int) (lo, hi int) {
	return c * n / k, (c + 1) * n / k
}
