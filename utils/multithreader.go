package utils

import (
	"runtime"
	"sync"
)

// MultiThread runs 'f' for every integer in [start, end), spread across goroutines. It blocks
// until every call has returned.
//
// 'opsPerThread' is the number of indexes that each goroutine takes at once before requesting
// another set; 'threadsPerCPU' is the number of goroutines created for each CPU.
//
// Once any call returns an error, no further indexes are handed out. The first error is returned.
// MultiThread assumes that end ≥ start.
func MultiThread(start, end int, f func(int) error, opsPerThread, threadsPerCPU int) error {
	if opsPerThread < 1 {
		opsPerThread = 1
	}
	if threadsPerCPU < 1 {
		threadsPerCPU = 1
	}

	numThreads := runtime.NumCPU() * threadsPerCPU
	if n := end - start; n < numThreads {
		numThreads = n
	}

	var (
		index    = start
		indexMux sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	// next returns the range of indexes for a goroutine to handle, or ok=false once there are none
	// left or an error has occured
	next := func() (s, e int, ok bool) {
		indexMux.Lock()
		defer indexMux.Unlock()

		if index >= end || firstErr != nil {
			return 0, 0, false
		}

		s = index
		index += opsPerThread
		e = index
		if e > end {
			e = end
		}
		return s, e, true
	}

	fail := func(err error) {
		indexMux.Lock()
		if firstErr == nil {
			firstErr = err
		}
		indexMux.Unlock()
	}

	wg.Add(numThreads)
	for thread := 0; thread < numThreads; thread++ {
		go func() {
			defer wg.Done()

			for {
				s, e, ok := next()
				if !ok {
					return
				}

				for i := s; i < e; i++ {
					if err := f(i); err != nil {
						fail(err)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	return firstErr
}
