package pbt

import (
	"math"
	"sync/atomic"
)

// atomicFloat is a float64 that may be read while another goroutine writes it
type atomicFloat struct {
	bits uint64
}

func (f *atomicFloat) load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&f.bits))
}

func (f *atomicFloat) store(v float64) {
	atomic.StoreUint64(&f.bits, math.Float64bits(v))
}
