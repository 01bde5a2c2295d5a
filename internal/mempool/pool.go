// Package mempool recycles the large scratch slices of the model hot path.
package mempool

import "sync"

// step is the granularity of size classes.
const step = 1024

// Pool hands out slices of T grouped by size class.
type Pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool
	zero    bool
}

// NewPool returns an empty pool. With zero set, Get clears the slice it returns.
func NewPool[T any](zero bool) *Pool[T] {
	return &Pool[T]{zero: zero}
}

// sizeClass rounds n up to the next multiple of step.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *Pool[T]) class(cls int) *sync.Pool {
	sp, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return sp.(*sync.Pool)
}

// Get returns a slice of length n. Give it back with Put once nothing references it.
func (p *Pool[T]) Get(n int) []T {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	var buf []T
	if bp, ok := p.class(cls).Get().(*[]T); ok && cap(*bp) >= cls {
		buf = (*bp)[:n]
	} else {
		buf = make([]T, n, cls)
	}
	if p.zero {
		clear(buf)
	}
	return buf
}

// Put returns buf to the pool. Slices that do not span a whole size class are dropped.
func (p *Pool[T]) Put(buf []T) {
	c := cap(buf)
	if c < step || c%step != 0 {
		return
	}
	buf = buf[:c]
	p.class(c).Put(&buf)
}

var (
	float32s = NewPool[float32](false)
	bools    = NewPool[bool](true)
)

// GetFloat32 returns a float32 buffer of length n with unspecified contents.
func GetFloat32(n int) []float32 { return float32s.Get(n) }

// PutFloat32 recycles a buffer from GetFloat32.
func PutFloat32(buf []float32) { float32s.Put(buf) }

// GetBool returns a cleared bool buffer of length n.
func GetBool(n int) []bool { return bools.Get(n) }

// PutBool recycles a buffer from GetBool.
func PutBool(buf []bool) { bools.Put(buf) }
