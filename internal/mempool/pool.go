package mempool

import "sync"

// Pooled buffers for the bake hot path: per-pass varying planes ([]float32)
// and triangle coverage masks ([]bool). Buffers are bucketed by size class so
// repeated bakes at the same output resolution reuse the same allocations.

var (
	float32Pools sync.Map // size class (int) -> *sync.Pool of []float32
	boolPools    sync.Map // size class (int) -> *sync.Pool of []bool
)

// sizeClass rounds n up to the next 4096-element bucket. Displacement planes
// are whole-viewport sized, so fine-grained classes would only add churn.
func sizeClass(n int) int {
	const step = 4096
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// GetFloat32 returns a []float32 of length n (capacity may be larger) from
// the pool. Contents are unspecified; callers overwrite every element they
// read. Return it with PutFloat32.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	p := pAny.(*sync.Pool)
	buf, ok := p.Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer to the pool. Safe on nil.
func PutFloat32(buf []float32) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	pAny.(*sync.Pool).Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetBool returns a []bool of length n with every element cleared, suitable
// as a fresh coverage mask. Return it with PutBool.
func GetBool(n int) []bool {
	cls := sizeClass(n)
	pAny, _ := boolPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]bool, cls) }})
	p := pAny.(*sync.Pool)
	buf, ok := p.Get().([]bool)
	if !ok || cap(buf) < cls {
		buf = make([]bool, cls)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = false
	}
	return buf
}

// PutBool returns a mask to the pool. Safe on nil.
func PutBool(buf []bool) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := boolPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]bool, cls) }})
	pAny.(*sync.Pool).Put(buf[:cap(buf)]) //nolint:staticcheck
}
