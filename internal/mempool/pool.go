package mempool

import (
	"sync"
)

// Sized pools for the mask and vote buffers used by line detection and the
// tensor buffers used by OCR inference.

var (
	bytePools    sync.Map // key: size class (int), value: *sync.Pool
	int32Pools   sync.Map // key: size class (int), value: *sync.Pool
	float32Pools sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of 4096 to reduce churn.
func sizeClass(n int) int {
	const step = 4096
	if n <= step {
		return step
	}
	r := (n + step - 1) / step
	return r * step
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

func get[T any](pools *sync.Map, n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	p := poolFor[T](pools, cls)
	if p == nil {
		return make([]T, n, cls)
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	// Pooled buffers are reused, callers always get a zeroed slice.
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// Not one of ours; dropping it keeps the size classes exact.
		return
	}
	if p := poolFor[T](pools, cls); p != nil {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck
	}
}

// GetBytes retrieves a zeroed []uint8 of length n.
// The caller must return it via PutBytes when done.
func GetBytes(n int) []uint8 { return get[uint8](&bytePools, n) }

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
func PutBytes(buf []uint8) { put(&bytePools, buf) }

// GetInt32 retrieves a zeroed []int32 of length n.
// The caller must return it via PutInt32 when done.
func GetInt32(n int) []int32 { return get[int32](&int32Pools, n) }

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) { put(&int32Pools, buf) }

// GetFloat32 retrieves a zeroed []float32 of length n.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 { return get[float32](&float32Pools, n) }

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) { put(&float32Pools, buf) }
