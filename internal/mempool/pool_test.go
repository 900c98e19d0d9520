package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "zero size", input: 0, expected: 4096},
		{name: "negative size", input: -1, expected: 4096},
		{name: "small size gets minimum", input: 1, expected: 4096},
		{name: "exact step", input: 4096, expected: 4096},
		{name: "just over step", input: 4097, expected: 8192},
		{name: "large size", input: 250000, expected: 253952},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetBytes_ZeroedAfterReuse(t *testing.T) {
	buf := GetBytes(500)
	require.Len(t, buf, 500)
	for i := range buf {
		buf[i] = 255
	}
	PutBytes(buf)

	again := GetBytes(500)
	require.Len(t, again, 500)
	for i, v := range again {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
	PutBytes(again)
}

func TestGetInt32_ZeroedAfterReuse(t *testing.T) {
	buf := GetInt32(10000)
	require.Len(t, buf, 10000)
	assert.GreaterOrEqual(t, cap(buf), 10000)
	buf[9999] = 42
	PutInt32(buf)

	again := GetInt32(9000)
	require.Len(t, again, 9000)
	assert.Equal(t, int32(0), again[8999])
	PutInt32(again)
}

func TestGetFloat32_ZeroedAfterReuse(t *testing.T) {
	buf := GetFloat32(3 * 64 * 64)
	require.Len(t, buf, 3*64*64)
	buf[0] = 0.5
	PutFloat32(buf)

	again := GetFloat32(3 * 64 * 64)
	assert.Zero(t, again[0])
	PutFloat32(again)
}

func TestPut_ForeignAndNilBuffers(t *testing.T) {
	assert.NotPanics(t, func() {
		PutBytes(nil)
		PutInt32(nil)
		PutFloat32(nil)
		PutBytes(make([]uint8, 10))
		PutInt32(make([]int32, 5000))
	})
}

func TestPool_ConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := range 50 {
				n := 1000 + (seed*97+i*13)%9000
				mask := GetBytes(n)
				votes := GetInt32(n)
				assert.Len(t, mask, n)
				assert.Len(t, votes, n)
				mask[0], votes[0] = 1, 1
				PutBytes(mask)
				PutInt32(votes)
			}
		}(w)
	}
	wg.Wait()
}
