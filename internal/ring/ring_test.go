package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingFIFO(t *testing.T) {
	r, err := New[int](8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, r.TryPush(i))
	}
	for i := 0; i < 5; i++ {
		v, ok := r.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.TryPop()
	assert.False(t, ok)
}

func TestRingDropOnFull(t *testing.T) {
	r, err := New[int](2)
	require.NoError(t, err)

	require.True(t, r.TryPush(1))
	require.True(t, r.TryPush(2))
	assert.False(t, r.TryPush(3))
	assert.Equal(t, 2, r.Len())

	v, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	assert.True(t, r.TryPush(3))
	assert.False(t, r.TryPush(4))
}

func TestRingInvalidCapacity(t *testing.T) {
	_, err := New[int](0)
	assert.ErrorIs(t, err, ErrCapacity)
	_, err = New[int](-1)
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestRingPopBatch(t *testing.T) {
	r, err := New[int](16)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.True(t, r.TryPush(i))
	}
	buf := make([]int, 4)
	n := r.PopBatch(buf)
	require.Equal(t, 4, n)
	assert.Equal(t, []int{0, 1, 2, 3}, buf)

	buf = make([]int, 16)
	n = r.PopBatch(buf)
	require.Equal(t, 6, n)
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9}, buf[:n])
}

func TestRingSPSC(t *testing.T) {
	const total = 100000
	r, err := New[int](64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	got := make([]int, 0, total)
	go func() {
		defer wg.Done()
		next := 0
		for next < total {
			v, ok := r.TryPop()
			if !ok {
				continue
			}
			got = append(got, v)
			next++
		}
	}()

	for i := 0; i < total; {
		if r.TryPush(i) {
			i++
		}
	}
	wg.Wait()

	require.Len(t, got, total)
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
}
