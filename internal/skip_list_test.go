package internal

import (
	"cmp"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptySkipList(t *testing.T) {
	list := NewSkipList(cmp.Compare[int])
	assert.False(t, list.Contains(10))
	assert.False(t, list.Delete(10))

	it := list.Iterator()
	assert.False(t, it.Valid())
	it.SeekToFirst()
	assert.False(t, it.Valid())
	it.SeekToLast()
	assert.False(t, it.Valid())
	it.SeekFirstWhere(func(v int) bool { return v < 100 })
	assert.False(t, it.Valid())
}

func TestSkipListInsertAndIterate(t *testing.T) {
	rnd := rand.New(rand.NewSource(1000))
	seen := map[int]bool{}
	list := NewSkipList(cmp.Compare[int])
	for i := 0; i < 2000; i++ {
		v := rnd.Intn(5000)
		if !seen[v] {
			seen[v] = true
			list.Insert(v)
		}
	}
	require.Equal(t, len(seen), list.Len())

	for i := 0; i < 5000; i++ {
		assert.Equalf(t, seen[i], list.Contains(i), "value = %d", i)
	}

	values := make([]int, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Ints(values)

	it := list.Iterator()
	it.SeekToFirst()
	for _, v := range values {
		require.True(t, it.Valid())
		assert.Equal(t, v, it.Value())
		it.Next()
	}
	assert.False(t, it.Valid())

	it.SeekToLast()
	for i := len(values) - 1; i >= 0; i-- {
		require.True(t, it.Valid())
		assert.Equal(t, values[i], it.Value())
		it.Prev()
	}
	assert.False(t, it.Valid())
}

func TestSkipListSeek(t *testing.T) {
	list := NewSkipList(cmp.Compare[int])
	for _, v := range []int{10, 20, 30, 40} {
		list.Insert(v)
	}
	it := list.Iterator()

	it.SeekFirstWhere(func(v int) bool { return v < 25 })
	require.True(t, it.Valid())
	assert.Equal(t, 30, it.Value())

	it.SeekLastWhere(func(v int) bool { return v <= 30 })
	require.True(t, it.Valid())
	assert.Equal(t, 30, it.Value())

	it.SeekLastWhere(func(v int) bool { return v < 10 })
	assert.False(t, it.Valid())

	it.SeekFirstWhere(func(v int) bool { return v <= 40 })
	assert.False(t, it.Valid())
}

func TestSkipListDelete(t *testing.T) {
	list := NewSkipList(cmp.Compare[int])
	for i := 0; i < 100; i++ {
		list.Insert(i)
	}
	for i := 0; i < 100; i += 2 {
		require.True(t, list.Delete(i))
	}
	assert.False(t, list.Delete(0))
	assert.Equal(t, 50, list.Len())

	it := list.Iterator()
	it.SeekToFirst()
	for i := 1; i < 100; i += 2 {
		require.True(t, it.Valid())
		assert.Equal(t, i, it.Value())
		it.Next()
	}
	assert.False(t, it.Valid())
}
