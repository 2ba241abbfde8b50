package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyvito/btrieve/errors"
)

// newFixtureIndex indexes the fixture records under offsets 1 through 4 using
// key number.
func newFixtureIndex(t *testing.T, number int) *KeyIndex {
	t.Helper()
	idx := NewKeyIndex(fixtureSchema(t).Keys[number])
	for i, v := range fixtureIntegers {
		require.NoError(t, idx.Insert(uint32(i+1), fixtureRecord(v, fixtureStrings[i], int32(i+1))))
	}
	return idx
}

func requireFind(t *testing.T, idx *KeyIndex, probe []byte, op Operator, expected uint32) {
	t.Helper()
	offset, _, ok := idx.Find(probe, op)
	require.True(t, ok, "%s", op)
	assert.Equal(t, expected, offset, "%s", op)
}

func TestKeyIndexFind(t *testing.T) {
	// Ordered: -615634567 (4), 3444 (1), 7776 (2), 1052234073 (3)
	idx := newFixtureIndex(t, 1)
	assert.Equal(t, 4, idx.Len())

	requireFind(t, idx, int32Key(7776), OpEqual, 2)
	requireFind(t, idx, int32Key(7776), OpGreaterOrEqual, 2)
	requireFind(t, idx, int32Key(7776), OpGreaterThan, 3)
	requireFind(t, idx, int32Key(7776), OpLessOrEqual, 2)
	requireFind(t, idx, int32Key(7776), OpLessThan, 1)
	requireFind(t, idx, int32Key(5000), OpGreaterOrEqual, 2)
	requireFind(t, idx, int32Key(5000), OpLessOrEqual, 1)
	requireFind(t, idx, nil, OpFirst, 4)
	requireFind(t, idx, nil, OpLast, 3)

	for _, c := range []struct {
		probe int32
		op    Operator
	}{
		{5000, OpEqual},
		{1052234073, OpGreaterThan},
		{-615634567, OpLessThan},
	} {
		_, _, ok := idx.Find(int32Key(c.probe), c.op)
		assert.False(t, ok, "%d %s", c.probe, c.op)
	}
	_, _, ok := idx.Find(nil, OpNext)
	assert.False(t, ok)

	_, key, _ := idx.Find(int32Key(3444), OpEqual)
	assert.Equal(t, int32Key(3444), key)
}

func TestKeyIndexDuplicates(t *testing.T) {
	idx := NewKeyIndex(fixtureSchema(t).Keys[0])
	for offset := uint32(1); offset <= 3; offset++ {
		require.NoError(t, idx.Insert(offset, fixtureRecord(int32(offset), "x", int32(offset))))
	}
	other := fixtureRecord(9, "x", 9)
	copy(other[2:], "Admin\x00")
	require.NoError(t, idx.Insert(4, other))

	probe := []byte("Sysop\x00")
	requireFind(t, idx, probe, OpEqual, 1)
	requireFind(t, idx, probe, OpGreaterOrEqual, 1)
	requireFind(t, idx, probe, OpLessOrEqual, 3)
	requireFind(t, idx, nil, OpLast, 3)
	requireFind(t, idx, nil, OpFirst, 4)
	requireFind(t, idx, probe, OpLessThan, 4)
	_, _, ok := idx.Find(probe, OpGreaterThan)
	assert.False(t, ok)

	assert.Equal(t, uint32(2), idx.UniqueValues())
	assert.False(t, idx.Conflicts(0, fixtureRecord(1, "x", 1)))
}

func TestKeyIndexSteps(t *testing.T) {
	idx := NewKeyIndex(fixtureSchema(t).Keys[0])
	for offset := uint32(1); offset <= 3; offset++ {
		require.NoError(t, idx.Insert(offset, fixtureRecord(int32(offset), "x", int32(offset))))
	}
	key := idx.Key.Extract(fixtureRecord(0, "", 0))

	offset, _, ok := idx.After(key, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(2), offset)

	offset, _, ok = idx.Before(key, 3)
	require.True(t, ok)
	assert.Equal(t, uint32(2), offset)

	_, _, ok = idx.After(key, 3)
	assert.False(t, ok)
	_, _, ok = idx.Before(key, 1)
	assert.False(t, ok)

	// Anchors survive the removal of their entry.
	require.True(t, idx.Remove(2, fixtureRecord(2, "x", 2)))
	offset, _, ok = idx.After(key, 2)
	require.True(t, ok)
	assert.Equal(t, uint32(3), offset)
	offset, _, ok = idx.Before(key, 2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), offset)
}

func TestKeyIndexUnique(t *testing.T) {
	idx := newFixtureIndex(t, 1)
	dup := fixtureRecord(7776, "other", 10)

	assert.True(t, idx.Conflicts(0, dup))
	assert.False(t, idx.Conflicts(2, dup))
	err := idx.Insert(10, dup)
	var dupErr errors.DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, 1, dupErr.KeyNumber)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, uint32(4), idx.UniqueValues())

	assert.False(t, idx.Remove(10, dup))
	assert.True(t, idx.Remove(2, fixtureRecord(7776, fixtureStrings[1], 2)))
	assert.False(t, idx.Conflicts(0, dup))
}

func TestKeyIndexNullable(t *testing.T) {
	key := &Key{Number: 0, Segments: []KeySegment{
		{Offset: 34, Length: 4, Attributes: NullAllSegments | UseExtendedDataType, DataType: Integer},
	}}
	idx := NewKeyIndex(key)

	require.NoError(t, idx.Insert(1, fixtureRecord(0, "a", 1)))
	require.NoError(t, idx.Insert(2, fixtureRecord(0, "b", 2)))
	require.NoError(t, idx.Insert(3, fixtureRecord(5, "c", 3)))
	assert.Equal(t, 1, idx.Len())
	assert.False(t, idx.Remove(1, fixtureRecord(0, "a", 1)))
	requireFind(t, idx, nil, OpFirst, 3)
}

func TestKeyIndexProbeWindow(t *testing.T) {
	idx := newFixtureIndex(t, 2)

	requireFind(t, idx, []byte("Stuff"), OpEqual, 2)
	requireFind(t, idx, []byte("St"), OpEqual, 3)
	requireFind(t, idx, []byte("St"), OpGreaterThan, 1)
	requireFind(t, idx, []byte("Stu"), OpLessThan, 3)

	// A probe reaching past the key compares the bytes that follow it.
	rec := fixtureRecord(fixtureIntegers[2], fixtureStrings[2], 3)
	probe := rec[38:72]
	requireFind(t, idx, probe, OpEqual, 3)
	probe[33] = 0xFF
	_, _, ok := idx.Find(probe, OpEqual)
	assert.False(t, ok)
	requireFind(t, idx, probe, OpLessThan, 3)
}
