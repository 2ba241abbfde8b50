package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCore(t *testing.T) *RealMode {
	t.Helper()
	m, err := NewRealMode(0x10000, 0x20000)
	require.NoError(t, err)
	return m
}

func TestRealModeAccessors(t *testing.T) {
	m := newCore(t)
	p := NewFarPtr(0x2000, 0x0010)

	m.SetWord(p, 0x6176)
	assert.Equal(t, uint16(0x6176), m.GetWord(p))
	assert.Equal(t, byte(0x76), m.GetByte(p))
	assert.Equal(t, byte(0x61), m.GetByte(p.Add(1)))

	m.SetDWord(p, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), m.GetDWord(p))

	m.SetArray(p, []byte("MBBSEMU.DAT\x00garbage"))
	assert.Equal(t, []byte("MBBSEMU.DAT"), m.GetString(p, 128))
	assert.Equal(t, []byte("MBBS"), m.GetString(p, 4))
	assert.Equal(t, []byte("MBBSEMU.DAT\x00g"), m.GetArray(p, 13))
}

// TestRealModeAliasing ensures distinct segment:offset pairs resolving to the
// same linear address observe the same bytes.
func TestRealModeAliasing(t *testing.T) {
	m := newCore(t)
	m.SetByte(NewFarPtr(0x1000, 0x0020), 0xAA)
	assert.Equal(t, byte(0xAA), m.GetByte(NewFarPtr(0x1002, 0x0000)))
}

func TestRealModeWrapsAround(t *testing.T) {
	m := newCore(t)
	top := NewFarPtr(0xFFFF, 0xFFFF)

	m.SetWord(top, 0x6176)
	assert.Equal(t, byte(0x76), m.GetByte(top))
	assert.Equal(t, byte(0x61), m.GetByte(NewFarPtr(0, 0)))
	assert.Equal(t, uint16(0x6176), m.GetWord(top))

	m.SetDWord(NewFarPtr(0xFFFF, 0xFFFE), 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), m.GetDWord(NewFarPtr(0xFFFF, 0xFFFE)))
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, m.GetArray(NewFarPtr(0xFFFF, 0xFFFE), 4))

	m.SetArray(NewFarPtr(0xFFFF, 0xFFFD), []byte("ABCDE\x00"))
	assert.Equal(t, []byte("ABCDE"), m.GetString(NewFarPtr(0xFFFF, 0xFFFD), 16))
	assert.Equal(t, []byte("DE\x00"), m.GetArray(NewFarPtr(0, 0), 3))
	assert.Empty(t, m.GetArray(top, 0))
}

func TestRealModeMallocFree(t *testing.T) {
	m := newCore(t)

	a, err := m.Malloc(28)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1000), a.Segment)
	assert.Equal(t, uint16(0), a.Offset)

	b, err := m.Malloc(64)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1002), b.Segment)

	require.NoError(t, m.Free(a))
	assert.Error(t, m.Free(a))

	c, err := m.Malloc(16)
	require.NoError(t, err)
	assert.Equal(t, a, c, "freed block should be reused")

	_, err = m.Malloc(0x10000)
	require.NoError(t, err)
	_, err = m.Malloc(0x10000)
	assert.Error(t, err)
}
