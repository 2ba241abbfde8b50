package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-stdlog/stdlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyTestPageLength = 512

type legacyImage struct {
	segments []KeySegment
	records  [][]byte
	// deleted holds the slot indexes, within the first data page, that are
	// chained as deleted.
	deleted []int
}

func (l legacyImage) slotOffset(j int) int {
	return legacyTestPageLength + legacyPageHeaderSize + 74*j
}

// build renders a single data page v5 file holding records in order, leaving
// the deleted slots in between.
func (l legacyImage) build() []byte {
	data := make([]byte, 2*legacyTestPageLength)
	data[7] = 5
	le.PutUint16(data[legacyHeaderOffsets.PageLength:], legacyTestPageLength)
	le.PutUint16(data[legacyHeaderOffsets.KeyCount:], uint16(l.segments[len(l.segments)-1].Number+1))
	le.PutUint16(data[legacyHeaderOffsets.RecordLength:], 74)
	le.PutUint16(data[legacyHeaderOffsets.PhysicalRecordLength:], 74)
	le.PutUint16(data[legacyHeaderOffsets.RecordCount:], uint16(len(l.records)))

	base := int(legacyHeaderOffsets.KeyDefinitions)
	for i, seg := range l.segments {
		def := data[base+i*legacyKeyDefinitionSize:]
		attrs := seg.Attributes
		if i+1 < len(l.segments) && l.segments[i+1].Number == seg.Number {
			attrs |= SegmentedKey
		}
		le.PutUint16(def[legacyKeyOffsets.Attributes:], uint16(attrs))
		le.PutUint16(def[legacyKeyOffsets.Offset:], seg.Offset)
		le.PutUint16(def[legacyKeyOffsets.Length:], seg.Length)
		def[legacyKeyOffsets.DataType] = byte(seg.DataType)
		def[legacyKeyOffsets.NullValue] = seg.NullValue
	}

	data[legacyTestPageLength+5] = 0x80
	pointer := data[legacyHeaderOffsets.DeletedRecord:]
	for _, j := range l.deleted {
		offset := l.slotOffset(j)
		le.PutUint16(pointer[0:], uint16(offset>>16))
		le.PutUint16(pointer[2:], uint16(offset))
		pointer = data[offset:]
	}
	le.PutUint32(pointer, legacyEndOfChain)

	j := 0
	for _, rec := range l.records {
		for isDeleted(l.deleted, j) {
			j++
		}
		copy(data[l.slotOffset(j):], rec)
		j++
	}
	return data
}

func isDeleted(deleted []int, j int) bool {
	for _, d := range deleted {
		if d == j {
			return true
		}
	}
	return false
}

func fixtureLegacyImage() legacyImage {
	img := legacyImage{segments: fixtureSegments(), deleted: []int{1, 3}}
	for i, v := range fixtureIntegers {
		img.records = append(img.records, fixtureRecord(v, fixtureStrings[i], int32(10*(i+1))))
	}
	return img
}

func TestParseLegacyFile(t *testing.T) {
	img := fixtureLegacyImage()
	f, err := ParseLegacyFile(img.build(), stdlog.Discard)
	require.NoError(t, err)

	expected, err := NewSchema(74, legacyTestPageLength, fixtureSegments())
	require.NoError(t, err)
	assert.Equal(t, expected, f.Schema)
	assert.Equal(t, img.records, f.Records)
}

func TestParseLegacyComposite(t *testing.T) {
	img := fixtureLegacyImage()
	img.segments = []KeySegment{
		{Number: 0, Offset: 2, Length: 8, Attributes: Duplicates},
		{Number: 0, Offset: 34, Length: 4, Attributes: Duplicates | UseExtendedDataType, DataType: Integer},
		{Number: 1, Offset: 70, Length: 4, Attributes: OldStyleBinary, DataType: Integer},
	}
	f, err := ParseLegacyFile(img.build(), stdlog.Discard)
	require.NoError(t, err)
	require.Len(t, f.Schema.Keys, 2)
	assert.Len(t, f.Schema.Keys[0].Segments, 2)
	assert.Equal(t, Integer, f.Schema.Keys[0].Segments[1].DataType)
	// Types are only read for keys using extended data types.
	assert.Equal(t, String, f.Schema.Keys[1].Segments[0].DataType)
	assert.Equal(t, UnsignedBinary, f.Schema.Keys[1].Segments[0].EffectiveType())
}

func TestParseLegacyErrors(t *testing.T) {
	mutate := func(fn func(data []byte)) []byte {
		data := fixtureLegacyImage().build()
		fn(data)
		return data
	}

	for name, data := range map[string][]byte{
		"too small":   make([]byte, 16),
		"v6":          mutate(func(d []byte) { copy(d, "FC") }),
		"not v5":      mutate(func(d []byte) { copy(d, "ABCD") }),
		"version":     mutate(func(d []byte) { d[7] = 9 }),
		"recovery":    mutate(func(d []byte) { d[legacyHeaderOffsets.Recovery], d[legacyHeaderOffsets.Recovery+1] = 0xFF, 0xFF }),
		"page length": mutate(func(d []byte) { le.PutUint16(d[legacyHeaderOffsets.PageLength:], 100) }),
		"no keys":     mutate(func(d []byte) { le.PutUint16(d[legacyHeaderOffsets.KeyCount:], 0) }),
		"compressed":  mutate(func(d []byte) { d[legacyHeaderOffsets.UserFlags] = legacyUserFlagCompressed }),
		"variable": mutate(func(d []byte) {
			d[legacyHeaderOffsets.UserFlags] = legacyUserFlagVariable
			d[legacyHeaderOffsets.VariableMarker] = 0xFF
		}),
		"variable marker":  mutate(func(d []byte) { d[legacyHeaderOffsets.VariableMarker] = 0xFF }),
		"physical length":  mutate(func(d []byte) { le.PutUint16(d[legacyHeaderOffsets.PhysicalRecordLength:], 10) }),
		"deleted loop":     mutate(func(d []byte) { copy(d[legacyTestPageLength+legacyPageHeaderSize+74*3:], d[legacyHeaderOffsets.DeletedRecord:legacyHeaderOffsets.DeletedRecord+4]) }),
		"deleted overflow": mutate(func(d []byte) { copy(d[legacyHeaderOffsets.DeletedRecord:], []byte{0x00, 0x10, 0x00, 0x00}) }),
	} {
		_, err := ParseLegacyFile(data, stdlog.Discard)
		assert.Error(t, err, name)
	}
}

func TestImportLegacyFile(t *testing.T) {
	img := fixtureLegacyImage()
	img.deleted = []int{1}
	img.records = append(img.records, fixtureRecord(fixtureIntegers[0], "Duplicate", 99))
	data := img.build()

	dir := t.TempDir()
	src := filepath.Join(dir, "MBBSEMU.DAT")
	dst := filepath.Join(dir, "MBBSEMU.DB")
	require.NoError(t, os.WriteFile(src, data, 0644))

	count, err := ImportLegacyFile(src, dst, 2, stdlog.Discard)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	file, err := OpenDataFile(dst)
	require.NoError(t, err)
	s, err := NewStore(file, stdlog.Discard)
	require.NoError(t, err)
	defer s.close()

	assert.Equal(t, 4, s.Count())
	var records [][]byte
	s.Each(func(_ uint32, record []byte) bool {
		records = append(records, record)
		return true
	})
	assert.Equal(t, img.records[:4], records)

	_, err = ImportLegacyFile(src, dst, 2, stdlog.Discard)
	assert.ErrorIs(t, err, os.ErrExist)

	_, err = ImportLegacyFile(filepath.Join(dir, "MISSING.DAT"), filepath.Join(dir, "MISSING.DB"), 2, stdlog.Discard)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
