package main

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyvito/btrieve"
)

func newTestRegistry(t *testing.T) *btrieve.Registry {
	t.Helper()
	r, err := btrieve.NewRegistry(btrieve.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })

	schema, err := btrieve.NewSchema(24,
		btrieve.KeySegment{Number: 0, Offset: 0, Length: 16, Attributes: btrieve.UseExtendedDataType, DataType: btrieve.Zstring},
		btrieve.KeySegment{Number: 1, Offset: 16, Length: 4, Attributes: btrieve.Duplicates | btrieve.UseExtendedDataType, DataType: btrieve.Integer},
		btrieve.KeySegment{Number: 2, Offset: 20, Length: 4, Attributes: btrieve.UseExtendedDataType, DataType: btrieve.AutoInc},
	)
	require.NoError(t, err)
	require.NoError(t, r.Create("USERS.DAT", schema))

	token, e, err := r.Open("USERS.DAT", make([]byte, btrieve.PositionBlockSize))
	require.NoError(t, err)
	for i, name := range []string{"Sysop", "Guest", "Alice"} {
		rec := make([]byte, 24)
		copy(rec, name)
		binary.LittleEndian.PutUint32(rec[16:], uint32(100*(i+1)))
		_, err = e.Insert(rec, 16)
		require.NoError(t, err)
	}
	require.NoError(t, r.Close(token))
	return r
}

func TestView(t *testing.T) {
	r := newTestRegistry(t)
	out := &bytes.Buffer{}
	require.NoError(t, run(r, "view", []string{"users.dat"}, nil, out))

	text := out.String()
	assert.Contains(t, text, "users.dat: 3 records")
	assert.Contains(t, text, "record length 24, page size 4096, 3 keys")
	assert.Contains(t, text, "Zstring")
	assert.Contains(t, text, "       1  Sysop")
	assert.Contains(t, text, "       3  Alice")

	assert.Error(t, run(r, "view", []string{"missing.dat"}, nil, out))
	assert.Equal(t, errUsage, run(r, "view", nil, nil, out))
	assert.Equal(t, errUsage, run(r, "bogus", nil, nil, out))
}

func TestDumpRestore(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "users.dump")
	out := &bytes.Buffer{}

	require.NoError(t, run(r, "dump", []string{"USERS.DAT", path}, nil, out))
	assert.Contains(t, out.String(), "dumped 3 records")
	require.NoError(t, run(r, "restore", []string{path, "COPY.DAT"}, nil, out))
	assert.Contains(t, out.String(), "restored 3 records")
	require.NoError(t, run(r, "convert", []string{"COPY.DAT"}, nil, out))
	assert.Contains(t, out.String(), "COPY.DAT: 3 records")

	assert.Equal(t, errUsage, run(r, "dump", []string{"USERS.DAT"}, nil, out))
	assert.Error(t, run(r, "restore", []string{filepath.Join(t.TempDir(), "none"), "X.DAT"}, nil, out))
}

func TestShell(t *testing.T) {
	r := newTestRegistry(t)
	in := strings.NewReader(strings.Join([]string{
		"first",
		"next",
		"pos",
		`seek 0 eq "Alice"`,
		"seek 1 lt 300",
		"seek 1 next",
		"seek 2 last",
		"delete",
		"stat",
		"seek 9 eq x",
		"seek 1 eq notanumber",
		`seek 0 eq "unterminated`,
		"bogus",
		"quit",
		"first",
	}, "\n"))
	out := &bytes.Buffer{}
	require.NoError(t, run(r, "shell", []string{"USERS.DAT"}, in, out))

	lines := strings.Split(out.String(), "\n")
	expected := []string{
		"3 records. Type 'help' for commands or 'quit' to leave.",
		"> " + recordLine(1, "Sysop", 100, 1),
		"> " + recordLine(2, "Guest", 200, 2),
		"> position 2 of 3",
		"> " + recordLine(3, "Alice", 300, 3),
		"> " + recordLine(2, "Guest", 200, 2),
		"> " + recordLine(3, "Alice", 300, 3),
		"> " + recordLine(3, "Alice", 300, 3),
		"> deleted",
	}
	require.GreaterOrEqual(t, len(lines), len(expected))
	assert.Equal(t, expected, lines[:len(expected)])

	rest := strings.Join(lines[len(expected):], "\n")
	assert.Contains(t, rest, "2 records")
	assert.Contains(t, rest, "error: file has no key 9")
	assert.Contains(t, rest, `error: invalid integer "notanumber"`)
	assert.Contains(t, rest, "parse error:")
	assert.Contains(t, rest, `error: unknown command "bogus"`)
	assert.True(t, strings.HasSuffix(out.String(), "> "))
}

func recordLine(offset uint32, name string, value, id uint32) string {
	rec := make([]byte, 24)
	copy(rec, name)
	binary.LittleEndian.PutUint32(rec[16:], value)
	binary.LittleEndian.PutUint32(rec[20:], id)
	return strings.TrimSuffix(captureRecord(offset, rec), "\n")
}

func captureRecord(offset uint32, data []byte) string {
	out := &bytes.Buffer{}
	printRecord(out, &btrieve.Record{Offset: offset, Data: data})
	return out.String()
}

func TestEncodeKeyValue(t *testing.T) {
	seg := func(length uint16, dt btrieve.DataType) *btrieve.Key {
		return &btrieve.Key{Segments: []btrieve.KeySegment{
			{Length: length, Attributes: btrieve.UseExtendedDataType, DataType: dt},
		}}
	}

	v, err := encodeKeyValue(seg(2, btrieve.Integer), "-2")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFE, 0xFF}, v)

	_, err = encodeKeyValue(seg(1, btrieve.Integer), "300")
	assert.Error(t, err)

	v, err = encodeKeyValue(seg(2, btrieve.UnsignedBinary), "513")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, v)

	v, err = encodeKeyValue(seg(8, btrieve.Zstring), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc\x00"), v)

	v, err = encodeKeyValue(seg(8, btrieve.String), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	assert.Equal(t, "ab..c", printable([]byte{'a', 'b', 0, 0xFF, 'c'}))
}
