package btrieve

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixtureName = "MBBSEMU.DAT"

var (
	fixtureIntegers = []int32{3444, 7776, 1052234073, -615634567}
	fixtureStrings  = []string{"Whatever", "Stuff", "StringValue", "OtherValue"}
)

// fixtureSchema describes records of 74 bytes holding four keys: a Zstring
// accepting duplicates, a unique modifiable Integer, a modifiable Zstring
// accepting duplicates, and an AutoInc.
func fixtureSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(74,
		KeySegment{Number: 0, Offset: 2, Length: 32, Attributes: Duplicates | UseExtendedDataType, DataType: Zstring},
		KeySegment{Number: 1, Offset: 34, Length: 4, Attributes: Modifiable | UseExtendedDataType, DataType: Integer},
		KeySegment{Number: 2, Offset: 38, Length: 32, Attributes: Duplicates | Modifiable | UseExtendedDataType, DataType: Zstring},
		KeySegment{Number: 3, Offset: 70, Length: 4, Attributes: UseExtendedDataType, DataType: AutoInc},
	)
	require.NoError(t, err)
	return s
}

func fixtureRecord(key0 string, key1 int32, key2 string) []byte {
	rec := make([]byte, 74)
	binary.LittleEndian.PutUint16(rec, 0x0102)
	copy(rec[2:33], key0)
	binary.LittleEndian.PutUint32(rec[34:], uint32(key1))
	copy(rec[38:69], key2)
	return rec
}

func integerKey(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

func zstringKey(v string) []byte {
	return append([]byte(v), 0)
}

func recordInteger(rec *Record) int32 {
	return int32(binary.LittleEndian.Uint32(rec.Data[34:]))
}

func recordAutoInc(rec *Record) int32 {
	return int32(binary.LittleEndian.Uint32(rec.Data[70:]))
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRegistry(Config{DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, dir
}

func openEngine(t *testing.T, r *Registry, name string) (Token, Engine) {
	t.Helper()
	pb := make([]byte, PositionBlockSize)
	token, e, err := r.Open(name, pb)
	require.NoError(t, err)
	return token, e
}

// createFixture creates the fixture file with its four records, at offsets 1
// through 4.
func createFixture(t *testing.T, r *Registry) {
	t.Helper()
	require.NoError(t, r.Create(fixtureName, fixtureSchema(t)))
	token, e := openEngine(t, r, fixtureName)
	for i, v := range fixtureIntegers {
		_, err := e.Insert(fixtureRecord("Sysop", v, fixtureStrings[i]), 32)
		require.NoError(t, err)
	}
	require.NoError(t, r.Close(token))
}

// fixtureEngine returns a freshly opened session over the fixture file.
func fixtureEngine(t *testing.T) (*Registry, Engine) {
	t.Helper()
	r, _ := newTestRegistry(t)
	createFixture(t, r)
	_, e := openEngine(t, r, fixtureName)
	return r, e
}
