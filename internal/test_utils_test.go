package internal

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-stdlog/stdlog"
	"github.com/stretchr/testify/require"
)

func mustBytesFromHex(s string) []byte {
	s = strings.Join(strings.Fields(s), "")
	v, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type DummyConfig struct {
	DataDir         string
	InitialCapacity int
	LegacyImport    bool
	Logger          stdlog.Logger
}

func (d DummyConfig) GetDataDir() string {
	return d.DataDir
}

func (d DummyConfig) GetInitialCapacity() int {
	return d.InitialCapacity
}

func (d DummyConfig) GetLegacyImport() bool {
	return d.LegacyImport
}

func (d DummyConfig) GetLogger() stdlog.Logger {
	return d.Logger
}

func WithLogger() DummyOpt {
	return func(d *DummyConfig) { d.Logger = stdlog.NewStd(os.Stdout) }
}

func WithInitialCapacity(capacity int) DummyOpt {
	return func(d *DummyConfig) { d.InitialCapacity = capacity }
}

func WithoutLegacyImport() DummyOpt {
	return func(d *DummyConfig) { d.LegacyImport = false }
}

type DummyOpt func(*DummyConfig)

func NewDummyConfig(t *testing.T, dummyOpts ...DummyOpt) *DummyConfig {
	t.Helper()
	d := &DummyConfig{
		DataDir:         t.TempDir(),
		InitialCapacity: 4,
		LegacyImport:    true,
		Logger:          stdlog.Discard,
	}

	for _, opt := range dummyOpts {
		opt(d)
	}

	return d
}

var (
	fixtureIntegers = []int32{3444, 7776, 1052234073, -615634567}
	fixtureStrings  = []string{"Whatever", "Stuff", "StringValue", "OtherValue"}
)

func fixtureSegments() []KeySegment {
	return []KeySegment{
		{Number: 0, Offset: 2, Length: 32, Attributes: Duplicates | UseExtendedDataType, DataType: Zstring},
		{Number: 1, Offset: 34, Length: 4, Attributes: Modifiable | UseExtendedDataType, DataType: Integer},
		{Number: 2, Offset: 38, Length: 32, Attributes: Duplicates | Modifiable | UseExtendedDataType, DataType: Zstring},
		{Number: 3, Offset: 70, Length: 4, Attributes: UseExtendedDataType, DataType: AutoInc},
	}
}

func fixtureSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(74, DefaultPageSize, fixtureSegments())
	require.NoError(t, err)
	return s
}

func fixtureRecord(key1 int32, key2 string, autoInc int32) []byte {
	rec := make([]byte, 74)
	copy(rec[2:], "Sysop")
	binary.LittleEndian.PutUint32(rec[34:], uint32(key1))
	copy(rec[38:], key2)
	binary.LittleEndian.PutUint32(rec[70:], uint32(autoInc))
	return rec
}

func int32Key(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

// newFixtureStore creates a data file holding the four fixture records at
// offsets 1 through 4.
func newFixtureStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "MBBSEMU.DB")
	file, err := CreateDataFile(path, fixtureSchema(t), 2)
	require.NoError(t, err)
	s, err := NewStore(file, stdlog.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.close() })

	for i, v := range fixtureIntegers {
		_, _, err = s.Insert(fixtureRecord(v, fixtureStrings[i], 0))
		require.NoError(t, err)
	}
	return s
}
