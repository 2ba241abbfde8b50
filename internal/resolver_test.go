package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	for name, expected := range map[string]string{
		`C:\BBSV6\MBBSEMU.DAT`: "BBSV6/MBBSEMU.DAT",
		`c:MBBSEMU.DAT`:        "MBBSEMU.DAT",
		` \\MBBSEMU.DAT `:      "MBBSEMU.DAT",
		`.\data\x.dat`:         "./data/x.dat",
		"":                     "",
	} {
		assert.Equal(t, expected, NormalizeName(name), name)
	}
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Sub", "Users.DB"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MBBSEMU.DB"), nil, 0644))

	path, ok := FindFile(dir, "mbbsemu.db")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "MBBSEMU.DB"), path)

	path, ok = FindFile(dir, `C:\SUB\users.db`)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "Sub", "Users.DB"), path)

	path, ok = FindFile(dir, `.\sub\.\USERS.DB`)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "Sub", "Users.DB"), path)

	for _, name := range []string{"missing.db", `..\MBBSEMU.DB`, `SUB\..\MBBSEMU.DB`, "", `C:\`} {
		_, ok = FindFile(dir, name)
		assert.False(t, ok, name)
	}
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "MBBSEMU.DB", ReplaceExt("MBBSEMU.DAT", ".DB"))
	assert.Equal(t, "mbbsemu.db", ReplaceExt("mbbsemu.dat", ".DB"))
	assert.Equal(t, "MbbsEmu.DB", ReplaceExt("MbbsEmu.Dat", ".DB"))
	assert.Equal(t, "MBBSEMU.DB", ReplaceExt("MBBSEMU", ".DB"))
	assert.Equal(t, "sub.d/file.VIR", ReplaceExt("sub.d/file.dAT", ".VIR"))
}
