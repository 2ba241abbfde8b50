package internal

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizeName turns a DOS file name into a relative slash-separated path,
// dropping drive letters and leading separators.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && name[1] == ':' {
		name = name[2:]
	}
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimLeft(name, "/")
}

// FindFile resolves name within dir ignoring case on every path component.
// Names escaping dir are never resolved.
func FindFile(dir, name string) (string, bool) {
	cur := dir
	for _, comp := range strings.Split(NormalizeName(name), "/") {
		switch comp {
		case "", ".":
			continue
		case "..":
			return "", false
		}
		exact := filepath.Join(cur, comp)
		if _, err := os.Stat(exact); err == nil {
			cur = exact
			continue
		}
		entries, err := os.ReadDir(cur)
		if err != nil {
			return "", false
		}
		found := false
		for _, e := range entries {
			if strings.EqualFold(e.Name(), comp) {
				cur = filepath.Join(cur, e.Name())
				found = true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	if cur == dir {
		return "", false
	}
	return cur, true
}

// ReplaceExt returns path with its extension replaced by ext, matching the
// case of the original extension.
func ReplaceExt(path, ext string) string {
	old := filepath.Ext(path)
	base := strings.TrimSuffix(path, old)
	if old != "" && strings.ToLower(old) == old {
		ext = strings.ToLower(ext)
	}
	return base + ext
}
