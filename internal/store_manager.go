package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-stdlog/stdlog"
)

// StoreManager hands out Store instances, keeping a single instance per file
// so that every session opened against it observes the same records.
type StoreManager struct {
	config Config
	dir    string
	log    stdlog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewStoreManager(config Config) *StoreManager {
	return &StoreManager{
		config: config,
		dir:    config.GetDataDir(),
		log:    config.GetLogger().Named("store"),
		stores: map[string]*Store{},
	}
}

// Acquire returns the Store for name, opening it when needed. Every
// successful call must be paired with a call to Release.
func (m *StoreManager) Acquire(name string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.locate(name)
	if err != nil {
		return nil, err
	}
	if s, ok := m.stores[path]; ok {
		s.refs++
		return s, nil
	}

	file, err := OpenDataFile(path)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(file, m.log.Named(filepath.Base(path)))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	s.refs = 1
	m.stores[path] = s
	m.log.Info("Opened store", "path", path, "records", s.Count())
	return s, nil
}

// Release drops a reference to s, closing it once unused.
func (m *StoreManager) Release(s *Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs > 0 {
		return nil
	}
	delete(m.stores, s.Path)
	m.log.Info("Closing store", "path", s.Path)
	return s.close()
}

// Create creates an empty .DB file for name using schema, replacing any
// existing file that is not currently open.
func (m *StoreManager) Create(name string, schema *Schema) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := FindFile(m.dir, ReplaceExt(NormalizeName(name), ".DB"))
	if ok {
		if _, open := m.stores[path]; open {
			return "", fmt.Errorf("%s: file is in use", path)
		}
		if err := os.Remove(path); err != nil {
			return "", err
		}
	} else {
		path = filepath.Join(m.dir, filepath.FromSlash(ReplaceExt(NormalizeName(name), ".DB")))
	}

	file, err := CreateDataFile(path, schema, m.config.GetInitialCapacity())
	if err != nil {
		return "", err
	}
	m.log.Info("Created store", "path", path, "record_length", schema.RecordLength, "keys", len(schema.Keys))
	return path, file.Close()
}

// locate finds the .DB file backing name, converting a legacy .DAT file (or
// its .VIR template) when no .DB file exists yet.
func (m *StoreManager) locate(name string) (string, error) {
	base := NormalizeName(name)
	if base == "" {
		return "", fmt.Errorf("empty file name")
	}
	if path, ok := FindFile(m.dir, ReplaceExt(base, ".DB")); ok {
		return path, nil
	}
	if !m.config.GetLegacyImport() {
		return "", fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}

	dat, ok := FindFile(m.dir, ReplaceExt(base, ".DAT"))
	if !ok {
		vir, found := FindFile(m.dir, ReplaceExt(base, ".VIR"))
		if !found {
			return "", fmt.Errorf("%s: %w", name, os.ErrNotExist)
		}
		dat = ReplaceExt(vir, ".DAT")
		m.log.Info("Creating database from template", "template", vir, "path", dat)
		if err := copyFile(vir, dat); err != nil {
			return "", err
		}
	}

	db := ReplaceExt(dat, ".DB")
	if _, err := ImportLegacyFile(dat, db, m.config.GetInitialCapacity(), m.log.Named("legacy")); err != nil {
		return "", err
	}
	return db, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Close closes every store regardless of outstanding references.
func (m *StoreManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, s := range m.stores {
		if err := s.close(); err != nil {
			m.log.Error(err, "Failed closing store", "path", path)
			return err
		}
		delete(m.stores, path)
	}
	return nil
}
