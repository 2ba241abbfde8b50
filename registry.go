package btrieve

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stdlog/stdlog"

	"github.com/heyvito/btrieve/errors"
	"github.com/heyvito/btrieve/internal"
	"github.com/heyvito/btrieve/internal/dump"
	"github.com/heyvito/btrieve/internal/metrics"
)

const (
	// TokenSize is the amount of bytes of a position block used to identify
	// the session it belongs to.
	TokenSize = 16

	// PositionBlockSize is the size of the guest-owned position block.
	PositionBlockSize = 64
)

// Token identifies an open session. It is stored at the start of the position
// block supplied by the guest when the file is opened.
type Token [TokenSize]byte

func (t Token) String() string { return hex.EncodeToString(t[:]) }

// TokenFromPositionBlock reads the token stored in a position block.
func TokenFromPositionBlock(positionBlock []byte) Token {
	var t Token
	copy(t[:], positionBlock)
	return t
}

// Registry keeps track of open sessions, and owns the files of a data
// directory. Distinct sessions opened against the same file share a single
// set of records and indexes.
type Registry struct {
	config  *Config
	log     stdlog.Logger
	stores  *internal.StoreManager
	engines internal.SessionMap[Token, *engine]
	lock    *dirLock

	mu     sync.Mutex
	closed bool
}

// NewRegistry initializes a Registry over config.DataDir, creating the
// directory if required. Returns errors.CannotAcquireLockError in case another
// process is managing the directory.
func NewRegistry(config Config) (*Registry, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("cannot initialize registry without DataDir")
	}
	if config.InitialCapacity <= 0 {
		config.InitialCapacity = 64
	}

	log := config.GetLogger()
	log.Info("Registry is initializing",
		"DataDir", config.DataDir,
		"InitialCapacity", config.InitialCapacity,
		"LegacyImport", config.GetLegacyImport(),
	)

	stat, err := os.Stat(config.DataDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err = os.MkdirAll(config.DataDir, 0755); err != nil {
			return nil, err
		}
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("%s: exists and is not a directory", config.DataDir)
	}

	lock, pid, err := acquireDirLock(config.DataDir)
	if err != nil {
		log.Error(err, "Lock initialization failed")
		return nil, err
	}
	if pid != -1 {
		return nil, errors.CannotAcquireLockError{PID: pid}
	}

	return &Registry{
		config: &config,
		log:    log.Named("registry"),
		stores: internal.NewStoreManager(config),
		lock:   lock,
	}, nil
}

// Open opens name, mints a token for the new session and stores it at the
// start of positionBlock. Failures to locate or load the file are reported as
// errors.CannotOpenFileError.
func (r *Registry) Open(name string, positionBlock []byte) (Token, Engine, error) {
	defer metrics.Measure(metrics.RegistryOpenLatency)()

	var token Token
	if len(positionBlock) < TokenSize {
		return token, nil, fmt.Errorf("position block must hold at least %d bytes", TokenSize)
	}
	if r.isClosed() {
		return token, nil, errors.FileNotOpen
	}

	store, err := r.stores.Acquire(name)
	if err != nil {
		metrics.Simple(metrics.RegistryOpenFailures, 1)
		r.log.Error(err, "Failed opening file", "name", name)
		return token, nil, errors.CannotOpenFileError{Name: name, Err: err}
	}

	e := &engine{
		name:    name,
		store:   store,
		release: r.stores.Release,
		log:     r.log.Named("engine"),
	}
	for {
		if _, err = rand.Read(token[:]); err != nil {
			_ = e.Close()
			return token, nil, err
		}
		if r.engines.Add(token, e) {
			break
		}
	}
	copy(positionBlock, token[:])
	r.log.Debug("Opened file", "name", name, "token", token.String())
	metrics.Simple(metrics.RegistryOpenEngines, float64(r.engines.Len()))
	return token, e, nil
}

// Create creates an empty file for name with the given schema. Existing
// files that are not currently open are replaced.
func (r *Registry) Create(name string, schema *Schema) error {
	if r.isClosed() {
		return errors.FileNotOpen
	}
	if _, err := r.stores.Create(name, schema); err != nil {
		r.log.Error(err, "Failed creating file", "name", name)
		return errors.CannotOpenFileError{Name: name, Err: err}
	}
	return nil
}

// Dump writes the layout and records of name to w as a compressed stream,
// returning the amount of records written.
func (r *Registry) Dump(name string, w io.Writer) (int, error) {
	if r.isClosed() {
		return 0, errors.FileNotOpen
	}
	store, err := r.stores.Acquire(name)
	if err != nil {
		return 0, errors.CannotOpenFileError{Name: name, Err: err}
	}
	count, err := dump.Write(w, store)
	if releaseErr := r.stores.Release(store); err == nil {
		err = releaseErr
	}
	return count, err
}

// Restore recreates name from a stream produced by Dump, replacing any
// existing file that is not currently open.
func (r *Registry) Restore(name string, src io.Reader) (int, error) {
	if r.isClosed() {
		return 0, errors.FileNotOpen
	}
	count, err := dump.Restore(src, r.stores, name)
	if err != nil {
		r.log.Error(err, "Failed restoring file", "name", name)
		return count, err
	}
	r.log.Info("Restored file", "name", name, "records", count)
	return count, nil
}

// Lookup returns the session identified by token.
func (r *Registry) Lookup(token Token) (Engine, error) {
	e, ok := r.engines.Load(token)
	if !ok {
		return nil, errors.UnknownPositionBlockError{Token: token}
	}
	return e, nil
}

// Close disposes the session identified by token.
func (r *Registry) Close(token Token) error {
	defer metrics.Measure(metrics.RegistryCloseLatency)()

	e, ok := r.engines.Remove(token)
	if !ok {
		return errors.UnknownPositionBlockError{Token: token}
	}
	r.log.Debug("Closing file", "name", e.name, "token", token.String())
	metrics.Simple(metrics.RegistryOpenEngines, float64(r.engines.Len()))
	return e.Close()
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Shutdown closes every open session and file, and releases the data
// directory.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	start := time.Now()
	for token := range r.engines.Keys() {
		if err := r.Close(token); err != nil {
			r.log.Error(err, "Failed closing session", "token", token.String())
		}
	}
	if err := r.stores.Close(); err != nil {
		return err
	}
	r.log.Info("Registry shut down", "elapsed", time.Since(start).String())
	return r.lock.release()
}
