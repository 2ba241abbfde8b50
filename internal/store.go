package internal

import (
	"bytes"
	"slices"
	"sync"

	"github.com/go-stdlog/stdlog"

	"github.com/heyvito/btrieve/errors"
	"github.com/heyvito/btrieve/internal/metrics"
)

// Store holds the records of a single file along with one KeyIndex per key.
// It is shared by every session opened against the same file, and all
// exported methods are safe for concurrent use: readers share the store,
// writers hold it exclusively for the whole operation.
type Store struct {
	Path   string
	Schema *Schema

	log     stdlog.Logger
	mu      sync.RWMutex
	file    *DataFile
	records map[uint32][]byte
	offsets []uint32
	indexes []*KeyIndex
	refs    int
}

// NewStore builds a Store over an open DataFile, loading every live record and
// indexing it.
func NewStore(file *DataFile, log stdlog.Logger) (*Store, error) {
	s := &Store{
		Path:    file.Path,
		Schema:  file.Schema,
		log:     log,
		file:    file,
		records: map[uint32][]byte{},
	}
	for _, k := range file.Schema.Keys {
		s.indexes = append(s.indexes, NewKeyIndex(k))
	}
	err := file.Load(func(offset uint32, record []byte) error {
		for _, idx := range s.indexes {
			if err := idx.Insert(offset, record); err != nil {
				return err
			}
		}
		s.records[offset] = record
		s.offsets = append(s.offsets, offset)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug("Store loaded", "path", s.Path, "records", len(s.offsets))
	return s, nil
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offsets)
}

// Entry is a record along with its physical offset. Key holds the value of
// the key the record was reached through, when looked up by key.
type Entry struct {
	Offset uint32
	Key    []byte
	Data   []byte
}

// entry copies the record under offset into an Entry. s.mu must be held.
func (s *Store) entry(offset uint32, key []byte, ok bool) (Entry, bool) {
	if !ok {
		return Entry{}, false
	}
	rec, ok := s.records[offset]
	if !ok {
		return Entry{}, false
	}
	return Entry{Offset: offset, Key: key, Data: bytes.Clone(rec)}, true
}

// Record returns a copy of the record stored under offset.
func (s *Store) Record(offset uint32) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[offset]
	if !ok {
		return nil, false
	}
	return bytes.Clone(rec), true
}

// KeyValue returns the value of key number held by the record stored under
// offset.
func (s *Store) KeyValue(offset uint32, number int) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[offset]
	if !ok {
		return nil, false
	}
	return s.Schema.Keys[number].Extract(rec), true
}

// KeyedRecord returns the record stored under offset along with its value
// for key number.
func (s *Store) KeyedRecord(offset uint32, number int) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[offset]
	if !ok {
		return Entry{}, false
	}
	return s.entry(offset, s.Schema.Keys[number].Extract(rec), true)
}

// First returns the lowest live offset.
func (s *Store) First() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.first()
}

func (s *Store) first() (uint32, bool) {
	if len(s.offsets) == 0 {
		return 0, false
	}
	return s.offsets[0], true
}

// FirstRecord returns the record under the lowest live offset.
func (s *Store) FirstRecord() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offset, ok := s.first()
	return s.entry(offset, nil, ok)
}

// Last returns the highest live offset.
func (s *Store) Last() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last()
}

func (s *Store) last() (uint32, bool) {
	if len(s.offsets) == 0 {
		return 0, false
	}
	return s.offsets[len(s.offsets)-1], true
}

func (s *Store) LastRecord() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offset, ok := s.last()
	return s.entry(offset, nil, ok)
}

// Next returns the lowest live offset greater than offset. offset itself does
// not need to be live.
func (s *Store) Next(offset uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next(offset)
}

func (s *Store) next(offset uint32) (uint32, bool) {
	i, found := slices.BinarySearch(s.offsets, offset)
	if found {
		i++
	}
	if i >= len(s.offsets) {
		return 0, false
	}
	return s.offsets[i], true
}

// NextRecord returns the record under the lowest live offset greater than
// offset.
func (s *Store) NextRecord(offset uint32) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next, ok := s.next(offset)
	return s.entry(next, nil, ok)
}

// Previous returns the highest live offset lower than offset.
func (s *Store) Previous(offset uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous(offset)
}

func (s *Store) previous(offset uint32) (uint32, bool) {
	i, _ := slices.BinarySearch(s.offsets, offset)
	if i == 0 {
		return 0, false
	}
	return s.offsets[i-1], true
}

func (s *Store) PreviousRecord(offset uint32) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	previous, ok := s.previous(offset)
	return s.entry(previous, nil, ok)
}

// Position returns the 1-based ordinal of offset among live records.
func (s *Store) Position(offset uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, found := slices.BinarySearch(s.offsets, offset)
	if !found {
		return 0, false
	}
	return uint32(i + 1), true
}

// Find looks up probe on key number using op, returning the matching offset
// and its key value.
func (s *Store) Find(number int, probe []byte, op Operator) (uint32, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[number].Find(probe, op)
}

// FindRecord is Find returning the matching record as well.
func (s *Store) FindRecord(number int, probe []byte, op Operator) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry(s.indexes[number].Find(probe, op))
}

// Step moves from the anchor (key, offset) on key number, forward when
// forward is set, backwards otherwise.
func (s *Store) Step(number int, key []byte, offset uint32, forward bool) (uint32, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step(number, key, offset, forward)
}

func (s *Store) step(number int, key []byte, offset uint32, forward bool) (uint32, []byte, bool) {
	if forward {
		return s.indexes[number].After(key, offset)
	}
	return s.indexes[number].Before(key, offset)
}

// StepRecord is Step returning the record reached as well.
func (s *Store) StepRecord(number int, key []byte, offset uint32, forward bool) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry(s.step(number, key, offset, forward))
}

// Insert validates record against every key, assigns AutoInc values and
// stores it under a new physical offset. Nothing is modified in case any
// check fails. Returns the new offset and the stored bytes.
func (s *Store) Insert(record []byte) (uint32, []byte, error) {
	return s.insert(record, true)
}

// Restore stores record as is, keeping the AutoInc values it carries. Used
// when importing records from another file.
func (s *Store) Restore(record []byte) (uint32, error) {
	offset, _, err := s.insert(record, false)
	return offset, err
}

func (s *Store) insert(record []byte, autoInc bool) (uint32, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer metrics.Measure(metrics.StoreInsertLatency)()

	if len(record) < s.Schema.RecordLength {
		metrics.Simple(metrics.StoreInsertFailures, 1)
		return 0, nil, errors.DataBufferTooShortError{Required: s.Schema.RecordLength, Provided: len(record)}
	}
	rec := bytes.Clone(record[:s.Schema.RecordLength])
	if autoInc {
		s.assignAutoInc(rec)
	}

	for _, idx := range s.indexes {
		if idx.Conflicts(0, rec) {
			metrics.Simple(metrics.StoreInsertFailures, 1)
			return 0, nil, errors.DuplicateKeyError{KeyNumber: idx.Key.Number}
		}
	}

	offset, err := s.file.Allocate()
	if err != nil {
		metrics.Simple(metrics.StoreInsertFailures, 1)
		return 0, nil, err
	}
	s.file.Write(offset, rec)
	for _, idx := range s.indexes {
		// Conflicts were ruled out above.
		_ = idx.Insert(offset, rec)
	}
	s.records[offset] = rec
	s.offsets = append(s.offsets, offset)
	metrics.Simple(metrics.StoreRecordCount, float64(len(s.offsets)))
	return offset, bytes.Clone(rec), nil
}

func (s *Store) assignAutoInc(rec []byte) {
	for _, idx := range s.indexes {
		if !idx.Key.IsAutoInc() {
			continue
		}
		seg := idx.Key.Segments[0]
		next := int64(1)
		if _, last, ok := idx.Find(nil, OpLast); ok {
			next = DecodeSigned(last) + 1
		}
		EncodeSigned(rec[seg.Offset:seg.Offset+seg.Length], next)
	}
}

// Update replaces the record stored under offset. Keys lacking Modifiable
// must keep their values, and unique keys must remain unique. The stored
// record is left untouched in case any check fails.
func (s *Store) Update(offset uint32, record []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer metrics.Measure(metrics.StoreUpdateLatency)()

	old, ok := s.records[offset]
	if !ok {
		metrics.Simple(metrics.StoreUpdateFailures, 1)
		return nil, errors.InvalidPositioning
	}
	if len(record) < s.Schema.RecordLength {
		metrics.Simple(metrics.StoreUpdateFailures, 1)
		return nil, errors.DataBufferTooShortError{Required: s.Schema.RecordLength, Provided: len(record)}
	}
	rec := bytes.Clone(record[:s.Schema.RecordLength])

	for _, idx := range s.indexes {
		k := idx.Key
		if k.Modifiable() || k.Compare(k.Extract(old), k.Extract(rec)) == 0 {
			continue
		}
		metrics.Simple(metrics.StoreUpdateFailures, 1)
		return nil, errors.NonModifiableKeyError{KeyNumber: k.Number}
	}
	for _, idx := range s.indexes {
		if idx.Conflicts(offset, rec) {
			metrics.Simple(metrics.StoreUpdateFailures, 1)
			return nil, errors.DuplicateKeyError{KeyNumber: idx.Key.Number}
		}
	}

	for _, idx := range s.indexes {
		idx.Remove(offset, old)
		_ = idx.Insert(offset, rec)
	}
	s.file.Write(offset, rec)
	s.records[offset] = rec
	return bytes.Clone(rec), nil
}

// Delete removes the record stored under offset.
func (s *Store) Delete(offset uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer metrics.Measure(metrics.StoreDeleteLatency)()

	rec, ok := s.records[offset]
	if !ok {
		return errors.InvalidPositioning
	}
	for _, idx := range s.indexes {
		idx.Remove(offset, rec)
	}
	s.file.Clear(offset)
	delete(s.records, offset)
	if i, found := slices.BinarySearch(s.offsets, offset); found {
		s.offsets = slices.Delete(s.offsets, i, i+1)
	}
	metrics.Simple(metrics.StoreRecordCount, float64(len(s.offsets)))
	return nil
}

// Stat renders the FileSpec and KeySpecs describing this store.
func (s *Store) Stat() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unique := make([]uint32, len(s.indexes))
	for i, idx := range s.indexes {
		unique[i] = idx.UniqueValues()
	}
	return EncodeStat(s.Schema, uint32(len(s.offsets)), unique)
}

// Each invokes fn for every live record in offset order, until fn returns
// false.
func (s *Store) Each(fn func(offset uint32, record []byte) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, offset := range s.offsets {
		if !fn(offset, bytes.Clone(s.records[offset])) {
			return
		}
	}
}

func (s *Store) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
