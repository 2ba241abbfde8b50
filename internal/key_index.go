package internal

import (
	"cmp"

	"github.com/heyvito/btrieve/errors"
	"github.com/heyvito/btrieve/internal/metrics"
)

type indexEntry struct {
	offset uint32
	record []byte
	key    []byte
}

// KeyIndex orders the live records of a file by the value of a single key.
// Entries holding equal values are ordered by ascending physical offset.
type KeyIndex struct {
	Key  *Key
	list *SkipList[*indexEntry]
}

func NewKeyIndex(key *Key) *KeyIndex {
	idx := &KeyIndex{Key: key}
	idx.list = NewSkipList(idx.compare)
	return idx
}

func (i *KeyIndex) compare(a, b *indexEntry) int {
	if c := i.Key.Compare(a.key, b.key); c != 0 {
		return c
	}
	return cmp.Compare(a.offset, b.offset)
}

func (i *KeyIndex) Len() int { return i.list.Len() }

func (i *KeyIndex) entry(offset uint32, record []byte) *indexEntry {
	return &indexEntry{offset: offset, record: record, key: i.Key.Extract(record)}
}

// Conflicts reports whether storing record under offset would violate the
// uniqueness of this key.
func (i *KeyIndex) Conflicts(offset uint32, record []byte) bool {
	if i.Key.AllowDuplicates() || i.Key.IsNull(record) {
		return false
	}
	key := i.Key.Extract(record)
	it := i.list.Iterator()
	it.SeekFirstWhere(func(e *indexEntry) bool { return i.Key.Compare(e.key, key) < 0 })
	for ; it.Valid() && i.Key.Compare(it.Value().key, key) == 0; it.Next() {
		if it.Value().offset != offset {
			return true
		}
	}
	return false
}

// Insert indexes record under offset. Returns a DuplicateKeyError in case the
// key does not accept duplicates and its value is already in use.
func (i *KeyIndex) Insert(offset uint32, record []byte) error {
	if i.Key.IsNull(record) {
		return nil
	}
	if i.Conflicts(offset, record) {
		return errors.DuplicateKeyError{KeyNumber: i.Key.Number}
	}
	i.list.Insert(i.entry(offset, record))
	return nil
}

// Remove drops the entry for record stored under offset. record must hold the
// bytes it was indexed with.
func (i *KeyIndex) Remove(offset uint32, record []byte) bool {
	if i.Key.IsNull(record) {
		return false
	}
	return i.list.Delete(i.entry(offset, record))
}

// Find returns the offset of the record matching probe under op, along with
// its key value. op must not be OpNext or OpPrevious.
func (i *KeyIndex) Find(probe []byte, op Operator) (uint32, []byte, bool) {
	defer metrics.Measure(metrics.KeyIndexFindLatency)()

	if !i.Key.orderedProbe(probe) {
		return i.scan(probe, op)
	}

	rel := func(e *indexEntry) int { return i.Key.CompareProbe(e.record, probe) }
	it := i.list.Iterator()
	switch op {
	case OpEqual:
		it.SeekFirstWhere(func(e *indexEntry) bool { return rel(e) < 0 })
		if it.Valid() && rel(it.Value()) != 0 {
			return 0, nil, false
		}
	case OpGreaterOrEqual:
		it.SeekFirstWhere(func(e *indexEntry) bool { return rel(e) < 0 })
	case OpGreaterThan:
		it.SeekFirstWhere(func(e *indexEntry) bool { return rel(e) <= 0 })
	case OpLessThan:
		it.SeekLastWhere(func(e *indexEntry) bool { return rel(e) < 0 })
	case OpLessOrEqual:
		it.SeekLastWhere(func(e *indexEntry) bool { return rel(e) <= 0 })
	case OpFirst:
		it.SeekToFirst()
	case OpLast:
		it.SeekToLast()
	default:
		return 0, nil, false
	}
	return result(it)
}

// scan evaluates op against every entry. Used when the probe ordering does
// not follow the index ordering.
func (i *KeyIndex) scan(probe []byte, op Operator) (uint32, []byte, bool) {
	var found *indexEntry
	it := i.list.Iterator()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		e := it.Value()
		c := i.Key.CompareProbe(e.record, probe)
		switch op {
		case OpEqual:
			if c == 0 {
				return e.offset, e.key, true
			}
		case OpGreaterOrEqual:
			if c >= 0 {
				return e.offset, e.key, true
			}
		case OpGreaterThan:
			if c > 0 {
				return e.offset, e.key, true
			}
		case OpLessThan:
			if c < 0 {
				found = e
			}
		case OpLessOrEqual:
			if c <= 0 {
				found = e
			}
		case OpFirst:
			return e.offset, e.key, true
		case OpLast:
			found = e
		}
	}
	if found == nil {
		return 0, nil, false
	}
	return found.offset, found.key, true
}

// After returns the first entry positioned after the anchor (key, offset).
// The anchor does not need to be present in the index.
func (i *KeyIndex) After(key []byte, offset uint32) (uint32, []byte, bool) {
	anchor := &indexEntry{offset: offset, key: key}
	it := i.list.Iterator()
	it.SeekFirstWhere(func(e *indexEntry) bool { return i.compare(e, anchor) <= 0 })
	return result(it)
}

// Before returns the last entry positioned before the anchor (key, offset).
func (i *KeyIndex) Before(key []byte, offset uint32) (uint32, []byte, bool) {
	anchor := &indexEntry{offset: offset, key: key}
	it := i.list.Iterator()
	it.SeekLastWhere(func(e *indexEntry) bool { return i.compare(e, anchor) < 0 })
	return result(it)
}

// UniqueValues returns the amount of distinct key values currently indexed.
func (i *KeyIndex) UniqueValues() uint32 {
	if !i.Key.AllowDuplicates() {
		return uint32(i.list.Len())
	}
	var count uint32
	var last []byte
	it := i.list.Iterator()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if last == nil || i.Key.Compare(last, it.Value().key) != 0 {
			count++
			last = it.Value().key
		}
	}
	return count
}

func result(it *SkipListIterator[*indexEntry]) (uint32, []byte, bool) {
	if !it.Valid() {
		return 0, nil, false
	}
	e := it.Value()
	return e.offset, e.key, true
}
