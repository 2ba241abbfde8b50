package btrieve

import (
	"github.com/go-stdlog/stdlog"

	"github.com/heyvito/btrieve/errors"
	"github.com/heyvito/btrieve/internal"
)

// Engine is a single open session against a file. Sessions opened against the
// same file share its records, while each keeps its own cursor. An Engine is
// not safe for concurrent use.
type Engine interface {
	// Schema returns the layout of records held by the file.
	Schema() *Schema

	// RecordCount returns the amount of live records in the file.
	RecordCount() int

	// StepFirst, StepLast, StepNext and StepPrevious move the cursor in
	// physical offset order. They fail with errors.InvalidPositioning when
	// the file is empty, when the cursor was never positioned, or when the
	// move exceeds the file bounds. Stepping drops the logical currency.
	StepFirst() (*Record, error)
	StepLast() (*Record, error)
	StepNext() (*Record, error)
	StepPrevious() (*Record, error)

	// Seek looks up a record through a key. When newQuery is set, or when op
	// is neither Next nor Previous, a new query is started from value.
	// Otherwise, the active query continues from its last record, forward
	// for Next and backwards for Previous. On failure the cursor is left
	// unchanged.
	Seek(keyNumber int, value []byte, op Operator, newQuery bool) (*Record, error)

	// GetRecord returns the record under the cursor.
	GetRecord() (*Record, error)

	// GetRecordAt returns the record under a physical offset without moving
	// the cursor.
	GetRecordAt(offset uint32) (*Record, error)

	// Insert stores a new record, returning it along with the value of key
	// zero. keyBufferLength is the size of the buffer receiving that value.
	// The cursor moves to the new record.
	Insert(data []byte, keyBufferLength int) (*Record, error)

	// Update replaces the record under the cursor, keeping its physical
	// offset. As with Insert, keyBufferLength must be able to hold key zero.
	// The returned record carries the value of key keyNumber, or key zero
	// when keyNumber is negative.
	Update(data []byte, keyNumber int, keyBufferLength int) (*Record, error)

	// Delete removes the record under the cursor.
	Delete() error

	// GetPosition returns the 1-based ordinal of the cursor among live
	// records in physical offset order.
	GetPosition() (uint32, error)

	// GetDirect moves the cursor to a physical offset, establishing logical
	// currency on keyNumber.
	GetDirect(offset uint32, keyNumber int) (*Record, error)

	// Stat returns the FileSpec of the file followed by one KeySpec per key
	// segment.
	Stat() []byte

	// Close releases the session. Further calls to the engine are invalid.
	Close() error
}

type engine struct {
	name    string
	store   *internal.Store
	release func(*internal.Store) error
	log     stdlog.Logger
	cursor  cursor
}

func (e *engine) Schema() *Schema { return e.store.Schema }

func (e *engine) RecordCount() int { return e.store.Count() }

func (e *engine) key(number int) (*internal.Key, error) {
	k, ok := e.store.Schema.Key(number)
	if !ok {
		return nil, errors.InvalidKeyNumberError{KeyNumber: number}
	}
	return k, nil
}

func (e *engine) step(entry internal.Entry, ok bool) (*Record, error) {
	if !ok {
		return nil, errors.InvalidPositioning
	}
	e.cursor.moveTo(entry.Offset)
	return &Record{Offset: entry.Offset, Data: entry.Data}, nil
}

func (e *engine) StepFirst() (*Record, error) {
	return e.step(e.store.FirstRecord())
}

func (e *engine) StepLast() (*Record, error) {
	return e.step(e.store.LastRecord())
}

func (e *engine) StepNext() (*Record, error) {
	if e.cursor.offset == 0 {
		return nil, errors.InvalidPositioning
	}
	return e.step(e.store.NextRecord(e.cursor.offset))
}

func (e *engine) StepPrevious() (*Record, error) {
	if e.cursor.offset == 0 {
		return nil, errors.InvalidPositioning
	}
	return e.step(e.store.PreviousRecord(e.cursor.offset))
}

func (e *engine) Seek(keyNumber int, value []byte, op Operator, newQuery bool) (*Record, error) {
	if op == Next || op == Previous {
		return e.continueQuery(keyNumber, op == Next)
	}
	if !newQuery && e.cursor.query != nil {
		forward := op != LessThan && op != LessOrEqual && op != Last
		return e.continueQuery(keyNumber, forward)
	}

	k, err := e.key(keyNumber)
	if err != nil {
		return nil, err
	}
	entry, ok := e.store.FindRecord(keyNumber, value, op)
	if !ok {
		return nil, errors.KeyValueNotFound
	}
	e.log.Debug("Seek", "key", keyNumber, "operator", op.String(), "offset", entry.Offset)
	return e.currencyAt(&query{keyNumber: keyNumber, key: k, operator: op}, entry), nil
}

func (e *engine) continueQuery(keyNumber int, forward bool) (*Record, error) {
	q := e.cursor.query
	if q == nil {
		return nil, errors.InvalidPositioning
	}
	if keyNumber >= 0 && keyNumber != q.keyNumber {
		return nil, errors.DifferentKeyNumber
	}
	entry, ok := e.store.StepRecord(q.keyNumber, q.anchorKey, q.anchorOffset, forward)
	if !ok {
		return nil, errors.KeyValueNotFound
	}
	next := *q
	return e.currencyAt(&next, entry), nil
}

// currencyAt anchors q on entry.
func (e *engine) currencyAt(q *query, entry internal.Entry) *Record {
	e.cursor.anchor(q, entry.Offset, entry.Key)
	return &Record{Offset: entry.Offset, Data: entry.Data, Key: q.key.Echo(entry.Data)}
}

func (e *engine) GetRecord() (*Record, error) {
	if e.cursor.offset == 0 {
		return nil, errors.InvalidPositioning
	}
	return e.GetRecordAt(e.cursor.offset)
}

func (e *engine) GetRecordAt(offset uint32) (*Record, error) {
	data, ok := e.store.Record(offset)
	if !ok {
		return nil, errors.InvalidPositioning
	}
	return &Record{Offset: offset, Data: data}, nil
}

// echoKey returns the key echoed by Insert and Update. The caller's key buffer
// must be able to hold key zero, whichever key ends up echoed.
func (e *engine) echoKey(keyNumber, keyBufferLength int) (*internal.Key, error) {
	if len(e.store.Schema.Keys) == 0 {
		return nil, nil
	}
	primary, err := e.key(0)
	if err != nil {
		return nil, err
	}
	if keyBufferLength < primary.Length() {
		return nil, errors.KeyBufferTooShortError{Required: primary.Length(), Provided: keyBufferLength}
	}
	if keyNumber <= 0 {
		return primary, nil
	}
	return e.key(keyNumber)
}

func (e *engine) Insert(data []byte, keyBufferLength int) (*Record, error) {
	k, err := e.echoKey(0, keyBufferLength)
	if err != nil {
		return nil, err
	}
	offset, stored, err := e.store.Insert(data)
	if err != nil {
		return nil, err
	}
	rec := &Record{Offset: offset, Data: stored}
	if k == nil {
		e.cursor.moveTo(offset)
		return rec, nil
	}
	rec.Key = k.Echo(stored)
	e.cursor.anchor(&query{keyNumber: k.Number, key: k, operator: Equal}, offset, k.Extract(stored))
	e.log.Debug("Inserted record", "offset", offset)
	return rec, nil
}

func (e *engine) Update(data []byte, keyNumber int, keyBufferLength int) (*Record, error) {
	if e.cursor.offset == 0 {
		return nil, errors.InvalidPositioning
	}
	k, err := e.echoKey(keyNumber, keyBufferLength)
	if err != nil {
		return nil, err
	}
	offset := e.cursor.offset
	stored, err := e.store.Update(offset, data)
	if err != nil {
		return nil, err
	}
	if q := e.cursor.query; q != nil && q.anchorOffset == offset {
		q.anchorKey = q.key.Extract(stored)
	}
	rec := &Record{Offset: offset, Data: stored}
	if k != nil {
		rec.Key = k.Echo(stored)
	}
	return rec, nil
}

func (e *engine) Delete() error {
	if e.cursor.offset == 0 {
		return errors.InvalidPositioning
	}
	if err := e.store.Delete(e.cursor.offset); err != nil {
		return err
	}
	e.log.Debug("Deleted record", "offset", e.cursor.offset)
	return nil
}

func (e *engine) GetPosition() (uint32, error) {
	if e.cursor.offset == 0 {
		return 0, errors.InvalidPositioning
	}
	pos, ok := e.store.Position(e.cursor.offset)
	if !ok {
		return 0, errors.InvalidPositioning
	}
	return pos, nil
}

func (e *engine) GetDirect(offset uint32, keyNumber int) (*Record, error) {
	if keyNumber == -1 {
		return nil, errors.InvalidPositioning
	}
	k, err := e.key(keyNumber)
	if err != nil {
		return nil, err
	}
	entry, ok := e.store.KeyedRecord(offset, keyNumber)
	if !ok {
		return nil, errors.InvalidPositioning
	}
	return e.currencyAt(&query{keyNumber: keyNumber, key: k, operator: Equal}, entry), nil
}

func (e *engine) Stat() []byte { return e.store.Stat() }

func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	e.cursor.reset()
	err := e.release(e.store)
	e.store = nil
	return err
}
