// Package dump implements a portable, snappy-compressed representation of a
// file's layout and records, used to move data between data directories.
//
// A dump is a snappy framed stream holding:
//
//	magic "MBDUMP" | version u16 | stat length u16 | stat bytes
//	repeated: physical offset u32 | record bytes
//
// The stat bytes hold the FileSpec and KeySpecs of the file, and determine the
// length of every record that follows.
package dump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"github.com/heyvito/btrieve/internal"
)

var le = binary.LittleEndian

const (
	magic   = "MBDUMP"
	version = 1
)

// Source is a file whose contents can be dumped.
type Source interface {
	Stat() []byte
	Each(fn func(offset uint32, record []byte) bool)
}

// Write streams every record of src into w, returning the amount of records
// written.
func Write(w io.Writer, src Source) (int, error) {
	out := snappy.NewBufferedWriter(w)
	stat := src.Stat()

	header := make([]byte, 0, len(magic)+4+len(stat))
	header = append(header, magic...)
	header = le.AppendUint16(header, version)
	header = le.AppendUint16(header, uint16(len(stat)))
	header = append(header, stat...)
	if _, err := out.Write(header); err != nil {
		return 0, err
	}

	var err error
	count := 0
	offset := make([]byte, 4)
	src.Each(func(off uint32, record []byte) bool {
		le.PutUint32(offset, off)
		if _, err = out.Write(offset); err != nil {
			return false
		}
		if _, err = out.Write(record); err != nil {
			return false
		}
		count++
		return true
	})
	if err != nil {
		return count, err
	}
	return count, out.Close()
}

// Reader reads records from a dump.
type Reader struct {
	Schema *internal.Schema

	r   io.Reader
	buf []byte
}

// NewReader reads the header of the dump held by r.
func NewReader(r io.Reader) (*Reader, error) {
	in := snappy.NewReader(r)
	header := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(in, header); err != nil {
		return nil, fmt.Errorf("reading dump header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], []byte(magic)) {
		return nil, fmt.Errorf("not a dump stream")
	}
	if v := le.Uint16(header[len(magic):]); v != version {
		return nil, fmt.Errorf("unsupported dump version %d", v)
	}

	stat := make([]byte, le.Uint16(header[len(magic)+2:]))
	if _, err := io.ReadFull(in, stat); err != nil {
		return nil, fmt.Errorf("reading dump schema: %w", err)
	}
	schema, err := internal.DecodeStat(stat)
	if err != nil {
		return nil, err
	}
	return &Reader{
		Schema: schema,
		r:      in,
		buf:    make([]byte, 4+schema.RecordLength),
	}, nil
}

// Next returns the next record and the physical offset it was dumped from.
// Returns io.EOF once every record has been read.
func (r *Reader) Next() (uint32, []byte, error) {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, nil, fmt.Errorf("truncated dump record")
		}
		return 0, nil, err
	}
	return le.Uint32(r.buf), bytes.Clone(r.buf[4:]), nil
}

// Restore creates name through m using the layout held by the dump, and
// stores every record it contains. AutoInc values are kept, while records are
// assigned new physical offsets in the order they were dumped.
func Restore(r io.Reader, m *internal.StoreManager, name string) (int, error) {
	dump, err := NewReader(r)
	if err != nil {
		return 0, err
	}
	if _, err = m.Create(name, dump.Schema); err != nil {
		return 0, err
	}
	store, err := m.Acquire(name)
	if err != nil {
		return 0, err
	}

	count := 0
	for {
		_, record, err := dump.Next()
		if err == io.EOF {
			break
		}
		if err == nil {
			_, err = store.Restore(record)
		}
		if err != nil {
			_ = m.Release(store)
			return count, err
		}
		count++
	}
	return count, m.Release(store)
}
