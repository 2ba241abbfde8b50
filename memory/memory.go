// Package memory provides the segmented view of guest memory used by the
// interrupt handlers. Addresses are expressed as segment:offset pairs, as seen
// by 16-bit guest programs.
package memory

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
)

var le = binary.LittleEndian

// FarPtr is a segment:offset address.
type FarPtr struct {
	Segment uint16
	Offset  uint16
}

func NewFarPtr(segment, offset uint16) FarPtr {
	return FarPtr{Segment: segment, Offset: offset}
}

// Add returns the pointer n bytes after p, wrapping within the segment.
func (p FarPtr) Add(n int) FarPtr {
	return FarPtr{Segment: p.Segment, Offset: p.Offset + uint16(n)}
}

func (p FarPtr) IsNull() bool { return p.Segment == 0 && p.Offset == 0 }

func (p FarPtr) String() string { return fmt.Sprintf("%04X:%04X", p.Segment, p.Offset) }

// Core is the guest memory service.
type Core interface {
	GetByte(p FarPtr) byte
	GetWord(p FarPtr) uint16
	GetDWord(p FarPtr) uint32

	// GetArray returns a copy of count bytes starting at p.
	GetArray(p FarPtr, count int) []byte

	// GetString returns the bytes starting at p up to, and excluding, the
	// first NUL. At most max bytes are read.
	GetString(p FarPtr, max int) []byte

	SetByte(p FarPtr, v byte)
	SetWord(p FarPtr, v uint16)
	SetDWord(p FarPtr, v uint32)
	SetArray(p FarPtr, data []byte)

	// Malloc reserves size bytes, returning a pointer with a zero offset.
	Malloc(size int) (FarPtr, error)

	// Free releases a block obtained through Malloc.
	Free(p FarPtr) error
}

const (
	// RealModeSize covers the whole real mode address space, including the
	// area reachable past 1MiB through segment FFFF.
	RealModeSize = 0x10FFF0
	paragraph    = 16
)

type block struct {
	start int
	size  int
}

// RealMode implements Core over a flat real mode address space, where the
// linear address of segment:offset is segment*16+offset. Allocations are
// paragraph-aligned and served first-fit from the heap region passed to
// NewRealMode. Accesses running past the top of the address space wrap around
// to linear address zero. RealMode is safe for concurrent use.
type RealMode struct {
	mu        sync.Mutex
	data      []byte
	heapStart int
	heapEnd   int
	used      []block
}

// NewRealMode creates a zeroed address space whose allocator serves the
// linear range [heapStart, heapEnd).
func NewRealMode(heapStart, heapEnd int) (*RealMode, error) {
	if heapStart%paragraph != 0 || heapStart < 0 || heapEnd > RealModeSize || heapStart >= heapEnd {
		return nil, fmt.Errorf("invalid heap range %#x-%#x", heapStart, heapEnd)
	}
	return &RealMode{
		data:      make([]byte, RealModeSize),
		heapStart: heapStart,
		heapEnd:   heapEnd,
	}, nil
}

func linear(p FarPtr) int { return int(p.Segment)<<4 + int(p.Offset) }

// read copies count bytes starting at p. Accesses running past the end of the
// address space wrap around to its start.
func (m *RealMode) read(p FarPtr, count int) []byte {
	out := make([]byte, max(count, 0))
	a := linear(p)
	n := copy(out, m.data[a:])
	for n < len(out) {
		n += copy(out[n:], m.data)
	}
	return out
}

// write stores data starting at p, wrapping around like read.
func (m *RealMode) write(p FarPtr, data []byte) {
	a := linear(p)
	n := copy(m.data[a:], data)
	for n < len(data) {
		n += copy(m.data, data[n:])
	}
}

func (m *RealMode) GetByte(p FarPtr) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[linear(p)]
}

func (m *RealMode) GetWord(p FarPtr) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return le.Uint16(m.read(p, 2))
}

func (m *RealMode) GetDWord(p FarPtr) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return le.Uint32(m.read(p, 4))
}

func (m *RealMode) GetArray(p FarPtr, count int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(p, count)
}

func (m *RealMode) GetString(p FarPtr, max int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.read(p, max)
	if i := slices.Index(data, 0); i >= 0 {
		data = data[:i]
	}
	return data
}

func (m *RealMode) SetByte(p FarPtr, v byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[linear(p)] = v
}

func (m *RealMode) SetWord(p FarPtr, v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(p, le.AppendUint16(nil, v))
}

func (m *RealMode) SetDWord(p FarPtr, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(p, le.AppendUint32(nil, v))
}

func (m *RealMode) SetArray(p FarPtr, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(p, data)
}

func (m *RealMode) Malloc(size int) (FarPtr, error) {
	if size <= 0 || size > 0x10000 {
		return FarPtr{}, fmt.Errorf("invalid allocation size %d", size)
	}
	size = (size + paragraph - 1) / paragraph * paragraph

	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.heapStart
	at := 0
	for i, b := range m.used {
		if b.start-start >= size {
			break
		}
		start = b.start + b.size
		at = i + 1
	}
	if start+size > m.heapEnd {
		return FarPtr{}, fmt.Errorf("out of memory allocating %d bytes", size)
	}
	m.used = slices.Insert(m.used, at, block{start: start, size: size})
	clear(m.data[start : start+size])
	return FarPtr{Segment: uint16(start >> 4)}, nil
}

func (m *RealMode) Free(p FarPtr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := linear(p)
	i := slices.IndexFunc(m.used, func(b block) bool { return b.start == a })
	if i < 0 {
		return fmt.Errorf("%s: not an allocated block", p)
	}
	m.used = slices.Delete(m.used, i, i+1)
	return nil
}
