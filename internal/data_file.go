package internal

import (
	"bytes"
	"fmt"
	"os"

	"github.com/heyvito/gommap"
	"github.com/spaolacci/murmur3"

	"github.com/heyvito/btrieve/internal/metrics"
)

// DataFile is the memory-mapped backing store of a single .DB file. It holds
// a header, the key segment table, and a slot for every physical offset ever
// assigned. DataFile is not safe for concurrent use; Store serialises access
// to it.
type DataFile struct {
	Path   string
	File   *os.File
	Schema *Schema

	NextOffset  uint32
	RecordCount uint32
	Capacity    uint32

	slotSize  int
	dataStart int

	RawData gommap.MMap
	Header  gommap.MMap
	Slots   gommap.MMap
}

func dataStartFor(schema *Schema) int {
	return NextMultiple(dataFileHeaderSize+segmentDescriptorSize*len(schema.Segments()), dataPageAlignment)
}

// CreateDataFile creates a new, empty .DB file at path. Fails in case path
// already exists.
func CreateDataFile(path string, schema *Schema, capacity int) (*DataFile, error) {
	if capacity <= 0 {
		capacity = 1
	}
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}

	f := &DataFile{
		Path:       path,
		File:       fd,
		Schema:     schema,
		NextOffset: 1,
		Capacity:   uint32(capacity),
		slotSize:   slotHeaderSize + schema.RecordLength,
		dataStart:  dataStartFor(schema),
	}

	if err = fd.Truncate(f.fileSize()); err != nil {
		_ = fd.Close()
		_ = os.Remove(path)
		return nil, err
	}
	if err = f.mmap(); err != nil {
		_ = fd.Close()
		_ = os.Remove(path)
		return nil, err
	}

	copy(f.Header[dataFileHeaderOffsets.Magic:], dataFileMagic)
	le.PutUint16(f.Header[dataFileHeaderOffsets.Version:], dataFileVersion)
	le.PutUint16(f.Header[dataFileHeaderOffsets.RecordLength:], uint16(schema.RecordLength))
	le.PutUint16(f.Header[dataFileHeaderOffsets.PageSize:], uint16(schema.PageSize))

	segments := schema.Segments()
	le.PutUint16(f.Header[dataFileHeaderOffsets.SegmentCount:], uint16(len(segments)))
	table := f.RawData[dataFileHeaderSize : dataFileHeaderSize+segmentDescriptorSize*len(segments)]
	for i, seg := range segments {
		d := table[i*segmentDescriptorSize:]
		le.PutUint16(d[segmentDescriptorOffsets.Number:], uint16(seg.Number))
		le.PutUint16(d[segmentDescriptorOffsets.Offset:], seg.Offset)
		le.PutUint16(d[segmentDescriptorOffsets.Length:], seg.Length)
		le.PutUint16(d[segmentDescriptorOffsets.Attributes:], uint16(seg.Attributes))
		d[segmentDescriptorOffsets.DataType] = byte(seg.DataType)
		d[segmentDescriptorOffsets.NullValue] = seg.NullValue
	}
	le.PutUint32(f.Header[dataFileHeaderOffsets.SchemaChecksum:], murmur3.Sum32(table))
	f.FlushHeader()

	return f, nil
}

// OpenDataFile maps an existing .DB file and validates its header and schema.
func OpenDataFile(path string) (*DataFile, error) {
	fd, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	stat, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	if stat.Size() < dataPageAlignment {
		_ = fd.Close()
		return nil, fmt.Errorf("%s: file too small (%d bytes)", path, stat.Size())
	}

	f := &DataFile{Path: path, File: fd}
	if err = f.mmap(); err != nil {
		_ = fd.Close()
		return nil, err
	}
	if err = f.loadHeader(stat.Size()); err != nil {
		_ = f.RawData.UnsafeUnmap()
		_ = fd.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *DataFile) loadHeader(size int64) error {
	f.Header = f.RawData[:dataFileHeaderSize]
	if !bytes.Equal(f.Header[dataFileHeaderOffsets.Magic:dataFileHeaderOffsets.Magic+4], []byte(dataFileMagic)) {
		return fmt.Errorf("not a data file")
	}
	if v := le.Uint16(f.Header[dataFileHeaderOffsets.Version:]); v != dataFileVersion {
		return fmt.Errorf("unsupported data file version %d", v)
	}

	count := int(le.Uint16(f.Header[dataFileHeaderOffsets.SegmentCount:]))
	end := dataFileHeaderSize + segmentDescriptorSize*count
	if end > len(f.RawData) {
		return fmt.Errorf("segment table exceeds file size")
	}
	table := f.RawData[dataFileHeaderSize:end]
	if murmur3.Sum32(table) != le.Uint32(f.Header[dataFileHeaderOffsets.SchemaChecksum:]) {
		return fmt.Errorf("schema checksum mismatch")
	}

	segments := make([]KeySegment, count)
	for i := range segments {
		d := table[i*segmentDescriptorSize:]
		segments[i] = KeySegment{
			Number:     int(le.Uint16(d[segmentDescriptorOffsets.Number:])),
			Offset:     le.Uint16(d[segmentDescriptorOffsets.Offset:]),
			Length:     le.Uint16(d[segmentDescriptorOffsets.Length:]),
			Attributes: Attribute(le.Uint16(d[segmentDescriptorOffsets.Attributes:])),
			DataType:   DataType(d[segmentDescriptorOffsets.DataType]),
			NullValue:  d[segmentDescriptorOffsets.NullValue],
		}
	}
	schema, err := NewSchema(
		int(le.Uint16(f.Header[dataFileHeaderOffsets.RecordLength:])),
		int(le.Uint16(f.Header[dataFileHeaderOffsets.PageSize:])),
		segments,
	)
	if err != nil {
		return err
	}

	f.Schema = schema
	f.NextOffset = le.Uint32(f.Header[dataFileHeaderOffsets.NextOffset:])
	f.RecordCount = le.Uint32(f.Header[dataFileHeaderOffsets.RecordCount:])
	f.Capacity = le.Uint32(f.Header[dataFileHeaderOffsets.Capacity:])
	f.slotSize = slotHeaderSize + schema.RecordLength
	f.dataStart = dataStartFor(schema)

	if f.NextOffset == 0 || f.NextOffset-1 > f.Capacity {
		return fmt.Errorf("invalid next offset %d for capacity %d", f.NextOffset, f.Capacity)
	}
	if f.fileSize() > size {
		return fmt.Errorf("file truncated: expected %d bytes, found %d", f.fileSize(), size)
	}
	f.Slots = f.RawData[f.dataStart:f.fileSize()]
	return nil
}

func (f *DataFile) fileSize() int64 {
	return int64(f.dataStart) + int64(f.Capacity)*int64(f.slotSize)
}

func (f *DataFile) mmap() error {
	mapped, err := gommap.Map(f.File.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return err
	}
	f.setMapping(mapped)
	return nil
}

func (f *DataFile) setMapping(mapped gommap.MMap) {
	f.RawData = mapped
	f.Header = mapped[:dataFileHeaderSize]
	if f.dataStart > 0 {
		f.Slots = mapped[f.dataStart:]
	}
}

func (f *DataFile) FlushHeader() {
	le.PutUint32(f.Header[dataFileHeaderOffsets.NextOffset:], f.NextOffset)
	le.PutUint32(f.Header[dataFileHeaderOffsets.RecordCount:], f.RecordCount)
	le.PutUint32(f.Header[dataFileHeaderOffsets.Capacity:], f.Capacity)
}

func (f *DataFile) slot(offset uint32) []byte {
	start := int(offset-1) * f.slotSize
	return f.Slots[start : start+f.slotSize]
}

// Load invokes fn for every live slot, in offset order. Records are copied
// out of the mapping before being handed to fn.
func (f *DataFile) Load(fn func(offset uint32, record []byte) error) error {
	var live uint32
	for offset := uint32(1); offset < f.NextOffset; offset++ {
		slot := f.slot(offset)
		if slot[slotOffsets.Flags]&slotFlagLive == 0 {
			continue
		}
		if stored := le.Uint32(slot[slotOffsets.Offset:]); stored != offset {
			return fmt.Errorf("%s: slot %d claims offset %d", f.Path, offset, stored)
		}
		data := slot[slotHeaderSize:]
		if murmur3.Sum32WithSeed(data, offset) != le.Uint32(slot[slotOffsets.Checksum:]) {
			return fmt.Errorf("%s: checksum mismatch for record %d", f.Path, offset)
		}
		if err := fn(offset, bytes.Clone(data)); err != nil {
			return err
		}
		live++
	}
	if live != f.RecordCount {
		return fmt.Errorf("%s: header reports %d records, found %d", f.Path, f.RecordCount, live)
	}
	return nil
}

// Allocate reserves the next physical offset, growing the file when all slots
// are in use.
func (f *DataFile) Allocate() (uint32, error) {
	if f.NextOffset-1 == f.Capacity {
		if err := f.grow(); err != nil {
			return 0, err
		}
	}
	offset := f.NextOffset
	f.NextOffset++
	return offset, nil
}

// Write stores record under an already allocated offset.
func (f *DataFile) Write(offset uint32, record []byte) {
	slot := f.slot(offset)
	wasLive := slot[slotOffsets.Flags]&slotFlagLive != 0
	copy(slot[slotHeaderSize:], record)
	le.PutUint32(slot[slotOffsets.Offset:], offset)
	le.PutUint32(slot[slotOffsets.Checksum:], murmur3.Sum32WithSeed(slot[slotHeaderSize:], offset))
	slot[slotOffsets.Flags] |= slotFlagLive
	if !wasLive {
		f.RecordCount++
	}
	f.FlushHeader()
}

// Clear marks the slot under offset as free. Offsets are never handed out
// again.
func (f *DataFile) Clear(offset uint32) {
	slot := f.slot(offset)
	if slot[slotOffsets.Flags]&slotFlagLive == 0 {
		return
	}
	clear(slot)
	f.RecordCount--
	f.FlushHeader()
}

// grow doubles the slot capacity. The current mapping stays in place until the
// enlarged file is mapped, so a failure leaves the file usable at its former
// capacity.
func (f *DataFile) grow() error {
	metrics.Simple(metrics.StoreGrowCalls, 1)
	capacity := max(f.Capacity*2, 16)
	size := int64(f.dataStart) + int64(capacity)*int64(f.slotSize)
	if err := f.RawData.Sync(gommap.MS_SYNC); err != nil {
		return err
	}
	if err := f.File.Truncate(size); err != nil {
		return err
	}
	mapped, err := gommap.Map(f.File.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		_ = f.File.Truncate(f.fileSize())
		return err
	}

	previous := f.RawData
	f.setMapping(mapped)
	f.Capacity = capacity
	f.FlushHeader()
	return previous.UnsafeUnmap()
}

// Close flushes the mapping and releases the file. Subsequent calls are
// no-ops.
func (f *DataFile) Close() error {
	if f.RawData == nil {
		return nil
	}
	f.FlushHeader()
	if err := f.RawData.Sync(gommap.MS_SYNC); err != nil {
		return err
	}
	if err := f.RawData.UnsafeUnmap(); err != nil {
		return err
	}
	f.RawData, f.Header, f.Slots = nil, nil, nil
	return f.File.Close()
}
