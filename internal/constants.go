package internal

import "encoding/binary"

var le = binary.LittleEndian

const (
	dataFileMagic         = "MBDB"
	dataFileVersion       = 1
	dataFileHeaderSize    = 64
	segmentDescriptorSize = 16
	slotHeaderSize        = 16
	dataPageAlignment     = 512

	slotFlagLive = 1 << 0

	// FileSpecSize and KeySpecSize are the sizes of the structures returned
	// by Stat and consumed by Create.
	FileSpecSize = 16
	KeySpecSize  = 16

	DefaultPageSize = 4096
)

var dataFileHeaderOffsets = struct {
	Magic          uint8
	Version        uint8
	RecordLength   uint8
	SegmentCount   uint8
	PageSize       uint8
	NextOffset     uint8
	RecordCount    uint8
	Capacity       uint8
	SchemaChecksum uint8
}{
	Magic:          0,
	Version:        4,
	RecordLength:   6,
	SegmentCount:   8,
	PageSize:       10,
	NextOffset:     12,
	RecordCount:    16,
	Capacity:       20,
	SchemaChecksum: 24,
}

var segmentDescriptorOffsets = struct {
	Number     uint8
	Offset     uint8
	Length     uint8
	Attributes uint8
	DataType   uint8
	NullValue  uint8
}{
	Number:     0,
	Offset:     2,
	Length:     4,
	Attributes: 6,
	DataType:   8,
	NullValue:  9,
}

var slotOffsets = struct {
	Flags    uint8
	Offset   uint8
	Checksum uint8
}{
	Flags:    0,
	Offset:   4,
	Checksum: 8,
}

var fileSpecOffsets = struct {
	RecordLength    uint8
	PageSize        uint8
	NumberOfKeys    uint8
	NumberOfRecords uint8
	Flags           uint8
	Reserved        uint8
	UnusedPages     uint8
}{
	RecordLength:    0,
	PageSize:        2,
	NumberOfKeys:    4,
	NumberOfRecords: 6,
	Flags:           10,
	Reserved:        12,
	UnusedPages:     14,
}

var keySpecOffsets = struct {
	Position     uint8
	Length       uint8
	Attributes   uint8
	UniqueValues uint8
	DataType     uint8
	NullValue    uint8
	Reserved     uint8
	Number       uint8
	ACS          uint8
}{
	Position:     0,
	Length:       2,
	Attributes:   4,
	UniqueValues: 6,
	DataType:     10,
	NullValue:    11,
	Reserved:     12,
	Number:       14,
	ACS:          15,
}
