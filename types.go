package btrieve

import "github.com/heyvito/btrieve/internal"

type (
	Schema     = internal.Schema
	Key        = internal.Key
	KeySegment = internal.KeySegment
	DataType   = internal.DataType
	Attribute  = internal.Attribute
	Operator   = internal.Operator
)

const (
	String         = internal.String
	Integer        = internal.Integer
	Float          = internal.Float
	Lstring        = internal.Lstring
	Zstring        = internal.Zstring
	UnsignedBinary = internal.UnsignedBinary
	AutoInc        = internal.AutoInc
)

const (
	Duplicates           = internal.Duplicates
	Modifiable           = internal.Modifiable
	OldStyleBinary       = internal.OldStyleBinary
	NullAllSegments      = internal.NullAllSegments
	SegmentedKey         = internal.SegmentedKey
	DescendingKeySegment = internal.DescendingKeySegment
	UseExtendedDataType  = internal.UseExtendedDataType
	NullAnySegment       = internal.NullAnySegment
)

const (
	Equal          = internal.OpEqual
	LessThan       = internal.OpLessThan
	GreaterThan    = internal.OpGreaterThan
	LessOrEqual    = internal.OpLessOrEqual
	GreaterOrEqual = internal.OpGreaterOrEqual
	First          = internal.OpFirst
	Last           = internal.OpLast
	Next           = internal.OpNext
	Previous       = internal.OpPrevious
)

// NewSchema builds a Schema for records of recordLength bytes. Segments must
// be ordered by key number, starting at zero.
func NewSchema(recordLength int, segments ...KeySegment) (*Schema, error) {
	return internal.NewSchema(recordLength, internal.DefaultPageSize, segments)
}

// Record is a record produced by an Engine operation.
type Record struct {
	// Offset is the physical offset of the record, stable for its lifetime.
	Offset uint32

	// Data holds a copy of the record bytes.
	Data []byte

	// Key holds the value of the key used to position on the record, if any.
	Key []byte
}

// SchemaFromStat parses a FileSpec followed by its KeySpecs, in the layout
// produced by Engine.Stat.
func SchemaFromStat(data []byte) (*Schema, error) {
	return internal.DecodeStat(data)
}
