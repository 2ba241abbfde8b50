package internal

import (
	"fmt"
	"slices"
)

// DataType identifies how the bytes of a key segment are interpreted when
// ordering records.
type DataType uint8

const (
	String DataType = iota
	Integer
	Float
	Date
	Time
	Decimal
	Money
	Logical
	Numeric
	Bfloat
	Lstring
	Zstring
	Note
	Lvar
	UnsignedBinary
	AutoInc
)

var dataTypeNames = map[DataType]string{
	String:         "String",
	Integer:        "Integer",
	Float:          "Float",
	Date:           "Date",
	Time:           "Time",
	Decimal:        "Decimal",
	Money:          "Money",
	Logical:        "Logical",
	Numeric:        "Numeric",
	Bfloat:         "Bfloat",
	Lstring:        "Lstring",
	Zstring:        "Zstring",
	Note:           "Note",
	Lvar:           "Lvar",
	UnsignedBinary: "UnsignedBinary",
	AutoInc:        "AutoInc",
}

func (d DataType) String() string {
	if n, ok := dataTypeNames[d]; ok {
		return n
	}
	return fmt.Sprintf("DataType(%d)", uint8(d))
}

// Attribute is the key flags bitmask, as stored by Btrieve.
type Attribute uint16

const (
	Duplicates Attribute = 1 << iota
	Modifiable
	OldStyleBinary
	NullAllSegments
	SegmentedKey
	NumberedACS
	DescendingKeySegment
	RepeatingDuplicatesKey
	UseExtendedDataType
	NullAnySegment
)

func (a Attribute) Has(flag Attribute) bool { return a&flag == flag }

// KeySegment is a single byte range of a record taking part in a key.
type KeySegment struct {
	Number     int
	Offset     uint16
	Length     uint16
	Attributes Attribute
	DataType   DataType
	NullValue  byte
}

// EffectiveType returns the type used for comparisons. Keys declared without
// UseExtendedDataType only distinguish between strings and binary values.
func (s KeySegment) EffectiveType() DataType {
	if s.Attributes.Has(UseExtendedDataType) {
		return s.DataType
	}
	if s.Attributes.Has(OldStyleBinary) {
		return UnsignedBinary
	}
	return String
}

func (s KeySegment) isString() bool {
	switch s.EffectiveType() {
	case String, Lstring, Zstring, Note, Lvar:
		return true
	}
	return false
}

func (s KeySegment) bytes(record []byte) []byte {
	return record[s.Offset : s.Offset+s.Length]
}

// Key is a key definition: one or more segments sharing the same key number,
// evaluated in order.
type Key struct {
	Number   int
	Segments []KeySegment
}

func (k *Key) Attributes() Attribute { return k.Segments[0].Attributes }

func (k *Key) AllowDuplicates() bool { return k.Attributes().Has(Duplicates) }

func (k *Key) Modifiable() bool { return k.Attributes().Has(Modifiable) }

func (k *Key) Composite() bool { return len(k.Segments) > 1 }

func (k *Key) IsAutoInc() bool {
	return !k.Composite() && k.Segments[0].EffectiveType() == AutoInc
}

func (k *Key) Length() int {
	total := 0
	for _, s := range k.Segments {
		total += int(s.Length)
	}
	return total
}

// Extract returns a copy of the key value held by record, segments
// concatenated in order.
func (k *Key) Extract(record []byte) []byte {
	out := make([]byte, 0, k.Length())
	for _, s := range k.Segments {
		out = append(out, s.bytes(record)...)
	}
	return out
}

// Echo returns the key value reported back to callers. Zstring keys are
// trimmed after their terminator.
func (k *Key) Echo(record []byte) []byte {
	value := k.Extract(record)
	if !k.Composite() && k.Segments[0].EffectiveType() == Zstring {
		if i := slices.Index(value, 0); i >= 0 {
			return value[:i+1]
		}
	}
	return value
}

// IsNull reports whether record holds the null value for a nullable key.
// Records holding a null value are not indexed by that key.
func (k *Key) IsNull(record []byte) bool {
	attrs := k.Attributes()
	all, anySeg := attrs.Has(NullAllSegments), attrs.Has(NullAnySegment)
	if !all && !anySeg {
		return false
	}
	nullCount := 0
	for _, s := range k.Segments {
		isNull := true
		for _, b := range s.bytes(record) {
			if b != s.NullValue {
				isNull = false
				break
			}
		}
		if isNull {
			nullCount++
		}
	}
	if anySeg {
		return nullCount > 0
	}
	return nullCount == len(k.Segments)
}

// Compare orders two extracted key values.
func (k *Key) Compare(a, b []byte) int {
	pos := 0
	for _, s := range k.Segments {
		l := int(s.Length)
		c := compareSegment(s.EffectiveType(), a[pos:pos+l], b[pos:pos+l])
		if s.Attributes.Has(DescendingKeySegment) {
			c = -c
		}
		if c != 0 {
			return c
		}
		pos += l
	}
	return 0
}

// CompareProbe compares the key held by record against a caller supplied
// value. String keys compare the record bytes starting at the key offset over
// the whole length of the probe, even when it exceeds the declared key length.
// Other keys have the probe zero-padded or truncated to the key length.
func (k *Key) CompareProbe(record, probe []byte) int {
	if k.windowed() {
		s := k.Segments[0]
		end := min(int(s.Offset)+len(probe), len(record))
		c := compareBytes(record[s.Offset:end], probe)
		if s.Attributes.Has(DescendingKeySegment) {
			c = -c
		}
		return c
	}
	return k.Compare(k.Extract(record), k.NormalizeProbe(probe))
}

// NormalizeProbe pads or truncates probe to the key length.
func (k *Key) NormalizeProbe(probe []byte) []byte {
	out := make([]byte, k.Length())
	copy(out, probe)
	return out
}

func (k *Key) windowed() bool {
	return !k.Composite() && k.Segments[0].isString()
}

// orderedProbe reports whether probe comparisons follow the index order. A
// window reaching past the key covers bytes that take no part in ordering.
func (k *Key) orderedProbe(probe []byte) bool {
	return !k.windowed() || len(probe) <= k.Length()
}

// Schema describes the fixed layout of the records held by a file.
type Schema struct {
	RecordLength int
	PageSize     int
	Keys         []*Key
}

// NewSchema groups segments into keys and validates them against the record
// length. Segments must be provided ordered by key number, and key numbers
// must start at zero without gaps.
func NewSchema(recordLength, pageSize int, segments []KeySegment) (*Schema, error) {
	if recordLength <= 0 {
		return nil, fmt.Errorf("invalid record length %d", recordLength)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s := &Schema{RecordLength: recordLength, PageSize: pageSize}
	for _, seg := range segments {
		if seg.Length == 0 {
			return nil, fmt.Errorf("key %d: segment has zero length", seg.Number)
		}
		if int(seg.Offset)+int(seg.Length) > recordLength {
			return nil, fmt.Errorf("key %d: segment at %d with length %d exceeds record length %d",
				seg.Number, seg.Offset, seg.Length, recordLength)
		}
		switch {
		case len(s.Keys) > 0 && s.Keys[len(s.Keys)-1].Number == seg.Number:
			last := s.Keys[len(s.Keys)-1]
			last.Segments = append(last.Segments, seg)
		case seg.Number == len(s.Keys):
			s.Keys = append(s.Keys, &Key{Number: seg.Number, Segments: []KeySegment{seg}})
		default:
			return nil, fmt.Errorf("key %d: unexpected key number, expected %d", seg.Number, len(s.Keys))
		}
	}
	return s, nil
}

// Segments returns all key segments in key order.
func (s *Schema) Segments() []KeySegment {
	var out []KeySegment
	for _, k := range s.Keys {
		out = append(out, k.Segments...)
	}
	return out
}

func (s *Schema) Key(number int) (*Key, bool) {
	if number < 0 || number >= len(s.Keys) {
		return nil, false
	}
	return s.Keys[number], true
}

// Operator selects which record a key lookup yields.
type Operator uint8

const (
	OpEqual Operator = iota
	OpLessThan
	OpGreaterThan
	OpLessOrEqual
	OpGreaterOrEqual
	OpFirst
	OpLast
	OpNext
	OpPrevious
)

var operatorNames = [...]string{
	OpEqual:          "Equal",
	OpLessThan:       "LessThan",
	OpGreaterThan:    "GreaterThan",
	OpLessOrEqual:    "LessOrEqual",
	OpGreaterOrEqual: "GreaterOrEqual",
	OpFirst:          "First",
	OpLast:           "Last",
	OpNext:           "Next",
	OpPrevious:       "Previous",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", uint8(o))
}
