package internal

import "fmt"

// StatLength returns the amount of bytes EncodeStat produces for schema.
func StatLength(schema *Schema) int {
	return FileSpecSize + KeySpecSize*len(schema.Segments())
}

// EncodeStat renders the FileSpec for schema, followed by one KeySpec per key
// segment. uniqueValues holds the distinct value count of each key.
func EncodeStat(schema *Schema, records uint32, uniqueValues []uint32) []byte {
	out := make([]byte, StatLength(schema))
	le.PutUint16(out[fileSpecOffsets.RecordLength:], uint16(schema.RecordLength))
	le.PutUint16(out[fileSpecOffsets.PageSize:], uint16(schema.PageSize))
	le.PutUint16(out[fileSpecOffsets.NumberOfKeys:], uint16(len(schema.Keys)))
	le.PutUint32(out[fileSpecOffsets.NumberOfRecords:], records)

	spec := out[FileSpecSize:]
	for _, k := range schema.Keys {
		for i, seg := range k.Segments {
			attrs := seg.Attributes
			if i < len(k.Segments)-1 {
				attrs |= SegmentedKey
			} else {
				attrs &^= SegmentedKey
			}
			le.PutUint16(spec[keySpecOffsets.Position:], seg.Offset+1)
			le.PutUint16(spec[keySpecOffsets.Length:], seg.Length)
			le.PutUint16(spec[keySpecOffsets.Attributes:], uint16(attrs))
			if k.Number < len(uniqueValues) {
				le.PutUint32(spec[keySpecOffsets.UniqueValues:], uniqueValues[k.Number])
			}
			spec[keySpecOffsets.DataType] = byte(seg.DataType)
			spec[keySpecOffsets.NullValue] = seg.NullValue
			spec[keySpecOffsets.Number] = byte(k.Number)
			spec = spec[KeySpecSize:]
		}
	}
	return out
}

// DecodeStat parses a FileSpec followed by its KeySpecs into a schema. A
// KeySpec flagged SegmentedKey is continued by the next one.
func DecodeStat(data []byte) (*Schema, error) {
	if len(data) < FileSpecSize {
		return nil, fmt.Errorf("file specification requires %d bytes, got %d", FileSpecSize, len(data))
	}
	recordLength := int(le.Uint16(data[fileSpecOffsets.RecordLength:]))
	pageSize := int(le.Uint16(data[fileSpecOffsets.PageSize:]))
	keys := int(le.Uint16(data[fileSpecOffsets.NumberOfKeys:]))

	var segments []KeySegment
	spec := data[FileSpecSize:]
	for number := 0; number < keys; number++ {
		for {
			if len(spec) < KeySpecSize {
				return nil, fmt.Errorf("key %d: truncated key specification", number)
			}
			position := le.Uint16(spec[keySpecOffsets.Position:])
			if position == 0 {
				return nil, fmt.Errorf("key %d: invalid position 0", number)
			}
			attrs := Attribute(le.Uint16(spec[keySpecOffsets.Attributes:]))
			segments = append(segments, KeySegment{
				Number:     number,
				Offset:     position - 1,
				Length:     le.Uint16(spec[keySpecOffsets.Length:]),
				Attributes: attrs &^ SegmentedKey,
				DataType:   DataType(spec[keySpecOffsets.DataType]),
				NullValue:  spec[keySpecOffsets.NullValue],
			})
			spec = spec[KeySpecSize:]
			if !attrs.Has(SegmentedKey) {
				break
			}
		}
	}
	return NewSchema(recordLength, pageSize, segments)
}
