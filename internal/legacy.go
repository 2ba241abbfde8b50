package internal

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-stdlog/stdlog"

	"github.com/heyvito/btrieve/internal/metrics"
)

var legacyHeaderOffsets = struct {
	PageLength           uint16
	AccelFlags           uint16
	DeletedRecord        uint16
	KeyCount             uint16
	RecordLength         uint16
	PhysicalRecordLength uint16
	RecordCount          uint16
	Recovery             uint16
	VariableMarker       uint16
	UserFlags            uint16
	KeyDefinitions       uint16
}{
	PageLength:           0x08,
	AccelFlags:           0x0A,
	DeletedRecord:        0x10,
	KeyCount:             0x14,
	RecordLength:         0x16,
	PhysicalRecordLength: 0x18,
	RecordCount:          0x1C,
	Recovery:             0x22,
	VariableMarker:       0x38,
	UserFlags:            0x106,
	KeyDefinitions:       0x110,
}

var legacyKeyOffsets = struct {
	Attributes uint8
	Offset     uint8
	Length     uint8
	DataType   uint8
	NullValue  uint8
}{
	Attributes: 0x08,
	Offset:     0x14,
	Length:     0x16,
	DataType:   0x1C,
	NullValue:  0x1D,
}

const (
	legacyKeyDefinitionSize = 0x1E
	legacyPageHeaderSize    = 6
	legacyEndOfChain        = 0xFFFFFFFF

	legacyUserFlagVariable   = 0x1
	legacyUserFlagCompressed = 0x8
)

// LegacyFile is the content of a Btrieve v5 .DAT file.
type LegacyFile struct {
	Schema  *Schema
	Records [][]byte
}

// ParseLegacyFile decodes a Btrieve v5 file holding fixed-length records.
func ParseLegacyFile(data []byte, log stdlog.Logger) (*LegacyFile, error) {
	if len(data) < int(legacyHeaderOffsets.KeyDefinitions) {
		return nil, fmt.Errorf("file too small to be a Btrieve database (%d bytes)", len(data))
	}
	if data[0] == 'F' && data[1] == 'C' {
		return nil, fmt.Errorf("v6 Btrieve databases are not supported")
	}
	if data[0] != 0 && data[1] != 0 && data[2] != 0 && data[3] != 0 {
		return nil, fmt.Errorf("does not appear to be a v5 Btrieve database")
	}
	if version := int(data[6])<<16 | int(data[7]); version < 3 || version > 5 {
		return nil, fmt.Errorf("invalid version code %d", version)
	}
	if data[legacyHeaderOffsets.Recovery] == 0xFF && data[legacyHeaderOffsets.Recovery+1] == 0xFF {
		return nil, fmt.Errorf("database is marked inconsistent and needs recovery")
	}

	pageLength := int(le.Uint16(data[legacyHeaderOffsets.PageLength:]))
	if pageLength < 512 || pageLength%512 != 0 {
		return nil, fmt.Errorf("invalid page length %d", pageLength)
	}
	keyCount := int(le.Uint16(data[legacyHeaderOffsets.KeyCount:]))
	if keyCount == 0 {
		return nil, fmt.Errorf("no keys defined")
	}
	if flags := le.Uint16(data[legacyHeaderOffsets.AccelFlags:]); flags != 0 {
		return nil, fmt.Errorf("unexpected accel flags %#x", flags)
	}
	userFlags := le.Uint16(data[legacyHeaderOffsets.UserFlags:])
	if userFlags&legacyUserFlagCompressed != 0 {
		return nil, fmt.Errorf("compressed databases are not supported")
	}
	variable := userFlags&legacyUserFlagVariable != 0
	if variable != (data[legacyHeaderOffsets.VariableMarker] == 0xFF) {
		return nil, fmt.Errorf("mismatched variable length markers")
	}
	if variable {
		return nil, fmt.Errorf("variable length records are not supported")
	}

	recordLength := int(le.Uint16(data[legacyHeaderOffsets.RecordLength:]))
	physicalLength := int(le.Uint16(data[legacyHeaderOffsets.PhysicalRecordLength:]))
	if physicalLength < recordLength || physicalLength == 0 {
		return nil, fmt.Errorf("invalid physical record length %d for record length %d", physicalLength, recordLength)
	}
	recordCount := int(le.Uint16(data[legacyHeaderOffsets.RecordCount:]))

	segments, err := parseLegacyKeys(data, keyCount)
	if err != nil {
		return nil, err
	}
	schema, err := NewSchema(recordLength, pageLength, segments)
	if err != nil {
		return nil, err
	}

	deleted, err := legacyDeletedOffsets(data)
	if err != nil {
		return nil, err
	}

	f := &LegacyFile{Schema: schema}
	if recordCount == 0 {
		return f, nil
	}

	perPage := (pageLength - legacyPageHeaderSize) / physicalLength
	pageCount := len(data)/pageLength - 1
pages:
	for page := 1; page <= pageCount; page++ {
		pageOffset := page * pageLength
		if data[pageOffset+5]&0x80 == 0 {
			continue
		}
		pageOffset += legacyPageHeaderSize
		for j := 0; j < perPage; j++ {
			if len(f.Records) == recordCount {
				break pages
			}
			offset := pageOffset + physicalLength*j
			if _, ok := deleted[uint32(offset)]; ok {
				continue
			}
			raw := data[offset : offset+physicalLength]
			if legacyUnusedRecord(raw, len(data)) {
				break
			}
			f.Records = append(f.Records, bytes.Clone(raw[:recordLength]))
		}
	}

	if len(f.Records) != recordCount {
		log.Warning("Record count mismatch", "expected", recordCount, "read", len(f.Records))
	}
	return f, nil
}

func parseLegacyKeys(data []byte, keyCount int) ([]KeySegment, error) {
	var segments []KeySegment
	base := int(legacyHeaderOffsets.KeyDefinitions)
	for number := 0; number < keyCount; {
		if base+legacyKeyDefinitionSize > len(data) {
			return nil, fmt.Errorf("key %d: definition exceeds file size", number)
		}
		def := data[base : base+legacyKeyDefinitionSize]
		attrs := Attribute(le.Uint16(def[legacyKeyOffsets.Attributes:]))
		seg := KeySegment{
			Number:     number,
			Offset:     le.Uint16(def[legacyKeyOffsets.Offset:]),
			Length:     le.Uint16(def[legacyKeyOffsets.Length:]),
			Attributes: attrs &^ SegmentedKey,
			NullValue:  def[legacyKeyOffsets.NullValue],
		}
		if attrs.Has(UseExtendedDataType) {
			seg.DataType = DataType(def[legacyKeyOffsets.DataType])
		}
		segments = append(segments, seg)
		if !attrs.Has(SegmentedKey) {
			number++
		}
		base += legacyKeyDefinitionSize
	}
	return segments, nil
}

func legacyPointer(b []byte) uint32 {
	return uint32(le.Uint16(b[0:]))<<16 | uint32(le.Uint16(b[2:]))
}

func legacyDeletedOffsets(data []byte) (map[uint32]struct{}, error) {
	out := map[uint32]struct{}{}
	next := legacyPointer(data[legacyHeaderOffsets.DeletedRecord:])
	for next != legacyEndOfChain {
		if _, seen := out[next]; seen {
			return nil, fmt.Errorf("deleted record chain loops at %#x", next)
		}
		if int(next)+4 > len(data) {
			return nil, fmt.Errorf("deleted record pointer %#x exceeds file size", next)
		}
		out[next] = struct{}{}
		next = legacyPointer(data[next:])
	}
	return out, nil
}

// legacyUnusedRecord reports whether a fixed record slot was never used:
// everything but its leading free-list pointer is zeroed.
func legacyUnusedRecord(raw []byte, fileLength int) bool {
	for _, b := range raw[4:] {
		if b != 0 {
			return false
		}
	}
	return int64(legacyPointer(raw)) < int64(fileLength)
}

// ImportLegacyFile converts the .DAT file at src into a new .DB file at dst.
// Records violating a unique key are skipped. Returns the amount of records
// imported.
func ImportLegacyFile(src, dst string, capacity int, log stdlog.Logger) (int, error) {
	defer metrics.Measure(metrics.RegistryLegacyImportLatency)()

	data, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}

	legacy, err := ParseLegacyFile(data, log)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", src, err)
	}

	file, err := CreateDataFile(dst, legacy.Schema, max(capacity, len(legacy.Records)))
	if err != nil {
		return 0, err
	}
	store, err := NewStore(file, log)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(dst)
		return 0, err
	}
	for i, rec := range legacy.Records {
		if _, err = store.Restore(rec); err != nil {
			log.Warning("Skipping legacy record", "index", i, "error", err.Error())
		}
	}
	count := store.Count()
	if err = store.close(); err != nil {
		return 0, err
	}
	log.Info("Converted legacy database", "source", src, "destination", dst, "records", count)
	return count, nil
}
