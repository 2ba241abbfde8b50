package interrupt

import (
	"encoding/binary"

	"github.com/heyvito/btrieve/memory"
)

var le = binary.LittleEndian

const (
	// Vector is the interrupt number serviced by Handler.
	Vector = 0x7B

	// CommandLength is the size of the command structure addressed by DS:DX.
	CommandLength = 28

	// InterfaceID must be present at the end of every command structure.
	InterfaceID = 0x6176
)

var commandOffsets = struct {
	DataBufferOffset     uint8
	DataBufferSegment    uint8
	DataBufferLength     uint8
	PositionBlockOffset  uint8
	PositionBlockSegment uint8
	FCBOffset            uint8
	FCBSegment           uint8
	Operation            uint8
	KeyBufferOffset      uint8
	KeyBufferSegment     uint8
	KeyBufferLength      uint8
	KeyNumber            uint8
	StatusCodeOffset     uint8
	StatusCodeSegment    uint8
	InterfaceID          uint8
}{
	DataBufferOffset:     0,
	DataBufferSegment:    2,
	DataBufferLength:     4,
	PositionBlockOffset:  6,
	PositionBlockSegment: 8,
	FCBOffset:            10,
	FCBSegment:           12,
	Operation:            14,
	KeyBufferOffset:      16,
	KeyBufferSegment:     18,
	KeyBufferLength:      20,
	KeyNumber:            21,
	StatusCodeOffset:     22,
	StatusCodeSegment:    24,
	InterfaceID:          26,
}

// Command is the parameter block a guest passes to the interrupt.
type Command struct {
	DataBuffer       memory.FarPtr
	DataBufferLength uint16
	PositionBlock    memory.FarPtr
	FCB              memory.FarPtr
	Operation        Operation
	KeyBuffer        memory.FarPtr
	KeyBufferLength  uint8

	// KeyNumber is -1 when the operation refers to no key in particular.
	KeyNumber   int8
	StatusCode  memory.FarPtr
	InterfaceID uint16
}

func readPtr(data []byte, offset, segment uint8) memory.FarPtr {
	return memory.NewFarPtr(le.Uint16(data[segment:]), le.Uint16(data[offset:]))
}

func writePtr(data []byte, offset, segment uint8, p memory.FarPtr) {
	le.PutUint16(data[offset:], p.Offset)
	le.PutUint16(data[segment:], p.Segment)
}

// DecodeCommand parses a command structure. data must hold at least
// CommandLength bytes.
func DecodeCommand(data []byte) Command {
	o := commandOffsets
	return Command{
		DataBuffer:       readPtr(data, o.DataBufferOffset, o.DataBufferSegment),
		DataBufferLength: le.Uint16(data[o.DataBufferLength:]),
		PositionBlock:    readPtr(data, o.PositionBlockOffset, o.PositionBlockSegment),
		FCB:              readPtr(data, o.FCBOffset, o.FCBSegment),
		Operation:        Operation(le.Uint16(data[o.Operation:])),
		KeyBuffer:        readPtr(data, o.KeyBufferOffset, o.KeyBufferSegment),
		KeyBufferLength:  data[o.KeyBufferLength],
		KeyNumber:        int8(data[o.KeyNumber]),
		StatusCode:       readPtr(data, o.StatusCodeOffset, o.StatusCodeSegment),
		InterfaceID:      le.Uint16(data[o.InterfaceID:]),
	}
}

// Encode renders c in the layout read by DecodeCommand.
func (c Command) Encode() []byte {
	o := commandOffsets
	data := make([]byte, CommandLength)
	writePtr(data, o.DataBufferOffset, o.DataBufferSegment, c.DataBuffer)
	le.PutUint16(data[o.DataBufferLength:], c.DataBufferLength)
	writePtr(data, o.PositionBlockOffset, o.PositionBlockSegment, c.PositionBlock)
	writePtr(data, o.FCBOffset, o.FCBSegment, c.FCB)
	le.PutUint16(data[o.Operation:], uint16(c.Operation))
	writePtr(data, o.KeyBufferOffset, o.KeyBufferSegment, c.KeyBuffer)
	data[o.KeyBufferLength] = c.KeyBufferLength
	data[o.KeyNumber] = byte(c.KeyNumber)
	writePtr(data, o.StatusCodeOffset, o.StatusCodeSegment, c.StatusCode)
	le.PutUint16(data[o.InterfaceID:], c.InterfaceID)
	return data
}
