package wire

import (
	"encoding/binary"
	"errors"
)

// extendedMarker is the short-field value (0xFFFF) that signals an extended
// 24-byte header is in use.
const extendedMarker = 0xFFFF

// extendedThreshold is the element-count/payload-size boundary at or above
// which the extended header must be used (CA v4.13).
const extendedThreshold = 0xFFFF

var (
	// ErrShortHeader is returned when fewer than 16 bytes are available.
	ErrShortHeader = errors.New("wire: header truncated")
	// ErrShortExtendedHeader is returned when the extended-header marker is
	// present but fewer than 24 bytes are available.
	ErrShortExtendedHeader = errors.New("wire: extended header truncated")
)

// Header is the decoded form of either the 16-byte standard header or the
// 24-byte extended header. Fields are always widened to their largest
// representation regardless of which form was used on the wire.
type Header struct {
	Command     Command
	PayloadSize uint32
	DataType    TypeCode
	DataCount   uint32
	Parameter1  uint32
	Parameter2  uint32
}

// needsExtended reports whether this header must be encoded using the
// 24-byte extended layout.
func (h Header) needsExtended() bool {
	return h.PayloadSize >= extendedThreshold || h.DataCount >= extendedThreshold
}

// EncodedLen returns how many bytes Encode will write for this header.
func (h Header) EncodedLen() int {
	if h.needsExtended() {
		return 24
	}
	return 16
}

// Encode appends the big-endian wire encoding of h to buf and returns the
// result.
func (h Header) Encode(buf []byte) []byte {
	var hdr [24]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(h.Command))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(h.DataType))

	if h.needsExtended() {
		binary.BigEndian.PutUint16(hdr[2:4], extendedMarker)
		binary.BigEndian.PutUint16(hdr[6:8], extendedMarker)
		binary.BigEndian.PutUint32(hdr[8:12], h.Parameter1)
		binary.BigEndian.PutUint32(hdr[12:16], h.Parameter2)
		binary.BigEndian.PutUint32(hdr[16:20], h.PayloadSize)
		binary.BigEndian.PutUint32(hdr[20:24], h.DataCount)
		return append(buf, hdr[:24]...)
	}

	binary.BigEndian.PutUint16(hdr[2:4], uint16(h.PayloadSize))
	binary.BigEndian.PutUint16(hdr[6:8], uint16(h.DataCount))
	binary.BigEndian.PutUint32(hdr[8:12], h.Parameter1)
	binary.BigEndian.PutUint32(hdr[12:16], h.Parameter2)
	return append(buf, hdr[:16]...)
}

// DecodeHeader parses a Header from the front of data, returning the header
// and the number of bytes consumed.
func DecodeHeader(data []byte) (Header, int, error) {
	if len(data) < 16 {
		return Header{}, 0, ErrShortHeader
	}

	var h Header
	h.Command = Command(binary.BigEndian.Uint16(data[0:2]))
	h.DataType = TypeCode(binary.BigEndian.Uint16(data[4:6]))

	payloadField := binary.BigEndian.Uint16(data[2:4])
	countField := binary.BigEndian.Uint16(data[6:8])

	if payloadField == extendedMarker && countField == extendedMarker {
		if len(data) < 24 {
			return Header{}, 0, ErrShortExtendedHeader
		}
		h.Parameter1 = binary.BigEndian.Uint32(data[8:12])
		h.Parameter2 = binary.BigEndian.Uint32(data[12:16])
		h.PayloadSize = binary.BigEndian.Uint32(data[16:20])
		h.DataCount = binary.BigEndian.Uint32(data[20:24])
		return h, 24, nil
	}

	h.PayloadSize = uint32(payloadField)
	h.DataCount = uint32(countField)
	h.Parameter1 = binary.BigEndian.Uint32(data[8:12])
	h.Parameter2 = binary.BigEndian.Uint32(data[12:16])
	return h, 16, nil
}

// PadToEightBytes returns n rounded up to the next multiple of 8, per the
// CA requirement that payloads be padded to 8-byte boundaries.
func PadToEightBytes(n int) int {
	return (n + 7) &^ 7
}
