package wire

import (
	"errors"
	"fmt"
)

// Frame is one decoded CA wire frame: a header plus its (already
// depadded) payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// ErrPayloadTooLarge is returned by ParseFrame when a frame's advertised
// payload size exceeds the caller-supplied max_array_bytes bound.
var ErrPayloadTooLarge = errors.New("wire: frame payload exceeds max_array_bytes")

// ErrPayloadMismatch is returned when the header's declared payload size
// does not match what the element size and count imply.
var ErrPayloadMismatch = errors.New("wire: payload size disagrees with element size and count")

// EncodeFrame serializes a frame (header + 8-byte-padded payload) and
// returns the wire bytes.
func EncodeFrame(h Header, payload []byte) []byte {
	h.PayloadSize = uint32(len(payload))
	padded := PadToEightBytes(len(payload))

	buf := make([]byte, 0, h.EncodedLen()+padded)
	buf = h.Encode(buf)
	buf = append(buf, payload...)
	if padded > len(payload) {
		buf = append(buf, make([]byte, padded-len(payload))...)
	}
	return buf
}

// ParseFrame decodes one frame from the front of data. It returns the
// frame, the number of bytes consumed (header + padded payload), and an
// error. ErrShortHeader/ErrShortExtendedHeader/a nil Frame with consumed==0
// mean "need more bytes"; callers should retry once more data has arrived.
//
// maxArrayBytes is the configured receive-side payload cap; a frame
// whose declared payload exceeds it is rejected without attempting to
// buffer it.
func ParseFrame(data []byte, maxArrayBytes uint32) (Frame, int, error) {
	h, hdrLen, err := DecodeHeader(data)
	if err != nil {
		return Frame{}, 0, err
	}

	if maxArrayBytes > 0 && h.PayloadSize > maxArrayBytes {
		return Frame{}, 0, fmt.Errorf("%w: declared %d > limit %d", ErrPayloadTooLarge, h.PayloadSize, maxArrayBytes)
	}

	padded := PadToEightBytes(int(h.PayloadSize))
	total := hdrLen + padded
	if len(data) < total {
		return Frame{}, 0, ErrShortHeader // need more bytes, same "incomplete" signal
	}

	payload := data[hdrLen : hdrLen+int(h.PayloadSize)]
	return Frame{Header: h, Payload: payload}, total, nil
}

// ValidatePayloadSize checks that a received payload's size is consistent
// with the declared element size and count. A count of 0 with a pre-v13
// peer means "use the native count" and is accepted without a size check
// by the caller before ValidatePayloadSize is invoked.
func ValidatePayloadSize(payloadLen int, elementSize int, count uint32) error {
	want := PadToEightBytes(elementSize * int(count))
	got := PadToEightBytes(payloadLen)
	if want != got {
		return fmt.Errorf("%w: have %d bytes, want %d for %d elements of size %d", ErrPayloadMismatch, payloadLen, want, count, elementSize)
	}
	return nil
}
