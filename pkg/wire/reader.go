package wire

import (
	"bufio"
	"io"
)

// FrameReader reads a sequence of CA frames off a byte stream (a TCP
// connection's net.Conn, wrapped by the caller). Unlike ParseFrame, which
// operates on an already-complete buffer (used for UDP datagrams that may
// contain several coalesced frames), FrameReader pulls exactly as many
// bytes as each frame needs from an underlying io.Reader, one frame at a
// time, so it tolerates partial TCP reads.
type FrameReader struct {
	r             *bufio.Reader
	maxArrayBytes uint32
}

// NewFrameReader wraps r. maxArrayBytes of 0 disables the receive-side
// payload cap.
func NewFrameReader(r io.Reader, maxArrayBytes uint32) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 4096), maxArrayBytes: maxArrayBytes}
}

// ReadFrame blocks until one full frame has been read, or an error (most
// commonly io.EOF on peer close, or a net.Error on timeout/reset) occurs.
func (fr *FrameReader) ReadFrame() (Frame, error) {
	var hdrBuf [24]byte
	if _, err := io.ReadFull(fr.r, hdrBuf[:16]); err != nil {
		return Frame{}, err
	}

	h, hdrLen, err := DecodeHeader(hdrBuf[:16])
	if err == ErrShortExtendedHeader {
		// The 16 bytes we already consumed were actually the first half
		// of a 24-byte extended header; pull the remaining 8.
		if _, err2 := io.ReadFull(fr.r, hdrBuf[16:24]); err2 != nil {
			return Frame{}, err2
		}
		h, hdrLen, err = DecodeHeader(hdrBuf[:24])
	}
	if err != nil {
		return Frame{}, err
	}
	_ = hdrLen

	if fr.maxArrayBytes > 0 && h.PayloadSize > fr.maxArrayBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	padded := PadToEightBytes(int(h.PayloadSize))
	payload := make([]byte, padded)
	if padded > 0 {
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload[:h.PayloadSize]}, nil
}
