package wire

import "testing"

func TestHeaderRoundTrip_Standard(t *testing.T) {
	h := Header{
		Command:     CmdReadNotify,
		PayloadSize: 8,
		DataType:    TypeDouble,
		DataCount:   1,
		Parameter1:  42,
		Parameter2:  7,
	}

	buf := h.Encode(nil)
	if len(buf) != 16 {
		t.Fatalf("expected 16-byte standard header, got %d bytes", len(buf))
	}

	got, n, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if n != 16 {
		t.Fatalf("expected to consume 16 bytes, consumed %d", n)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHeaderRoundTrip_Extended(t *testing.T) {
	tests := []struct {
		name string
		h    Header
	}{
		{"large payload", Header{Command: CmdReadNotify, PayloadSize: 0x10000, DataType: TypeLong, DataCount: 1}},
		{"large count", Header{Command: CmdReadNotify, PayloadSize: 4, DataType: TypeChar, DataCount: 0x10000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.h.Encode(nil)
			if len(buf) != 24 {
				t.Fatalf("expected 24-byte extended header, got %d bytes", len(buf))
			}

			got, n, err := DecodeHeader(buf)
			if err != nil {
				t.Fatalf("DecodeHeader: %v", err)
			}
			if n != 24 {
				t.Fatalf("expected to consume 24 bytes, consumed %d", n)
			}
			if got != tt.h {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, tt.h)
			}
		})
	}
}

func TestDecodeHeader_Short(t *testing.T) {
	_, _, err := DecodeHeader(make([]byte, 8))
	if err != ErrShortHeader {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestDecodeHeader_ShortExtended(t *testing.T) {
	h := Header{Command: CmdRead, PayloadSize: 0x20000, DataCount: 1}
	buf := h.Encode(nil)

	_, _, err := DecodeHeader(buf[:16])
	if err != ErrShortExtendedHeader {
		t.Fatalf("expected ErrShortExtendedHeader, got %v", err)
	}
}

func TestPadToEightBytes(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 16: 16, 17: 24}
	for in, want := range cases {
		if got := PadToEightBytes(in); got != want {
			t.Errorf("PadToEightBytes(%d) = %d, want %d", in, got, want)
		}
	}
}
