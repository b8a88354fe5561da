package wire

import "testing"

func TestPutGetString_RoundTrip(t *testing.T) {
	buf := PutString("adc01")
	if len(buf) != MaxStringLen {
		t.Fatalf("expected %d-byte buffer, got %d", MaxStringLen, len(buf))
	}
	if got := GetString(buf); got != "adc01" {
		t.Fatalf("got %q, want %q", got, "adc01")
	}
}

func TestPutString_TruncatesOverlong(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	buf := PutString(string(long))
	got := GetString(buf)
	if len(got) != MaxStringLen-1 {
		t.Fatalf("expected truncation to %d bytes, got %d", MaxStringLen-1, len(got))
	}
}

func TestGetString_NoTerminator(t *testing.T) {
	buf := []byte{'h', 'i'}
	if got := GetString(buf); got != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}
