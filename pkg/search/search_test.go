package search

import (
	"net"
	"testing"
	"time"

	"goca/pkg/wire"
)

type fakeResolver struct {
	resolved chan uint32
}

func (r *fakeResolver) ResolveSearch(cid uint32, addr *net.UDPAddr, minor uint16) {
	r.resolved <- cid
}

func TestEngineAddAndResolveChannel(t *testing.T) {
	server, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer server.Close()

	resolver := &fakeResolver{resolved: make(chan uint32, 1)}
	addrList := []*net.UDPAddr{server.LocalAddr().(*net.UDPAddr)}
	eng, err := New(addrList, resolver, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer eng.Close()

	eng.AddChannel(42, "motor:velocity")

	buf := make([]byte, 2048)
	server.SetReadDeadline(time.Now().Add(time.Second))
	n, clientAddr, err := server.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("server ReadFromUDP() error = %v", err)
	}
	f, _, err := wire.ParseFrame(buf[:n], 2048)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.Header.Command != wire.CmdSearch {
		t.Fatalf("Command = %v, want CmdSearch", f.Header.Command)
	}
	if f.Header.Parameter2 != 42 {
		t.Fatalf("Parameter2 = %d, want 42", f.Header.Parameter2)
	}

	respPayload := make([]byte, 8)
	respPayload[0] = 0x13 // port 5064 big-endian high byte
	respPayload[1] = 0xc8
	respHdr := wire.Header{Command: wire.CmdSearch, DataCount: MinorVersion, Parameter2: 42}
	resp := wire.EncodeFrame(respHdr, respPayload)
	if _, err := server.WriteToUDP(resp, clientAddr); err != nil {
		t.Fatalf("server WriteToUDP() error = %v", err)
	}

	select {
	case cid := <-resolver.resolved:
		if cid != 42 {
			t.Errorf("resolved cid = %d, want 42", cid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolution")
	}
}

func TestNextDelayDoublesAndCaps(t *testing.T) {
	d := InitialDelay
	for i := 0; i < 20; i++ {
		d = nextDelay(d)
	}
	if d != MaxDelay {
		t.Errorf("nextDelay after repeated doubling = %v, want %v", d, MaxDelay)
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 100; i++ {
		j := jitter(base)
		lower := base - time.Duration(float64(base)*JitterFraction) - time.Millisecond
		upper := base + time.Duration(float64(base)*JitterFraction) + time.Millisecond
		if j < lower || j > upper {
			t.Fatalf("jitter(%v) = %v, outside [%v, %v]", base, j, lower, upper)
		}
	}
}

func TestCoalesceRespectsBudget(t *testing.T) {
	entries := []*pendingEntry{
		{cid: 1, name: "a"},
		{cid: 2, name: "b"},
		{cid: 3, name: "c"},
	}
	groups := coalesce(entries, 20) // small budget forces multiple groups
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != len(entries) {
		t.Errorf("coalesce dropped entries: got %d total, want %d", total, len(entries))
	}
	if len(groups) < 2 {
		t.Errorf("expected coalesce to split under tight budget, got %d group(s)", len(groups))
	}
}
