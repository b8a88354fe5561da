package search

import "testing"

func TestResolveAddrListExplicit(t *testing.T) {
	addrs := ResolveAddrList("10.0.0.1 10.0.0.2:5999", false, DefaultServerPort)
	if len(addrs) != 2 {
		t.Fatalf("len(addrs) = %d, want 2", len(addrs))
	}
	if addrs[0].Port != DefaultServerPort {
		t.Errorf("addrs[0].Port = %d, want %d", addrs[0].Port, DefaultServerPort)
	}
	if addrs[1].Port != 5999 {
		t.Errorf("addrs[1].Port = %d, want 5999", addrs[1].Port)
	}
}

func TestResolveAddrListDedups(t *testing.T) {
	addrs := ResolveAddrList("10.0.0.1:5064 10.0.0.1:5064", false, DefaultServerPort)
	if len(addrs) != 1 {
		t.Errorf("len(addrs) = %d, want 1 after dedup", len(addrs))
	}
}
