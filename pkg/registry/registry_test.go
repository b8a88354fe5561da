package registry

import "testing"

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	ch := New(1, "x")
	if err := r.Add(ch); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Add(ch); err == nil {
		t.Error("expected error re-adding the same cid")
	}

	got, ok := r.Get(1)
	if !ok || got != ch {
		t.Errorf("Get(1) = %v, %v; want %v, true", got, ok, ch)
	}

	r.Remove(1)
	if _, ok := r.Get(1); ok {
		t.Error("expected channel to be gone after Remove")
	}
}

func TestRegistryHostedBy(t *testing.T) {
	r := NewRegistry()
	a := New(1, "a")
	a.SetTransportKey("host:5064", 0)
	b := New(2, "b")
	b.SetTransportKey("host:5064", 1)
	c := New(3, "c")
	c.SetTransportKey("other:5064", 0)

	r.Add(a)
	r.Add(b)
	r.Add(c)

	hosted := r.HostedBy("host:5064", 0)
	if len(hosted) != 1 || hosted[0] != a {
		t.Errorf("HostedBy(host:5064, 0) = %v, want [a]", hosted)
	}
}
