package iomux

import (
	"reflect"
	"testing"
	"time"

	"goca/pkg/types"
)

func TestSubmitAndComplete(t *testing.T) {
	m := New()
	req := m.Submit(KindReadNotify, 1, "host:5064")

	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}

	want := types.PlainBundle{Val: types.NewDouble(3.14)}
	go func() {
		ok := m.Complete(req.IOID, Result{Value: want})
		if !ok {
			t.Error("Complete() returned false for a known IOID")
		}
	}()

	res, ok := req.Wait(nil)
	if !ok {
		t.Fatal("Wait() returned false")
	}
	if !reflect.DeepEqual(res.Value, want) {
		t.Errorf("res.Value = %v, want %v", res.Value, want)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after completion, want 0", m.Len())
	}
}

func TestCompleteUnknownIOIDReturnsFalse(t *testing.T) {
	m := New()
	if ok := m.Complete(9999, Result{}); ok {
		t.Error("Complete() = true for unknown IOID, want false")
	}
}

func TestCancelByChannel(t *testing.T) {
	m := New()
	r1 := m.Submit(KindRead, 1, "a")
	r2 := m.Submit(KindRead, 1, "a")
	r3 := m.Submit(KindRead, 2, "a")

	n := m.CancelByChannel(1, types.NewStatus(types.CodeChanDestroy, "closed"))
	if n != 2 {
		t.Errorf("CancelByChannel() = %d, want 2", n)
	}

	res1, _ := r1.Wait(nil)
	if res1.Status.Code != types.CodeChanDestroy {
		t.Errorf("r1 status = %v, want CodeChanDestroy", res1.Status.Code)
	}
	res2, _ := r2.Wait(nil)
	if res2.Status.Code != types.CodeChanDestroy {
		t.Errorf("r2 status = %v, want CodeChanDestroy", res2.Status.Code)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (r3 still pending)", m.Len())
	}

	select {
	case <-r3.done:
		t.Error("r3 should not have completed")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestCancelByTransport(t *testing.T) {
	m := New()
	r1 := m.Submit(KindWrite, 1, "dead:5064")
	m.Submit(KindWrite, 2, "alive:5064")

	n := m.CancelByTransport("dead:5064", types.NewStatus(types.CodeDisconn, ""))
	if n != 1 {
		t.Errorf("CancelByTransport() = %d, want 1", n)
	}
	res, _ := r1.Wait(nil)
	if res.Status.Code != types.CodeDisconn {
		t.Errorf("status = %v, want CodeDisconn", res.Status.Code)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	m := New()
	req := m.Submit(KindRead, 1, "a")
	first := types.PlainBundle{Val: types.NewInt(1)}
	second := types.PlainBundle{Val: types.NewInt(2)}

	m.Complete(req.IOID, Result{Value: first})
	// IOID was already removed from the map, so this returns false and
	// must not overwrite the first result.
	ok := m.Complete(req.IOID, Result{Value: second})
	if ok {
		t.Error("Complete() on an already-removed IOID should return false")
	}

	res, _ := req.Wait(nil)
	if !reflect.DeepEqual(res.Value, first) {
		t.Errorf("res.Value = %v, want first completion %v", res.Value, first)
	}
}
