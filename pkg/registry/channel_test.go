package registry

import (
	"testing"

	"goca/pkg/types"
	"goca/pkg/wire"
)

func TestChannelStartsNeverConnected(t *testing.T) {
	ch := New(1, "motor:velocity")
	if ch.State() != types.NeverConnected {
		t.Errorf("State() = %v, want NeverConnected", ch.State())
	}
}

func TestChannelMarkConnectedNotifiesListeners(t *testing.T) {
	ch := New(1, "motor:velocity")

	var events []bool
	dispose := ch.AddConnectionListener(func(c *Channel, connected bool) {
		events = append(events, connected)
	})
	defer dispose()

	var lastRights types.AccessRights
	ch.AddAccessRightsListener(func(c *Channel, rights types.AccessRights) {
		lastRights = rights
	})

	ch.MarkConnected(7, wire.TypeDouble, 1, types.ReadWrite)

	if ch.State() != types.Connected {
		t.Errorf("State() = %v, want Connected", ch.State())
	}
	if len(events) != 1 || events[0] != true {
		t.Errorf("events = %v, want [true]", events)
	}
	if lastRights != types.ReadWrite {
		t.Errorf("lastRights = %v, want ReadWrite", lastRights)
	}

	props := ch.Properties()
	if props["nativeTypeCode"] != wire.TypeDouble {
		t.Errorf("nativeTypeCode = %v, want %v", props["nativeTypeCode"], wire.TypeDouble)
	}
	if props["nativeType"] != "double" {
		t.Errorf("nativeType = %v, want double", props["nativeType"])
	}
}

func TestChannelDisposerIsIdempotent(t *testing.T) {
	ch := New(1, "x")
	calls := 0
	dispose := ch.AddConnectionListener(func(c *Channel, connected bool) {
		calls++
	})
	dispose()
	dispose() // must not panic or double-remove

	ch.MarkConnected(1, wire.TypeDouble, 1, types.ReadOnly)
	if calls != 0 {
		t.Errorf("calls = %d, want 0 after disposing before connect", calls)
	}
}

func TestChannelClosedSuppressesDisconnectNotification(t *testing.T) {
	ch := New(1, "x")
	ch.MarkConnected(1, wire.TypeDouble, 1, types.ReadOnly)

	var sawDisconnect bool
	ch.AddConnectionListener(func(c *Channel, connected bool) {
		if !connected {
			sawDisconnect = true
		}
	})

	ch.MarkClosed()
	if sawDisconnect {
		t.Error("MarkClosed delivered a disconnect notification; it should be a quiet close")
	}
	if ch.State() != types.Closed {
		t.Errorf("State() = %v, want Closed", ch.State())
	}
}

func TestChannelDisconnectedThenReconnected(t *testing.T) {
	ch := New(1, "x")
	ch.MarkConnected(1, wire.TypeLong, 1, types.ReadOnly)

	var seq []string
	ch.AddConnectionListener(func(c *Channel, connected bool) {
		if connected {
			seq = append(seq, "up")
		} else {
			seq = append(seq, "down")
		}
	})

	ch.MarkDisconnected()
	if ch.State() != types.Disconnected {
		t.Errorf("State() = %v, want Disconnected", ch.State())
	}

	ch.MarkConnected(2, wire.TypeLong, 1, types.ReadWrite)
	if ch.State() != types.Connected {
		t.Errorf("State() = %v, want Connected", ch.State())
	}

	want := []string{"down", "up"}
	if len(seq) != len(want) {
		t.Fatalf("seq = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("seq[%d] = %q, want %q", i, seq[i], want[i])
		}
	}
}
