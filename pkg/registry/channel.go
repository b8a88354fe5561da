// Package registry owns Channel lifecycle: the NEVER_CONNECTED /
// CONNECTED / DISCONNECTED / CLOSED state machine and the fan-out of
// connection and access-rights events to registered listeners.
package registry

import (
	"sync"

	"goca/pkg/types"
	"goca/pkg/wire"
)

// ConnectionListener is called with the channel and whether it just
// became connected (true) or disconnected (false).
type ConnectionListener func(ch *Channel, connected bool)

// AccessRightsListener is called with the channel and its latest rights.
type AccessRightsListener func(ch *Channel, rights types.AccessRights)

// Disposer removes the listener it was returned for. Idempotent.
type Disposer func()

// Channel is the application-visible handle's backing state. The
// type-parameterized facade in pkg/ca wraps one of these per channel.
type Channel struct {
	CID  uint32
	Name string

	mu                sync.RWMutex
	state             types.ConnectionState
	accessRights      types.AccessRights
	serverID          uint32
	nativeType        wire.TypeCode
	nativeCount       uint32
	transportAddr     string
	transportPriority uint8

	connListeners   map[int]ConnectionListener
	rightsListeners map[int]AccessRightsListener
	nextListenerID  int
}

// New creates a channel in NEVER_CONNECTED for cid/name.
func New(cid uint32, name string) *Channel {
	return &Channel{
		CID:             cid,
		Name:            name,
		state:           types.NeverConnected,
		connListeners:   make(map[int]ConnectionListener),
		rightsListeners: make(map[int]AccessRightsListener),
	}
}

// State returns the channel's current connection state.
func (c *Channel) State() types.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AccessRights returns the last-known access rights.
func (c *Channel) AccessRights() types.AccessRights {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessRights
}

// Properties returns nativeTypeCode/nativeElementCount/nativeType, valid
// only once the channel has reached CONNECTED; zero values otherwise.
func (c *Channel) Properties() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != types.Connected {
		return map[string]interface{}{
			"nativeTypeCode":     wire.TypeCode(0),
			"nativeElementCount": uint32(0),
			"nativeType":         "",
		}
	}
	return map[string]interface{}{
		"nativeTypeCode":     c.nativeType,
		"nativeElementCount": c.nativeCount,
		"nativeType":         c.nativeType.String(),
	}
}

// ServerID returns the server-assigned channel id, meaningful only once
// connected.
func (c *Channel) ServerID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverID
}

// SetAccessRights updates the channel's rights outside of the initial
// MarkConnected call (a server may re-send ACCESS_RIGHTS later) and
// notifies rights listeners. No-op once CLOSED.
func (c *Channel) SetAccessRights(rights types.AccessRights) {
	c.mu.Lock()
	if c.state == types.Closed {
		c.mu.Unlock()
		return
	}
	c.accessRights = rights
	listeners := c.snapshotRightsListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l(c, rights)
	}
}

// TransportKey returns the (address, priority) of the Transport currently
// hosting this channel, meaningful only once connected.
func (c *Channel) TransportKey() (string, uint8) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transportAddr, c.transportPriority
}

// SetTransportKey records which Transport this channel will attach to
// once CREATE_CHANNEL succeeds.
func (c *Channel) SetTransportKey(addr string, priority uint8) {
	c.mu.Lock()
	c.transportAddr = addr
	c.transportPriority = priority
	c.mu.Unlock()
}

// MarkConnected transitions NEVER_CONNECTED or DISCONNECTED to CONNECTED,
// records server identity, and fires connection + access-rights
// listeners. No-op if already CONNECTED or CLOSED.
func (c *Channel) MarkConnected(serverID uint32, nativeType wire.TypeCode, nativeCount uint32, rights types.AccessRights) {
	c.mu.Lock()
	if c.state == types.Connected || c.state == types.Closed {
		c.mu.Unlock()
		return
	}
	c.state = types.Connected
	c.serverID = serverID
	c.nativeType = nativeType
	c.nativeCount = nativeCount
	c.accessRights = rights
	listeners := c.snapshotConnListeners()
	rightsListeners := c.snapshotRightsListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l(c, true)
	}
	for _, l := range rightsListeners {
		l(c, rights)
	}
}

// MarkDisconnected transitions CONNECTED to DISCONNECTED and notifies
// connection listeners. No-op if not currently CONNECTED.
func (c *Channel) MarkDisconnected() {
	c.mu.Lock()
	if c.state != types.Connected {
		c.mu.Unlock()
		return
	}
	c.state = types.Disconnected
	listeners := c.snapshotConnListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l(c, false)
	}
}

// MarkClosed transitions to CLOSED from any non-terminal state. This is
// a quiet close: no disconnect notification fires, but all listeners are
// unregistered so none fire afterward either.
func (c *Channel) MarkClosed() {
	c.mu.Lock()
	if c.state == types.Closed {
		c.mu.Unlock()
		return
	}
	c.state = types.Closed
	c.connListeners = make(map[int]ConnectionListener)
	c.rightsListeners = make(map[int]AccessRightsListener)
	c.mu.Unlock()
}

// AddConnectionListener registers l and returns a disposer that
// unregisters it. Idempotent: disposing twice is a no-op.
func (c *Channel) AddConnectionListener(l ConnectionListener) Disposer {
	c.mu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.connListeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.connListeners, id)
			c.mu.Unlock()
		})
	}
}

// AddAccessRightsListener registers l and returns an idempotent disposer.
func (c *Channel) AddAccessRightsListener(l AccessRightsListener) Disposer {
	c.mu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.rightsListeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.rightsListeners, id)
			c.mu.Unlock()
		})
	}
}

// snapshotConnListeners copies the listener set under lock so callbacks
// run outside the channel's mutex and a listener added mid-fan-out does
// not receive this event.
func (c *Channel) snapshotConnListeners() []ConnectionListener {
	out := make([]ConnectionListener, 0, len(c.connListeners))
	for _, l := range c.connListeners {
		out = append(out, l)
	}
	return out
}

func (c *Channel) snapshotRightsListeners() []AccessRightsListener {
	out := make([]AccessRightsListener, 0, len(c.rightsListeners))
	for _, l := range c.rightsListeners {
		out = append(out, l)
	}
	return out
}
