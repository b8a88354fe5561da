package ca

import (
	"sync"
	"time"

	"goca/pkg/iomux"
	"goca/pkg/registry"
	"goca/pkg/transport"
	"goca/pkg/types"
	"goca/pkg/wire"
)

// Channel is the application-visible handle: a typed view over a
// registry.Channel plus the operations that issue requests on its
// transport and manage its monitors.
type Channel struct {
	ctx  *Context
	reg  *registry.Channel
	kind types.Kind

	mu       sync.Mutex
	monitors []*Monitor
}

// GetName returns the channel's configured name.
func (c *Channel) GetName() string { return c.reg.Name }

// GetConnectionState returns the current state machine state.
func (c *Channel) GetConnectionState() types.ConnectionState { return c.reg.State() }

// GetAccessRights returns the last-known access rights.
func (c *Channel) GetAccessRights() types.AccessRights { return c.reg.AccessRights() }

// GetProperties returns nativeTypeCode/nativeElementCount/nativeType,
// valid only once CONNECTED.
func (c *Channel) GetProperties() map[string]interface{} { return c.reg.Properties() }

// AddConnectionListener registers fn for connected/disconnected events
// and returns an idempotent disposer.
func (c *Channel) AddConnectionListener(fn func(connected bool)) func() {
	return c.reg.AddConnectionListener(func(_ *registry.Channel, connected bool) { fn(connected) })
}

// AddAccessRightListener registers fn for access-rights changes and
// returns an idempotent disposer.
func (c *Channel) AddAccessRightListener(fn func(rights types.AccessRights)) func() {
	return c.reg.AddAccessRightsListener(func(_ *registry.Channel, rights types.AccessRights) { fn(rights) })
}

// Connect blocks until the channel reaches CONNECTED, or timeout elapses
// (timeout<=0 blocks forever).
func (c *Channel) Connect(timeout time.Duration) error {
	return c.ConnectAsync().Wait(timeout)
}

// ConnectAsync returns a future that resolves once the channel reaches
// CONNECTED. The listener registered to watch for that transition is
// only disposed by ConnectFuture.Wait; a caller that keeps the future
// but never calls Wait leaks it for the channel's lifetime.
func (c *Channel) ConnectAsync() *ConnectFuture {
	cf := &ConnectFuture{done: make(chan struct{})}
	var once sync.Once
	fire := func() { once.Do(func() { close(cf.done) }) }

	if c.reg.State() == types.Connected {
		fire()
		return cf
	}

	disposer := c.reg.AddConnectionListener(func(_ *registry.Channel, connected bool) {
		if connected {
			fire()
		}
	})
	cf.disposer = disposer

	if c.reg.State() == types.Connected {
		fire()
	}
	return cf
}

// Close quietly closes the channel: no disconnect notification fires,
// all listeners and monitors are torn down, outstanding futures fail
// with CHANDESTROY, and the Transport reference is released.
func (c *Channel) Close() error {
	c.ctx.closeChannel(c)
	return nil
}

// Get performs a synchronous plain-value read.
func (c *Channel) Get() (types.Value, error) {
	b, err := c.GetMeta(types.MetaPlain)
	if err != nil {
		return types.Value{}, err
	}
	return b.Value(), nil
}

// GetAsync returns a future for a plain-value read.
func (c *Channel) GetAsync() *Future {
	return c.GetMetaAsync(types.MetaPlain)
}

// GetMeta performs a synchronous read requesting the given metadata kind.
func (c *Channel) GetMeta(m types.MetaKind) (types.Bundle, error) {
	res, err := c.GetMetaAsync(m).Wait(0)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetMetaAsync issues a READ_NOTIFY for the given metadata kind and
// returns a future for its completion.
func (c *Channel) GetMetaAsync(m types.MetaKind) *Future {
	if c.reg.State() != types.Connected {
		return failedFuture(types.NewStatus(types.CodeDisconn, "channel %s not connected", c.reg.Name))
	}
	ts, ok := types.Lookup(c.kind, m)
	if !ok {
		return failedFuture(types.NewStatus(types.CodeUsageError, "unsupported metadata kind %s for %s", m, c.kind))
	}
	addr, pri := c.reg.TransportKey()
	t, ok := c.ctx.transports.Lookup(addr, pri)
	if !ok {
		return failedFuture(types.NewStatus(types.CodeDisconn, "channel %s has no live transport", c.reg.Name))
	}

	req := c.ctx.mux.Submit(iomux.KindReadNotify, c.reg.CID, addr)
	c.ctx.registerPendingRead(req.IOID, ts)

	h := wire.Header{
		Command:    wire.CmdReadNotify,
		DataType:   ts.WireType,
		Parameter1: c.reg.ServerID(),
		Parameter2: req.IOID,
	}
	if err := t.Send(h, nil); err != nil {
		c.ctx.takePendingRead(req.IOID)
		c.ctx.mux.PutNoWait(req.IOID)
		return failedFuture(types.NewStatus(types.CodeDisconn, "%v", err))
	}
	return &Future{req: req, mux: c.ctx.mux}
}

// Put performs a synchronous write and waits for the server's
// acknowledgement.
func (c *Channel) Put(v types.Value) error {
	f, err := c.PutAsync(v)
	if err != nil {
		return err
	}
	_, err = f.Wait(0)
	return err
}

// PutAsync issues a WRITE_NOTIFY and returns a future for its
// acknowledgement.
func (c *Channel) PutAsync(v types.Value) (*Future, error) {
	t, ts, payload, err := c.prepareWrite(v)
	if err != nil {
		return nil, err
	}
	req := c.ctx.mux.Submit(iomux.KindWriteNotify, c.reg.CID, c.addr())
	h := wire.Header{
		Command:    wire.CmdWriteNotify,
		DataType:   ts.WireType,
		DataCount:  uint32(v.Count),
		Parameter1: c.reg.ServerID(),
		Parameter2: req.IOID,
	}
	if err := t.Send(h, payload); err != nil {
		c.ctx.mux.PutNoWait(req.IOID)
		return nil, types.NewStatus(types.CodeDisconn, "%v", err)
	}
	return &Future{req: req, mux: c.ctx.mux}, nil
}

// PutNoWait issues a fire-and-forget WRITE: no completion is tracked and
// no acknowledgement is awaited.
func (c *Channel) PutNoWait(v types.Value) error {
	t, ts, payload, err := c.prepareWrite(v)
	if err != nil {
		return err
	}
	h := wire.Header{
		Command:    wire.CmdWrite,
		DataType:   ts.WireType,
		DataCount:  uint32(v.Count),
		Parameter1: c.reg.ServerID(),
	}
	return t.Send(h, payload)
}

func (c *Channel) addr() string {
	addr, _ := c.reg.TransportKey()
	return addr
}

// Statistics returns the wire-level counters for the channel's current
// transport: bytes/frames sent and received, plus read/write error
// counts, shared with every other channel connected through the same
// TCP circuit. The zero value is returned while disconnected.
func (c *Channel) Statistics() transport.StatsSnapshot {
	addr, pri := c.reg.TransportKey()
	t, ok := c.ctx.transports.Lookup(addr, pri)
	if !ok {
		return transport.StatsSnapshot{}
	}
	return t.Statistics()
}

func (c *Channel) prepareWrite(v types.Value) (*transport.Transport, types.TypeSupport, []byte, error) {
	if c.reg.State() != types.Connected {
		return nil, types.TypeSupport{}, nil, types.NewStatus(types.CodeDisconn, "channel %s not connected", c.reg.Name)
	}
	ts, ok := types.Lookup(c.kind, types.MetaPlain)
	if !ok {
		return nil, types.TypeSupport{}, nil, types.NewStatus(types.CodeUsageError, "unsupported value kind %s", c.kind)
	}
	payload, err := types.EncodeBundle(ts, types.PlainBundle{Val: v})
	if err != nil {
		return nil, types.TypeSupport{}, nil, types.NewStatus(types.CodePutFail, "%v", err)
	}
	addr, pri := c.reg.TransportKey()
	t, ok := c.ctx.transports.Lookup(addr, pri)
	if !ok {
		return nil, types.TypeSupport{}, nil, types.NewStatus(types.CodeDisconn, "channel %s has no live transport", c.reg.Name)
	}
	return t, ts, payload, nil
}
