package fakeserver

import (
	"encoding/binary"
	"net"
	"sync"

	"goca/pkg/types"
	"goca/pkg/wire"
)

// sub is one EVENT_ADD subscription a client has open on a channel,
// remembering the metadata kind it asked for so updates are encoded the
// same way the initial EVENT_ADD response was.
type sub struct {
	name string
	mask types.EventMask
	ts   types.TypeSupport
}

// conn is one accepted client link: the raw socket, its frame reader,
// and the channels/subscriptions it has opened. Once CREATE_CHANNEL
// succeeds, every further request for that channel (READ/WRITE_NOTIFY,
// EVENT_ADD/CANCEL) addresses it by server-assigned id, mirroring the
// client side's own convention.
type conn struct {
	srv *Server
	nc  net.Conn
	fr  *wire.FrameReader

	mu    sync.Mutex
	wOnce sync.Mutex // serializes writes onto nc
	subs  map[uint32]sub
	sids  map[uint32]string // sid -> channel name, for channels opened on this conn
}

func (c *conn) Close() {
	c.nc.Close()
}

func (c *conn) send(h wire.Header, payload []byte) error {
	c.wOnce.Lock()
	defer c.wOnce.Unlock()
	_, err := c.nc.Write(wire.EncodeFrame(h, payload))
	return err
}

func (c *conn) serve() {
	defer c.srv.wg.Done()
	defer c.srv.dropConn(c)
	defer c.nc.Close()

	for {
		f, err := c.fr.ReadFrame()
		if err != nil {
			return
		}
		c.handle(f)
	}
}

func (c *conn) handle(f wire.Frame) {
	switch f.Header.Command {
	case wire.CmdVersion, wire.CmdClientName, wire.CmdHostName:
		// handshake frames carry no response
	case wire.CmdEcho:
		c.send(wire.Header{Command: wire.CmdEcho}, nil)
	case wire.CmdCreateChan:
		c.handleCreateChannel(f)
	case wire.CmdReadNotify:
		c.handleReadNotify(f)
	case wire.CmdWrite, wire.CmdWriteNotify:
		c.handleWrite(f)
	case wire.CmdEventAdd:
		c.handleEventAdd(f)
	case wire.CmdEventCancel:
		c.handleEventCancel(f)
	}
}

func (c *conn) lookupPV(name string) *pv {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.pvs[name]
}

func (c *conn) handleCreateChannel(f wire.Frame) {
	cid := f.Header.Parameter1
	name := wire.GetString(f.Payload)
	p := c.lookupPV(name)
	if p == nil {
		c.send(wire.Header{Command: wire.CmdCreateChFail, Parameter2: cid}, nil)
		return
	}
	p.mu.Lock()
	if p.reject {
		p.mu.Unlock()
		c.send(wire.Header{Command: wire.CmdCreateChFail, Parameter2: cid}, nil)
		return
	}
	sid := c.srv.nextSID.Add(1)
	kind := p.kind
	count := uint32(p.value.Count)
	p.clients[c] = clientHandle{cid: cid, sid: sid}
	p.mu.Unlock()

	c.mu.Lock()
	c.sids[sid] = name
	c.mu.Unlock()

	ts, _ := types.Lookup(kind, types.MetaPlain)
	c.send(wire.Header{
		Command:    wire.CmdCreateChan,
		DataType:   ts.WireType,
		DataCount:  count,
		Parameter1: sid,
		Parameter2: cid,
	}, nil)
	c.send(wire.Header{
		Command:    wire.CmdAccessRights,
		Parameter1: cid,
		Parameter2: uint32(types.ReadWrite),
	}, nil)
}

func (c *conn) pvForSID(sid uint32) (*pv, string) {
	c.mu.Lock()
	name, ok := c.sids[sid]
	c.mu.Unlock()
	if !ok {
		return nil, ""
	}
	return c.lookupPV(name), name
}

func (c *conn) handleReadNotify(f wire.Frame) {
	sid := f.Header.Parameter1
	ioid := f.Header.Parameter2
	p, _ := c.pvForSID(sid)
	if p == nil {
		c.send(wire.Header{Command: wire.CmdReadNotify, Parameter1: 1, Parameter2: ioid}, nil)
		return
	}
	ts, ok := types.LookupByWireType(f.Header.DataType)
	if !ok {
		c.send(wire.Header{Command: wire.CmdReadNotify, Parameter1: 1, Parameter2: ioid}, nil)
		return
	}
	b := p.bundle(ts)
	payload, err := types.EncodeBundle(ts, b)
	if err != nil {
		c.send(wire.Header{Command: wire.CmdReadNotify, Parameter1: 1, Parameter2: ioid}, nil)
		return
	}
	c.send(wire.Header{
		Command:    wire.CmdReadNotify,
		DataType:   ts.WireType,
		DataCount:  uint32(b.Value().Count),
		Parameter2: ioid,
	}, payload)
}

func (c *conn) handleWrite(f wire.Frame) {
	sid := f.Header.Parameter1
	p, _ := c.pvForSID(sid)
	notify := f.Header.Command == wire.CmdWriteNotify
	ioid := f.Header.Parameter2
	if p == nil {
		if notify {
			c.send(wire.Header{Command: wire.CmdWriteNotify, Parameter1: 1, Parameter2: ioid}, nil)
		}
		return
	}
	v, err := decodePlainValue(p.kind, f)
	if err != nil {
		if notify {
			c.send(wire.Header{Command: wire.CmdWriteNotify, Parameter1: 1, Parameter2: ioid}, nil)
		}
		return
	}
	p.mu.Lock()
	p.value = v
	clients := make(map[*conn]clientHandle, len(p.clients))
	for cc, h := range p.clients {
		clients[cc] = h
	}
	p.mu.Unlock()

	if notify {
		c.send(wire.Header{Command: wire.CmdWriteNotify, Parameter2: ioid}, nil)
	}
	for cc, h := range clients {
		cc.publishEvents(h.sid, p)
	}
}

func decodePlainValue(kind types.Kind, f wire.Frame) (types.Value, error) {
	ts, ok := types.Lookup(kind, types.MetaPlain)
	if !ok {
		return types.Value{}, types.NewStatus(types.CodeBadType, "unsupported kind")
	}
	b, err := types.DecodeBundle(ts, f.Payload, f.Header.DataCount)
	if err != nil {
		return types.Value{}, err
	}
	return b.Value(), nil
}

func (c *conn) handleEventAdd(f wire.Frame) {
	sid := f.Header.Parameter1
	ioid := f.Header.Parameter2
	p, name := c.pvForSID(sid)
	if p == nil {
		return
	}
	ts, ok := types.LookupByWireType(f.Header.DataType)
	if !ok {
		return
	}
	mask := types.EventValue
	if len(f.Payload) >= 2 {
		mask = types.EventMask(binary.BigEndian.Uint16(f.Payload[0:2]))
	}
	c.mu.Lock()
	c.subs[ioid] = sub{name: name, mask: mask, ts: ts}
	c.mu.Unlock()

	c.sendEvent(ioid, p, ts)
}

func (c *conn) handleEventCancel(f wire.Frame) {
	ioid := f.Header.Parameter2
	c.mu.Lock()
	delete(c.subs, ioid)
	c.mu.Unlock()
}

// publishEvents sends the current value of p to every subscription this
// client holds on the channel identified by sid, each encoded with the
// metadata kind that subscription originally requested.
func (c *conn) publishEvents(sid uint32, p *pv) {
	c.mu.Lock()
	name := c.sids[sid]
	type target struct {
		ioid uint32
		ts   types.TypeSupport
	}
	var targets []target
	for ioid, s := range c.subs {
		if s.name == name {
			targets = append(targets, target{ioid: ioid, ts: s.ts})
		}
	}
	c.mu.Unlock()
	for _, t := range targets {
		c.sendEvent(t.ioid, p, t.ts)
	}
}

func (c *conn) sendEvent(ioid uint32, p *pv, ts types.TypeSupport) {
	b := p.bundle(ts)
	payload, err := types.EncodeBundle(ts, b)
	if err != nil {
		return
	}
	c.send(wire.Header{
		Command:    wire.CmdEventAdd,
		DataType:   ts.WireType,
		DataCount:  uint32(b.Value().Count),
		Parameter2: ioid,
	}, payload)
}
