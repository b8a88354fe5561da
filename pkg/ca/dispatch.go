package ca

import (
	"net"
	"os"

	"goca/pkg/iomux"
	"goca/pkg/search"
	"goca/pkg/transport"
	"goca/pkg/types"
	"goca/pkg/wire"
)

// ResolveSearch implements search.Resolver. It is called once per
// SEARCH_RESPONSE for a still-unresolved channel: acquire (or reuse) the
// Transport to the answering server and issue CREATE_CHANNEL on it.
func (c *Context) ResolveSearch(cid uint32, serverAddr *net.UDPAddr, minorVersion uint16) {
	ch, ok := c.facadeByCID(cid)
	if !ok {
		return
	}
	if ch.reg.State() != types.NeverConnected && ch.reg.State() != types.Disconnected {
		return
	}

	const priority = 0 // per-channel priority is plumbed through Transport/Registry but not yet exposed on the facade
	address := serverAddr.String()

	t, err := c.transports.Acquire(address, priority)
	if err != nil {
		c.log.Warn("ca: acquiring transport to %s for %s: %v", address, ch.reg.Name, err)
		return
	}
	ch.reg.SetTransportKey(address, priority)

	c.ensureLinkInitialized(t, address)
	c.sendCreateChannel(t, ch)
}

// ensureLinkInitialized sends the one-time VERSION/CLIENT_NAME/HOST_NAME
// handshake the first time this Context uses a given server address.
func (c *Context) ensureLinkInitialized(t *transport.Transport, address string) {
	c.mu.Lock()
	if c.linksInitialized[address] {
		c.mu.Unlock()
		return
	}
	c.linksInitialized[address] = true
	c.mu.Unlock()

	t.Send(wire.Header{Command: wire.CmdVersion, DataCount: uint32(search.MinorVersion)}, nil)

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	t.Send(wire.Header{Command: wire.CmdClientName}, wire.PutString("goca"))
	t.Send(wire.Header{Command: wire.CmdHostName}, wire.PutString(host))
}

func (c *Context) sendCreateChannel(t *transport.Transport, ch *Channel) {
	name := ch.reg.Name
	payload := make([]byte, wire.PadToEightBytes(len(name)+1))
	copy(payload, name)
	h := wire.Header{
		Command:    wire.CmdCreateChan,
		Parameter1: ch.reg.CID,
		Parameter2: uint32(search.MinorVersion),
	}
	if err := t.Send(h, payload); err != nil {
		c.log.Warn("ca: sending CREATE_CHANNEL for %s: %v", name, err)
	}
}

// HandleFrame implements transport.FrameHandler. It dispatches an
// in-order received frame to the channel registry or the I/O mux.
func (c *Context) HandleFrame(t *transport.Transport, f wire.Frame) {
	switch f.Header.Command {
	case wire.CmdCreateChan:
		c.handleCreateChannelOK(f)
	case wire.CmdCreateChFail:
		c.handleCreateChannelFail(f)
	case wire.CmdAccessRights:
		c.handleAccessRights(f)
	case wire.CmdServerDisconn:
		c.handleServerDisconn(f)
	case wire.CmdReadNotify:
		c.handleReadNotify(f)
	case wire.CmdWriteNotify:
		c.handleWriteNotify(f)
	case wire.CmdEventAdd:
		c.handleEventAdd(f)
	case wire.CmdEcho, wire.CmdVersion, wire.CmdClientName, wire.CmdHostName:
		// liveness/handshake frames carry no further action
	default:
		c.log.Debug("ca: unhandled command %s", f.Header.Command)
	}
}

func (c *Context) handleCreateChannelOK(f wire.Frame) {
	cid := f.Header.Parameter2
	sid := f.Header.Parameter1
	ch, ok := c.facadeByCID(cid)
	if !ok {
		return
	}
	rights := c.rightsOrDefault(cid)
	ch.reg.MarkConnected(sid, f.Header.DataType, f.Header.DataCount, rights)
}

func (c *Context) handleCreateChannelFail(f wire.Frame) {
	cid := f.Header.Parameter2
	ch, ok := c.facadeByCID(cid)
	if !ok {
		return
	}
	c.log.Warn("ca: server rejected CREATE_CHANNEL for %s", ch.reg.Name)
	// the channel remains NEVER_CONNECTED and keeps being searched; a
	// server that always rejects a given name will be retried forever,
	// same as one that never answers SEARCH at all.
}

func (c *Context) handleAccessRights(f wire.Frame) {
	cid := f.Header.Parameter1
	rights := types.AccessRightsFromWire(f.Header.Parameter2)
	c.setPendingRights(cid, rights)
	if ch, ok := c.facadeByCID(cid); ok && ch.reg.State() == types.Connected {
		ch.reg.SetAccessRights(rights)
	}
}

func (c *Context) handleServerDisconn(f wire.Frame) {
	cid := f.Header.Parameter2
	c.disconnectChannel(cid)
}

func (c *Context) handleReadNotify(f wire.Frame) {
	ioid := f.Header.Parameter2
	status := f.Header.Parameter1
	if status != 0 {
		c.takePendingRead(ioid)
		c.mux.Complete(ioid, iomux.Result{Status: types.NewStatus(types.CodeGetFail, "server returned status %d", status)})
		return
	}
	ts, ok := c.takePendingRead(ioid)
	if !ok {
		c.log.Warn("ca: READ_NOTIFY response for unknown ioid %d", ioid)
		return
	}
	bundle, err := types.DecodeBundle(ts, f.Payload, f.Header.DataCount)
	if err != nil {
		c.mux.Complete(ioid, iomux.Result{Status: types.NewStatus(types.CodeGetFail, "%v", err)})
		return
	}
	c.mux.Complete(ioid, iomux.Result{Value: bundle, Status: types.Normal})
}

func (c *Context) handleWriteNotify(f wire.Frame) {
	ioid := f.Header.Parameter2
	status := f.Header.Parameter1
	if status != 0 {
		c.mux.Complete(ioid, iomux.Result{Status: types.NewStatus(types.CodePutFail, "server returned status %d", status)})
		return
	}
	c.mux.Complete(ioid, iomux.Result{Status: types.Normal})
}

func (c *Context) handleEventAdd(f wire.Frame) {
	ioid := f.Header.Parameter2
	status := f.Header.Parameter1
	mon, ok := c.monitorByIOID(ioid)
	if !ok {
		return
	}
	if status != 0 {
		c.log.Warn("ca: EVENT_ADD response for ioid %d carried status %d", ioid, status)
		return
	}
	ts, ok := types.Lookup(mon.ch.kind, mon.metaKind)
	if !ok {
		return
	}
	bundle, err := types.DecodeBundle(ts, f.Payload, f.Header.DataCount)
	if err != nil {
		c.log.Warn("ca: decoding EVENT_ADD payload for ioid %d: %v", ioid, err)
		return
	}
	mon.svc.Publish(monitorNotification(bundle))
}

// HandleTransportDeath implements transport.DeathHandler: every channel
// hosted by the dead link is disconnected and re-entered into search.
func (c *Context) HandleTransportDeath(t *transport.Transport) {
	for _, rc := range c.reg.HostedBy(t.Address, t.Priority) {
		c.disconnectChannel(rc.CID)
	}
}

// disconnectChannel moves cid from CONNECTED to DISCONNECTED, fails its
// outstanding requests, releases its Transport reference, and re-enters
// it into the search engine's retry pool. Used both for a single
// SERVER_DISCONN and for the per-channel fallout of a transport death.
func (c *Context) disconnectChannel(cid uint32) {
	ch, ok := c.facadeByCID(cid)
	if !ok {
		return
	}
	addr, pri := ch.reg.TransportKey()

	ch.reg.MarkDisconnected()
	c.mux.CancelByChannel(cid, types.NewStatus(types.CodeDisconn, "channel %s disconnected", ch.reg.Name))
	ch.reg.SetTransportKey("", 0)

	if addr != "" {
		c.transports.Release(addr, pri)
	}

	c.search.AddChannel(cid, ch.reg.Name)
}
