package ca

import (
	"encoding/binary"
	"sync/atomic"

	"goca/pkg/monitor"
	"goca/pkg/types"
	"goca/pkg/wire"
)

// ValueConsumer receives monitor notifications. A nil value is the
// connection-loss sentinel: delivered exactly once per DISCONNECTED
// transition so the caller can distinguish "no new data" from
// "connection gone".
type ValueConsumer func(v types.Bundle)

// Monitor is one active subscription: a (channel, consumer) pair bound
// to one notification Service. Closing it is idempotent.
type Monitor struct {
	ctx      *Context
	ch       *Channel
	ioid     uint32
	mask     types.EventMask
	metaKind types.MetaKind
	svc      monitor.Service

	disposed atomic.Bool
}

// QoS reports this monitor's underlying notification service's delivery
// characteristics.
func (m *Monitor) QoS() monitor.QoS {
	return m.svc.QoS()
}

// Close disposes the notification service and, if the channel is still
// connected, cancels the network subscription. Safe to call more than
// once; later calls are no-ops. Per documented historical behavior, this
// does NOT decrement the Context's monitor service counter.
func (m *Monitor) Close() error {
	if !m.disposed.CompareAndSwap(false, true) {
		return nil
	}
	m.svc.Dispose()
	m.ctx.unregisterMonitor(m)
	if m.ch.reg.State() == types.Connected {
		m.ctx.sendEventCancel(m.ch, m)
	}
	return nil
}

func monitorNotification(b types.Bundle) monitor.Notification {
	return monitor.Notification{Value: b}
}

// AddValueMonitor subscribes consumer to value-change notifications for
// this channel. mask defaults to EventValue; passing additional masks
// ORs them together. A nil consumer or an all-zero mask is a usage
// error: it fails synchronously without altering any state.
func (c *Channel) AddValueMonitor(consumer ValueConsumer, mask ...types.EventMask) (*Monitor, error) {
	if consumer == nil {
		return nil, types.NewStatus(types.CodeUsageError, "addValueMonitor: nil consumer")
	}
	m := types.EventValue
	if len(mask) > 0 {
		m = mask[0]
		for _, extra := range mask[1:] {
			m |= extra
		}
	}
	if !m.IsValid() {
		return nil, types.NewStatus(types.CodeUsageError, "addValueMonitor: zero event mask")
	}
	if _, ok := types.Lookup(c.kind, types.MetaPlain); !ok {
		return nil, types.NewStatus(types.CodeUsageError, "addValueMonitor: unsupported value kind %s", c.kind)
	}

	mon := &Monitor{ctx: c.ctx, ch: c, mask: m, metaKind: types.MetaPlain}
	mon.svc = c.ctx.monFactory.NewService(func(n monitor.Notification) {
		consumer(n.Value)
	})
	mon.ioid = c.ctx.mux.NextID()

	c.ctx.registerMonitor(mon)
	c.ctx.serviceCount.Add(1)

	c.mu.Lock()
	c.monitors = append(c.monitors, mon)
	c.mu.Unlock()

	if c.reg.State() == types.Connected {
		c.ctx.sendEventAdd(c, mon)
	}
	return mon, nil
}

// resubscribeMonitors re-issues EVENT_ADD for every still-active monitor
// on c, called when the channel transitions into CONNECTED (including on
// reconnect, where the same subscription-id is reused).
func (c *Channel) resubscribeMonitors() {
	c.mu.Lock()
	mons := append([]*Monitor(nil), c.monitors...)
	c.mu.Unlock()
	for _, m := range mons {
		if !m.disposed.Load() {
			c.ctx.sendEventAdd(c, m)
		}
	}
}

// signalMonitorsConnectionLoss delivers the one-per-transition null
// sentinel to every active monitor's consumer.
func (c *Channel) signalMonitorsConnectionLoss() {
	c.mu.Lock()
	mons := append([]*Monitor(nil), c.monitors...)
	c.mu.Unlock()
	for _, m := range mons {
		if !m.disposed.Load() {
			m.svc.Publish(monitor.Notification{})
		}
	}
}

func (c *Context) sendEventAdd(ch *Channel, mon *Monitor) {
	addr, pri := ch.reg.TransportKey()
	t, ok := c.transports.Lookup(addr, pri)
	if !ok {
		return
	}
	ts, ok := types.Lookup(ch.kind, mon.metaKind)
	if !ok {
		return
	}
	payload := make([]byte, 8)
	binary.BigEndian.PutUint16(payload[0:2], uint16(mon.mask))
	h := wire.Header{
		Command:    wire.CmdEventAdd,
		DataType:   ts.WireType,
		Parameter1: ch.reg.ServerID(),
		Parameter2: mon.ioid,
	}
	if err := t.Send(h, payload); err != nil {
		c.log.Warn("ca: sending EVENT_ADD for %s: %v", ch.reg.Name, err)
	}
}

func (c *Context) sendEventCancel(ch *Channel, mon *Monitor) {
	addr, pri := ch.reg.TransportKey()
	t, ok := c.transports.Lookup(addr, pri)
	if !ok {
		return
	}
	ts, ok := types.Lookup(ch.kind, mon.metaKind)
	if !ok {
		return
	}
	h := wire.Header{
		Command:    wire.CmdEventCancel,
		DataType:   ts.WireType,
		Parameter1: ch.reg.ServerID(),
		Parameter2: mon.ioid,
	}
	if err := t.Send(h, nil); err != nil {
		c.log.Warn("ca: sending EVENT_CANCEL for %s: %v", ch.reg.Name, err)
	}
}
