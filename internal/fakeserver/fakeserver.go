// Package fakeserver is an in-process stand-in for a CA server, used only
// by this module's own tests: it answers SEARCH over UDP, accepts TCP
// connections, and drives CREATE_CHANNEL / READ_NOTIFY / WRITE_NOTIFY /
// EVENT_ADD / SERVER_DISCONN the way a real IOC would for the handful of
// channels a test registers.
package fakeserver

import (
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"

	"goca/pkg/types"
	"goca/pkg/wire"
)

// clientHandle identifies one client's view of a channel: the
// client-chosen id it used in CREATE_CHANNEL and the server-assigned id
// this server handed back.
type clientHandle struct {
	cid uint32
	sid uint32
}

// pv is one served channel's backing state. status/severity/labels back
// every metadata variant a client may request via GetMeta/AddValueMonitor
// with a non-plain MetaKind; labels is only meaningful for GraphicEnum
// over a KindShort channel.
type pv struct {
	mu       sync.Mutex
	kind     types.Kind
	value    types.Value
	status   types.AlarmStatus
	severity types.AlarmSeverity
	labels   []string
	reject   bool
	clients  map[*conn]clientHandle // client -> its (cid, sid) for this channel
}

// Server answers SEARCH/CREATE_CHANNEL/READ/WRITE/EVENT_ADD for a fixed
// set of named channels, each backed by one in-memory Value.
type Server struct {
	udp *net.UDPConn
	tcp net.Listener

	mu       sync.Mutex
	pvs      map[string]*pv
	conns    map[*conn]bool
	nextSID  atomic.Uint32
	stopping atomic.Bool
	wg       sync.WaitGroup
}

// New starts a Server listening on loopback UDP and TCP ports. Call
// Addr() for the address to feed into EPICS_CA_ADDR_LIST and Close() to
// tear everything down.
func New() (*Server, error) {
	udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, err
	}
	tcp, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		udp.Close()
		return nil, err
	}
	s := &Server{
		udp:   udp,
		tcp:   tcp,
		pvs:   make(map[string]*pv),
		conns: make(map[*conn]bool),
	}
	s.wg.Add(2)
	go s.searchLoop()
	go s.acceptLoop()
	return s, nil
}

// Addr is the UDP address clients should put in EPICS_CA_ADDR_LIST.
func (s *Server) Addr() string { return s.udp.LocalAddr().String() }

// AddChannel registers a channel named name, of the given kind, with an
// initial value.
func (s *Server) AddChannel(name string, kind types.Kind, initial types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pvs[name] = &pv{kind: kind, value: initial, clients: make(map[*conn]clientHandle)}
}

// bundle builds the Bundle variant ts.MetaKind calls for out of p's
// current value, alarm status/severity, and (for GraphicEnum) labels.
// Display/control limits are always reported zero: no scenario in this
// module's test suite exercises them.
func (p *pv) bundle(ts types.TypeSupport) types.Bundle {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ts.MetaKind {
	case types.MetaAlarm:
		return types.AlarmBundle{Val: p.value, Status: p.status, Severity: p.severity}
	case types.MetaTimestamped:
		return types.TimestampedBundle{Val: p.value, Status: p.status, Severity: p.severity}
	case types.MetaGraphic:
		return types.GraphicBundle{Val: p.value, Status: p.status, Severity: p.severity}
	case types.MetaControl:
		return types.ControlBundle{Val: p.value, Status: p.status, Severity: p.severity}
	case types.MetaGraphicEnum:
		return types.GraphicEnumBundle{Val: p.value, Status: p.status, Severity: p.severity, Labels: p.labels}
	default:
		return types.PlainBundle{Val: p.value}
	}
}

// SetAlarm sets the alarm status/severity reported with name's value in
// every metadata variant that carries one (all but Plain).
func (s *Server) SetAlarm(name string, status types.AlarmStatus, severity types.AlarmSeverity) {
	s.mu.Lock()
	p := s.pvs[name]
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	p.status = status
	p.severity = severity
	p.mu.Unlock()
}

// SetLabels sets the enum state strings name reports under GraphicEnum
// metadata. Only meaningful for a KindShort channel.
func (s *Server) SetLabels(name string, labels []string) {
	s.mu.Lock()
	p := s.pvs[name]
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	p.labels = labels
	p.mu.Unlock()
}

// RejectChannel makes every future CREATE_CHANNEL for name fail.
func (s *Server) RejectChannel(name string) {
	s.mu.Lock()
	p := s.pvs[name]
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	p.reject = true
	p.mu.Unlock()
}

// SetValue updates name's backing value and pushes it to every
// subscriber currently holding an EVENT_ADD on it.
func (s *Server) SetValue(name string, v types.Value) {
	s.mu.Lock()
	p := s.pvs[name]
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	p.value = v
	clients := make(map[*conn]clientHandle, len(p.clients))
	for c, h := range p.clients {
		clients[c] = h
	}
	p.mu.Unlock()

	for c, h := range clients {
		c.publishEvents(h.sid, p)
	}
}

// Bounce simulates a server-initiated disconnect of name: every client
// holding it open is sent SERVER_DISCONN and its TCP connection is torn
// down, exactly as a real IOC restart would look from the client side.
func (s *Server) Bounce(name string) {
	s.mu.Lock()
	p := s.pvs[name]
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	clients := make(map[*conn]clientHandle, len(p.clients))
	for c, h := range p.clients {
		clients[c] = h
	}
	p.clients = make(map[*conn]clientHandle)
	p.mu.Unlock()

	for c, h := range clients {
		c.send(wire.Header{Command: wire.CmdServerDisconn, Parameter2: h.cid}, nil)
		c.Close()
	}
}

// Close stops accepting connections and closes every live client link.
func (s *Server) Close() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	s.udp.Close()
	s.tcp.Close()
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

func (s *Server) searchLoop() {
	defer s.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, peer, err := s.udp.ReadFromUDP(buf)
		if err != nil {
			return
		}
		s.handleSearch(buf[:n], peer)
	}
}

func (s *Server) handleSearch(data []byte, peer *net.UDPAddr) {
	data2 := data
	for len(data2) > 0 {
		f, consumed, err := wire.ParseFrame(data2, 65536)
		if err != nil {
			return
		}
		data2 = data2[consumed:]
		if f.Header.Command != wire.CmdSearch {
			continue
		}
		name := wire.GetString(f.Payload)
		s.mu.Lock()
		_, known := s.pvs[name]
		s.mu.Unlock()
		if !known {
			continue
		}
		port := s.tcp.Addr().(*net.TCPAddr).Port
		payload := make([]byte, 8)
		binary.BigEndian.PutUint16(payload[0:2], uint16(port))
		resp := wire.EncodeFrame(wire.Header{
			Command:    wire.CmdSearch,
			DataCount:  13,
			Parameter2: f.Header.Parameter2,
		}, payload)
		s.udp.WriteToUDP(resp, peer)
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		c, err := s.tcp.Accept()
		if err != nil {
			return
		}
		cn := &conn{srv: s, nc: c, fr: wire.NewFrameReader(c, 0), subs: make(map[uint32]sub), sids: make(map[uint32]string)}
		s.mu.Lock()
		s.conns[cn] = true
		s.mu.Unlock()
		s.wg.Add(1)
		go cn.serve()
	}
}

func (s *Server) dropConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
