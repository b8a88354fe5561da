// Package ca is the top-level composition root: it wires the search
// engine, transport registry, channel registry, I/O multiplexer, and
// monitor factory into one runtime and exposes the application-facing
// Channel facade.
package ca

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"goca/internal/logger"
	"goca/pkg/config"
	"goca/pkg/iomux"
	"goca/pkg/monitor"
	"goca/pkg/registry"
	"goca/pkg/search"
	"goca/pkg/transport"
	"goca/pkg/types"
)

// Options configures a new Context.
type Options struct {
	// YAMLPath, if non-empty, is loaded as a config overlay beneath
	// Properties and above the compiled-in defaults.
	YAMLPath string
	// Properties are explicit overrides, highest precedence.
	Properties config.Properties
	// Logger defaults to a no-op logger if nil.
	Logger logger.Logger
}

// Context owns every long-lived goroutine and shared map for one CA
// client session: the search engine, one Transport per (server,
// priority), the channel registry, the I/O-ID multiplexer, and the
// monitor notification factory.
type Context struct {
	cfg *config.Resolved
	log logger.Logger

	reg        *registry.Registry
	mux        *iomux.Mux
	transports *transport.Registry
	search     *search.Engine
	monFactory *monitor.Factory

	maxArrayBytes uint32
	connTimeout   time.Duration
	serverPort    int

	nextCID      atomic.Uint32
	serviceCount atomic.Int64

	mu               sync.Mutex
	facades          map[uint32]*Channel
	monitorsByIOID   map[uint32]*Monitor
	linksInitialized map[string]bool
	pendingRights    map[uint32]types.AccessRights
	pendingReads     map[uint32]types.TypeSupport

	closed atomic.Bool
}

// New builds a Context: parses configuration, opens the search socket,
// and prepares the transport registry and monitor factory. Nothing is
// connected yet; channels are created with CreateChannel.
func New(opts Options) (*Context, error) {
	cfg, err := config.Load(opts.YAMLPath, opts.Properties)
	if err != nil {
		return nil, fmt.Errorf("ca: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	monFactory, err := monitor.NewFactory(cfg.String("CA_MONITOR_NOTIFIER_IMPL", "multi-worker,16"))
	if err != nil {
		return nil, fmt.Errorf("ca: %w", err)
	}

	c := &Context{
		cfg:              cfg,
		log:              log,
		reg:              registry.NewRegistry(),
		mux:              iomux.New(),
		monFactory:       monFactory,
		maxArrayBytes:    uint32(cfg.Int("EPICS_CA_MAX_ARRAY_BYTES", 16384)),
		connTimeout:      time.Duration(cfg.Int("EPICS_CA_CONN_TMO", 30)) * time.Second,
		serverPort:       cfg.Int("EPICS_CA_SERVER_PORT", 5064),
		facades:          make(map[uint32]*Channel),
		monitorsByIOID:   make(map[uint32]*Monitor),
		linksInitialized: make(map[string]bool),
		pendingRights:    make(map[uint32]types.AccessRights),
		pendingReads:     make(map[uint32]types.TypeSupport),
	}
	c.transports = transport.NewRegistry(c.dial, c.maxArrayBytes, c, c)

	addrList := search.ResolveAddrList(
		cfg.String("EPICS_CA_ADDR_LIST", ""),
		cfg.Bool("EPICS_CA_AUTO_ADDR_LIST", true),
		c.serverPort,
	)
	eng, err := search.New(addrList, c, log)
	if err != nil {
		monFactory.Close()
		return nil, fmt.Errorf("ca: opening search socket: %w", err)
	}
	c.search = eng

	return c, nil
}

func (c *Context) dial(address string) (net.Conn, error) {
	return net.DialTimeout("tcp", address, c.connTimeout)
}

// CreateChannel registers a new channel named name, requested as kind,
// and enrolls it in the search engine. The channel starts NEVER_CONNECTED.
func (c *Context) CreateChannel(name string, kind types.Kind) *Channel {
	cid := c.nextCID.Add(1)
	rc := registry.New(cid, name)
	_ = c.reg.Add(rc) // cid is freshly allocated; collision is impossible

	ch := &Channel{ctx: c, reg: rc, kind: kind}

	c.mu.Lock()
	c.facades[cid] = ch
	c.mu.Unlock()

	rc.AddConnectionListener(func(_ *registry.Channel, connected bool) {
		if connected {
			ch.resubscribeMonitors()
		} else {
			ch.signalMonitorsConnectionLoss()
		}
	})

	c.search.AddChannel(cid, name)
	return ch
}

// MonitorServiceCount returns the Context-scoped count of monitor
// services ever created, incremented by every addValueMonitor call and
// never decremented by Monitor.Close — only Close resets it to zero.
func (c *Context) MonitorServiceCount() int64 {
	return c.serviceCount.Load()
}

// Close tears down every Transport, the search engine, the shared
// monitor worker pool, and every outstanding request/monitor, then
// resets the monitor service counter to zero. Safe to call once; a
// second call is a no-op.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	facades := make([]*Channel, 0, len(c.facades))
	for _, ch := range c.facades {
		facades = append(facades, ch)
	}
	c.mu.Unlock()

	for _, ch := range facades {
		ch.Close()
	}

	done := make(chan struct{})
	go func() {
		c.search.Close()
		c.transports.CloseAll()
		c.monFactory.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		c.log.Warn("ca: shutdown grace period elapsed; some executors may still be winding down")
	}

	c.serviceCount.Store(0)
	return nil
}

func (c *Context) registerMonitor(m *Monitor) {
	c.mu.Lock()
	c.monitorsByIOID[m.ioid] = m
	c.mu.Unlock()
}

func (c *Context) unregisterMonitor(m *Monitor) {
	c.mu.Lock()
	delete(c.monitorsByIOID, m.ioid)
	c.mu.Unlock()
}

func (c *Context) monitorByIOID(ioid uint32) (*Monitor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.monitorsByIOID[ioid]
	return m, ok
}

func (c *Context) facadeByCID(cid uint32) (*Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.facades[cid]
	return ch, ok
}

func (c *Context) removeFacade(cid uint32) {
	c.mu.Lock()
	delete(c.facades, cid)
	delete(c.pendingRights, cid)
	c.mu.Unlock()
}

func (c *Context) registerPendingRead(ioid uint32, ts types.TypeSupport) {
	c.mu.Lock()
	c.pendingReads[ioid] = ts
	c.mu.Unlock()
}

func (c *Context) takePendingRead(ioid uint32) (types.TypeSupport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.pendingReads[ioid]
	if ok {
		delete(c.pendingReads, ioid)
	}
	return ts, ok
}

func (c *Context) rightsOrDefault(cid uint32) types.AccessRights {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.pendingRights[cid]; ok {
		return r
	}
	return types.ReadWrite
}

func (c *Context) setPendingRights(cid uint32, rights types.AccessRights) {
	c.mu.Lock()
	c.pendingRights[cid] = rights
	c.mu.Unlock()
}

// closeChannel tears down one channel's registry entry, requests,
// monitors, search enrollment, and transport reference.
func (c *Context) closeChannel(ch *Channel) {
	ch.reg.MarkClosed()
	c.mux.CancelByChannel(ch.reg.CID, types.NewStatus(types.CodeChanDestroy, "channel %s closed", ch.reg.Name))

	ch.mu.Lock()
	monitors := ch.monitors
	ch.monitors = nil
	ch.mu.Unlock()
	for _, m := range monitors {
		m.Close()
	}

	c.search.RemoveChannel(ch.reg.CID)

	addr, pri := ch.reg.TransportKey()
	if addr != "" {
		c.transports.Release(addr, pri)
	}

	c.reg.Remove(ch.reg.CID)
	c.removeFacade(ch.reg.CID)
}
