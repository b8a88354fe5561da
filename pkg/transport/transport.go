// Package transport implements the per-server TCP link: a single ordered
// writer, an in-order frame-parsing receive loop, ECHO keep-alive,
// dead-link detection, and reference-counted reuse across channels that
// share a (server address, priority) pair.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"goca/internal/logger"
	"goca/pkg/wire"
)

// EchoInterval is how long the writer may sit idle before an ECHO frame
// is sent to keep the link alive.
const EchoInterval = 15 * time.Second

// DeadLinkTimeout is how long with no peer traffic before a Transport
// declares itself dead.
const DeadLinkTimeout = 30 * time.Second

// FrameHandler receives frames parsed off a Transport's receive loop, in
// the order they arrived on the wire.
type FrameHandler interface {
	HandleFrame(t *Transport, f wire.Frame)
}

// DeathHandler is notified once when a Transport's link is declared dead,
// so the owner can fail hosted channels and outstanding requests.
type DeathHandler interface {
	HandleTransportDeath(t *Transport)
}

// Stats are atomic wire-level counters for one Transport.
type Stats struct {
	BytesSent     atomic.Uint64
	BytesReceived atomic.Uint64
	FramesSent    atomic.Uint64
	FramesRecv    atomic.Uint64
	WriteErrors   atomic.Uint64
	ReadErrors    atomic.Uint64
}

// Transport is a single TCP connection to one CA server at one priority.
// Writes are serialized through a single writer goroutine; reads are
// dispatched, in order, to the configured FrameHandler.
type Transport struct {
	Address  string
	Priority uint8

	conn          net.Conn
	maxArrayBytes uint32
	log           logger.Logger

	frameHandler FrameHandler
	deathHandler DeathHandler

	writeCh chan []byte
	lastRX  atomic.Int64 // unix nanos of last received byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	dead   atomic.Bool

	stats Stats
}

// Config configures a new Transport.
type Config struct {
	Address       string
	Priority      uint8
	Conn          net.Conn
	MaxArrayBytes uint32
	FrameHandler  FrameHandler
	DeathHandler  DeathHandler
	Logger        logger.Logger
}

// New wraps an already-connected net.Conn as a Transport and starts its
// writer and receiver goroutines.
func New(cfg Config) (*Transport, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("transport: nil connection")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		Address:       cfg.Address,
		Priority:      cfg.Priority,
		conn:          cfg.Conn,
		maxArrayBytes: cfg.MaxArrayBytes,
		log:           log,
		frameHandler:  cfg.FrameHandler,
		deathHandler:  cfg.DeathHandler,
		writeCh:       make(chan []byte, 64),
		ctx:           ctx,
		cancel:        cancel,
	}
	t.lastRX.Store(time.Now().UnixNano())

	t.wg.Add(3)
	go t.writeLoop()
	go t.receiveLoop()
	go t.watchdogLoop()

	return t, nil
}

// Send enqueues a frame for the writer goroutine. It never blocks on the
// network; it only blocks if the internal queue is full.
func (t *Transport) Send(h wire.Header, payload []byte) error {
	if t.dead.Load() {
		return fmt.Errorf("transport: %s is dead", t.Address)
	}
	buf := wire.EncodeFrame(h, payload)
	select {
	case t.writeCh <- buf:
		return nil
	case <-t.ctx.Done():
		return fmt.Errorf("transport: %s closed", t.Address)
	}
}

func (t *Transport) writeLoop() {
	defer t.wg.Done()
	idle := time.NewTimer(EchoInterval)
	defer idle.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case buf := <-t.writeCh:
			if _, err := t.conn.Write(buf); err != nil {
				t.stats.WriteErrors.Add(1)
				t.log.Warn("transport %s: write error: %v", t.Address, err)
				t.markDead()
				return
			}
			t.stats.BytesSent.Add(uint64(len(buf)))
			t.stats.FramesSent.Add(1)
			idle.Reset(EchoInterval)
		case <-idle.C:
			echo := wire.EncodeFrame(wire.Header{Command: wire.CmdEcho}, nil)
			if _, err := t.conn.Write(echo); err != nil {
				t.stats.WriteErrors.Add(1)
				t.markDead()
				return
			}
			t.stats.BytesSent.Add(uint64(len(echo)))
			idle.Reset(EchoInterval)
		}
	}
}

func (t *Transport) receiveLoop() {
	defer t.wg.Done()
	r := wire.NewFrameReader(&rxTrackingReader{Transport: t}, t.maxArrayBytes)
	for {
		f, err := r.ReadFrame()
		if err != nil {
			select {
			case <-t.ctx.Done():
				return
			default:
			}
			t.stats.ReadErrors.Add(1)
			t.log.Warn("transport %s: read error: %v", t.Address, err)
			t.markDead()
			return
		}
		t.stats.FramesRecv.Add(1)
		t.lastRX.Store(time.Now().UnixNano())
		if t.frameHandler != nil {
			t.frameHandler.HandleFrame(t, f)
		}
	}
}

// rxTrackingReader wraps the Transport's net.Conn so every byte read also
// updates BytesReceived without the receive loop needing to know the
// length of each frame in advance.
type rxTrackingReader struct {
	*Transport
}

func (r *rxTrackingReader) Read(p []byte) (int, error) {
	n, err := r.conn.Read(p)
	if n > 0 {
		r.stats.BytesReceived.Add(uint64(n))
	}
	return n, err
}

func (t *Transport) watchdogLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, t.lastRX.Load())
			if time.Since(last) > DeadLinkTimeout {
				t.log.Warn("transport %s: no traffic for %s, declaring dead", t.Address, DeadLinkTimeout)
				t.markDead()
				return
			}
		}
	}
}

// markDead fires the death handler exactly once and tears down the link.
func (t *Transport) markDead() {
	if !t.dead.CompareAndSwap(false, true) {
		return
	}
	t.conn.Close()
	if t.deathHandler != nil {
		t.deathHandler.HandleTransportDeath(t)
	}
}

// IsDead reports whether the link has been declared dead.
func (t *Transport) IsDead() bool {
	return t.dead.Load()
}

// Close tears down the connection and stops all goroutines. Safe to call
// more than once.
func (t *Transport) Close() error {
	t.dead.Store(true)
	t.cancel()
	err := t.conn.Close()
	t.wg.Wait()
	return err
}

// Statistics returns a point-in-time snapshot of wire counters.
func (t *Transport) Statistics() StatsSnapshot {
	return StatsSnapshot{
		BytesSent:     t.stats.BytesSent.Load(),
		BytesReceived: t.stats.BytesReceived.Load(),
		FramesSent:    t.stats.FramesSent.Load(),
		FramesRecv:    t.stats.FramesRecv.Load(),
		WriteErrors:   t.stats.WriteErrors.Load(),
		ReadErrors:    t.stats.ReadErrors.Load(),
	}
}

// StatsSnapshot is an immutable copy of Stats for reporting.
type StatsSnapshot struct {
	BytesSent     uint64
	BytesReceived uint64
	FramesSent    uint64
	FramesRecv    uint64
	WriteErrors   uint64
	ReadErrors    uint64
}
