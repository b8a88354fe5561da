// Package search implements the UDP broadcast/unicast name-resolution
// engine: periodic SEARCH datagrams for every channel still in
// NEVER_CONNECTED, coalesced up to the network MTU, with exponential
// backoff and jittered retry.
package search

import (
	"context"
	"encoding/binary"
	"math/rand"
	"net"
	"sync"
	"time"

	"goca/internal/logger"
	"goca/internal/queue"
	"goca/pkg/wire"
)

// InitialDelay is the retry delay for a channel's first SEARCH.
const InitialDelay = 33 * time.Millisecond

// MaxDelay caps the exponential backoff between retries.
const MaxDelay = 30 * time.Second

// JitterFraction is applied symmetrically around the computed delay.
const JitterFraction = 0.20

// MaxDatagramBytes is the MTU budget SEARCH requests are coalesced into.
const MaxDatagramBytes = 1400

// MinorVersion is the CA protocol minor revision this module speaks.
const MinorVersion = 13

// Resolver is notified when a pending channel's SEARCH_RESPONSE arrives.
type Resolver interface {
	ResolveSearch(cid uint32, serverAddr *net.UDPAddr, minorVersion uint16)
}

type pendingEntry struct {
	cid   uint32
	name  string
	delay time.Duration
}

// Engine drives SEARCH/SEARCH_RESPONSE traffic for one Context.
type Engine struct {
	conn     *net.UDPConn
	addrList []*net.UDPAddr
	resolver Resolver
	log      logger.Logger

	mu      sync.Mutex
	pending map[uint32]*pendingEntry
	sched   *queue.PriorityQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens an ephemeral UDP socket and starts the scheduler and
// receiver goroutines. addrList is the set of destinations SEARCH
// datagrams are sent to (broadcast and/or explicit unicast peers).
func New(addrList []*net.UDPAddr, resolver Resolver, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, err
	}
	conn.SetWriteBuffer(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		conn:     conn,
		addrList: addrList,
		resolver: resolver,
		log:      log,
		pending:  make(map[uint32]*pendingEntry),
		sched:    queue.New(),
		ctx:      ctx,
		cancel:   cancel,
	}

	e.wg.Add(2)
	go e.schedulerLoop()
	go e.receiveLoop()

	return e, nil
}

// AddChannel enrolls cid/name for periodic SEARCH until a SEARCH_RESPONSE
// for it arrives or RemoveChannel is called.
func (e *Engine) AddChannel(cid uint32, name string) {
	e.mu.Lock()
	e.pending[cid] = &pendingEntry{cid: cid, name: name, delay: InitialDelay}
	e.mu.Unlock()
	e.sched.Push(cid, time.Now())
}

// RemoveChannel stops searching for cid, typically because it resolved
// or the owning channel closed.
func (e *Engine) RemoveChannel(cid uint32) {
	e.mu.Lock()
	delete(e.pending, cid)
	e.mu.Unlock()
}

// Close stops the engine and releases the UDP socket.
func (e *Engine) Close() error {
	e.cancel()
	err := e.conn.Close()
	e.wg.Wait()
	return err
}

func (e *Engine) schedulerLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.flushReady()
		}
	}
}

// flushReady pops every channel whose retry is due, coalesces as many
// names as fit in one MTU-bounded datagram, sends, and reschedules each
// after its current delay (jittered), doubling that delay for the next
// round.
func (e *Engine) flushReady() {
	now := time.Now()
	var batch []*pendingEntry

	for {
		v := e.sched.PopReady(now)
		if v == nil {
			break
		}
		cid := v.(uint32)
		e.mu.Lock()
		entry, ok := e.pending[cid]
		e.mu.Unlock()
		if !ok {
			continue // resolved or removed since it was scheduled
		}
		batch = append(batch, entry)
	}
	if len(batch) == 0 {
		return
	}

	for _, group := range coalesce(batch, MaxDatagramBytes) {
		e.sendSearchBatch(group)
	}

	for _, entry := range batch {
		e.mu.Lock()
		delay := entry.delay
		entry.delay = nextDelay(delay)
		e.mu.Unlock()
		e.sched.Push(entry.cid, now.Add(jitter(delay)))
	}
}

// coalesce groups entries into datagram-sized batches without splitting
// an individual SEARCH request across two datagrams.
func coalesce(entries []*pendingEntry, budget int) [][]*pendingEntry {
	var groups [][]*pendingEntry
	var cur []*pendingEntry
	size := 0
	for _, e := range entries {
		frameSize := wire.PadToEightBytes(16 + len(e.name) + 1)
		if size+frameSize > budget && len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, e)
		size += frameSize
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func (e *Engine) sendSearchBatch(batch []*pendingEntry) {
	var buf []byte
	for _, entry := range batch {
		payload := make([]byte, wire.PadToEightBytes(len(entry.name)+1))
		copy(payload, entry.name)
		h := wire.Header{
			Command:     wire.CmdSearch,
			DataType:    wire.TypeCode(5), // reply expected: any DBR type request flag
			DataCount:   MinorVersion,
			Parameter1:  0xFFFFFFFF,
			Parameter2:  entry.cid,
		}
		buf = append(buf, wire.EncodeFrame(h, payload)...)
	}
	for _, addr := range e.addrList {
		if _, err := e.conn.WriteToUDP(buf, addr); err != nil {
			e.log.Warn("search: write to %s failed: %v", addr, err)
		}
	}
}

func nextDelay(cur time.Duration) time.Duration {
	next := cur * 2
	if next > MaxDelay {
		next = MaxDelay
	}
	return next
}

func jitter(d time.Duration) time.Duration {
	delta := float64(d) * JitterFraction
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}

func (e *Engine) receiveLoop() {
	defer e.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, peer, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-e.ctx.Done():
				return
			default:
			}
			e.log.Warn("search: read error: %v", err)
			continue
		}
		e.handleDatagram(buf[:n], peer)
	}
}

func (e *Engine) handleDatagram(data []byte, peer *net.UDPAddr) {
	for len(data) > 0 {
		f, consumed, err := wire.ParseFrame(data, 65536)
		if err != nil {
			return
		}
		data = data[consumed:]
		if f.Header.Command != wire.CmdSearch {
			continue
		}
		e.handleSearchResponse(f, peer)
	}
}

func (e *Engine) handleSearchResponse(f wire.Frame, peer *net.UDPAddr) {
	cid := f.Header.Parameter2
	e.mu.Lock()
	_, ok := e.pending[cid]
	if ok {
		delete(e.pending, cid)
	}
	e.mu.Unlock()
	if !ok {
		return // already resolved or unknown cid; ignore duplicate
	}

	var port uint16
	if len(f.Payload) >= 2 {
		port = binary.BigEndian.Uint16(f.Payload[:2])
	}
	serverAddr := &net.UDPAddr{IP: peer.IP, Port: int(port)}

	if e.resolver != nil {
		e.resolver.ResolveSearch(cid, serverAddr, uint16(f.Header.DataCount))
	}
}
