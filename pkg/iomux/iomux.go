// Package iomux multiplexes outbound requests and inbound responses by
// I/O-ID: every READ/WRITE-notify style operation gets a monotonic ID,
// and the response carrying that ID completes the matching Request's
// future.
package iomux

import (
	"sync"
	"sync/atomic"
	"time"

	"goca/pkg/types"
)

// Kind identifies what a Request is waiting for.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
	KindReadNotify
	KindWriteNotify
	KindCreateChannel
	KindSubscribe
	KindUnsubscribe
)

// Result is what a Request completes with: a value (for reads), a
// Status (for writes and failures), or both absent for a bare failure.
type Result struct {
	Value  types.Bundle
	Status types.Status
}

// Request is the correlation record for one outstanding operation.
type Request struct {
	IOID      uint32
	Kind      Kind
	ChannelID uint32
	Transport string // transport key this request was issued on (address)
	Created   time.Time

	mu       sync.Mutex
	done     chan struct{}
	result   Result
	fired    bool
}

// newRequest builds a pending Request; Wait blocks until the Mux completes
// it (Complete, or one of the Cancel methods), which happens at most once.
func newRequest(ioid uint32, kind Kind, channelID uint32, transportAddr string) *Request {
	return &Request{
		IOID:      ioid,
		Kind:      kind,
		ChannelID: channelID,
		Transport: transportAddr,
		Created:   time.Now(),
		done:      make(chan struct{}),
	}
}

// Wait blocks until the request completes, or ctxDone fires first.
func (r *Request) Wait(ctxDone <-chan struct{}) (Result, bool) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.result, true
	case <-ctxDone:
		return Result{}, false
	}
}

func (r *Request) complete(res Result) {
	r.mu.Lock()
	if r.fired {
		r.mu.Unlock()
		return
	}
	r.fired = true
	r.result = res
	r.mu.Unlock()
	close(r.done)
}

// Mux owns the ID->Request map for one Context. I/O-IDs are handed out
// monotonically and wrap around a 32-bit counter; uniqueness among
// pending requests is kept by occupancy: Submit skips any ID that is
// still pending. IDs handed out by NextID are not recorded in the map.
type Mux struct {
	mu       sync.Mutex
	pending  map[uint32]*Request
	nextID   atomic.Uint32
}

// New returns an empty multiplexer.
func New() *Mux {
	return &Mux{pending: make(map[uint32]*Request)}
}

// Submit allocates a fresh I/O-ID, registers a pending Request for it,
// and returns both.
func (m *Mux) Submit(kind Kind, channelID uint32, transportAddr string) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	ioid := m.nextID.Add(1)
	for _, taken := m.pending[ioid]; taken; _, taken = m.pending[ioid] {
		ioid = m.nextID.Add(1)
	}
	req := newRequest(ioid, kind, channelID, transportAddr)
	m.pending[ioid] = req
	return req
}

// NextID allocates a fresh I/O-ID without registering a pending Request,
// for callers outside the request/response pattern that still share this
// Context's I/O-ID space, namely monitor subscription-ids.
func (m *Mux) NextID() uint32 {
	return m.nextID.Add(1)
}

// Complete looks up ioid and, if found, completes its Request and
// removes it from the map. Unknown IDs are reported to the caller so
// they can be logged and discarded without iomux depending on a logger.
func (m *Mux) Complete(ioid uint32, res Result) (ok bool) {
	m.mu.Lock()
	req, found := m.pending[ioid]
	if found {
		delete(m.pending, ioid)
	}
	m.mu.Unlock()
	if !found {
		return false
	}
	req.complete(res)
	return true
}

// PutNoWait removes ioid's Request from the map without completing it,
// for callers that give up on the result (a timed-out wait or a failed
// send). It sends nothing itself.
func (m *Mux) PutNoWait(ioid uint32) {
	m.mu.Lock()
	delete(m.pending, ioid)
	m.mu.Unlock()
}

// CancelByChannel fails, with status, every pending request targeting
// channelID and removes them from the map. Used on channel close or
// disconnect.
func (m *Mux) CancelByChannel(channelID uint32, status types.Status) int {
	return m.cancelWhere(status, func(r *Request) bool { return r.ChannelID == channelID })
}

// CancelByTransport fails, with status, every pending request issued on
// transportAddr. Used when a Transport dies.
func (m *Mux) CancelByTransport(transportAddr string, status types.Status) int {
	return m.cancelWhere(status, func(r *Request) bool { return r.Transport == transportAddr })
}

func (m *Mux) cancelWhere(status types.Status, match func(*Request) bool) int {
	m.mu.Lock()
	var victims []*Request
	for ioid, req := range m.pending {
		if match(req) {
			victims = append(victims, req)
			delete(m.pending, ioid)
		}
	}
	m.mu.Unlock()

	for _, req := range victims {
		req.complete(Result{Status: status})
	}
	return len(victims)
}

// Len returns the number of outstanding requests, for tests and
// diagnostics.
func (m *Mux) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
