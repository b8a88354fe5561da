package transport

import (
	"net"
	"sync"
	"time"
)

// CooldownPeriod is how long a reference-free Transport lingers before
// Registry actually closes it, so a rapid close/reopen by the same
// channel does not pay for a fresh TCP handshake.
const CooldownPeriod = 5 * time.Second

// key identifies one Transport slot: a server address and the priority
// channels connecting to it were created with.
type key struct {
	Address  string
	Priority uint8
}

type entry struct {
	t        *Transport
	refCount int
	timer    *time.Timer
}

// Dialer opens the underlying connection for a new Transport; production
// code uses net.Dial, tests substitute an in-memory pipe.
type Dialer func(address string) (net.Conn, error)

// Registry is the shared map of (address, priority) -> Transport. All
// channels resolving to the same server and priority share one
// Transport; the Registry reference-counts them and cools down before
// closing an idle one.
type Registry struct {
	mu      sync.Mutex
	entries map[key]*entry

	dial          Dialer
	maxArrayBytes uint32
	frameHandler  FrameHandler
	deathHandler  DeathHandler
}

// NewRegistry builds an empty Transport registry.
func NewRegistry(dial Dialer, maxArrayBytes uint32, fh FrameHandler, dh DeathHandler) *Registry {
	return &Registry{
		entries:       make(map[key]*entry),
		dial:          dial,
		maxArrayBytes: maxArrayBytes,
		frameHandler:  fh,
		deathHandler:  dh,
	}
}

// Acquire returns the shared Transport for (address, priority), dialing
// a new connection if none exists yet or the existing one is dead. Every
// Acquire must be matched by a Release.
func (r *Registry) Acquire(address string, priority uint8) (*Transport, error) {
	k := key{address, priority}

	r.mu.Lock()
	if e, ok := r.entries[k]; ok && !e.t.IsDead() {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.refCount++
		r.mu.Unlock()
		return e.t, nil
	}
	r.mu.Unlock()

	conn, err := r.dial(address)
	if err != nil {
		return nil, err
	}
	t, err := New(Config{
		Address:       address,
		Priority:      priority,
		Conn:          conn,
		MaxArrayBytes: r.maxArrayBytes,
		FrameHandler:  r.frameHandler,
		DeathHandler:  &registryDeathRelay{registry: r, key: k, inner: r.deathHandler},
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	r.mu.Lock()
	r.entries[k] = &entry{t: t, refCount: 1}
	r.mu.Unlock()
	return t, nil
}

// Lookup returns the live Transport for (address, priority) without
// affecting its reference count, for callers that already hold a
// reference via an earlier Acquire (e.g. issuing a request on a channel's
// already-established transport).
func (r *Registry) Lookup(address string, priority uint8) (*Transport, bool) {
	k := key{address, priority}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[k]
	if !ok || e.t.IsDead() {
		return nil, false
	}
	return e.t, true
}

// Release drops one reference to the Transport at (address, priority). At
// zero references a cool-down timer starts; if no Acquire arrives before
// it fires, the Transport is closed and removed.
func (r *Registry) Release(address string, priority uint8) {
	k := key{address, priority}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[k]
	if !ok {
		return
	}
	e.refCount--
	if e.refCount > 0 {
		return
	}
	e.timer = time.AfterFunc(CooldownPeriod, func() {
		r.mu.Lock()
		cur, ok := r.entries[k]
		if ok && cur == e && e.refCount <= 0 {
			delete(r.entries, k)
			r.mu.Unlock()
			e.t.Close()
			return
		}
		r.mu.Unlock()
	})
}

// Remove drops a Transport immediately, regardless of reference count.
// Used when the Transport has died and hosted channels have already
// been failed over.
func (r *Registry) Remove(t *Transport) {
	r.mu.Lock()
	k := key{t.Address, t.Priority}
	if e, ok := r.entries[k]; ok && e.t == t {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(r.entries, k)
	}
	r.mu.Unlock()
}

// Len returns the number of live Transports, for tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll tears down every Transport in the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Transport, 0, len(r.entries))
	for _, e := range r.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		all = append(all, e.t)
	}
	r.entries = make(map[key]*entry)
	r.mu.Unlock()

	for _, t := range all {
		t.Close()
	}
}

// registryDeathRelay removes a dead Transport from the registry before
// forwarding the death notice to the registry's own DeathHandler, so a
// subsequent Acquire for the same key dials a fresh connection instead
// of returning the dead one.
type registryDeathRelay struct {
	registry *Registry
	key      key
	inner    DeathHandler
}

func (d *registryDeathRelay) HandleTransportDeath(t *Transport) {
	d.registry.Remove(t)
	if d.inner != nil {
		d.inner.HandleTransportDeath(t)
	}
}
