package registry

import (
	"fmt"
	"sync"
)

// Registry is the Context-wide map of client-id -> Channel.
type Registry struct {
	channels map[uint32]*Channel
	mu       sync.RWMutex
}

// NewRegistry returns an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[uint32]*Channel)}
}

// Add registers ch under its CID. Returns an error if the CID is already
// in use (client-ids are allocated by the caller and must be unique).
func (r *Registry) Add(ch *Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[ch.CID]; exists {
		return fmt.Errorf("registry: channel with cid %d already exists", ch.CID)
	}
	r.channels[ch.CID] = ch
	return nil
}

// Remove unregisters the channel with the given CID, if present.
func (r *Registry) Remove(cid uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, cid)
}

// Get returns the channel with the given CID, if present.
func (r *Registry) Get(cid uint32) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[cid]
	return ch, ok
}

// All returns a snapshot of every registered channel.
func (r *Registry) All() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// HostedBy returns every channel currently attached to (address,
// priority), used when a Transport dies and its hosted channels must be
// failed over to DISCONNECTED and re-entered into search.
func (r *Registry) HostedBy(address string, priority uint8) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Channel
	for _, ch := range r.channels {
		addr, pri := ch.TransportKey()
		if addr == address && pri == priority {
			out = append(out, ch)
		}
	}
	return out
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
