// Package memory implements an in-memory business client registry.
package memory

import (
	"context"
	"sync"

	"orderhub/pkg/order"
)

type record struct {
	name   string
	id     int
	counts map[order.Item]int
}

func (r *record) snapshot() order.Client {
	counts := make(map[order.Item]int, len(r.counts))
	for k, v := range r.counts {
		counts[k] = v
	}
	return order.Client{Name: r.name, BusinessID: r.id, Counts: counts}
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrictItems makes Submit reject item types that have no counter
// with order.ErrUnknownItem instead of accepting them without effect.
func WithStrictItems(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

// Registry provides an in-memory implementation of order.Registry.
// Records are keyed by business id and never removed.
type Registry struct {
	mu      sync.RWMutex
	clients map[int]*record
	order   []int
	strict  bool
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{clients: make(map[int]*record)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit applies the order and reports whether it registered a new client.
// The lookup, the name check and the update or creation happen under a
// single write lock.
func (r *Registry) Submit(ctx context.Context, o order.Order) (bool, error) {
	if r.strict && !o.Item.Known() {
		return false, order.ErrUnknownItem
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.clients[o.BusinessID]
	if ok && rec.name != o.Name {
		return false, order.ErrNameMismatch
	}
	if !ok {
		rec = &record{
			name:   o.Name,
			id:     o.BusinessID,
			counts: map[order.Item]int{order.Sunglasses: 0, order.Belts: 0, order.Scarves: 0},
		}
		r.clients[o.BusinessID] = rec
		r.order = append(r.order, o.BusinessID)
	}
	if o.Item.Known() {
		rec.counts[o.Item] += o.Quantity
	}
	return !ok, nil
}

// Get returns a copy of the client registered under id.
func (r *Registry) Get(ctx context.Context, id int) (order.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.clients[id]
	if !ok {
		return order.Client{}, order.ErrNotFound
	}
	return rec.snapshot(), nil
}

// List returns copies of all clients in registration order.
func (r *Registry) List(ctx context.Context) ([]order.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id].snapshot())
	}
	return out, nil
}

// Len returns the number of registered clients.
func (r *Registry) Len(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order), nil
}
