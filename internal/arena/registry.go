package arena

import "sync"

// registry tracks live connections for broadcast fan-out. The tick thread
// iterates a copied slice, so the lock is never held across network writes.
type registry struct {
	mu      sync.Mutex
	clients map[string]*client
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]*client)}
}

// add registers a connection under its id.
func (r *registry) add(c *client) {
	r.mu.Lock()
	r.clients[c.id] = c
	r.mu.Unlock()
}

// remove deletes a connection. Removing twice is a no-op, so every teardown
// path may call it without coordination.
func (r *registry) remove(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

// list copies the current connections for lock-free iteration.
func (r *registry) list() []*client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// size reports the live connection count.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
