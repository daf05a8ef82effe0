package ws

import "sync"

// Registry is the in-memory presence table mapping a user to their live
// connection. At most one handle per user: a new bind replaces the old one.
type Registry struct {
	mu      sync.RWMutex
	clients map[int]*Client
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[int]*Client)}
}

// Bind registers the client as the user's live connection and returns the
// replaced handle, if any, so the caller can close it.
func (r *Registry) Bind(userID int, client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.clients[userID]
	r.clients[userID] = client
	if prev == client {
		return nil
	}
	return prev
}

// Unbind removes the entry only when client is still the bound handle, so a
// stale disconnect cannot evict a newer session.
func (r *Registry) Unbind(userID int, client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.clients[userID]; ok && current == client {
		delete(r.clients, userID)
		return true
	}
	return false
}

// Lookup returns the user's live connection.
func (r *Registry) Lookup(userID int) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[userID]
	return client, ok
}

// IsOnline reports whether the user has a live connection.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[userID]
	return ok
}

// Snapshot returns the current set of clients for fan-out.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		out = append(out, client)
	}
	return out
}
