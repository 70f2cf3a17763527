package hub

import "github.com/caseclosed/backend/internal/engine"

// client is one registered connection: its session plus the outbox the ws
// writer drains. Frames are pre-encoded so a broadcast marshals once.
type client struct {
	outbox chan []byte
	sess   *engine.Session
}

// registry tracks live connections and their role/room association. It is
// owned by the hub goroutine; nothing else touches it.
type registry struct {
	clients map[string]*client
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]*client)}
}

func (r *registry) add(id string, outbox chan []byte) *client {
	c := &client{outbox: outbox, sess: &engine.Session{ConnID: id}}
	r.clients[id] = c
	return c
}

func (r *registry) get(id string) *client {
	return r.clients[id]
}

// drop closes the client's outbox (ending its writer) and forgets it.
func (r *registry) drop(id string) {
	if c := r.clients[id]; c != nil {
		close(c.outbox)
		delete(r.clients, id)
	}
}

func (r *registry) len() int {
	return len(r.clients)
}
