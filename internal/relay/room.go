package relay

import (
	"sync"

	"github.com/google/uuid"
)

// Room pairs one server session with the clients that joined it. The room id
// is the server's own id. All membership reads and writes hold mu. Fan-out to
// clients happens after mu is released. Frames bound for the server, notices
// included, are pushed while mu is held so the server sees them in membership
// order.
type Room struct {
	id        uuid.UUID
	enveloped bool

	mu      sync.Mutex
	server  *Session
	clients map[uuid.UUID]*Session
	closed  bool
}

func newRoom(id uuid.UUID, enveloped bool) *Room {
	return &Room{
		id:        id,
		enveloped: enveloped,
		clients:   make(map[uuid.UUID]*Session),
	}
}

// ID returns the room id.
func (r *Room) ID() uuid.UUID { return r.id }

// ClientCount returns the number of clients currently mapped in the room.
func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLocked()
}

func (r *Room) liveLocked() bool {
	return !r.closed && r.server != nil
}

// installServer sets s as the room's server unless a live one is present.
func (r *Room) installServer(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if r.server != nil {
		return ErrRoomAlreadyOpen
	}
	r.server = s
	return nil
}

// addClient maps s under its id and returns the session it replaced, if any.
// The server is told about the replacement and the join before mu is released.
func (r *Room) addClient(s *Session) (prev *Session, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.liveLocked() {
		return nil, ErrRoomNotFound
	}
	prev = r.clients[s.id]
	r.clients[s.id] = s
	if prev != nil {
		r.noticeLocked(leaveNotice(s.id))
	}
	r.noticeLocked(joinNotice(s.id))
	return prev, nil
}

// removeClient drops the mapping for s if it still points at s. A session
// that was already replaced or removed leaves the room untouched.
func (r *Room) removeClient(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.clients[s.id]; !ok || cur != s {
		return false
	}
	delete(r.clients, s.id)
	r.noticeLocked(leaveNotice(s.id))
	return true
}

// noticeLocked queues a notice for the server. push never blocks, so this is
// safe under mu.
func (r *Room) noticeLocked(f Frame) {
	if !r.enveloped || !r.liveLocked() {
		return
	}
	_, _ = r.server.deliver(f)
}

// close marks the room closed and hands back every client that was still a
// member. It returns nil, false when s is not the room's server.
func (r *Room) close(s *Session) ([]*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.server != s {
		return nil, false
	}
	r.closed = true
	r.server = nil
	clients := make([]*Session, 0, len(r.clients))
	for id, c := range r.clients {
		clients = append(clients, c)
		delete(r.clients, id)
	}
	return clients, true
}

// broadcast pushes a server frame to every client that is a member when the
// snapshot is taken.
func (r *Room) broadcast(f Frame) int {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	targets := make([]*Session, 0, len(r.clients))
	for _, c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		if ok, _ := c.deliver(f); ok {
			delivered++
		}
	}
	return delivered
}

// forward pushes a client frame to the server, enveloped with the sender's id
// when the room carries notices. Frames from a session that is no longer
// mapped, or that race with the server leaving, are discarded.
func (r *Room) forward(from *Session, f Frame) bool {
	if r.enveloped {
		f = wrap(from.id, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[from.id] != from || !r.liveLocked() {
		return false
	}
	ok, _ := r.server.deliver(f)
	return ok
}
