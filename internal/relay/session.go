package relay

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Role is fixed for the lifetime of a session.
type Role uint8

const (
	RoleServer Role = iota + 1
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// Session is one peer connection attached to a room, either as its server or
// as one of its clients. It never looks inside the frames it carries.
//
// Outbound frames go into a bounded queue that the transport drains from a
// single goroutine (see Outbound). When the queue is full the newest frame is
// dropped and queued frames are kept, so a slow peer sees a gap rather than a
// reordering.
type Session struct {
	id       uuid.UUID
	role     Role
	roomID   uuid.UUID
	room     *Room
	registry *Registry

	out  chan Frame
	done chan struct{}

	mu       sync.Mutex
	detached bool
	left     bool

	closeOnce sync.Once
	dropped   atomic.Uint64
}

func newSession(reg *Registry, id uuid.UUID, role Role, room *Room) *Session {
	return &Session{
		id:       id,
		role:     role,
		roomID:   room.id,
		room:     room,
		registry: reg,
		out:      make(chan Frame, reg.queueSize),
		done:     make(chan struct{}),
	}
}

// ID returns the peer supplied identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Role returns whether this session is the room's server or a client.
func (s *Session) Role() Role { return s.role }

// RoomID returns the id of the room this session joined.
func (s *Session) RoomID() uuid.UUID { return s.roomID }

// Send enqueues a frame for this peer without blocking. It is a no-op once the
// session has been detached from its room or closed by the transport.
func (s *Session) Send(f Frame) error {
	_, err := s.deliver(f)
	return err
}

// deliver is Send that also reports whether f actually entered the queue.
func (s *Session) deliver(f Frame) (bool, error) {
	if !s.Attached() {
		return false, nil
	}
	return s.push(f)
}

func (s *Session) push(f Frame) (bool, error) {
	select {
	case <-s.done:
		return false, nil
	default:
	}

	select {
	case s.out <- f:
		return true, nil
	default:
		s.dropped.Add(1)
		framesDropped.WithLabelValues(s.role.String()).Inc()
		return false, ErrOutboundSaturated
	}
}

// HandleInbound hands a frame received from this peer to the relay.
func (s *Session) HandleInbound(f Frame) {
	if !s.Attached() {
		return
	}
	s.registry.Relay(s, f)
}

// Close is called by the transport when the connection ends. It is safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.registry.Leave(s)
	})
}

// Outbound is drained by the transport's write goroutine.
func (s *Session) Outbound() <-chan Frame { return s.out }

// Done is closed once Close has been called.
func (s *Session) Done() <-chan struct{} { return s.done }

// Attached reports whether the session still belongs to its room.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.detached
}

// Dropped returns the number of frames discarded because the queue was full.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// markLeft reports whether this is the first Leave for the session.
func (s *Session) markLeft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.left {
		return false
	}
	s.left = true
	return true
}

// detach invalidates room membership. Later Send and HandleInbound calls do
// nothing. The transport connection is left untouched.
func (s *Session) detach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return false
	}
	s.detached = true
	return true
}
