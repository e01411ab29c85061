package relay

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is the outbound queue length of each session.
const DefaultQueueSize = 256

// Options configures a Registry.
type Options struct {
	// QueueSize bounds each session's outbound queue. Zero means DefaultQueueSize.
	QueueSize int

	// NotifyServer sends join and leave notices to a room's server. Client
	// frames then reach the server enveloped with the sender's id so they
	// cannot be mistaken for notices (see ParseEnvelope).
	NotifyServer bool

	// AllowedServer, when not uuid.Nil, is the only id allowed to open a room.
	AllowedServer uuid.UUID

	Logger zerolog.Logger
}

// Registry is the process-wide table of open rooms. The map is guarded by mu;
// each room guards its own membership. Locks are always taken registry first,
// then room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room

	queueSize     int
	notifyServer  bool
	allowedServer uuid.UUID
	log           zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Registry{
		rooms:         make(map[uuid.UUID]*Room),
		queueSize:     opts.QueueSize,
		notifyServer:  opts.NotifyServer,
		allowedServer: opts.AllowedServer,
		log:           opts.Logger,
	}
}

// OpenRoom creates the room identified by serverID with a new server session,
// or installs the session into an existing room that has no server. It fails
// with ErrRoomAlreadyOpen when a live server already holds the id.
func (r *Registry) OpenRoom(serverID uuid.UUID) (*Session, error) {
	if r.allowedServer != uuid.Nil && serverID != r.allowedServer {
		joinsRejected.WithLabelValues("server_not_allowed").Inc()
		return nil, newRoomError("open room", serverID, ErrServerNotAllowed)
	}

	r.mu.Lock()
	room, ok := r.rooms[serverID]
	if !ok {
		room = newRoom(serverID, r.notifyServer)
		r.rooms[serverID] = room
	}
	s := newSession(r, serverID, RoleServer, room)
	err := room.installServer(s)
	r.mu.Unlock()

	if err != nil {
		joinsRejected.WithLabelValues("room_already_open").Inc()
		r.log.Warn().Str("room", serverID.String()).Msg("server refused, room already open")
		return nil, newRoomError("open room", serverID, err)
	}

	roomsOpen.Inc()
	sessionsActive.WithLabelValues(RoleServer.String()).Inc()
	r.log.Info().Str("room", serverID.String()).Msg("room opened")
	return s, nil
}

// JoinRoom adds a client session under clientID to the room. It fails with
// ErrRoomNotFound unless the room exists with a live server. A client already
// mapped under the same id is replaced and detached.
func (r *Registry) JoinRoom(roomID, clientID uuid.UUID) (*Session, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		joinsRejected.WithLabelValues("room_not_found").Inc()
		return nil, newRoomError("join room", roomID, ErrRoomNotFound)
	}
	s := newSession(r, clientID, RoleClient, room)
	prev, err := room.addClient(s)
	r.mu.RUnlock()

	if err != nil {
		joinsRejected.WithLabelValues("room_not_found").Inc()
		return nil, newRoomError("join room", roomID, err)
	}

	sessionsActive.WithLabelValues(RoleClient.String()).Inc()

	if prev != nil {
		prev.detach()
		r.log.Info().
			Str("room", roomID.String()).
			Str("client", clientID.String()).
			Msg("client replaced by reconnect")
	}

	r.log.Info().
		Str("room", roomID.String()).
		Str("client", clientID.String()).
		Msg("client joined")
	return s, nil
}

// Leave removes s from its room. When s is the room's server every client is
// sent a FrameRoomClosed notice, detached, and the room is removed. Calling
// Leave for a session that already left does nothing.
func (r *Registry) Leave(s *Session) {
	if !s.markLeft() {
		return
	}
	sessionsActive.WithLabelValues(s.role.String()).Dec()

	switch s.role {
	case RoleServer:
		r.closeRoom(s)
	case RoleClient:
		s.detach()
		if !s.room.removeClient(s) {
			return
		}
		r.log.Info().
			Str("room", s.roomID.String()).
			Str("client", s.id.String()).
			Msg("client left")
	}
}

func (r *Registry) closeRoom(server *Session) {
	room := server.room

	r.mu.Lock()
	clients, ok := room.close(server)
	if ok && r.rooms[room.id] == room {
		delete(r.rooms, room.id)
	}
	r.mu.Unlock()

	server.detach()
	if !ok {
		return
	}
	roomsOpen.Dec()

	for _, c := range clients {
		if c.detach() {
			_, _ = c.push(Frame{Kind: FrameRoomClosed})
		}
	}

	r.log.Info().
		Str("room", room.id.String()).
		Int("clients", len(clients)).
		Msg("room closed")
}

// Relay dispatches a frame received from s. Server frames fan out to every
// client in the room; client frames go to the server only and are discarded
// when it has already left.
func (r *Registry) Relay(s *Session, f Frame) {
	switch s.role {
	case RoleServer:
		n := s.room.broadcast(f)
		framesRelayed.WithLabelValues("server_to_clients").Add(float64(n))
	case RoleClient:
		if s.room.forward(s, f) {
			framesRelayed.WithLabelValues("client_to_server").Inc()
			return
		}
		framesDiscarded.Inc()
		r.log.Debug().
			Str("room", s.roomID.String()).
			Str("client", s.id.String()).
			Msg("client frame not delivered to server")
	}
}

// ListRoomIDs returns a snapshot of the ids of rooms that have a live server,
// sorted by their byte value.
func (r *Registry) ListRoomIDs() []uuid.UUID {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.rooms))
	for id, room := range r.rooms {
		if room.live() {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}

// Stats is a point in time count of rooms and sessions.
type Stats struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"clients"`
}

// Stats counts live rooms and their clients.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var st Stats
	for _, room := range r.rooms {
		room.mu.Lock()
		if room.liveLocked() {
			st.Rooms++
			st.Clients += len(room.clients)
		}
		room.mu.Unlock()
	}
	return st
}
