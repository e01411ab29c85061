package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tapalogi/game-room/internal/relay"
	"github.com/Tapalogi/game-room/internal/version"
)

// Handler holds the dependencies shared by every endpoint.
type Handler struct {
	registry *relay.Registry
	opts     Options
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler creates a Handler bound to registry.
func NewHandler(logger zerolog.Logger, registry *relay.Registry, opts Options) *Handler {
	return &Handler{
		registry: registry,
		opts:     opts,
		upgrader: newUpgrader(),
		log:      logger,
	}
}

// JSON writes data with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("encode response")
	}
}

// ListRooms returns the ids of all rooms that currently have a server.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	ids := h.registry.ListRoomIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	h.JSON(w, http.StatusOK, out)
}

// ServeServer opens the room named by client_id and upgrades the connection
// into its server session.
func (h *Handler) ServeServer(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryUUID(r, "client_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.registry.OpenRoom(clientID)
	switch {
	case errors.Is(err, relay.ErrServerNotAllowed):
		http.Error(w, "Invalid server client_id!", http.StatusForbidden)
		return
	case errors.Is(err, relay.ErrRoomAlreadyOpen):
		http.Error(w, "Server already joined for this room!", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.serve(w, r, session)
}

// ServeClient joins the room named by room_id as client_id.
func (h *Handler) ServeClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryUUID(r, "client_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	roomID, err := queryUUID(r, "room_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.registry.JoinRoom(roomID, clientID)
	switch {
	case errors.Is(err, relay.ErrRoomNotFound):
		http.Error(w, "Room not found!", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.serve(w, r, session)
}

// serve upgrades the request and starts the pumps for an already registered
// session. The session is released if the upgrade fails.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, session *relay.Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).
			Str("role", session.Role().String()).
			Str("id", session.ID().String()).
			Msg("failed to upgrade connection")
		session.Close()
		return
	}

	p := newPeer(conn, session, h.opts, h.log)
	go p.writePump()
	go p.readPump()
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Rooms     int    `json:"rooms"`
	Clients   int    `json:"clients"`
	Timestamp string `json:"timestamp"`
}

// Health reports liveness and a count of open rooms.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.registry.Stats()
	h.JSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version.Version,
		Rooms:     st.Rooms,
		Clients:   st.Clients,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound handles every unmapped route.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Nothing to look here...", http.StatusNotFound)
}

func queryUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}
