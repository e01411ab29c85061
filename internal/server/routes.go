package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Tapalogi/game-room/internal/relay"
)

// Options tunes the WebSocket transport.
type Options struct {
	// Inbound frames larger than this end the session.
	MaxMessageSize int64

	// Pings are sent every PingPeriod; a peer silent for PongWait is dropped.
	PingPeriod time.Duration
	PongWait   time.Duration

	// Time allowed to write a frame to the peer.
	WriteWait time.Duration
}

// DefaultOptions mirrors the router's shipped configuration.
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 8 * 1024 * 1024,
		PingPeriod:     time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,

		// Peers are game processes, not browsers.
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewRouter wires the listing, upgrade and operational endpoints.
func NewRouter(logger zerolog.Logger, registry *relay.Registry, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(logger))
	r.Use(chimw.Recoverer)

	// Lets browser dashboards read the room listing and health.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := NewHandler(logger, registry, opts)

	r.Get("/", h.ListRooms)
	r.Get("/server", h.ServeServer)
	r.Get("/client", h.ServeClient)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(h.NotFound)

	return r
}
