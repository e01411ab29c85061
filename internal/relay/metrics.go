package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_room_rooms_open",
		Help: "Rooms with a live server",
	})

	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_room_sessions_active",
		Help: "Sessions attached to the registry by role",
	}, []string{"role"})

	framesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_room_frames_relayed_total",
		Help: "Frames enqueued to a peer by relay direction",
	}, []string{"direction"})

	// Outbound queue full, newest frame dropped.
	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_room_frames_dropped_total",
		Help: "Frames dropped because the receiving session queue was full",
	}, []string{"role"})

	framesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_room_frames_discarded_total",
		Help: "Client frames discarded because the room had no server",
	})

	joinsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_room_joins_rejected_total",
		Help: "Refused server opens and client joins by reason",
	}, []string{"reason"})
)
