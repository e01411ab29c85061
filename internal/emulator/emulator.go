// Package emulator drives fake game servers and clients against a running
// router. It is used for manual testing and load checks.
package emulator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tapalogi/game-room/internal/relay"
)

// EventKind classifies what an emulated peer observed.
type EventKind int

const (
	EventConnected EventKind = iota
	EventWaveSent
	EventWave
	EventAck
	EventJoin
	EventLeave
	EventOther
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventWaveSent:
		return "sent"
	case EventWave:
		return "wave"
	case EventAck:
		return "ack"
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventOther:
		return "other"
	default:
		return "unknown"
	}
}

// Event is reported to the caller for every frame sent or received.
type Event struct {
	Kind    EventKind
	Seq     uint64
	Latency time.Duration
	Peer    uuid.UUID
	Data    []byte
	Stats   Stats
}

// Stats accumulates over one emulator run.
type Stats struct {
	Sent       uint64
	Received   uint64
	Notices    uint64
	Other      uint64
	Samples    uint64
	LatencySum time.Duration
	LatencyMax time.Duration
}

func (s *Stats) observe(d time.Duration) {
	s.Samples++
	s.LatencySum += d
	if d > s.LatencyMax {
		s.LatencyMax = d
	}
}

// MeanLatency is zero when nothing was measured.
func (s Stats) MeanLatency() time.Duration {
	if s.Samples == 0 {
		return 0
	}
	return s.LatencySum / time.Duration(s.Samples)
}

// Config describes one emulated peer.
type Config struct {
	Endpoint *Endpoint
	ClientID uuid.UUID
	// RoomID is only used by client emulators.
	RoomID uuid.UUID
	// Interval between waves sent by a server emulator.
	Interval time.Duration
	// Body is attached to every wave.
	Body []byte
	// Enveloped must match the router's notify_server setting. A server
	// emulator then decodes envelopes and reports join and leave notices.
	Enveloped bool
	Logger    zerolog.Logger
}

func emit(ctx context.Context, events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// finish maps the way a run ended to its error. A cancelled context is a
// clean stop.
func finish(ctx context.Context, c *Client) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := c.Err(); err != nil {
		return err
	}
	return errors.New("connection closed")
}

// RunServer opens the room cfg.ClientID, sends a wave every cfg.Interval and
// measures round trip latency from client acks. It returns when ctx is done
// or the connection ends.
func RunServer(ctx context.Context, cfg Config, events chan<- Event) (Stats, error) {
	var st Stats
	log := cfg.Logger.With().Str("role", "server").Str("id", cfg.ClientID.String()).Logger()

	c, err := Dial(ctx, cfg.Endpoint.ServerURL(cfg.ClientID))
	if err != nil {
		return st, err
	}
	defer c.Close()
	log.Debug().Msg("room opened")
	emit(ctx, events, Event{Kind: EventConnected, Peer: cfg.ClientID, Stats: st})

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return st, nil

		case <-ticker.C:
			seq++
			data, err := EncodeWave(NewWave(seq, cfg.Body))
			if err != nil {
				return st, err
			}
			if err := c.Send(Message{Binary: true, Data: data}); err != nil {
				return st, finish(ctx, c)
			}
			st.Sent++
			emit(ctx, events, Event{Kind: EventWaveSent, Seq: seq, Stats: st})

		case msg, ok := <-c.Incoming():
			if !ok {
				return st, finish(ctx, c)
			}
			st.Received++
			emit(ctx, events, serverEvent(&st, msg, cfg.Enveloped, log))
		}
	}
}

func serverEvent(st *Stats, msg Message, enveloped bool, log zerolog.Logger) Event {
	data := msg.Data
	var from uuid.UUID
	if enveloped {
		e, err := relay.ParseEnvelope(data)
		if err != nil || !msg.Binary {
			st.Other++
			return Event{Kind: EventOther, Data: data, Stats: *st}
		}
		if e.IsNotice() {
			st.Notices++
			kind := EventJoin
			if e.Op == relay.NoticeLeave {
				kind = EventLeave
			}
			log.Debug().Str("client", e.ClientID.String()).Stringer("notice", kind).Msg("notice")
			return Event{Kind: kind, Peer: e.ClientID, Stats: *st}
		}
		data, from = e.Payload, e.ClientID
	}
	if w, err := DecodeWave(data); err == nil && w.Kind == WaveKindAck {
		d := w.Latency(time.Now())
		st.observe(d)
		return Event{Kind: EventAck, Seq: w.Seq, Latency: d, Peer: from, Stats: *st}
	}
	st.Other++
	return Event{Kind: EventOther, Peer: from, Data: data, Stats: *st}
}

// RunClient joins cfg.RoomID as cfg.ClientID and acknowledges every wave it
// receives. It returns ErrRoomClosed when the room's server leaves.
func RunClient(ctx context.Context, cfg Config, events chan<- Event) (Stats, error) {
	var st Stats
	log := cfg.Logger.With().Str("role", "client").Str("id", cfg.ClientID.String()).Logger()

	c, err := Dial(ctx, cfg.Endpoint.ClientURL(cfg.ClientID, cfg.RoomID))
	if err != nil {
		return st, err
	}
	defer c.Close()
	log.Debug().Str("room", cfg.RoomID.String()).Msg("joined room")
	emit(ctx, events, Event{Kind: EventConnected, Peer: cfg.RoomID, Stats: st})

	for {
		select {
		case <-ctx.Done():
			return st, nil

		case msg, ok := <-c.Incoming():
			if !ok {
				return st, finish(ctx, c)
			}
			st.Received++

			w, err := DecodeWave(msg.Data)
			if err != nil || w.Kind != WaveKindWave {
				st.Other++
				emit(ctx, events, Event{Kind: EventOther, Data: msg.Data, Stats: st})
				continue
			}

			d := w.Latency(time.Now())
			st.observe(d)

			ack, err := EncodeWave(w.Ack())
			if err != nil {
				return st, err
			}
			if err := c.Send(Message{Binary: true, Data: ack}); err != nil {
				return st, finish(ctx, c)
			}
			st.Sent++
			emit(ctx, events, Event{Kind: EventWave, Seq: w.Seq, Latency: d, Stats: st})
		}
	}
}
