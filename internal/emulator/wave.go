package emulator

import (
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// WaveKind distinguishes a server wave from a client acknowledgement.
type WaveKind string

const (
	WaveKindWave WaveKind = "wave"
	WaveKindAck  WaveKind = "ack"
)

// Wave is the payload the emulators exchange. The router never looks at it.
type Wave struct {
	Kind   WaveKind `msgpack:"kind"`
	Seq    uint64   `msgpack:"seq"`
	SentAt int64    `msgpack:"sent_at"`
	Body   []byte   `msgpack:"body,omitempty"`
}

var ErrNotAWave = errors.New("not a wave frame")

// NewWave stamps a wave with the current time.
func NewWave(seq uint64, body []byte) Wave {
	return Wave{Kind: WaveKindWave, Seq: seq, SentAt: time.Now().UnixNano(), Body: body}
}

// Ack answers w, keeping its sequence number and send time.
func (w Wave) Ack() Wave {
	return Wave{Kind: WaveKindAck, Seq: w.Seq, SentAt: w.SentAt}
}

// Latency is the time since the wave was stamped.
func (w Wave) Latency(now time.Time) time.Duration {
	d := now.Sub(time.Unix(0, w.SentAt))
	if d < 0 {
		return 0
	}
	return d
}

func EncodeWave(w Wave) ([]byte, error) {
	return msgpack.Marshal(w)
}

// DecodeWave parses data as a wave. Frames from other software, including
// router notices, return ErrNotAWave.
func DecodeWave(data []byte) (*Wave, error) {
	var w Wave
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, ErrNotAWave
	}
	if w.Kind != WaveKindWave && w.Kind != WaveKindAck {
		return nil, ErrNotAWave
	}
	return &w, nil
}
