package relay

import (
	"errors"

	"github.com/google/uuid"
)

// Envelope opcodes. With NotifyServer on, everything a room's server receives
// is a binary frame laid out as [op][16 byte client id][payload]. The router
// writes the opcode itself, so a client can never produce a notice: whatever
// it sends arrives behind EnvelopeText or EnvelopeBinary.
const (
	EnvelopeText   byte = 0x01
	EnvelopeBinary byte = 0x02
	NoticeJoin     byte = 0xF0
	NoticeLeave    byte = 0x0F
)

// EnvelopeHeaderLen is the opcode plus the client id.
const EnvelopeHeaderLen = 1 + 16

// NoticeLen is the size of a join or leave notice.
const NoticeLen = EnvelopeHeaderLen

// ErrNotAnEnvelope is returned by ParseEnvelope for malformed frames.
var ErrNotAnEnvelope = errors.New("not an envelope")

// Envelope is a decoded server-bound frame.
type Envelope struct {
	Op       byte
	ClientID uuid.UUID
	Payload  []byte
}

// IsNotice reports whether the router generated e.
func (e Envelope) IsNotice() bool {
	return e.Op == NoticeJoin || e.Op == NoticeLeave
}

// Kind is the frame kind the client used for a data envelope.
func (e Envelope) Kind() FrameKind {
	if e.Op == EnvelopeText {
		return FrameText
	}
	return FrameBinary
}

func joinNotice(clientID uuid.UUID) Frame {
	return BinaryFrame(envelope(NoticeJoin, clientID, nil))
}

func leaveNotice(clientID uuid.UUID) Frame {
	return BinaryFrame(envelope(NoticeLeave, clientID, nil))
}

// wrap encloses a client frame for the server.
func wrap(clientID uuid.UUID, f Frame) Frame {
	op := EnvelopeBinary
	if f.Kind == FrameText {
		op = EnvelopeText
	}
	return BinaryFrame(envelope(op, clientID, f.Data))
}

func envelope(op byte, clientID uuid.UUID, payload []byte) []byte {
	data := make([]byte, EnvelopeHeaderLen+len(payload))
	data[0] = op
	copy(data[1:], clientID[:])
	copy(data[EnvelopeHeaderLen:], payload)
	return data
}

// ParseEnvelope decodes a frame received by a server while NotifyServer is
// on. Payload aliases data.
func ParseEnvelope(data []byte) (Envelope, error) {
	if len(data) < EnvelopeHeaderLen {
		return Envelope{}, ErrNotAnEnvelope
	}
	e := Envelope{Op: data[0], Payload: data[EnvelopeHeaderLen:]}
	copy(e.ClientID[:], data[1:EnvelopeHeaderLen])

	switch e.Op {
	case EnvelopeText, EnvelopeBinary:
	case NoticeJoin, NoticeLeave:
		if len(e.Payload) != 0 {
			return Envelope{}, ErrNotAnEnvelope
		}
	default:
		return Envelope{}, ErrNotAnEnvelope
	}
	return e, nil
}

// ParseNotice decodes a join or leave notice and rejects every other
// envelope.
func ParseNotice(data []byte) (op byte, clientID uuid.UUID, ok bool) {
	e, err := ParseEnvelope(data)
	if err != nil || !e.IsNotice() {
		return 0, uuid.Nil, false
	}
	return e.Op, e.ClientID, true
}
