package relay

// FrameKind tells the transport how to write a frame to the wire.
type FrameKind uint8

const (
	// FrameText is relayed as a WebSocket text message.
	FrameText FrameKind = iota + 1

	// FrameBinary is relayed as a WebSocket binary message.
	FrameBinary

	// FrameRoomClosed is the teardown notice pushed to every client when the
	// server of its room leaves. It carries no payload.
	FrameRoomClosed
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FrameRoomClosed:
		return "room_closed"
	default:
		return "unknown"
	}
}

// Frame is an opaque payload moving through the relay. Data is never
// inspected or modified here.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// TextFrame wraps a text payload.
func TextFrame(data []byte) Frame {
	return Frame{Kind: FrameText, Data: data}
}

// BinaryFrame wraps a binary payload.
func BinaryFrame(data []byte) Frame {
	return Frame{Kind: FrameBinary, Data: data}
}
