package server

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tapalogi/game-room/internal/relay"
)

// peer binds one WebSocket connection to its relay session. The connection
// belongs to the peer; the relay only ever sees the session.
type peer struct {
	conn    *websocket.Conn
	session *relay.Session
	opts    Options
	log     zerolog.Logger
}

func newPeer(conn *websocket.Conn, session *relay.Session, opts Options, logger zerolog.Logger) *peer {
	return &peer{
		conn:    conn,
		session: session,
		opts:    opts,
		log: logger.With().
			Str("role", session.Role().String()).
			Str("id", session.ID().String()).
			Str("room", session.RoomID().String()).
			Logger(),
	}
}

func (p *peer) extendReadDeadline() {
	p.conn.SetReadDeadline(time.Now().Add(p.opts.PongWait))
}

// readPump pumps frames from the connection into the relay.
//
// The application runs readPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (p *peer) readPump() {
	// Any exit, clean or not, is the session's closure signal.
	defer func() {
		p.session.Close()
		p.conn.Close()
	}()

	p.conn.SetReadLimit(p.opts.MaxMessageSize)
	p.extendReadDeadline()
	p.conn.SetPongHandler(func(string) error {
		p.extendReadDeadline()
		return nil
	})
	p.conn.SetPingHandler(func(appData string) error {
		p.extendReadDeadline()
		err := p.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(p.opts.WriteWait))
		var netErr net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil
		}
		return err
	})

	p.log.Debug().Msg("peer connected")

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.log.Warn().Err(err).Msg("read failed")
			} else {
				p.log.Debug().Err(err).Msg("peer disconnected")
			}
			return
		}
		p.extendReadDeadline()

		switch messageType {
		case websocket.TextMessage:
			p.session.HandleInbound(relay.TextFrame(data))
		case websocket.BinaryMessage:
			p.session.HandleInbound(relay.BinaryFrame(data))
		}
	}
}

// writePump drains the session's outbound queue onto the connection and
// sends periodic pings.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (p *peer) writePump() {
	ticker := time.NewTicker(p.opts.PingPeriod)

	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case frame := <-p.session.Outbound():
			p.conn.SetWriteDeadline(time.Now().Add(p.opts.WriteWait))

			var err error
			switch frame.Kind {
			case relay.FrameText:
				err = p.conn.WriteMessage(websocket.TextMessage, frame.Data)
			case relay.FrameBinary:
				err = p.conn.WriteMessage(websocket.BinaryMessage, frame.Data)
			case relay.FrameRoomClosed:
				// The server left; this transport closes its clients.
				p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed"))
				p.log.Debug().Msg("room closed, closing peer")
				return
			}
			if err != nil {
				p.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-p.session.Done():
			p.conn.SetWriteDeadline(time.Now().Add(p.opts.WriteWait))
			p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(p.opts.WriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
