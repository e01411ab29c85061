package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tapalogi/game-room/internal/resolve"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
)

// ErrRoomClosed is returned once the router reports that the room's server
// left.
var ErrRoomClosed = errors.New("room closed")

// Message is one WebSocket data frame as seen by an emulated peer.
type Message struct {
	Binary bool
	Data   []byte
}

// Client is a single WebSocket connection to the router.
type Client struct {
	conn     *websocket.Conn
	incoming chan Message
	outgoing chan Message
	done     chan struct{}
	dead     chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dial connects to rawURL. A refused upgrade is reported with the router's
// status line and message.
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext:   resolve.DialContext,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("connection refused: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan Message, 64),
		outgoing: make(chan Message, 64),
		done:     make(chan struct{}),
		dead:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// readPump reads frames from the connection until it fails or closes.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.dead)
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case c.incoming <- Message{Binary: mt == websocket.BinaryMessage, Data: data}:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued frames and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			mt := websocket.TextMessage
			if msg.Binary {
				mt = websocket.BinaryMessage
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(mt, msg.Data); err != nil {
				c.setErr(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.dead:
			return
		}
	}
}

func (c *Client) setErr(err error) {
	if websocket.IsCloseError(err, websocket.CloseGoingAway) {
		err = ErrRoomClosed
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// Send queues a frame for writing.
func (c *Client) Send(msg Message) error {
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return net.ErrClosed
	case <-c.dead:
		return net.ErrClosed
	}
}

// Incoming is closed when the connection ends.
func (c *Client) Incoming() <-chan Message {
	return c.incoming
}

// Err reports why the connection ended. It is nil while the connection is
// open and after a local Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return nil
	default:
	}
	return c.err
}

// Close ends the connection with a normal closure.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
