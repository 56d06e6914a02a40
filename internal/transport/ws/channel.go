package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/transport"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // relay is reachable from any game page
	},
}

// Channel is a transport.Channel over a gorilla websocket connection
type Channel struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	done      chan struct{}
}

var _ transport.Channel = (*Channel)(nil)

// IsUpgrade reports whether the request asks for a websocket
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// Upgrade accepts a websocket handshake and wraps the connection
func Upgrade(w http.ResponseWriter, r *http.Request) (*Channel, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newChannel(conn), nil
}

// Dial connects to a relay endpoint such as ws://host:port/
func Dial(ctx context.Context, url string) (*Channel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newChannel(conn), nil
}

func newChannel(conn *websocket.Conn) *Channel {
	c := &Channel{
		conn: conn,
		done: make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()
	return c
}

// pingLoop keeps the read deadline on the far side alive.
// WriteControl is safe to call concurrently with Write.
func (c *Channel) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Read returns the next text frame
func (c *Channel) Read() ([]byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: %v", model.ErrChannelClosed, err)
			}
			return nil, err
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

// Write sends one text frame
func (c *Channel) Write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and tears down the connection
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer's network address
func (c *Channel) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
