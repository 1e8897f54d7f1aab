// Package transport owns the raw socket used by the sync protocol client.
//
// It is purely mechanical: it can open a WebSocket, send text frames, and
// deliver edge-triggered callbacks for inbound messages, socket errors, and
// the close event. It has no protocol knowledge and no retry logic; the
// connection state machine in pkg/client decides what to do when a socket
// dies.
package transport

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send when the socket is not open.
var ErrNotConnected = errors.New("transport: not connected")

// SyncPath is the well-known sync endpoint path on a deployment.
const SyncPath = "/api/sync"

// Conn is one open bidirectional socket.
type Conn interface {
	// Send writes one text frame. It fails with ErrNotConnected once the
	// socket has closed.
	Send(data []byte) error

	// Close tears down the socket with the given close code and reason.
	// Closing an already-closed connection is a no-op.
	Close(code int, reason string) error
}

// Callbacks are the edge-triggered socket events delivered to the owner.
// OnClose fires at most once per connection, after which no further
// callbacks are invoked. Callbacks are called from the read pump goroutine.
type Callbacks struct {
	// OnMessage delivers one inbound text frame.
	OnMessage func(data []byte)

	// OnClose fires when the socket is closed, with the close code and
	// reason when the peer sent them. clean reports a normal closure.
	OnClose func(code int, reason string, clean bool)

	// OnError reports a socket-level failure. It is always followed by
	// OnClose.
	OnError func(err error)
}

// Dialer opens connections. The production implementation dials WebSockets;
// tests substitute scripted dialers.
//
// A successful Dial returns an open Conn; the return itself is the "opened"
// edge.
type Dialer interface {
	Dial(ctx context.Context, url string, cb Callbacks) (Conn, error)
}

// SyncURL rewrites a deployment base URL into the WebSocket sync endpoint:
// the scheme flips https→wss (http→ws) and the path becomes /api/sync.
func SyncURL(deploymentURL string) (string, error) {
	u, err := url.Parse(deploymentURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "wss", "ws":
		// already a websocket URL
	default:
		return "", errors.New("transport: unsupported scheme " + u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + SyncPath
	return u.String(), nil
}

// WebSocketDialer dials real WebSocket connections via gorilla/websocket.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the WebSocket handshake. Default: 10s.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound frame write. Default: 10s.
	WriteTimeout time.Duration

	// MaxMessageSize limits inbound frames. Default: 16MB.
	MaxMessageSize int64
}

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultMaxMessageSize   = 16 << 20
)

// Dial opens a WebSocket to the given URL and starts the read pump.
func (d *WebSocketDialer) Dial(ctx context.Context, wsURL string, cb Callbacks) (Conn, error) {
	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	maxMessageSize := d.MaxMessageSize
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}

	dialer := &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	conn := &wsConn{
		ws:           ws,
		writeTimeout: writeTimeout,
	}
	go conn.readPump(cb)
	return conn, nil
}

// wsConn wraps a gorilla connection. Writes are funneled through a mutex;
// reads happen only on the pump goroutine.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		// A deadline or write failure on a websocket is not recoverable.
		c.closed = true
		c.ws.Close()
		return err
	}
	return nil
}

func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	msg := websocket.FormatCloseMessage(code, reason)
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage, msg)
	return c.ws.Close()
}

// markClosed flips the closed flag and reports whether this call did it.
func (c *wsConn) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.ws.Close()
	return true
}

func (c *wsConn) readPump(cb Callbacks) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			code, reason, clean := closeDetails(err)
			c.markClosed()
			if !clean && cb.OnError != nil {
				cb.OnError(err)
			}
			if cb.OnClose != nil {
				cb.OnClose(code, reason, clean)
			}
			return
		}
		if messageType != websocket.TextMessage {
			// The sync protocol is text frames only.
			continue
		}
		if cb.OnMessage != nil {
			cb.OnMessage(data)
		}
	}
}

// closeDetails extracts the close code and reason from a read error.
func closeDetails(err error) (code int, reason string, clean bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		clean = ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
		return ce.Code, ce.Text, clean
	}
	return websocket.CloseAbnormalClosure, err.Error(), false
}
