// Package wstest provides a scripted in-process sync server for client
// tests. Each accepted WebSocket becomes a Conn that records the decoded
// client messages and lets the test push server messages or kill the socket,
// so reconnection behaviour can be exercised deterministically.
package wstest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxbase/flux-go/pkg/protocol"
)

const acceptTimeout = 5 * time.Second

// Server is a fake sync backend listening on a local httptest server.
type Server struct {
	ts       *httptest.Server
	upgrader websocket.Upgrader
	conns    chan *Conn

	mu     sync.Mutex
	closed bool
}

// NewServer starts a fake sync server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		conns: make(chan *Conn, 8),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sync", s.handleSync)
	s.ts = httptest.NewServer(mux)
	return s
}

// URL returns the deployment URL clients should be pointed at.
func (s *Server) URL() string {
	return s.ts.URL
}

// Close shuts the listener down and kills every live connection.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.ts.Close()
}

// Accept waits for the next client connection.
func (s *Server) Accept(t *testing.T) *Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		return c
	case <-time.After(acceptTimeout):
		t.Fatal("wstest: timed out waiting for a connection")
		return nil
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Conn{
		ws:       ws,
		received: make(chan protocol.ClientMessage, 64),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		ws.Close()
		return
	}
	s.conns <- c
}

// Conn is one accepted client connection.
type Conn struct {
	ws       *websocket.Conn
	received chan protocol.ClientMessage
	done     chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClient(data)
		if err != nil {
			// Surface decode failures as a dropped message; the test's
			// Recv will time out and fail with context.
			continue
		}
		select {
		case c.received <- msg:
		default:
		}
	}
}

// Recv returns the next decoded client message.
func (c *Conn) Recv(t *testing.T) protocol.ClientMessage {
	t.Helper()
	select {
	case m := <-c.received:
		return m
	case <-time.After(acceptTimeout):
		t.Fatal("wstest: timed out waiting for a client message")
		return nil
	}
}

// RecvConnect consumes the next message and asserts it is the handshake.
func (c *Conn) RecvConnect(t *testing.T) *protocol.Connect {
	t.Helper()
	m, ok := c.Recv(t).(*protocol.Connect)
	if !ok {
		t.Fatalf("wstest: expected Connect, got %T", m)
	}
	return m
}

// RecvModifyQuerySet consumes the next message and asserts its type.
func (c *Conn) RecvModifyQuerySet(t *testing.T) *protocol.ModifyQuerySet {
	t.Helper()
	m := c.Recv(t)
	mq, ok := m.(*protocol.ModifyQuerySet)
	if !ok {
		t.Fatalf("wstest: expected ModifyQuerySet, got %T", m)
	}
	return mq
}

// Send encodes and writes a server message to the client.
func (c *Conn) Send(t *testing.T, msg protocol.ServerMessage) {
	t.Helper()
	data, err := protocol.EncodeServer(msg)
	if err != nil {
		t.Fatalf("wstest: encode: %v", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("wstest: write: %v", err)
	}
}

// SendRaw writes arbitrary bytes as a text frame, for malformed-input tests.
func (c *Conn) SendRaw(t *testing.T, data []byte) {
	t.Helper()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("wstest: write: %v", err)
	}
}

// Drop severs the TCP connection without a close frame, simulating a
// network failure.
func (c *Conn) Drop() {
	c.closeOnce.Do(func() {
		c.ws.UnderlyingConn().Close()
	})
}

// CloseClean performs a normal WebSocket close handshake.
func (c *Conn) CloseClean() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		c.writeMu.Unlock()
		c.ws.Close()
	})
}

// Done is closed when the connection's read loop has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Builders for the server messages tests send most often. They fill in the
// type discriminator so a hand-built struct can't silently go out untyped.

// Transition builds a Transition delivering one value per (queryID, value)
// pair in mods.
func Transition(startVersion, endVersion uint32, mods ...protocol.TransitionModification) *protocol.Transition {
	return &protocol.Transition{
		Type:          protocol.TypeTransition,
		StartVersion:  startVersion,
		EndVersion:    endVersion,
		Modifications: mods,
	}
}

// QueryValue builds a successful transition modification.
func QueryValue(queryID uint32, value protocol.Value) protocol.TransitionModification {
	return protocol.TransitionModification{QueryID: queryID, Value: value}
}

// QueryFailure builds a failed transition modification.
func QueryFailure(queryID uint32, message string, data *protocol.Value) protocol.TransitionModification {
	return protocol.TransitionModification{QueryID: queryID, ErrorMessage: message, ErrorData: data}
}

// MutationOK builds a successful MutationResponse.
func MutationOK(requestID int64, result protocol.Value, ts int64) *protocol.MutationResponse {
	return &protocol.MutationResponse{
		Type:      protocol.TypeMutationResponse,
		RequestID: requestID,
		Result:    result,
		Ts:        ts,
	}
}

// MutationFailed builds a failed MutationResponse whose result carries the
// error message.
func MutationFailed(requestID int64, message string, data *protocol.Value) *protocol.MutationResponse {
	failed := false
	return &protocol.MutationResponse{
		Type:      protocol.TypeMutationResponse,
		RequestID: requestID,
		Success:   &failed,
		Result:    protocol.String(message),
		ErrorData: data,
	}
}

// ActionOK builds a successful ActionResponse.
func ActionOK(requestID int64, result protocol.Value) *protocol.ActionResponse {
	return &protocol.ActionResponse{
		Type:      protocol.TypeActionResponse,
		RequestID: requestID,
		Result:    result,
	}
}

// ActionFailed builds a failed ActionResponse.
func ActionFailed(requestID int64, message string, data *protocol.Value) *protocol.ActionResponse {
	failed := false
	return &protocol.ActionResponse{
		Type:      protocol.TypeActionResponse,
		RequestID: requestID,
		Success:   &failed,
		Result:    protocol.String(message),
		ErrorData: data,
	}
}

// Ping builds a server keepalive probe.
func Ping() *protocol.Ping {
	return &protocol.Ping{Type: protocol.TypePing}
}

// Fatal builds a FatalError message.
func Fatal(message string) *protocol.FatalError {
	return &protocol.FatalError{Type: protocol.TypeFatalError, Error: message}
}

// AuthRejected builds an AuthError message.
func AuthRejected(message string) *protocol.AuthError {
	return &protocol.AuthError{Type: protocol.TypeAuthError, Error: message}
}
