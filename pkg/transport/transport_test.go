package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestSyncURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  bool
	}{
		{"https", "https://happy-otter-123.flux.site", "wss://happy-otter-123.flux.site/api/sync", false},
		{"http", "http://localhost:8080", "ws://localhost:8080/api/sync", false},
		{"already wss", "wss://example.com", "wss://example.com/api/sync", false},
		{"trailing slash", "https://example.com/", "wss://example.com/api/sync", false},
		{"unsupported scheme", "ftp://example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SyncURL(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("SyncURL(%q) succeeded; want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("SyncURL(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("SyncURL(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

// echoServer upgrades and echoes text frames until the client closes.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDialerEcho(t *testing.T) {
	srv := echoServer(t)

	messages := make(chan []byte, 1)
	closed := make(chan struct{})

	d := &WebSocketDialer{}
	conn, err := d.Dial(context.Background(), wsURL(srv), Callbacks{
		OnMessage: func(data []byte) { messages <- data },
		OnClose:   func(code int, reason string, clean bool) { close(closed) },
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := conn.Send([]byte(`{"type":"Ping"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case data := <-messages:
		if string(data) != `{"type":"Ping"}` {
			t.Errorf("echo = %s; want the sent frame", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	if err := conn.Close(websocket.CloseNormalClosure, "done"); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := conn.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send() after close = %v; want ErrNotConnected", err)
	}
	// Double close is a no-op.
	if err := conn.Close(websocket.CloseNormalClosure, "again"); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestWebSocketDialerServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	drop := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-drop
		// Abrupt close, no close frame.
		ws.UnderlyingConn().Close()
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	closes := make(chan bool, 1)

	d := &WebSocketDialer{}
	_, err := d.Dial(context.Background(), wsURL(srv), Callbacks{
		OnError: func(err error) { errs <- err },
		OnClose: func(code int, reason string, clean bool) { closes <- clean },
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	close(drop)

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnError")
	}
	select {
	case clean := <-closes:
		if clean {
			t.Error("OnClose clean = true for abrupt drop; want false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnClose")
	}
}

func TestDialFailure(t *testing.T) {
	d := &WebSocketDialer{HandshakeTimeout: 200 * time.Millisecond}
	if _, err := d.Dial(context.Background(), "ws://127.0.0.1:1/api/sync", Callbacks{}); err == nil {
		t.Fatal("Dial() to closed port succeeded; want error")
	}
}
