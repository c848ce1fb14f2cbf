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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newEchoServer spins up a local WS server that echoes every text frame it
// receives back to the client, closing cleanly when the client closes.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestConnectSendRecv(t *testing.T) {
	srv := newEchoServer(t)
	tr := New(wsURL(srv))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !tr.IsConnected() {
		t.Fatal("expected Connected state after Connect")
	}

	if err := tr.Send([]byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msg, err := tr.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if msg == nil || string(msg.Data) != `{"hello":"world"}` {
		t.Fatalf("Recv got %v, want echo", msg)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if tr.State() != Disconnected {
		t.Errorf("State after Close = %v, want Disconnected", tr.State())
	}
}

func TestRecvBeforeConnect(t *testing.T) {
	tr := New("ws://127.0.0.1:1/ws")
	if _, err := tr.Recv(); err != ErrNotConnected {
		t.Errorf("Recv before Connect = %v, want ErrNotConnected", err)
	}
	if err := tr.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send before Connect = %v, want ErrNotConnected", err)
	}
}

func TestConnectTimeout(t *testing.T) {
	// A non-routable address (TEST-NET-1) should never complete a
	// handshake; this exercises the bounded-ceiling path without
	// depending on an unusually slow local listener.
	tr := New("ws://192.0.2.1:81/ws")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := tr.Connect(ctx)
	if err == nil {
		t.Fatal("Connect to a black-holed address should fail")
	}
	if tr.State() != Disconnected {
		t.Errorf("State after failed Connect = %v, want Disconnected", tr.State())
	}
}

func TestPeerClose(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tr := New(wsURL(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	msg, err := tr.Recv()
	if err != nil {
		t.Fatalf("Recv on peer close should not error: %v", err)
	}
	if msg != nil {
		t.Errorf("Recv on peer close = %v, want nil", msg)
	}
	if tr.State() != Disconnected {
		t.Errorf("State after peer close = %v, want Disconnected", tr.State())
	}
}

func TestIdleDuration(t *testing.T) {
	srv := newEchoServer(t)
	tr := New(wsURL(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if tr.IdleDuration() < 0 {
		t.Error("IdleDuration should be non-negative right after Connect")
	}
}
