// Package transport implements the persistent streaming connection used by
// every venue client: handshake with a bounded ceiling, send/receive,
// keep-alive-friendly idle tracking, and graceful close.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// State is the connection's lifecycle stage.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectTimeout bounds the handshake per spec's 10-second ceiling.
const ConnectTimeout = 10 * time.Second

var (
	ErrNotConnected     = errors.New("transport: not connected")
	ErrConnectionClosed = errors.New("transport: connection closed by peer")
)

// Message is a single inbound frame.
type Message struct {
	Type byte // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// Transport wraps one websocket connection with the lifecycle and
// activity tracking every venue client needs.
type Transport struct {
	url string

	mu    sync.Mutex
	conn  *websocket.Conn
	state atomic.Int32

	lastActivityNs atomic.Int64
}

// New constructs a Transport bound to url. Connect must be called before
// Send/Recv.
func New(url string) *Transport {
	t := &Transport{url: url}
	t.state.Store(int32(Disconnected))
	return t
}

// State returns the current connection lifecycle stage.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// IsConnected reports whether the transport believes it has a live socket.
func (t *Transport) IsConnected() bool {
	return t.State() == Connected
}

// IdleDuration returns how long it has been since the last successful
// send or receive.
func (t *Transport) IdleDuration() time.Duration {
	last := t.lastActivityNs.Load()
	if last == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - last)
}

// Connect performs the streaming handshake within ConnectTimeout and
// enables TCP_NODELAY on the underlying socket.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Store(int32(Connecting))

	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(dialCtx, t.url, nil)
	if err != nil {
		t.state.Store(int32(Disconnected))
		return fmt.Errorf("transport: dial %s: %w", t.url, err)
	}

	if tcpConn, ok := conn.UnderlyingConn().(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			log.Warn().Err(err).Str("url", t.url).Msg("transport: failed to set TCP_NODELAY")
		}
	}

	t.conn = conn
	t.state.Store(int32(Connected))
	t.touch()
	return nil
}

// Send writes a single text frame. It requires the transport to be
// Connected.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() != Connected || t.conn == nil {
		return ErrNotConnected
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	t.touch()
	return nil
}

// SendPing writes a control-frame-equivalent application ping used by
// venues without native WS ping support (e.g. Bybit's {"op":"ping"}).
func (t *Transport) SendPing(data []byte) error {
	return t.Send(data)
}

// Recv reads the next frame. On graceful peer close it transitions the
// state to Disconnected and returns (nil, nil) rather than an error, per
// the Frame Transport contract (§4.4: peer-close surfaces as None).
func (t *Transport) Recv() (*Message, error) {
	t.mu.Lock()
	conn := t.conn
	connected := t.State() == Connected
	t.mu.Unlock()

	if !connected || conn == nil {
		return nil, ErrNotConnected
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived,
		) {
			t.state.Store(int32(Disconnected))
			return nil, nil
		}
		t.state.Store(int32(Disconnected))
		return nil, fmt.Errorf("transport: recv: %w", err)
	}

	t.touch()
	return &Message{Type: byte(msgType), Data: data}, nil
}

// SetReadDeadline bounds the next Recv call, used by venue clients running
// a short keep-alive poll loop (e.g. Bybit's 5s receive timeout).
func (t *Transport) SetReadDeadline(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	return t.conn.SetReadDeadline(time.Now().Add(d))
}

// Close initiates a graceful shutdown, sending a close frame before
// tearing down the socket.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		t.state.Store(int32(Disconnected))
		return nil
	}

	deadline := time.Now().Add(5 * time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	err := t.conn.Close()
	t.conn = nil
	t.state.Store(int32(Disconnected))
	return err
}

func (t *Transport) touch() {
	t.lastActivityNs.Store(time.Now().UnixNano())
}
