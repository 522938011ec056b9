package arena

import (
	"net"
	"time"

	"github.com/gorilla/websocket"

	"skirmish/server/internal/wire"
)

// transport abstracts one client connection so the session logic is shared
// between the raw TCP listener and the WebSocket gateway. TCP carries
// length-prefixed JSON frames; WebSocket carries the same JSON records and
// supplies its own framing.
type transport interface {
	ReadMessage() (*wire.Message, error)
	WriteFrame(payload []byte) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

type tcpTransport struct {
	conn net.Conn
	dec  *wire.Decoder
}

func newTCPTransport(conn net.Conn, maxFrame int64) *tcpTransport {
	return &tcpTransport{conn: conn, dec: wire.NewDecoder(conn, maxFrame)}
}

func (t *tcpTransport) ReadMessage() (*wire.Message, error) {
	return t.dec.Decode()
}

func (t *tcpTransport) WriteFrame(payload []byte) error {
	return wire.WriteFrame(t.conn, payload)
}

func (t *tcpTransport) SetWriteDeadline(deadline time.Time) error {
	return t.conn.SetWriteDeadline(deadline)
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

type wsTransport struct {
	conn     *websocket.Conn
	maxFrame int64
}

func newWSTransport(conn *websocket.Conn, maxFrame int64) *wsTransport {
	if maxFrame > 0 {
		conn.SetReadLimit(maxFrame)
	}
	return &wsTransport{conn: conn, maxFrame: maxFrame}
}

func (t *wsTransport) ReadMessage() (*wire.Message, error) {
	_, payload, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return wire.Parse(payload)
}

func (t *wsTransport) WriteFrame(payload []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (t *wsTransport) SetWriteDeadline(deadline time.Time) error {
	return t.conn.SetWriteDeadline(deadline)
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
