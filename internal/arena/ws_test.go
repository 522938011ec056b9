package arena

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"skirmish/server/internal/logging"
	"skirmish/server/internal/wire"
)

func TestWebSocketGatewaySpeaksTheArenaProtocol(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	gateway := httptest.NewServer(s.WSHandler())
	defer gateway.Close()

	url := "ws" + strings.TrimPrefix(gateway.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial gateway: %v", err)
	}
	defer conn.Close()

	payload, err := wire.Marshal(wire.NewJoin())
	if err != nil {
		t.Fatalf("marshal JOIN: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("send JOIN: %v", err)
	}

	kind, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read JOIN_ACK: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("reply frame kind = %d, want binary (%d)", kind, websocket.BinaryMessage)
	}
	ack, err := wire.Parse(reply)
	if err != nil {
		t.Fatalf("parse JOIN_ACK: %v", err)
	}
	if ack.Type != wire.TypeJoinAck || ack.PlayerID == "" {
		t.Fatalf("handshake reply = %+v, want JOIN_ACK with player id", ack)
	}

	stepUntil(t, s, func() bool { return s.Stats().Players == 1 })

	// The gateway carries the same records: an INPUT fired over WS lands in
	// the same simulation.
	payload, err = wire.Marshal(wire.NewInput(wire.Keys{}, true, [2]float64{0, 1}))
	if err != nil {
		t.Fatalf("marshal INPUT: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("send INPUT: %v", err)
	}
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	stepUntil(t, s, func() bool { return s.Stats().Bullets == 1 })
}
