package arena

import (
	"context"
	"net"
	"testing"
	"time"

	"skirmish/server/internal/config"
	"skirmish/server/internal/game"
	"skirmish/server/internal/logging"
	"skirmish/server/internal/wire"
)

func testConfig() *config.Config {
	return &config.Config{
		Addr:               "127.0.0.1:0",
		OpsAddr:            "127.0.0.1:0",
		MaxFrameBytes:      config.DefaultMaxFrameBytes,
		MaxClients:         config.DefaultMaxClients,
		AcceptPollInterval: 10 * time.Millisecond,
		WriteTimeout:       time.Second,
		OutboundQueueSize:  config.DefaultOutboundQueueSize,
		Game: config.Game{
			ArenaWidth:     800,
			ArenaHeight:    600,
			PlayerRadius:   20,
			BulletRadius:   5,
			BoxRadius:      10,
			PlayerSpeed:    200,
			BulletSpeed:    400,
			BulletLifetime: 3 * time.Second,
			BoxLifetime:    10 * time.Second,
			BoxIntervalMin: time.Hour,
			BoxIntervalMax: time.Hour,
			TickRate:       30,
			RespawnDelay:   3 * time.Second,
			MaxAmmo:        10,
		},
	}
}

// session connects one in-memory peer to the server and runs the handshake.
type session struct {
	conn net.Conn
	enc  *wire.Encoder
	dec  *wire.Decoder
}

func dial(t *testing.T, s *Server) *session {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	go s.serveSession(newTCPTransport(serverSide, s.cfg.MaxFrameBytes))
	t.Cleanup(func() { clientSide.Close() })
	return &session{
		conn: clientSide,
		enc:  wire.NewEncoder(clientSide),
		dec:  wire.NewDecoder(clientSide, 0),
	}
}

func (c *session) join(t *testing.T) *wire.Message {
	t.Helper()
	if err := c.enc.Encode(wire.NewJoin()); err != nil {
		t.Fatalf("send JOIN: %v", err)
	}
	ack, err := c.dec.Decode()
	if err != nil {
		t.Fatalf("read JOIN_ACK: %v", err)
	}
	if ack.Type != wire.TypeJoinAck {
		t.Fatalf("handshake reply type = %q, want %q", ack.Type, wire.TypeJoinAck)
	}
	return ack
}

// stepUntil ticks the simulation until the condition holds or the deadline
// expires. Join and leave commands land on tick boundaries, so tests poll.
func stepUntil(t *testing.T, s *Server, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached within 2s")
		}
		s.step(s.cfg.Game.TickInterval())
		time.Sleep(time.Millisecond)
	}
}

func TestHandshakeIssuesServerOwnedIdentity(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())

	first := dial(t, s).join(t)
	second := dial(t, s).join(t)

	if first.PlayerID == "" || second.PlayerID == "" {
		t.Fatal("handshake returned empty player id")
	}
	if first.PlayerID == second.PlayerID {
		t.Fatalf("two connections share player id %q", first.PlayerID)
	}
	if first.Color == nil {
		t.Fatal("handshake returned no color")
	}
	if want := game.ColorFor(first.PlayerID); *first.Color != want {
		t.Fatalf("color = %v, want %v", *first.Color, want)
	}
}

func TestHandshakeRejectsNonJoinRecords(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	c := dial(t, s)

	if err := c.enc.Encode(wire.NewInput(wire.Keys{Up: true}, false, [2]float64{})); err != nil {
		t.Fatalf("send INPUT: %v", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.dec.Decode(); err == nil {
		t.Fatal("server answered a session that never joined")
	}
	if got := s.Stats().Players; got != 0 {
		t.Fatalf("players = %d, want 0", got)
	}
}

func TestJoinedPlayerAppearsInBroadcast(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	c := dial(t, s)
	ack := c.join(t)

	found := make(chan game.Snapshot, 1)
	go func() {
		reported := false
		for {
			msg, err := c.dec.Decode()
			if err != nil {
				return
			}
			if reported || msg.Type != wire.TypeState || msg.State == nil {
				continue
			}
			if _, ok := msg.State.Players[ack.PlayerID]; ok {
				found <- *msg.State
				reported = true
			}
		}
	}()

	var snapshot game.Snapshot
	deadline := time.Now().Add(2 * time.Second)
waiting:
	for {
		select {
		case snapshot = <-found:
			break waiting
		default:
			if time.Now().After(deadline) {
				t.Fatal("no broadcast carried the joined player within 2s")
			}
			s.step(s.cfg.Game.TickInterval())
			time.Sleep(time.Millisecond)
		}
	}

	player := snapshot.Players[ack.PlayerID]
	if !player.Alive {
		t.Fatal("fresh player broadcast as dead")
	}
	if player.Ammo != s.cfg.Game.MaxAmmo {
		t.Fatalf("broadcast ammo = %d, want %d", player.Ammo, s.cfg.Game.MaxAmmo)
	}
	if snapshot.TimestampMS == 0 {
		t.Fatal("broadcast carries no timestamp")
	}
}

func TestInputRecordFiresBullet(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	c := dial(t, s)
	c.join(t)

	go func() {
		// Drain broadcasts so the writer never parks on a full pipe.
		for {
			if _, err := c.dec.Decode(); err != nil {
				return
			}
		}
	}()

	stepUntil(t, s, func() bool { return s.Stats().Players == 1 })
	if err := c.enc.Encode(wire.NewInput(wire.Keys{}, true, [2]float64{1, 0})); err != nil {
		t.Fatalf("send INPUT: %v", err)
	}
	stepUntil(t, s, func() bool { return s.Stats().Bullets == 1 })
}

func TestLeaveRemovesPlayerAndConnection(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	c := dial(t, s)
	c.join(t)

	stepUntil(t, s, func() bool { return s.Stats().Players == 1 })
	if err := c.enc.Encode(wire.NewLeave()); err != nil {
		t.Fatalf("send LEAVE: %v", err)
	}
	stepUntil(t, s, func() bool {
		stats := s.Stats()
		return stats.Players == 0 && stats.Connections == 0
	})
}

func TestAbruptDisconnectRemovesPlayer(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	c := dial(t, s)
	c.join(t)

	stepUntil(t, s, func() bool { return s.Stats().Players == 1 })
	c.conn.Close()
	stepUntil(t, s, func() bool {
		stats := s.Stats()
		return stats.Players == 0 && stats.Connections == 0
	})
}

func TestShutdownClosesIdleHandshakeConnections(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ran := make(chan error, 1)
	go func() { ran <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind within 2s")
		}
		time.Sleep(time.Millisecond)
	}

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Send nothing: the session stays parked in the handshake read and never
	// reaches the registry.
	deadline = time.Now().Add(2 * time.Second)
	for s.pendingLen() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handshake socket never tracked")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-ran:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return while a handshake socket was still open")
	}
}

func TestJoinAckPrecedesFirstBroadcast(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())

	// Tick continuously while the handshake runs, so a broadcast is always
	// racing the acknowledgement.
	stop := make(chan struct{})
	ticking := make(chan struct{})
	go func() {
		defer close(ticking)
		for {
			select {
			case <-stop:
				return
			default:
				s.step(s.cfg.Game.TickInterval())
			}
		}
	}()
	defer func() {
		close(stop)
		<-ticking
	}()

	c := dial(t, s)
	if err := c.enc.Encode(wire.NewJoin()); err != nil {
		t.Fatalf("send JOIN: %v", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	first, err := c.dec.Decode()
	if err != nil {
		t.Fatalf("read first record: %v", err)
	}
	if first.Type != wire.TypeJoinAck {
		t.Fatalf("first record type = %q, want %q", first.Type, wire.TypeJoinAck)
	}
}

func TestClientLimitRefusesExtraConnections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 1
	s := NewServer(cfg, logging.NewTestLogger())

	first := dial(t, s)
	first.join(t)

	second := dial(t, s)
	// The refusal may land before the JOIN is read, so a send error is fine.
	_ = second.enc.Encode(wire.NewJoin())
	second.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := second.dec.Decode(); err == nil {
		t.Fatal("server admitted a connection past the limit")
	}
}

func TestClientLimitCountsHandshakeConnections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 1
	s := NewServer(cfg, logging.NewTestLogger())

	// The first connection never joins, but it still occupies the budget.
	first := dial(t, s)
	deadline := time.Now().Add(2 * time.Second)
	for s.pendingLen() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handshake socket never tracked")
		}
		time.Sleep(time.Millisecond)
	}

	second := dial(t, s)
	// The refusal may land before the JOIN is read, so a send error is fine.
	_ = second.enc.Encode(wire.NewJoin())
	second.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := second.dec.Decode(); err == nil {
		t.Fatal("server admitted a connection past the limit")
	}
	first.conn.Close()
}

func TestSlowConsumerIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.OutboundQueueSize = 1
	s := NewServer(cfg, logging.NewTestLogger())

	c := dial(t, s)
	c.join(t)
	stepUntil(t, s, func() bool { return s.Stats().Players == 1 })

	// Never read another frame: the queue fills, then overflows.
	stepUntil(t, s, func() bool {
		stats := s.Stats()
		return stats.Connections == 0 && stats.Players == 0
	})
}

func TestStatsReflectSimulation(t *testing.T) {
	s := NewServer(testConfig(), logging.NewTestLogger())
	c := dial(t, s)
	c.join(t)
	go func() {
		for {
			if _, err := c.dec.Decode(); err != nil {
				return
			}
		}
	}()

	stepUntil(t, s, func() bool { return s.Stats().Players == 1 })

	stats := s.Stats()
	if stats.Connections != 1 {
		t.Fatalf("connections = %d, want 1", stats.Connections)
	}
	if stats.Boxes != 0 {
		t.Fatalf("boxes = %d, want 0 before the spawn interval", stats.Boxes)
	}
}
