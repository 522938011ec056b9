package arena

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"

	"skirmish/server/internal/config"
	"skirmish/server/internal/game"
	"skirmish/server/internal/input"
	"skirmish/server/internal/logging"
	"skirmish/server/internal/simulation"
	"skirmish/server/internal/wire"
)

// Server owns the authoritative game state and every client connection. The
// state is mutated only on the tick goroutine; connection goroutines reach it
// through the input buffer and the command queue, and receive immutable
// snapshot bytes back.
type Server struct {
	cfg *config.Config
	log *logging.Logger

	state   *game.State
	inputs  *input.Buffer
	clients *registry
	monitor *simulation.TickMonitor
	loop    *simulation.Loop
	joins   *joinLimiter

	// commands carries join/leave mutations onto the tick goroutine.
	commands chan func(*game.State)
	done     chan struct{}

	// pending tracks sockets parked in the handshake read, which are not in
	// the registry yet. Shutdown must close these too, or a peer that never
	// sends JOIN keeps its session goroutine alive forever.
	pendingMu     sync.Mutex
	pending       map[transport]struct{}
	pendingClosed bool

	listener  net.Listener
	boundAddr atomic.Value
	wg        sync.WaitGroup

	playerCount atomic.Int64
	bulletCount atomic.Int64
	boxCount    atomic.Int64
}

// Stats is the point-in-time operational view served by the ops endpoints.
type Stats struct {
	Players     int                  `json:"players"`
	Bullets     int                  `json:"bullets"`
	Boxes       int                  `json:"boxes"`
	Connections int                  `json:"connections"`
	Tick        simulation.TickStats `json:"tick"`
	Input       input.Counters       `json:"input"`
}

// NewServer wires the simulation, input buffer, and connection registry.
// Extra game options are applied to the state, which lets tests pin the clock
// and random source.
func NewServer(cfg *config.Config, log *logging.Logger, gameOpts ...game.Option) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		state:    game.NewState(cfg.Game, gameOpts...),
		inputs:   input.NewBuffer(),
		clients:  newRegistry(),
		monitor:  simulation.NewTickMonitor(),
		joins:    newJoinLimiter(cfg.JoinRateWindow, cfg.JoinRateLimit, nil),
		commands: make(chan func(*game.State), 256),
		done:     make(chan struct{}),
		pending:  make(map[transport]struct{}),
	}
	s.loop = simulation.NewLoop(cfg.Game.TickInterval(), s.step, s.monitor)
	return s
}

// Run listens on the configured TCP address and serves until the context is
// cancelled. It blocks for the lifetime of the server.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.boundAddr.Store(listener.Addr().String())
	s.log.Info("arena listening",
		logging.String("addr", listener.Addr().String()),
		logging.Int("tick_rate", s.cfg.Game.TickRate))

	s.loop.Start(ctx)
	s.acceptLoop(ctx, listener)

	//1.- Stop producing ticks before tearing the connections down, so no
	// broadcast races the shutdown sweep.
	s.loop.Stop()
	close(s.done)
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug("listener close", logging.Error(err))
	}
	//2.- Closing each transport unblocks its reader, which runs the shared
	// teardown path. Pending sockets go first: they are parked in the
	// handshake read and appear in no other set.
	s.closePending()
	for _, c := range s.clients.list() {
		c.close()
	}
	s.wg.Wait()
	s.log.Info("arena stopped")
	return nil
}

// Addr reports the bound listen address once Run has bound it, or "".
func (s *Server) Addr() string {
	if addr, ok := s.boundAddr.Load().(string); ok {
		return addr
	}
	return ""
}

// trackPending registers a pre-handshake socket. It reports false once
// shutdown has begun, in which case the caller must close the socket itself.
func (s *Server) trackPending(t transport) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.pendingClosed {
		return false
	}
	s.pending[t] = struct{}{}
	return true
}

// untrackPending removes a socket from the pending set. Removing twice or
// after closePending is a no-op.
func (s *Server) untrackPending(t transport) {
	s.pendingMu.Lock()
	delete(s.pending, t)
	s.pendingMu.Unlock()
}

// pendingLen reports how many sockets sit in the handshake read.
func (s *Server) pendingLen() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// closePending closes every pre-handshake socket and refuses new ones.
func (s *Server) closePending() {
	s.pendingMu.Lock()
	s.pendingClosed = true
	for t := range s.pending {
		_ = t.Close()
	}
	s.pending = make(map[transport]struct{})
	s.pendingMu.Unlock()
}

// acceptLoop admits connections until the context is cancelled. The accept
// deadline bounds how long shutdown waits for a wakeup.
func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	tcpListener, _ := listener.(*net.TCPListener)
	for {
		if ctx.Err() != nil {
			return
		}
		if tcpListener != nil {
			if err := tcpListener.SetDeadline(time.Now().Add(s.cfg.AcceptPollInterval)); err != nil {
				s.log.Warn("accept deadline", logging.Error(err))
			}
		}
		conn, err := listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.log.Warn("accept failed", logging.Error(err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveSession(newTCPTransport(conn, s.cfg.MaxFrameBytes))
		}()
	}
}

// wsUpgrader accepts any origin: the gateway fronts the same open protocol as
// the TCP listener.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSHandler exposes the arena protocol over WebSocket. Each WS message body
// is one JSON record, identical to a TCP frame payload.
func (s *Server) WSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed",
				logging.String("remote", r.RemoteAddr),
				logging.Error(err))
			return
		}
		s.wg.Add(1)
		defer s.wg.Done()
		s.serveSession(newWSTransport(conn, s.cfg.MaxFrameBytes))
	})
}

// serveSession runs one connection from handshake to teardown, regardless of
// transport.
func (s *Server) serveSession(t transport) {
	remote := t.RemoteAddr()
	// The pending count keeps pre-join sockets inside the client budget too.
	if s.cfg.MaxClients > 0 && s.clients.size()+s.pendingLen() >= s.cfg.MaxClients {
		s.log.Warn("connection refused, client limit reached",
			logging.String("remote", remote),
			logging.Int("max_clients", s.cfg.MaxClients))
		_ = t.Close()
		return
	}
	if !s.joins.allow() {
		s.log.Warn("connection refused, join rate exceeded",
			logging.String("remote", remote))
		_ = t.Close()
		return
	}

	//1.- Track the socket before the handshake read so shutdown can close it
	// out from under a peer that never sends JOIN.
	if !s.trackPending(t) {
		_ = t.Close()
		return
	}

	//2.- The handshake record must be a JOIN; anything else ends the session
	// before a player exists.
	msg, err := t.ReadMessage()
	if err != nil || msg.Type != wire.TypeJoin {
		s.untrackPending(t)
		s.log.Debug("handshake rejected", logging.String("remote", remote))
		_ = t.Close()
		return
	}

	//3.- Identity is issued by the server, never derived from the peer.
	playerID := ksuid.New().String()
	c := newClient(uuid.NewString(), playerID, t, s.cfg.OutboundQueueSize, s.cfg.WriteTimeout, s.log)
	defer s.drop(c)

	//4.- Queue the acknowledgement before the client becomes visible to the
	// broadcaster, so JOIN_ACK is always the first record on the wire.
	ack, err := wire.Marshal(wire.NewJoinAck(playerID, game.ColorFor(playerID)))
	if err != nil {
		s.log.Error("join ack marshal", logging.Error(err))
		return
	}
	if !c.enqueue(ack) {
		return
	}

	s.clients.add(c)
	s.untrackPending(t)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()

	if !s.do(func(st *game.State) { st.AddPlayer(playerID) }) {
		return
	}
	s.log.Info("player joined",
		logging.String("player_id", playerID),
		logging.String("connection_id", c.id),
		logging.String("remote", remote))

	//5.- Pump inbound records until the peer leaves or the stream breaks.
	for {
		msg, err := t.ReadMessage()
		if err != nil {
			return
		}
		switch msg.Type {
		case wire.TypeInput:
			s.inputs.Store(playerID, intentFrom(msg))
		case wire.TypeLeave:
			return
		default:
			s.log.Debug("unexpected record",
				logging.String("player_id", playerID),
				logging.String("type", string(msg.Type)))
		}
	}
}

// drop runs the teardown for one client: close the transport, forget the
// connection and any pending input, and schedule the player's removal on the
// tick goroutine. Every step is idempotent, so concurrent triggers converge.
func (s *Server) drop(c *client) {
	c.close()
	s.untrackPending(c.transport)
	s.clients.remove(c.id)
	s.inputs.Forget(c.playerID)
	playerID := c.playerID
	if s.do(func(st *game.State) { st.RemovePlayer(playerID) }) {
		s.log.Info("player left", logging.String("player_id", playerID))
	}
}

// do schedules a state mutation onto the tick goroutine. It reports false
// when the server is shutting down and the mutation no longer matters.
func (s *Server) do(fn func(*game.State)) bool {
	select {
	case s.commands <- fn:
		return true
	case <-s.done:
		return false
	}
}

// step advances one tick. It is the only code that touches s.state.
func (s *Server) step(dt time.Duration) {
	//1.- Apply queued joins and leaves before reading input, so a leaver's
	// buffered intent cannot act on a removed player.
	for {
		select {
		case fn := <-s.commands:
			fn(s.state)
		default:
			goto drained
		}
	}
drained:

	//2.- Install the most recent intent per player and advance the world.
	s.state.ApplyIntents(s.inputs.Drain())
	s.state.Update(dt)

	players, bullets, boxes := s.state.Counts()
	s.playerCount.Store(int64(players))
	s.bulletCount.Store(int64(bullets))
	s.boxCount.Store(int64(boxes))

	//3.- Serialize the snapshot once and fan the same bytes out everywhere.
	payload, err := wire.Marshal(wire.NewState(s.state.Snapshot()))
	if err != nil {
		s.log.Error("snapshot marshal", logging.Error(err))
		return
	}
	for _, c := range s.clients.list() {
		if !c.enqueue(payload) {
			// The reader notices the closed transport and finishes teardown.
			c.close()
		}
	}
}

// Stats reports the operational counters for the ops surface.
func (s *Server) Stats() Stats {
	return Stats{
		Players:     int(s.playerCount.Load()),
		Bullets:     int(s.bulletCount.Load()),
		Boxes:       int(s.boxCount.Load()),
		Connections: s.clients.size(),
		Tick:        s.monitor.Snapshot(),
		Input:       s.inputs.Counters(),
	}
}

// intentFrom converts an INPUT record into the simulation's intent form.
func intentFrom(msg *wire.Message) game.Intent {
	keys, shoot, dir := msg.Input()
	return game.Intent{
		Left:  keys.Left,
		Right: keys.Right,
		Up:    keys.Up,
		Down:  keys.Down,
		Shoot: shoot,
		DirX:  dir[0],
		DirY:  dir[1],
	}
}
