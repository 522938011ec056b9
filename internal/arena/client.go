package arena

import (
	"sync"
	"sync/atomic"
	"time"

	"skirmish/server/internal/logging"
)

// client pairs one transport with its outbound queue and identity. The reader
// goroutine owns inbound traffic; a dedicated writer goroutine drains the
// queue so a slow peer never blocks the tick thread.
type client struct {
	id       string // connection id, for log correlation
	playerID string

	transport    transport
	send         chan []byte
	writeTimeout time.Duration
	log          *logging.Logger

	closeOnce sync.Once
	done      chan struct{}
	dead      atomic.Bool
}

func newClient(id, playerID string, t transport, queueSize int, writeTimeout time.Duration, log *logging.Logger) *client {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &client{
		id:           id,
		playerID:     playerID,
		transport:    t,
		send:         make(chan []byte, queueSize),
		writeTimeout: writeTimeout,
		log:          log,
		done:         make(chan struct{}),
	}
}

// enqueue hands a serialized record to the writer goroutine. A full queue
// means the peer cannot keep up with the broadcast rate; the client is marked
// dead instead of stalling the caller.
func (c *client) enqueue(payload []byte) bool {
	if c.dead.Load() {
		return false
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		c.dead.Store(true)
		c.log.Warn("outbound queue full, dropping client",
			logging.String("connection_id", c.id),
			logging.String("player_id", c.playerID))
		return false
	}
}

// writeLoop drains the outbound queue onto the transport under a per-write
// deadline. Any write failure poisons the connection; the reader notices the
// close and runs the shared teardown.
func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if c.writeTimeout > 0 {
				if err := c.transport.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
					c.close()
					return
				}
			}
			if err := c.transport.WriteFrame(payload); err != nil {
				c.dead.Store(true)
				c.close()
				return
			}
		}
	}
}

// close shuts the transport exactly once. Closing also unblocks the reader
// goroutine, so teardown converges from any trigger: read error, write error,
// queue overflow, or server shutdown.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.transport.Close(); err != nil {
			c.log.Debug("transport close",
				logging.String("connection_id", c.id),
				logging.Error(err))
		}
	})
}
