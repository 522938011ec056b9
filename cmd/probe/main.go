// Command probe is a headless arena client: it joins, optionally walks and
// fires for a while, and prints the snapshots it receives. Useful for smoke
// testing a deployment without a real game client.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"skirmish/server/internal/wire"
)

func main() {
	addr := flag.String("addr", "localhost:5555", "arena server address")
	duration := flag.Duration("duration", 5*time.Second, "how long to stay connected")
	move := flag.Bool("move", true, "hold the right movement key while connected")
	shoot := flag.Bool("shoot", false, "fire to the right once per second")
	flag.Parse()

	if err := run(*addr, *duration, *move, *shoot); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, duration time.Duration, move, shoot bool) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	enc := wire.NewEncoder(conn)
	dec := wire.NewDecoder(conn, 0)

	//1.- Handshake: JOIN, then wait for the assigned identity.
	if err := enc.Encode(wire.NewJoin()); err != nil {
		return err
	}
	ack, err := dec.Decode()
	if err != nil {
		return err
	}
	if ack.Type != wire.TypeJoinAck {
		return fmt.Errorf("handshake reply was %s, want %s", ack.Type, wire.TypeJoinAck)
	}
	fmt.Printf("joined as %s color %v\n", ack.PlayerID, *ack.Color)

	//2.- Send one INPUT per client frame while the session lasts. The mutex
	// keeps the final LEAVE from interleaving with an in-flight INPUT.
	var sendMu sync.Mutex
	stop := time.After(duration)
	sessionOver := make(chan struct{})
	defer close(sessionOver)
	inputTicker := time.NewTicker(50 * time.Millisecond)
	defer inputTicker.Stop()
	shotTicker := time.NewTicker(time.Second)
	defer shotTicker.Stop()

	go func() {
		fire := false
		for {
			select {
			case <-sessionOver:
				return
			case <-inputTicker.C:
				msg := wire.NewInput(wire.Keys{Right: move}, fire, [2]float64{1, 0})
				fire = false
				sendMu.Lock()
				err := enc.Encode(msg)
				sendMu.Unlock()
				if err != nil {
					return
				}
			case <-shotTicker.C:
				fire = shoot
			}
		}
	}()

	//3.- Print a one-line digest of each snapshot until time is up.
	snapshots := 0
	for {
		select {
		case <-stop:
			sendMu.Lock()
			_ = enc.Encode(wire.NewLeave())
			sendMu.Unlock()
			fmt.Printf("received %d snapshots\n", snapshots)
			return nil
		default:
		}
		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return err
		}
		msg, err := dec.Decode()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return err
		}
		if msg.Type != wire.TypeState || msg.State == nil {
			continue
		}
		snapshots++
		if self, ok := msg.State.Players[ack.PlayerID]; ok && snapshots%30 == 0 {
			fmt.Printf("tick %d: pos=(%.1f, %.1f) score=%d ammo=%d players=%d bullets=%d\n",
				snapshots, self.X, self.Y, self.Score, self.Ammo,
				len(msg.State.Players), len(msg.State.Bullets))
		}
	}
}
