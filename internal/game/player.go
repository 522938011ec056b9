package game

import (
	"hash/fnv"
	"time"
)

// Color is an RGB triple serialized as a 3-element JSON array.
type Color [3]uint8

// minChannelBrightness floors every channel so derived colors stay visible
// against the dark arena background.
const minChannelBrightness = 100

// ColorFor derives a stable display color from a player id. The same id
// always produces the same color, across restarts within a session.
func ColorFor(id string) Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum32()

	channels := [3]uint8{
		uint8(sum >> 16),
		uint8(sum >> 8),
		uint8(sum),
	}
	for i, c := range channels {
		if c < minChannelBrightness {
			channels[i] = minChannelBrightness
		}
	}
	return Color(channels)
}

// Player is a connected participant. All mutation happens on the tick
// goroutine; other goroutines only ever observe snapshot copies.
type Player struct {
	ID        string
	X, Y      float64
	VX, VY    float64
	Alive     bool
	Score     int
	Ammo      int
	Color     Color
	RespawnAt time.Time
}

// integrate advances the player by velocity over the step and clamps the
// position into the playable area. Dead players stay frozen in place.
func (p *Player) integrate(dt float64, arenaW, arenaH, radius float64) {
	if !p.Alive {
		return
	}
	p.X = clamp(p.X+p.VX*dt, radius, arenaW-radius)
	p.Y = clamp(p.Y+p.VY*dt, radius, arenaH-radius)
}

// kill marks the player dead and schedules the respawn deadline.
func (p *Player) kill(now time.Time, respawnDelay time.Duration) {
	p.Alive = false
	p.RespawnAt = now.Add(respawnDelay)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
