package game

import "time"

// Bullet is a projectile in flight. Its id embeds the owner and a monotonic
// counter, so ids are never reused.
type Bullet struct {
	ID        string
	OwnerID   string
	X, Y      float64
	VX, VY    float64
	SpawnedAt time.Time
}

// integrate advances the bullet along its fixed-velocity path.
func (b *Bullet) integrate(dt float64) {
	b.X += b.VX * dt
	b.Y += b.VY * dt
}

// expired reports whether the bullet outlived its lifetime or left the arena.
func (b *Bullet) expired(now time.Time, lifetime time.Duration, arenaW, arenaH float64) bool {
	if now.Sub(b.SpawnedAt) > lifetime {
		return true
	}
	return b.X < 0 || b.X > arenaW || b.Y < 0 || b.Y > arenaH
}
