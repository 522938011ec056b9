package game

import "time"

// AmmoBox is a collectible pickup that refills a player's ammo to maximum.
type AmmoBox struct {
	ID        string
	X, Y      float64
	SpawnedAt time.Time
}

// expired reports whether the box aged out before anyone collected it.
func (a *AmmoBox) expired(now time.Time, lifetime time.Duration) bool {
	return now.Sub(a.SpawnedAt) > lifetime
}
