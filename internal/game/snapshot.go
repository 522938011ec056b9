package game

// PlayerSnapshot is the per-player view carried in a STATE record.
type PlayerSnapshot struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	Score int     `json:"score"`
	Alive bool    `json:"alive"`
	Color Color   `json:"color"`
	Ammo  int     `json:"ammo"`
}

// BulletSnapshot is the per-bullet view carried in a STATE record.
type BulletSnapshot struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"owner_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
}

// BoxSnapshot is the per-pickup view carried in a STATE record.
type BoxSnapshot struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Snapshot is an immutable, complete copy of the world taken at a tick
// boundary. The broadcaster serializes it once and fans the bytes out; it
// never shares references into the live state.
type Snapshot struct {
	Players     map[string]PlayerSnapshot `json:"players"`
	Bullets     map[string]BulletSnapshot `json:"bullets"`
	Boxes       map[string]BoxSnapshot    `json:"boxes"`
	TimestampMS int64                     `json:"timestamp_ms"`
}
