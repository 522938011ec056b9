package game

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"skirmish/server/internal/config"
)

// Clock exposes the current time so tests can drive expiry and respawn
// deadlines deterministically.
type Clock interface {
	Now() time.Time
}

// systemClock relies on time.Now for production code paths.
type systemClock struct{}

// Now implements Clock by delegating to time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// Intent is one player's processed input for a single tick: movement flags
// plus an optional fire request with its direction.
type Intent struct {
	Left, Right, Up, Down bool
	Shoot                 bool
	DirX, DirY            float64
}

// State is the authoritative aggregate of all entities. It is owned by the
// tick goroutine: every mutation happens there, and other goroutines only see
// copies produced by Snapshot. That single-owner discipline is why there is
// no mutex here.
type State struct {
	cfg   config.Game
	clock Clock
	rng   *rand.Rand

	players map[string]*Player
	bullets map[string]*Bullet
	boxes   map[string]*AmmoBox

	bulletSeq uint64
	boxSeq    uint64

	lastBoxSpawn    time.Time
	nextBoxInterval time.Duration
}

// Option customises state construction.
type Option func(*State)

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(clock Clock) Option {
	return func(s *State) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRand overrides the random source used for spawn positions and ammo box
// scheduling.
func WithRand(rng *rand.Rand) Option {
	return func(s *State) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// NewState constructs an empty world for the given gameplay settings.
func NewState(cfg config.Game, opts ...Option) *State {
	s := &State{
		cfg:     cfg,
		clock:   systemClock{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		players: make(map[string]*Player),
		bullets: make(map[string]*Bullet),
		boxes:   make(map[string]*AmmoBox),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.lastBoxSpawn = s.clock.Now()
	s.nextBoxInterval = s.drawBoxInterval()
	return s
}

// AddPlayer creates a player at a random in-bounds position with full ammo.
// A duplicate id is a caller bug; it is rejected with no effect.
func (s *State) AddPlayer(id string) *Player {
	if _, exists := s.players[id]; exists {
		return nil
	}
	p := &Player{
		ID:    id,
		Alive: true,
		Ammo:  s.cfg.MaxAmmo,
		Color: ColorFor(id),
	}
	p.X, p.Y = s.randomPosition(s.cfg.PlayerRadius)
	s.players[id] = p
	return p
}

// RemovePlayer deletes a player. Removing an unknown id is a no-op. Bullets
// already in flight keep flying; only future score credit is lost.
func (s *State) RemovePlayer(id string) {
	delete(s.players, id)
}

// Player returns the live player record for tick-thread callers, or nil.
func (s *State) Player(id string) *Player {
	return s.players[id]
}

// CreateBullet spawns a projectile for the owner, normalizing the requested
// direction. It returns nil with no side effects when the owner is unknown or
// dead, has no ammo, or the direction cannot be normalized. A successful shot
// costs exactly one unit of ammo.
func (s *State) CreateBullet(ownerID string, dirX, dirY float64) *Bullet {
	owner, ok := s.players[ownerID]
	if !ok || !owner.Alive || owner.Ammo <= 0 {
		return nil
	}
	length := math.Sqrt(dirX*dirX + dirY*dirY)
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return nil
	}
	dirX /= length
	dirY /= length

	owner.Ammo--
	id := fmt.Sprintf("%s_%d", ownerID, s.bulletSeq)
	s.bulletSeq++

	// Spawn clear of the shooter so the bullet cannot hit them on the next
	// collision pass.
	offset := s.cfg.PlayerRadius + s.cfg.BulletRadius
	b := &Bullet{
		ID:        id,
		OwnerID:   ownerID,
		X:         owner.X + dirX*offset,
		Y:         owner.Y + dirY*offset,
		VX:        dirX * s.cfg.BulletSpeed,
		VY:        dirY * s.cfg.BulletSpeed,
		SpawnedAt: s.clock.Now(),
	}
	s.bullets[id] = b
	return b
}

// SpawnAmmoBox places a pickup at a random in-bounds position and reschedules
// the next spawn.
func (s *State) SpawnAmmoBox() *AmmoBox {
	id := fmt.Sprintf("ammo_%d", s.boxSeq)
	s.boxSeq++
	box := &AmmoBox{ID: id, SpawnedAt: s.clock.Now()}
	box.X, box.Y = s.randomPosition(s.cfg.BoxRadius)
	s.boxes[id] = box
	s.lastBoxSpawn = box.SpawnedAt
	s.nextBoxInterval = s.drawBoxInterval()
	return box
}

// ApplyIntents installs the drained per-player intents for this tick. Players
// without a buffered record stop moving and hold fire: movement is
// request-driven, so there is no "last known velocity" to preserve.
func (s *State) ApplyIntents(intents map[string]Intent) {
	for id, p := range s.players {
		intent := intents[id]

		var vx, vy float64
		if intent.Left {
			vx -= s.cfg.PlayerSpeed
		}
		if intent.Right {
			vx += s.cfg.PlayerSpeed
		}
		if intent.Up {
			vy -= s.cfg.PlayerSpeed
		}
		if intent.Down {
			vy += s.cfg.PlayerSpeed
		}
		p.VX, p.VY = vx, vy

		if intent.Shoot {
			s.CreateBullet(id, intent.DirX, intent.DirY)
		}
	}
}

// Update advances the world by one fixed step. Called only by the tick
// scheduler.
func (s *State) Update(dt time.Duration) {
	now := s.clock.Now()
	step := dt.Seconds()

	//1.- Integrate player motion, clamp into bounds, and respawn the dead
	// whose deadline has passed.
	for _, p := range s.players {
		p.integrate(step, s.cfg.ArenaWidth, s.cfg.ArenaHeight, s.cfg.PlayerRadius)
		if !p.Alive && !now.Before(p.RespawnAt) {
			p.Alive = true
			p.Ammo = s.cfg.MaxAmmo
			p.X, p.Y = s.randomPosition(s.cfg.PlayerRadius)
		}
	}

	//2.- Integrate bullets and drop the ones that aged out or left the arena.
	for id, b := range s.bullets {
		b.integrate(step)
		if b.expired(now, s.cfg.BulletLifetime, s.cfg.ArenaWidth, s.cfg.ArenaHeight) {
			delete(s.bullets, id)
		}
	}

	//3.- Expire stale pickups, then run the single spawn-eligibility check
	// for this tick.
	for id, box := range s.boxes {
		if box.expired(now, s.cfg.BoxLifetime) {
			delete(s.boxes, id)
		}
	}
	if now.Sub(s.lastBoxSpawn) > s.nextBoxInterval {
		s.SpawnAmmoBox()
	}

	//4.- Resolve collisions: bullets against players, then pickups against
	// players.
	s.resolveCollisions(now)
}

// resolveCollisions applies bullet hits and ammo pickups. A bullet damages at
// most one player and is removed on impact; the victim choice among multiple
// overlaps follows map iteration order, which is documented as non-normative.
func (s *State) resolveCollisions(now time.Time) {
	for id, b := range s.bullets {
		for _, p := range s.players {
			if p.ID == b.OwnerID || !p.Alive {
				continue
			}
			if !circlesCollide(b.X, b.Y, s.cfg.BulletRadius, p.X, p.Y, s.cfg.PlayerRadius) {
				continue
			}
			p.kill(now, s.cfg.RespawnDelay)
			if shooter, ok := s.players[b.OwnerID]; ok {
				shooter.Score++
			}
			delete(s.bullets, id)
			break
		}
	}

	for id, box := range s.boxes {
		for _, p := range s.players {
			if !p.Alive {
				continue
			}
			if !circlesCollide(box.X, box.Y, s.cfg.BoxRadius, p.X, p.Y, s.cfg.PlayerRadius) {
				continue
			}
			p.Ammo = s.cfg.MaxAmmo
			delete(s.boxes, id)
			break
		}
	}
}

// circlesCollide reports whether two circles overlap. Boundary contact does
// not count as a hit.
func circlesCollide(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx+dy*dy) < r1+r2
}

// Snapshot deep-copies the world for broadcasting. The result shares nothing
// with the live state.
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Players:     make(map[string]PlayerSnapshot, len(s.players)),
		Bullets:     make(map[string]BulletSnapshot, len(s.bullets)),
		Boxes:       make(map[string]BoxSnapshot, len(s.boxes)),
		TimestampMS: s.clock.Now().UnixMilli(),
	}
	for id, p := range s.players {
		snap.Players[id] = PlayerSnapshot{
			ID:    p.ID,
			X:     p.X,
			Y:     p.Y,
			VX:    p.VX,
			VY:    p.VY,
			Score: p.Score,
			Alive: p.Alive,
			Color: p.Color,
			Ammo:  p.Ammo,
		}
	}
	for id, b := range s.bullets {
		snap.Bullets[id] = BulletSnapshot{
			ID:      b.ID,
			OwnerID: b.OwnerID,
			X:       b.X,
			Y:       b.Y,
			VX:      b.VX,
			VY:      b.VY,
		}
	}
	for id, box := range s.boxes {
		snap.Boxes[id] = BoxSnapshot{ID: box.ID, X: box.X, Y: box.Y}
	}
	return snap
}

// Counts reports entity totals for the ops surface.
func (s *State) Counts() (players, bullets, boxes int) {
	return len(s.players), len(s.bullets), len(s.boxes)
}

// randomPosition draws a uniform in-bounds position for an entity of the
// given radius.
func (s *State) randomPosition(radius float64) (float64, float64) {
	x := radius + s.rng.Float64()*(s.cfg.ArenaWidth-2*radius)
	y := radius + s.rng.Float64()*(s.cfg.ArenaHeight-2*radius)
	return x, y
}

// drawBoxInterval samples the next ammo box inter-arrival delay uniformly
// from the configured range.
func (s *State) drawBoxInterval() time.Duration {
	min := s.cfg.BoxIntervalMin
	max := s.cfg.BoxIntervalMax
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)+1))
}
