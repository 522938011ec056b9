package input

import (
	"sync"

	"skirmish/server/internal/game"
)

// Counters aggregates buffer activity for diagnostics.
type Counters struct {
	Stored    uint64 `json:"stored"`
	Coalesced uint64 `json:"coalesced"`
	Drained   uint64 `json:"drained"`
}

// Buffer collects one pending intent per player between ticks. Writers replace
// the whole record, so the tick thread only ever sees each player's most
// recent input; anything superseded before a drain is simply gone.
type Buffer struct {
	mu       sync.Mutex
	pending  map[string]game.Intent
	counters Counters
}

// NewBuffer provisions an empty intent buffer.
func NewBuffer() *Buffer {
	return &Buffer{pending: make(map[string]game.Intent)}
}

// Store records the latest intent for a player, replacing any pending one.
func (b *Buffer) Store(playerID string, intent game.Intent) {
	if b == nil || playerID == "" {
		return
	}
	//1.- Replace the whole record under lock so partial intents never mix.
	b.mu.Lock()
	if _, exists := b.pending[playerID]; exists {
		b.counters.Coalesced++
	}
	b.pending[playerID] = intent
	b.counters.Stored++
	b.mu.Unlock()
}

// Drain atomically takes every pending intent, leaving the buffer empty.
// Inputs arriving during or after the swap land in the next tick's batch.
func (b *Buffer) Drain() map[string]game.Intent {
	if b == nil {
		return nil
	}
	//1.- Swap the map out under lock; the caller owns the returned copy.
	b.mu.Lock()
	drained := b.pending
	b.pending = make(map[string]game.Intent)
	b.counters.Drained += uint64(len(drained))
	b.mu.Unlock()
	return drained
}

// Forget discards any pending intent for a disconnected player.
func (b *Buffer) Forget(playerID string) {
	if b == nil || playerID == "" {
		return
	}
	b.mu.Lock()
	delete(b.pending, playerID)
	b.mu.Unlock()
}

// Counters returns a copy of the activity counters for the ops surface.
func (b *Buffer) Counters() Counters {
	if b == nil {
		return Counters{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters
}
