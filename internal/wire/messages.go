package wire

import (
	"skirmish/server/internal/game"
)

// Type discriminates the record kinds exchanged between client and server.
type Type string

const (
	// TypeJoin is the first record a client must send after connecting.
	TypeJoin Type = "JOIN"
	// TypeJoinAck carries the assigned player id and color back to the client.
	TypeJoinAck Type = "JOIN_ACK"
	// TypeInput carries the client's current movement and fire intent.
	TypeInput Type = "INPUT"
	// TypeState carries the full world snapshot for one tick.
	TypeState Type = "STATE"
	// TypeLeave announces a graceful disconnect.
	TypeLeave Type = "LEAVE"
)

// Keys mirrors the four movement flags captured by the client each frame.
type Keys struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Up    bool `json:"up"`
	Down  bool `json:"down"`
}

// Message is the single envelope for every record on the wire. Fields beyond
// Type are populated per record kind and omitted otherwise.
type Message struct {
	Type Type `json:"type"`

	// JOIN_ACK fields.
	PlayerID string      `json:"player_id,omitempty"`
	Color    *game.Color `json:"color,omitempty"`

	// INPUT fields. ShootDir is an (x, y) tuple; a zero vector suppresses
	// firing even when Shoot is set.
	Keys     *Keys       `json:"keys,omitempty"`
	Shoot    bool        `json:"shoot,omitempty"`
	ShootDir *[2]float64 `json:"shoot_dir,omitempty"`

	// STATE fields.
	State *game.Snapshot `json:"state,omitempty"`
}

// NewJoin builds the client handshake record.
func NewJoin() *Message {
	return &Message{Type: TypeJoin}
}

// NewJoinAck builds the handshake acknowledgement for an assigned player.
func NewJoinAck(playerID string, color game.Color) *Message {
	return &Message{Type: TypeJoinAck, PlayerID: playerID, Color: &color}
}

// NewInput builds an intent record from the current client frame.
func NewInput(keys Keys, shoot bool, dir [2]float64) *Message {
	msg := &Message{Type: TypeInput, Keys: &keys, Shoot: shoot}
	if dir != [2]float64{} {
		msg.ShootDir = &dir
	}
	return msg
}

// NewState wraps a snapshot for broadcasting.
func NewState(snapshot *game.Snapshot) *Message {
	return &Message{Type: TypeState, State: snapshot}
}

// NewLeave builds the graceful disconnect record.
func NewLeave() *Message {
	return &Message{Type: TypeLeave}
}

// Input extracts the intent fields with neutral defaults, so malformed or
// partial records can never stall the tick thread.
func (m *Message) Input() (Keys, bool, [2]float64) {
	if m == nil {
		return Keys{}, false, [2]float64{}
	}
	keys := Keys{}
	if m.Keys != nil {
		keys = *m.Keys
	}
	dir := [2]float64{}
	if m.ShootDir != nil {
		dir = *m.ShootDir
	}
	return keys, m.Shoot, dir
}
