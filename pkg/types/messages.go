package types

import "encoding/json"

// Push channel frames, server -> client.
//
// Every frame is an Envelope. Type is one of START, SPAWN, SCORE, END for the
// match and PLAYER_JOINED, START for the lobby. Payloads carry full scoreboard
// snapshots, never deltas. Numbers may arrive in any JSON number shape, so the
// numeric fields decode as float64 and are narrowed by the codec.

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Scoreboard maps player name to points. Values that are not numbers count
// as zero.
type Scoreboard map[string]any

// START:
//
//	score: { [player]: number }
//	round: number (default 1)
//	maxRounds: number (default 5)
type StartPayload struct {
	Score     Scoreboard `json:"score,omitempty"`
	Round     *float64   `json:"round,omitempty"`
	MaxRounds *float64   `json:"maxRounds,omitempty"`
}

// SPAWN:
//
//	spawnId: string (required)
//	cx, cy: number (default 0)
//	r: number (default 50)
//	ttlMs: number (default 2500)
type SpawnPayload struct {
	SpawnID string   `json:"spawnId"`
	CX      *float64 `json:"cx,omitempty"`
	CY      *float64 `json:"cy,omitempty"`
	R       *float64 `json:"r,omitempty"`
	TTLMs   *float64 `json:"ttlMs,omitempty"`
}

// SCORE:
//
//	winner: string (required)
//	score, round, maxRounds: as START
//	spawnId: string
type ScorePayload struct {
	Winner    string     `json:"winner"`
	Score     Scoreboard `json:"score,omitempty"`
	Round     *float64   `json:"round,omitempty"`
	MaxRounds *float64   `json:"maxRounds,omitempty"`
	SpawnID   string     `json:"spawnId,omitempty"`
}

// END:
//
//	champion: string (required)
//	score: as START
//	roundsPlayed: number (default 0)
//	maxRounds: number (default 5)
type EndPayload struct {
	Champion     string     `json:"champion"`
	Score        Scoreboard `json:"score,omitempty"`
	RoundsPlayed *float64   `json:"roundsPlayed,omitempty"`
	MaxRounds    *float64   `json:"maxRounds,omitempty"`
}

// PLAYER_JOINED:
//
//	totalPlayers: number (default 0)
type PlayerJoinedPayload struct {
	TotalPlayers *float64 `json:"totalPlayers,omitempty"`
}
