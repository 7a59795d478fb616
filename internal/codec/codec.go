// Package codec turns push channel frames into typed engine events.
//
// Decoding never fails the caller: unknown kinds, malformed payloads and
// payloads missing their identity field all come back as "no event".
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

var ErrDecode = errors.New("decode event")

func DecodeEnvelope(b []byte) (types.Envelope, error) {
	if len(b) == 0 {
		return types.Envelope{}, fmt.Errorf("%w: empty frame", ErrDecode)
	}
	var e types.Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return types.Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if e.Type == "" {
		return types.Envelope{}, fmt.Errorf("%w: missing type", ErrDecode)
	}
	return e, nil
}

func EncodeEnvelope(kind engine.Kind, payload any) ([]byte, error) {
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.Envelope{Type: string(kind), Payload: pb})
}

// Decode maps one match frame to an event. receivedAt becomes the spawn time
// of a SPAWN target.
func Decode(kind string, payload []byte, receivedAt time.Time) (engine.Event, bool) {
	switch engine.Kind(kind) {
	case engine.KindStart:
		return decodeStart(payload)

	case engine.KindSpawn:
		p, ok := decodePayload[types.SpawnPayload](payload)
		if !ok || p.SpawnID == "" {
			return nil, false
		}
		ttl := time.Duration(Float(p.TTLMs, float64(engine.DefaultTTL.Milliseconds()))) * time.Millisecond
		target, err := engine.NewTarget(
			p.SpawnID,
			Float(p.CX, 0),
			Float(p.CY, 0),
			Float(p.R, engine.DefaultRadius),
			ttl,
			receivedAt,
		)
		if err != nil {
			return nil, false
		}
		return engine.Spawn{Target: target}, true

	case engine.KindScore:
		p, ok := decodePayload[types.ScorePayload](payload)
		if !ok || p.Winner == "" {
			return nil, false
		}
		return engine.Score{
			Winner:    p.Winner,
			Score:     Scoreboard(p.Score),
			Round:     Int(p.Round, engine.DefaultRound),
			MaxRounds: Int(p.MaxRounds, engine.DefaultMaxRounds),
			SpawnID:   p.SpawnID,
		}, true

	case engine.KindEnd:
		p, ok := decodePayload[types.EndPayload](payload)
		if !ok || p.Champion == "" {
			return nil, false
		}
		return engine.End{
			Champion:     p.Champion,
			Score:        Scoreboard(p.Score),
			RoundsPlayed: Int(p.RoundsPlayed, 0),
			MaxRounds:    Int(p.MaxRounds, engine.DefaultMaxRounds),
		}, true
	}
	return nil, false
}

// DecodeLobby maps one lobby frame. Only PLAYER_JOINED and START matter to the
// waiting room.
func DecodeLobby(kind string, payload []byte) (engine.LobbyEvent, bool) {
	switch engine.Kind(kind) {
	case engine.KindPlayerJoined:
		p, ok := decodePayload[types.PlayerJoinedPayload](payload)
		if !ok {
			return nil, false
		}
		return engine.PlayerJoined{TotalPlayers: Int(p.TotalPlayers, 0)}, true

	case engine.KindStart:
		// The waiting room moves on for any START, whatever its payload.
		ev, ok := decodeStart(payload)
		if !ok {
			ev, _ = decodeStart(nil)
		}
		return ev.(engine.Start), true
	}
	return nil, false
}

func decodeStart(payload []byte) (engine.Event, bool) {
	p, ok := decodePayload[types.StartPayload](payload)
	if !ok {
		return nil, false
	}
	return engine.Start{
		Score:     Scoreboard(p.Score),
		Round:     Int(p.Round, engine.DefaultRound),
		MaxRounds: Int(p.MaxRounds, engine.DefaultMaxRounds),
	}, true
}

// decodePayload treats an absent or null payload as an empty object and
// rejects anything that is not a JSON object.
func decodePayload[T any](payload []byte) (T, bool) {
	var out T
	b := bytes.TrimSpace(payload)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return out, true
	}
	if b[0] != '{' {
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}

func Scoreboard(sb types.Scoreboard) map[string]int {
	out := make(map[string]int, len(sb))
	for name, v := range sb {
		n, _ := v.(float64)
		out[name] = toInt(n)
	}
	return out
}

func Int(v *float64, def int) int {
	if v == nil {
		return def
	}
	return toInt(*v)
}

func Float(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func toInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Trunc(f))
}
