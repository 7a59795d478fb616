package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

func TestDecode_Start(t *testing.T) {
	ev, ok := Decode("START", []byte(`{"score":{"A":0,"B":0},"round":1,"maxRounds":3}`), time.Now())
	require.True(t, ok)

	start, isStart := ev.(engine.Start)
	require.True(t, isStart)
	assert.Equal(t, map[string]int{"A": 0, "B": 0}, start.Score)
	assert.Equal(t, 1, start.Round)
	assert.Equal(t, 3, start.MaxRounds)
}

func TestDecode_Defaults(t *testing.T) {
	now := time.Now()

	ev, ok := Decode("START", nil, now)
	require.True(t, ok)
	start := ev.(engine.Start)
	assert.Equal(t, engine.DefaultRound, start.Round)
	assert.Equal(t, engine.DefaultMaxRounds, start.MaxRounds)
	assert.Empty(t, start.Score)

	ev, ok = Decode("SPAWN", []byte(`{"spawnId":"s1"}`), now)
	require.True(t, ok)
	target := ev.(engine.Spawn).Target
	assert.Equal(t, "s1", target.SpawnID)
	assert.Equal(t, 50.0, target.R)
	assert.Equal(t, 2500*time.Millisecond, target.TTL)
	assert.Equal(t, 0.0, target.CX)
	assert.True(t, target.SpawnTime.Equal(now))

	ev, ok = Decode("END", []byte(`{"champion":"A"}`), now)
	require.True(t, ok)
	end := ev.(engine.End)
	assert.Equal(t, 0, end.RoundsPlayed)
	assert.Equal(t, engine.DefaultMaxRounds, end.MaxRounds)
}

func TestDecode_Spawn(t *testing.T) {
	ev, ok := Decode("SPAWN", []byte(`{"spawnId":"s9","cx":120.5,"cy":300,"r":75,"ttlMs":1800}`), time.Now())
	require.True(t, ok)

	target := ev.(engine.Spawn).Target
	assert.Equal(t, 120.5, target.CX)
	assert.Equal(t, 300.0, target.CY)
	assert.Equal(t, 75.0, target.R)
	assert.Equal(t, 1800*time.Millisecond, target.TTL)
}

func TestDecode_Score(t *testing.T) {
	ev, ok := Decode("SCORE", []byte(`{"winner":"A","score":{"A":1.0,"B":"x"},"round":2,"spawnId":"s1"}`), time.Now())
	require.True(t, ok)

	score := ev.(engine.Score)
	assert.Equal(t, "A", score.Winner)
	assert.Equal(t, map[string]int{"A": 1, "B": 0}, score.Score)
	assert.Equal(t, 2, score.Round)
	assert.Equal(t, engine.DefaultMaxRounds, score.MaxRounds)
	assert.Equal(t, "s1", score.SpawnID)
}

func TestDecode_NoEvent(t *testing.T) {
	cases := []struct {
		name    string
		kind    string
		payload string
	}{
		{"unknown kind", "FOO", `{}`},
		{"lobby kind on match channel", "PLAYER_JOINED", `{"totalPlayers":2}`},
		{"spawn without id", "SPAWN", `{"cx":1}`},
		{"spawn with zero radius", "SPAWN", `{"spawnId":"s1","r":0}`},
		{"spawn with negative ttl", "SPAWN", `{"spawnId":"s1","ttlMs":-5}`},
		{"score without winner", "SCORE", `{"score":{"A":1}}`},
		{"end without champion", "END", `{"score":{"A":1}}`},
		{"payload not an object", "START", `[1,2]`},
		{"malformed json", "START", `{"round":`},
		{"wrong field type", "SPAWN", `{"spawnId":"s1","r":"big"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := Decode(tc.kind, []byte(tc.payload), time.Now())
			assert.False(t, ok)
			assert.Nil(t, ev)
		})
	}
}

func TestDecodeLobby(t *testing.T) {
	ev, ok := DecodeLobby("PLAYER_JOINED", []byte(`{"totalPlayers":2}`))
	require.True(t, ok)
	assert.Equal(t, engine.PlayerJoined{TotalPlayers: 2}, ev)

	ev, ok = DecodeLobby("START", []byte(`{"score":{"A":0,"B":0}}`))
	require.True(t, ok)
	assert.Equal(t, engine.KindStart, ev.Kind())

	_, ok = DecodeLobby("SPAWN", []byte(`{"spawnId":"s1"}`))
	assert.False(t, ok)
}

func TestDecodeLobby_StartIgnoresPayloadShape(t *testing.T) {
	for _, payload := range []string{`[1,2]`, `"go"`, `{"round":`, ``, `null`} {
		ev, ok := DecodeLobby("START", []byte(payload))
		require.True(t, ok, payload)
		assert.Equal(t, engine.Start{
			Score:     map[string]int{},
			Round:     engine.DefaultRound,
			MaxRounds: engine.DefaultMaxRounds,
		}, ev, payload)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	frame, err := EncodeEnvelope(engine.KindSpawn, types.SpawnPayload{SpawnID: "s1"})
	require.NoError(t, err)

	env, err := DecodeEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, "SPAWN", env.Type)

	_, ok := Decode(env.Type, env.Payload, time.Now())
	assert.True(t, ok)
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	for _, frame := range []string{"", "not json", `{"payload":{}}`} {
		_, err := DecodeEnvelope([]byte(frame))
		assert.True(t, errors.Is(err, ErrDecode), "frame %q: %v", frame, err)
	}
}
