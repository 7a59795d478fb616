package engine

import "maps"

type Kind string

const (
	KindStart        Kind = "START"
	KindSpawn        Kind = "SPAWN"
	KindScore        Kind = "SCORE"
	KindEnd          Kind = "END"
	KindPlayerJoined Kind = "PLAYER_JOINED"
)

const (
	DefaultRound     = 1
	DefaultMaxRounds = 5
)

// Event is one authoritative match event. The set is closed: Start, Spawn,
// Score and End.
type Event interface {
	Kind() Kind
	isGameEvent()
}

// LobbyEvent is an event the waiting room reacts to: PlayerJoined and Start.
type LobbyEvent interface {
	Kind() Kind
	isLobbyEvent()
}

type Start struct {
	Score     map[string]int
	Round     int
	MaxRounds int
}

type Spawn struct {
	Target Target
}

type Score struct {
	Winner    string
	Score     map[string]int
	Round     int
	MaxRounds int
	SpawnID   string
}

type End struct {
	Champion     string
	Score        map[string]int
	RoundsPlayed int
	MaxRounds    int
}

type PlayerJoined struct {
	TotalPlayers int
}

func (Start) Kind() Kind        { return KindStart }
func (Spawn) Kind() Kind        { return KindSpawn }
func (Score) Kind() Kind        { return KindScore }
func (End) Kind() Kind          { return KindEnd }
func (PlayerJoined) Kind() Kind { return KindPlayerJoined }

func (Start) isGameEvent() {}
func (Spawn) isGameEvent() {}
func (Score) isGameEvent() {}
func (End) isGameEvent()   {}

func (Start) isLobbyEvent()        {}
func (PlayerJoined) isLobbyEvent() {}

type State struct {
	RoomID        string
	RoomCode      string
	PlayerName    string
	CurrentTarget *Target
	Score         map[string]int
	Round         int
	MaxRounds     int
	RoundsPlayed  int
	Started       bool
	Ended         bool
	Champion      string
}

// RoomState is the scoreboard returned by a state refresh.
type RoomState struct {
	Score     map[string]int
	Round     int
	MaxRounds int
}

// Apply folds one event into s and returns the replacement state. finished is
// true only for the End that moves the match into the ended state, so a
// duplicate End never asks for a second history record.
func Apply(s State, ev Event) (next State, finished bool) {
	next = s.Clone()

	switch e := ev.(type) {
	case Start:
		next.Score = maps.Clone(e.Score)
		next.Round = e.Round
		next.MaxRounds = e.MaxRounds
		next.Started = true
		next.Ended = false

	case Spawn:
		t := e.Target
		next.CurrentTarget = &t

	case Score:
		next.Score = maps.Clone(e.Score)
		next.Round = e.Round
		next.CurrentTarget = nil

	case End:
		next.Score = maps.Clone(e.Score)
		next.Ended = true
		next.Champion = e.Champion
		next.RoundsPlayed = e.RoundsPlayed
		next.CurrentTarget = nil
		finished = !s.Ended
	}

	return next, finished
}

// ApplyRoomState overwrites the scoreboard with a refreshed one.
func ApplyRoomState(s State, rs RoomState) State {
	next := s.Clone()
	next.Score = maps.Clone(rs.Score)
	next.Round = rs.Round
	next.MaxRounds = rs.MaxRounds
	return next
}

// Clone returns a deep copy that shares nothing mutable with s.
func (s State) Clone() State {
	c := s
	c.Score = maps.Clone(s.Score)
	if s.CurrentTarget != nil {
		t := *s.CurrentTarget
		c.CurrentTarget = &t
	}
	return c
}

// CloneEvent returns ev with its scoreboard copied, so a published event
// shares no map with the one that was applied.
func CloneEvent(ev Event) Event {
	switch e := ev.(type) {
	case Start:
		e.Score = maps.Clone(e.Score)
		return e
	case Score:
		e.Score = maps.Clone(e.Score)
		return e
	case End:
		e.Score = maps.Clone(e.Score)
		return e
	}
	return ev
}

// CloneLobbyEvent is CloneEvent for the lobby's event set.
func CloneLobbyEvent(ev LobbyEvent) LobbyEvent {
	if e, ok := ev.(Start); ok {
		e.Score = maps.Clone(e.Score)
		return e
	}
	return ev
}
