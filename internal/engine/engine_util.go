package engine

import "time"

type Phase string

const (
	PhasePending  Phase = "pending"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

const UnknownOpponent = "unknown"

func NewState(roomID, roomCode, playerName string) State {
	return State{
		RoomID:     roomID,
		RoomCode:   roomCode,
		PlayerName: playerName,
		Score:      map[string]int{},
		MaxRounds:  DefaultMaxRounds,
	}
}

// Phase derives the match phase from the Started/Ended pair. Ended wins, so a
// match whose Start was lost still finishes.
func (s State) Phase() Phase {
	return DerivePhase(s.Started, s.Ended)
}

func DerivePhase(started, ended bool) Phase {
	switch {
	case ended:
		return PhaseFinished
	case started:
		return PhaseActive
	default:
		return PhasePending
	}
}

func (s State) PlayerScore() int {
	return s.Score[s.PlayerName]
}

// OpponentName is the first score key that is not the local player.
func (s State) OpponentName() (string, bool) {
	for name := range s.Score {
		if name != s.PlayerName {
			return name, true
		}
	}
	return "", false
}

func (s State) OpponentScore() int {
	name, ok := s.OpponentName()
	if !ok {
		return 0
	}
	return s.Score[name]
}

// EvaluateTap decides whether a tap at (x, y) is a hit attempt on the current
// target. Nothing is mutated; the caller only sends the remote hit on ok.
func EvaluateTap(s State, x, y float64, now time.Time) (Target, bool) {
	t := s.CurrentTarget
	if t == nil {
		return Target{}, false
	}
	if t.IsExpired(now) {
		return Target{}, false
	}
	if !t.ContainsPoint(x, y) {
		return Target{}, false
	}
	return *t, true
}

// Reduce replays events onto s in arrival order. records counts the
// transitions that would have produced a history record.
func Reduce(s State, events []Event) (next State, records int) {
	next = s
	for _, event := range events {
		var finished bool
		next, finished = Apply(next, event)
		if finished {
			records++
		}
	}
	return next, records
}
