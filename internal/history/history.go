// Package history keeps the local record of finished matches.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/tapbattle/internal/engine"
)

var ErrNotFound = errors.New("match record not found")

// Record is one finished match as seen by the local player. Records are
// written once and never updated.
type Record struct {
	ID            int64
	RoomCode      string
	PlayerName    string
	OpponentName  string
	PlayerScore   int
	OpponentScore int
	Champion      string
	RoundsPlayed  int
	CreatedAt     time.Time
	DidWin        bool
}

// Store is the persistence boundary. List results are newest first.
type Store interface {
	Insert(ctx context.Context, r Record) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	ListByPlayer(ctx context.Context, name string) ([]Record, error)
	WinCount(ctx context.Context, name string) (int, error)
	DeleteAll(ctx context.Context) error
	Delete(ctx context.Context, r Record) error
	Close() error
}

// BuildRecord derives the history entry from the final match state and the
// End event that finished it.
func BuildRecord(s engine.State, end engine.End, at time.Time) Record {
	opponent, ok := s.OpponentName()
	if !ok {
		opponent = engine.UnknownOpponent
	}
	return Record{
		RoomCode:      s.RoomCode,
		PlayerName:    s.PlayerName,
		OpponentName:  opponent,
		PlayerScore:   s.Score[s.PlayerName],
		OpponentScore: s.Score[opponent],
		Champion:      end.Champion,
		RoundsPlayed:  end.RoundsPlayed,
		CreatedAt:     at.UTC(),
		DidWin:        end.Champion == s.PlayerName,
	}
}
