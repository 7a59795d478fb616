package types

import (
	"time"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/history"
)

type TargetView struct {
	SpawnID   string    `json:"spawn_id"`
	CX        float64   `json:"cx"`
	CY        float64   `json:"cy"`
	R         float64   `json:"r"`
	TTLMs     int64     `json:"ttl_ms"`
	SpawnTime time.Time `json:"spawn_time"`
}

type SessionView struct {
	RoomID     string         `json:"room_id"`
	RoomCode   string         `json:"room_code"`
	PlayerName string         `json:"player_name"`
	Phase      engine.Phase   `json:"phase"`
	Score      map[string]int `json:"score"`
	Round      int            `json:"round"`
	MaxRounds  int            `json:"max_rounds"`
	Champion   string         `json:"champion,omitempty"`
	Target     *TargetView    `json:"target,omitempty"`
}

type RecordView struct {
	ID            int64     `json:"id"`
	RoomCode      string    `json:"room_code"`
	PlayerName    string    `json:"player_name"`
	OpponentName  string    `json:"opponent_name"`
	PlayerScore   int       `json:"player_score"`
	OpponentScore int       `json:"opponent_score"`
	Champion      string    `json:"champion"`
	RoundsPlayed  int       `json:"rounds_played"`
	DidWin        bool      `json:"did_win"`
	CreatedAt     time.Time `json:"created_at"`
}

type WinsView struct {
	PlayerName string `json:"player_name"`
	Wins       int    `json:"wins"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}

func NewSessionView(s engine.State) SessionView {
	v := SessionView{
		RoomID:     s.RoomID,
		RoomCode:   s.RoomCode,
		PlayerName: s.PlayerName,
		Phase:      s.Phase(),
		Score:      make(map[string]int, len(s.Score)),
		Round:      s.Round,
		MaxRounds:  s.MaxRounds,
		Champion:   s.Champion,
	}
	for name, pts := range s.Score {
		v.Score[name] = pts
	}
	if t := s.CurrentTarget; t != nil {
		v.Target = &TargetView{
			SpawnID:   t.SpawnID,
			CX:        t.CX,
			CY:        t.CY,
			R:         t.R,
			TTLMs:     t.TTL.Milliseconds(),
			SpawnTime: t.SpawnTime,
		}
	}
	return v
}

func NewRecordViews(records []history.Record) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, r := range records {
		out = append(out, RecordView{
			ID:            r.ID,
			RoomCode:      r.RoomCode,
			PlayerName:    r.PlayerName,
			OpponentName:  r.OpponentName,
			PlayerScore:   r.PlayerScore,
			OpponentScore: r.OpponentScore,
			Champion:      r.Champion,
			RoundsPlayed:  r.RoundsPlayed,
			DidWin:        r.DidWin,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out
}
