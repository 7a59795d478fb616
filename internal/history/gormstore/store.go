// Package gormstore provides a Postgres-backed match history store built on
// GORM, for players who keep history on a shared database.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/tapbattle/internal/history"
)

type gameHistory struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	RoomCode      string    `gorm:"not null"`
	PlayerName    string    `gorm:"not null;index:idx_game_history_player,priority:1"`
	OpponentName  string    `gorm:"not null"`
	PlayerScore   int       `gorm:"not null;default:0"`
	OpponentScore int       `gorm:"not null;default:0"`
	Champion      string    `gorm:"not null"`
	RoundsPlayed  int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null;index;index:idx_game_history_player,priority:2"`
	DidWin        bool      `gorm:"not null;default:false"`
}

func (gameHistory) TableName() string { return "game_history" }

type Store struct {
	db *gorm.DB
}

var _ history.Store = (*Store)(nil)

// Open connects to Postgres and migrates the history table.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db)
}

// New wraps an existing connection.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&gameHistory{}); err != nil {
		return nil, fmt.Errorf("migrate game_history: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Insert(ctx context.Context, r history.Record) (int64, error) {
	if strings.TrimSpace(r.PlayerName) == "" {
		return 0, fmt.Errorf("player name is required")
	}
	row := fromRecord(r)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert match record: %w", err)
	}
	return row.ID, nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	var rows []gameHistory
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list recent match records: %w", err)
	}
	return toRecords(rows), nil
}

func (s *Store) ListByPlayer(ctx context.Context, name string) ([]history.Record, error) {
	var rows []gameHistory
	err := s.db.WithContext(ctx).
		Where("player_name = ?", name).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list match records for %q: %w", name, err)
	}
	return toRecords(rows), nil
}

func (s *Store) WinCount(ctx context.Context, name string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&gameHistory{}).
		Where("player_name = ? AND did_win = ?", name, true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count wins: %w", err)
	}
	return int(n), nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&gameHistory{}).Error
	if err != nil {
		return fmt.Errorf("delete match records: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, r history.Record) error {
	if r.ID <= 0 {
		return fmt.Errorf("record id is required")
	}
	res := s.db.WithContext(ctx).Delete(&gameHistory{}, r.ID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return history.ErrNotFound
		}
		return fmt.Errorf("delete match record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return history.ErrNotFound
	}
	return nil
}

func fromRecord(r history.Record) gameHistory {
	return gameHistory{
		ID:            r.ID,
		RoomCode:      r.RoomCode,
		PlayerName:    r.PlayerName,
		OpponentName:  r.OpponentName,
		PlayerScore:   r.PlayerScore,
		OpponentScore: r.OpponentScore,
		Champion:      r.Champion,
		RoundsPlayed:  r.RoundsPlayed,
		CreatedAt:     r.CreatedAt.UTC(),
		DidWin:        r.DidWin,
	}
}

func toRecords(rows []gameHistory) []history.Record {
	out := make([]history.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, history.Record{
			ID:            row.ID,
			RoomCode:      row.RoomCode,
			PlayerName:    row.PlayerName,
			OpponentName:  row.OpponentName,
			PlayerScore:   row.PlayerScore,
			OpponentScore: row.OpponentScore,
			Champion:      row.Champion,
			RoundsPlayed:  row.RoundsPlayed,
			CreatedAt:     row.CreatedAt.UTC(),
			DidWin:        row.DidWin,
		})
	}
	return out
}
