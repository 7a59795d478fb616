// Package sqlite provides a SQLite-backed match history store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DoyleJ11/tapbattle/internal/history"
	"github.com/DoyleJ11/tapbattle/internal/history/sqlite/migrations"
)

const recordColumns = `id, room_code, player_name, opponent_name, player_score, opponent_score,
       champion, rounds_played, created_at, did_win`

// Store persists match history in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ history.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite history store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Insert appends one record and returns its id.
func (s *Store) Insert(ctx context.Context, r history.Record) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if strings.TrimSpace(r.PlayerName) == "" {
		return 0, fmt.Errorf("player name is required")
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO game_history (
		   room_code,
		   player_name,
		   opponent_name,
		   player_score,
		   opponent_score,
		   champion,
		   rounds_played,
		   created_at,
		   did_win
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoomCode,
		r.PlayerName,
		r.OpponentName,
		r.PlayerScore,
		r.OpponentScore,
		r.Champion,
		r.RoundsPlayed,
		toMillis(createdAt),
		r.DidWin,
	)
	if err != nil {
		return 0, fmt.Errorf("insert match record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert match record: %w", err)
	}
	return id, nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]history.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	return s.query(ctx,
		`SELECT `+recordColumns+` FROM game_history ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
}

func (s *Store) ListByPlayer(ctx context.Context, name string) ([]history.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.query(ctx,
		`SELECT `+recordColumns+` FROM game_history WHERE player_name = ? ORDER BY created_at DESC, id DESC`,
		name,
	)
}

func (s *Store) WinCount(ctx context.Context, name string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var wins int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_history WHERE player_name = ? AND did_win = 1`,
		name,
	).Scan(&wins)
	if err != nil {
		return 0, fmt.Errorf("count wins: %w", err)
	}
	return wins, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM game_history`); err != nil {
		return fmt.Errorf("delete match records: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, r history.Record) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if r.ID <= 0 {
		return fmt.Errorf("record id is required")
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM game_history WHERE id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("delete match record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete match record: %w", err)
	}
	if n == 0 {
		return history.ErrNotFound
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]history.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query match records: %w", err)
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var (
			r         history.Record
			createdAt int64
		)
		if err := rows.Scan(
			&r.ID,
			&r.RoomCode,
			&r.PlayerName,
			&r.OpponentName,
			&r.PlayerScore,
			&r.OpponentScore,
			&r.Champion,
			&r.RoundsPlayed,
			&createdAt,
			&r.DidWin,
		); err != nil {
			return nil, fmt.Errorf("scan match record: %w", err)
		}
		r.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match records: %w", err)
	}
	return out, nil
}
