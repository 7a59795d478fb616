package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/game"
	"github.com/DoyleJ11/tapbattle/internal/history"
	"github.com/DoyleJ11/tapbattle/internal/history/sqlite"
	"github.com/DoyleJ11/tapbattle/internal/hub"
	"github.com/DoyleJ11/tapbattle/internal/types"
)

type fixture struct {
	srv   *httptest.Server
	hub   *hub.Hub
	store *sqlite.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := hub.NewHub(context.Background(), logger)
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })

	srv := httptest.NewServer(SetupRoutes(h, store, logger))
	t.Cleanup(srv.Close)
	return fixture{srv: srv, hub: h, store: store}
}

func (f fixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f fixture) seed(t *testing.T, player, champion string, at time.Time) int64 {
	t.Helper()
	opponent := "B"
	if player == "B" {
		opponent = "A"
	}
	id, err := f.store.Insert(context.Background(), history.Record{
		RoomCode:     "ABC123",
		PlayerName:   player,
		OpponentName: opponent,
		Champion:     champion,
		RoundsPlayed: 5,
		CreatedAt:    at,
		DidWin:       champion == player,
	})
	require.NoError(t, err)
	return id
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz").StatusCode)
}

func TestGetSession(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/sessions/room-1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s, err := f.hub.Ensure(context.Background(), game.Config{RoomID: "room-1", RoomCode: "ABC123", PlayerName: "A"})
	require.NoError(t, err)

	out := make(chan game.Update, 8)
	s.Inbox() <- game.Watch{ID: "t", Outbox: out}
	<-out
	s.Inbox() <- game.FromServer{Event: engine.Start{Score: map[string]int{"A": 0, "B": 0}, Round: 1, MaxRounds: 5}}
	<-out

	resp = f.do(t, http.MethodGet, "/sessions/room-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[types.SessionView](t, resp)
	assert.Equal(t, "room-1", view.RoomID)
	assert.Equal(t, engine.PhaseActive, view.Phase)
	assert.Equal(t, map[string]int{"A": 0, "B": 0}, view.Score)
	assert.Nil(t, view.Target)
}

func TestListHistory(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.seed(t, "A", "A", base)
	f.seed(t, "A", "B", base.Add(time.Minute))
	f.seed(t, "B", "B", base.Add(2*time.Minute))

	resp := f.do(t, http.MethodGet, "/history?limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]types.RecordView](t, resp)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].PlayerName)
	assert.True(t, got[1].CreatedAt.Equal(base.Add(time.Minute)))

	resp = f.do(t, http.MethodGet, "/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlayerHistoryAndWins(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.seed(t, "A", "A", base)
	f.seed(t, "A", "B", base.Add(time.Minute))
	f.seed(t, "A", "A", base.Add(2*time.Minute))
	f.seed(t, "B", "B", base.Add(3*time.Minute))

	resp := f.do(t, http.MethodGet, "/history/players/A")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]types.RecordView](t, resp), 3)

	resp = f.do(t, http.MethodGet, "/history/players/A/wins")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.WinsView{PlayerName: "A", Wins: 2}, decode[types.WinsView](t, resp))
}

func TestDeleteRecord(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "A", "A", time.Now())

	path := "/history/" + strconv.FormatInt(id, 10)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/history/abc").StatusCode)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "A", time.Now())
	f.seed(t, "B", "B", time.Now())

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/history").StatusCode)

	resp := f.do(t, http.MethodGet, "/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]types.RecordView](t, resp))
}
