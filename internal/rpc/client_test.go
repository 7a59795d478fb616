package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/tapbattle/internal/remote"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

type fakeFunctions struct {
	mu     sync.Mutex
	status int
	body   any
	got    map[string]json.RawMessage
}

func (f *fakeFunctions) respond(status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

func (f *fakeFunctions) field(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.got[name])
}

func newFakeServer(t *testing.T, fns map[string]*fakeFunctions) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/functions/{name}", func(w http.ResponseWriter, r *http.Request) {
		fn, ok := fns[chi.URLParam(r, "name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(types.FunctionError{Code: 141, Error: "unknown function"})
			return
		}
		fn.mu.Lock()
		defer fn.mu.Unlock()
		fn.got = map[string]json.RawMessage{}
		_ = json.NewDecoder(r.Body).Decode(&fn.got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fn.status)
		_ = json.NewEncoder(w).Encode(fn.body)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	return New(srv.URL, 2*time.Second, zaptest.NewLogger(t), WithAppID("tapbattle-test"))
}

func TestJoinRoom(t *testing.T) {
	join := &fakeFunctions{status: http.StatusOK, body: types.FunctionResponse[types.JoinRoomResult]{
		Result: types.JoinRoomResult{RoomID: "r1", IsCreator: true, Creator: "A"},
	}}
	srv := newFakeServer(t, map[string]*fakeFunctions{types.FnJoinRoom: join})

	res, err := newClient(t, srv).JoinRoom(context.Background(), "ABC123", "A")
	require.NoError(t, err)
	assert.Equal(t, remote.JoinResult{RoomID: "r1", IsCreator: true, Creator: "A"}, res)
	assert.JSONEq(t, `"ABC123"`, join.field("code"))
	assert.JSONEq(t, `"A"`, join.field("playerName"))
}

func TestJoinRoom_Failures(t *testing.T) {
	cases := []struct {
		name string
		fn   *fakeFunctions
	}{
		{"room full", &fakeFunctions{status: http.StatusBadRequest, body: types.FunctionError{Code: 141, Error: "room full"}}},
		{"missing room id", &fakeFunctions{status: http.StatusOK, body: types.FunctionResponse[types.JoinRoomResult]{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFakeServer(t, map[string]*fakeFunctions{types.FnJoinRoom: tc.fn})
			_, err := newClient(t, srv).JoinRoom(context.Background(), "ZZZ", "A")
			assert.ErrorIs(t, err, remote.ErrJoinFailed)
		})
	}
}

func TestJoinRoom_Unreachable(t *testing.T) {
	srv := newFakeServer(t, nil)
	c := newClient(t, srv)
	srv.Close()

	_, err := c.JoinRoom(context.Background(), "ABC123", "A")
	assert.ErrorIs(t, err, remote.ErrJoinFailed)
}

func TestStartGame(t *testing.T) {
	start := &fakeFunctions{status: http.StatusOK, body: types.FunctionResponse[string]{Result: "ok"}}
	srv := newFakeServer(t, map[string]*fakeFunctions{types.FnStartGame: start})
	require.NoError(t, newClient(t, srv).StartGame(context.Background(), "r1"))
	assert.JSONEq(t, `"r1"`, start.field("roomId"))

	start.respond(http.StatusForbidden, types.FunctionError{Code: 141, Error: "only the creator can start"})
	err := newClient(t, srv).StartGame(context.Background(), "r1")
	assert.ErrorIs(t, err, remote.ErrActionFailed)

	var fe *FunctionError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusForbidden, fe.Status)
}

func TestHitTarget(t *testing.T) {
	cases := []struct {
		name    string
		fn      *fakeFunctions
		wantErr bool
	}{
		{"accepted", &fakeFunctions{status: http.StatusOK, body: types.FunctionResponse[map[string]bool]{Result: map[string]bool{"ok": true}}}, false},
		{"stale spawn code", &fakeFunctions{status: http.StatusBadRequest, body: types.FunctionError{Code: types.CodeStaleSpawn, Error: "already scored"}}, false},
		{"conflict status", &fakeFunctions{status: http.StatusConflict, body: types.FunctionError{Error: "already scored"}}, false},
		{"server error", &fakeFunctions{status: http.StatusInternalServerError, body: types.FunctionError{Code: 1, Error: "boom"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFakeServer(t, map[string]*fakeFunctions{types.FnHitTarget: tc.fn})
			err := newClient(t, srv).HitTarget(context.Background(), "r1", "s1", "A")
			if tc.wantErr {
				assert.ErrorIs(t, err, remote.ErrActionFailed)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, `"s1"`, tc.fn.field("spawnId"))
			assert.JSONEq(t, `"A"`, tc.fn.field("player"))
		})
	}
}

func TestGetRoomState(t *testing.T) {
	round := 3.0
	state := &fakeFunctions{status: http.StatusOK, body: types.FunctionResponse[types.RoomStateResult]{
		Result: types.RoomStateResult{Score: types.Scoreboard{"A": 2, "B": 1}, Round: &round},
	}}
	srv := newFakeServer(t, map[string]*fakeFunctions{types.FnGetRoomState: state})

	rs, ok := newClient(t, srv).GetRoomState(context.Background(), "r1")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, rs.Score)
	assert.Equal(t, 3, rs.Round)
	assert.Equal(t, 5, rs.MaxRounds)

	state.respond(http.StatusInternalServerError, types.FunctionError{Error: "down"})
	_, ok = newClient(t, srv).GetRoomState(context.Background(), "r1")
	assert.False(t, ok)
}
