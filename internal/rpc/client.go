// Package rpc implements remote.Gateway over the service's HTTP cloud
// functions.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/codec"
	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/remote"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

const appIDHeader = "X-Application-Id"

// FunctionError is a non-2xx answer from a cloud function.
type FunctionError struct {
	Function string
	Status   int
	Code     int
	Message  string
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("%s: status %d code %d: %s", e.Function, e.Status, e.Code, e.Message)
}

func (e *FunctionError) Stale() bool {
	return e.Code == types.CodeStaleSpawn || e.Status == http.StatusConflict
}

type Client struct {
	baseURL string
	appID   string
	http    *http.Client
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithAppID(id string) Option {
	return func(c *Client) { c.appID = id }
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger.Named("rpc"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ remote.Gateway = (*Client)(nil)

func (c *Client) JoinRoom(ctx context.Context, code, player string) (remote.JoinResult, error) {
	c.log.Debug("joining room", zap.String("code", code), zap.String("player", player))

	res, err := call[types.JoinRoomResult](ctx, c, types.FnJoinRoom, types.JoinRoomRequest{Code: code, PlayerName: player})
	if err != nil {
		return remote.JoinResult{}, fmt.Errorf("%w: %w", remote.ErrJoinFailed, err)
	}
	if res.RoomID == "" {
		return remote.JoinResult{}, fmt.Errorf("%w: no room id in response", remote.ErrJoinFailed)
	}
	return remote.JoinResult{RoomID: res.RoomID, IsCreator: res.IsCreator, Creator: res.Creator}, nil
}

func (c *Client) StartGame(ctx context.Context, roomID string) error {
	if _, err := call[json.RawMessage](ctx, c, types.FnStartGame, types.StartGameRequest{RoomID: roomID}); err != nil {
		return fmt.Errorf("%w: %w", remote.ErrActionFailed, err)
	}
	return nil
}

func (c *Client) HitTarget(ctx context.Context, roomID, spawnID, player string) error {
	_, err := call[json.RawMessage](ctx, c, types.FnHitTarget, types.HitTargetRequest{RoomID: roomID, SpawnID: spawnID, Player: player})
	if err == nil {
		return nil
	}
	var fe *FunctionError
	if errors.As(err, &fe) && fe.Stale() {
		c.log.Debug("hit on resolved spawn", zap.String("spawn_id", spawnID))
		return nil
	}
	return fmt.Errorf("%w: %w", remote.ErrActionFailed, err)
}

func (c *Client) GetRoomState(ctx context.Context, roomID string) (engine.RoomState, bool) {
	res, err := call[types.RoomStateResult](ctx, c, types.FnGetRoomState, types.RoomStateRequest{RoomID: roomID})
	if err != nil {
		c.log.Warn("room state unavailable", zap.String("room_id", roomID), zap.Error(err))
		return engine.RoomState{}, false
	}
	return engine.RoomState{
		Score:     codec.Scoreboard(res.Score),
		Round:     codec.Int(res.Round, 0),
		MaxRounds: codec.Int(res.MaxRounds, engine.DefaultMaxRounds),
	}, true
}

func call[T any](ctx context.Context, c *Client, fn string, body any) (T, error) {
	var zero T

	payload, err := json.Marshal(body)
	if err != nil {
		return zero, fmt.Errorf("encode %s request: %w", fn, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/"+fn, bytes.NewReader(payload))
	if err != nil {
		return zero, fmt.Errorf("build %s request: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.appID != "" {
		req.Header.Set(appIDHeader, c.appID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("call %s: %w", fn, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return zero, fmt.Errorf("read %s response: %w", fn, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var fe types.FunctionError
		_ = json.Unmarshal(data, &fe)
		return zero, &FunctionError{Function: fn, Status: resp.StatusCode, Code: fe.Code, Message: fe.Error}
	}

	var out types.FunctionResponse[T]
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("decode %s response: %w", fn, err)
	}
	return out.Result, nil
}
