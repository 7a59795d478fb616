package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/remote"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

type hitCall struct {
	RoomID, SpawnID, Player string
}

type fakeGateway struct {
	mu          sync.Mutex
	hitErr      error
	startErr    error
	roomState   engine.RoomState
	roomStateOK bool
	hits        chan hitCall
	starts      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{hits: make(chan hitCall, 8)}
}

func (g *fakeGateway) JoinRoom(context.Context, string, string) (remote.JoinResult, error) {
	return remote.JoinResult{}, nil
}

func (g *fakeGateway) StartGame(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.starts++
	return g.startErr
}

func (g *fakeGateway) HitTarget(_ context.Context, roomID, spawnID, player string) error {
	g.mu.Lock()
	err := g.hitErr
	g.mu.Unlock()
	g.hits <- hitCall{RoomID: roomID, SpawnID: spawnID, Player: player}
	return err
}

func (g *fakeGateway) GetRoomState(context.Context, string) (engine.RoomState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roomState, g.roomStateOK
}

type fakeSub struct {
	envelopes chan types.Envelope
	errs      chan error
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *fakeSub) Envelopes() <-chan types.Envelope { return s.envelopes }
func (s *fakeSub) Err() <-chan error                { return s.errs }
func (s *fakeSub) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// fail mimics a dead channel: error first, then the envelope stream ends.
func (s *fakeSub) fail(err error) {
	s.errs <- err
	close(s.envelopes)
}

type fakeSource struct {
	sub    *fakeSub
	roomID string
	err    error
}

func newFakeSource() *fakeSource {
	return &fakeSource{sub: &fakeSub{
		envelopes: make(chan types.Envelope, 16),
		errs:      make(chan error, 1),
		closed:    make(chan struct{}),
	}}
}

func (f *fakeSource) Subscribe(_ context.Context, roomID string) (remote.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.roomID = roomID
	return f.sub, nil
}

func (f *fakeSource) push(kind string, payload any) {
	b, _ := json.Marshal(payload)
	f.sub.envelopes <- types.Envelope{Type: kind, Payload: b}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
