package lobby

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/remote"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

type fakeGateway struct {
	mu       sync.Mutex
	join     remote.JoinResult
	joinErr  error
	startErr error
	codes    []string
	starts   chan string
}

func newFakeGateway(join remote.JoinResult) *fakeGateway {
	return &fakeGateway{join: join, starts: make(chan string, 4)}
}

func (g *fakeGateway) JoinRoom(_ context.Context, code, _ string) (remote.JoinResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.codes = append(g.codes, code)
	return g.join, g.joinErr
}

func (g *fakeGateway) StartGame(_ context.Context, roomID string) error {
	g.mu.Lock()
	err := g.startErr
	g.mu.Unlock()
	g.starts <- roomID
	return err
}

func (g *fakeGateway) HitTarget(context.Context, string, string, string) error { return nil }

func (g *fakeGateway) GetRoomState(context.Context, string) (engine.RoomState, bool) {
	return engine.RoomState{}, false
}

func (g *fakeGateway) joinedCodes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.codes...)
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

type fakeSource struct {
	mu     sync.Mutex
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
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.roomID = roomID
	return f.sub, nil
}

func (f *fakeSource) subscribedRoom() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomID
}

func (f *fakeSource) push(kind string, payload any) {
	b, _ := json.Marshal(payload)
	f.sub.envelopes <- types.Envelope{Type: kind, Payload: b}
}
