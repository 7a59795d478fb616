// Package game runs one match on the client. A Session owns the match state
// in a single goroutine; push events, refresh results and failed remote calls
// all reach it through its inbox.
package game

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/codec"
	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/remote"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

type Msg interface{ isSessionMsg() }

// FromServer carries one decoded push event.
type FromServer struct {
	Event engine.Event
}

type Watch struct {
	ID     string
	Outbox chan Update // must have room for the first snapshot
}

type Unwatch struct{ ID string }

type GetState struct {
	Reply chan View
}

type Shutdown struct{}

type roomStateLoaded struct{ state engine.RoomState }

type actionFailed struct {
	action string
	err    error
}

type subscriptionLost struct{ err error }

func (FromServer) isSessionMsg()       {}
func (Watch) isSessionMsg()            {}
func (Unwatch) isSessionMsg()          {}
func (GetState) isSessionMsg()         {}
func (Shutdown) isSessionMsg()         {}
func (roomStateLoaded) isSessionMsg()  {}
func (actionFailed) isSessionMsg()     {}
func (subscriptionLost) isSessionMsg() {}

// Update is what observers receive. Event is set when the update was caused
// by a push event, even if the event changed nothing visible. Err is set for
// surfaced remote failures.
type Update struct {
	Version int
	State   engine.State
	Event   engine.Event
	Err     error
}

type View struct {
	Version     int
	NumWatchers int
	Recorded    int
	State       engine.State
}

// Recorder persists a finished match. It must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, s engine.State, end engine.End)
}

type Config struct {
	RoomID     string
	RoomCode   string
	PlayerName string

	Gateway remote.Gateway

	// Subscription, when set, is an already open room subscription the
	// session takes over (e.g. from the lobby) instead of subscribing
	// through Events. Both may be nil, in which case events are only fed
	// through Inbox.
	Subscription remote.Subscription
	Events       remote.EventSource

	// Initial is applied before the first pushed event is read.
	Initial *engine.Start

	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

type Session struct {
	inbox    chan Msg
	state    engine.State
	version  int
	recorded int
	watchers map[string]chan Update
	latest   atomic.Pointer[Update]

	gateway  remote.Gateway
	recorder Recorder
	sub      remote.Subscription
	now      func() time.Time
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// Open subscribes to the room's push channel and starts the owning
// goroutine. The session lives until Close or until parent is done.
func Open(parent context.Context, cfg Config) (*Session, error) {
	ctx, cancel := context.WithCancel(parent)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		inbox:    make(chan Msg, 64), // Small buffer
		state:    engine.NewState(cfg.RoomID, cfg.RoomCode, cfg.PlayerName),
		watchers: make(map[string]chan Update),
		gateway:  cfg.Gateway,
		recorder: cfg.Recorder,
		now:      now,
		log:      logger.Named("game").With(zap.String("room_id", cfg.RoomID)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if cfg.Initial != nil {
		s.state, _ = engine.Apply(s.state, *cfg.Initial)
	}
	s.latest.Store(&Update{State: s.state.Clone()})

	switch {
	case cfg.Subscription != nil:
		s.sub = cfg.Subscription
	case cfg.Events != nil:
		sub, err := cfg.Events.Subscribe(ctx, cfg.RoomID)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("subscribe to room %s: %w", cfg.RoomID, err)
		}
		s.sub = sub
	}
	if s.sub != nil {
		s.spawn(s.pump)
	}

	go s.loop()
	return s, nil
}

// Expose the inbox so tests or a transport can feed messages directly.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Snapshot returns a copy of the latest published state.
func (s *Session) Snapshot() engine.State {
	return s.latest.Load().State.Clone()
}

func (s *Session) Done() <-chan struct{} { return s.done }

// Tap hit-tests (x, y) against the latest snapshot at the current time. On a
// hit the remote hit is sent in the background and true is returned; score
// only ever changes when the service answers with a SCORE or END event.
func (s *Session) Tap(x, y float64) bool {
	st := s.latest.Load().State
	target, ok := engine.EvaluateTap(st, x, y, s.now())
	if !ok {
		return false
	}
	return s.spawn(func(ctx context.Context) {
		if err := s.gateway.HitTarget(ctx, st.RoomID, target.SpawnID, st.PlayerName); err != nil {
			s.send(actionFailed{action: "hit target", err: err})
		}
	})
}

// Start asks the service to start the match.
func (s *Session) Start() {
	roomID := s.latest.Load().State.RoomID
	s.spawn(func(ctx context.Context) {
		if err := s.gateway.StartGame(ctx, roomID); err != nil {
			s.send(actionFailed{action: "start game", err: err})
		}
	})
}

// Refresh reloads the scoreboard from the service, e.g. after a reconnect.
// A missing result leaves the state untouched.
func (s *Session) Refresh() {
	roomID := s.latest.Load().State.RoomID
	s.spawn(func(ctx context.Context) {
		rs, ok := s.gateway.GetRoomState(ctx, roomID)
		if !ok {
			return
		}
		s.send(roomStateLoaded{state: rs})
	})
}

// Close releases the subscription, waits for in-flight remote calls and
// closes every watcher outbox. No update is delivered after Close returns.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.wg.Wait()
	return nil
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			if s.ctx.Err() != nil {
				s.shutdown()
				return
			}
			switch msg := m.(type) {
			case Watch:
				// Register observer + send current snapshot immediately. An
				// outbox with no room for it is closed like a slow watcher.
				current := *s.latest.Load()
				current.State = current.State.Clone()
				current.Event = cloneEvent(current.Event)
				select {
				case msg.Outbox <- current:
					s.watchers[msg.ID] = msg.Outbox
				default:
					close(msg.Outbox)
				}

			case Unwatch:
				delete(s.watchers, msg.ID)

			case FromServer:
				s.apply(msg.Event)

			case roomStateLoaded:
				s.state = engine.ApplyRoomState(s.state, msg.state)
				s.publish(Update{})

			case actionFailed:
				s.log.Warn("remote action failed", zap.String("action", msg.action), zap.Error(msg.err))
				s.publish(Update{Err: msg.err})

			case subscriptionLost:
				s.log.Error("event subscription lost", zap.Error(msg.err))
				s.publish(Update{Err: msg.err})

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:     s.version,
					NumWatchers: len(s.watchers),
					Recorded:    s.recorded,
					State:       s.state.Clone(),
				}

			case Shutdown:
				s.cancel()
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) apply(ev engine.Event) {
	next, finished := engine.Apply(s.state, ev)
	s.state = next

	s.log.Debug("event applied",
		zap.String("kind", string(ev.Kind())),
		zap.Int("round", next.Round),
		zap.Bool("ended", next.Ended),
	)

	if finished {
		end := ev.(engine.End)
		s.recorded++
		if s.recorder != nil {
			s.recorder.Record(s.ctx, next, end)
		}
	}
	s.publish(Update{Event: ev})
}

func (s *Session) publish(u Update) {
	s.version++
	u.Version = s.version
	u.State = s.state.Clone()
	u.Event = cloneEvent(u.Event)
	s.latest.Store(&u)
	s.broadcast(u)
}

func (s *Session) broadcast(u Update) {
	for id, ch := range s.watchers {
		out := u
		out.State = u.State.Clone()
		out.Event = cloneEvent(u.Event)
		select {
		case ch <- out:
			//ok
		default:
			// Observer is slow/full - drop them.
			close(ch)
			delete(s.watchers, id)
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.watchers {
		close(ch) // Tell observer no more updates
		delete(s.watchers, id)
	}
	if s.sub != nil {
		_ = s.sub.Close()
	}
}

// spawn runs fn in a tracked goroutine bound to the session context. It
// reports false once the session is closed.
func (s *Session) spawn(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

func (s *Session) send(m Msg) bool {
	select {
	case s.inbox <- m:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) pump(ctx context.Context) {
	remote.Drain(ctx, s.sub,
		func(env types.Envelope) (engine.Event, bool) {
			return codec.Decode(env.Type, env.Payload, s.now())
		},
		func(ev engine.Event) bool { return s.send(FromServer{Event: ev}) },
		func(env types.Envelope) { s.log.Debug("dropping event", zap.String("type", env.Type)) },
		func(err error) { s.send(subscriptionLost{err: err}) },
	)
}

func cloneEvent(ev engine.Event) engine.Event {
	if ev == nil {
		return nil
	}
	return engine.CloneEvent(ev)
}
