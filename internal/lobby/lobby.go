// Package lobby coordinates the waiting room before a match: joining a room,
// tracking how many players are in it, and reacting to the creator's start.
package lobby

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DoyleJ11/tapbattle/internal/codec"
	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/internal/remote"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

var (
	ErrBlankCode = errors.New("room code is required")
	ErrBusy      = errors.New("already in a room")
	ErrNotReady  = errors.New("match cannot be started yet")
)

type Status string

const (
	StatusIdle          Status = "idle"
	StatusJoining       Status = "joining"
	StatusJoined        Status = "joined"
	StatusStarting      Status = "starting"
	StatusMatchStarting Status = "match_starting"
)

type State struct {
	Status      Status
	RoomID      string
	RoomCode    string
	PlayerName  string
	IsCreator   bool
	Creator     string
	PlayerCount int
	Joined      bool
	Started     bool
}

// CanStart reports whether the local player may start the match: only the
// creator, and only once the opponent is in.
func (s State) CanStart() bool {
	return s.IsCreator && s.PlayerCount >= 2
}

var upper = cases.Upper(language.Und)

// NormalizeCode trims and upper-cases a typed room code.
func NormalizeCode(code string) string {
	return upper.String(strings.TrimSpace(code))
}

type Msg interface{ isLobbyMsg() }

type Join struct {
	Code   string
	Player string
}

type Start struct{}

// FromServer carries one decoded lobby event.
type FromServer struct {
	Event engine.LobbyEvent
}

type Watch struct {
	ID     string
	Outbox chan Update // must have room for the first snapshot
}

type Unwatch struct{ ID string }

type Shutdown struct{}

type GetState struct {
	Reply chan View
}

// TakeSubscription hands over the room subscription kept after START. Reply
// gets nil before the match starts or once it was taken.
type TakeSubscription struct {
	Reply chan remote.Subscription
}

type joinDone struct {
	code   string
	player string
	res    remote.JoinResult
	sub    remote.Subscription
	err    error
	subErr error
}

type startDone struct{ err error }

type subscriptionLost struct{ err error }

func (Join) isLobbyMsg()             {}
func (Start) isLobbyMsg()            {}
func (FromServer) isLobbyMsg()       {}
func (Watch) isLobbyMsg()            {}
func (Unwatch) isLobbyMsg()          {}
func (Shutdown) isLobbyMsg()         {}
func (GetState) isLobbyMsg()         {}
func (TakeSubscription) isLobbyMsg() {}
func (joinDone) isLobbyMsg()         {}
func (startDone) isLobbyMsg()        {}
func (subscriptionLost) isLobbyMsg() {}

type Update struct {
	Version int
	State   State
	Event   engine.LobbyEvent
	Err     error
}

type View struct {
	Version    int
	NumClients int
	State      State
}

type Config struct {
	Gateway remote.Gateway
	Events  remote.EventSource
	Logger  *zap.Logger
}

type Lobby struct {
	inbox   chan Msg
	state   State
	version int
	clients map[string]chan Update
	latest  atomic.Pointer[Update]

	gateway remote.Gateway
	events  remote.EventSource
	sub     remote.Subscription
	subStop context.CancelFunc
	handoff remote.Subscription
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		state:   State{Status: StatusIdle},
		clients: make(map[string]chan Update),
		gateway: cfg.Gateway,
		events:  cfg.Events,
		log:     logger.Named("lobby"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	l.latest.Store(&Update{State: l.state})

	go l.loop()
	return l
}

// Expose the inbox so tests or a transport can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Snapshot() State { return l.latest.Load().State }

func (l *Lobby) Join(code, player string) { l.send(Join{Code: code, Player: player}) }

func (l *Lobby) Start() { l.send(Start{}) }

// TakeSubscription returns the room subscription that carried START, still
// open and positioned right after it, so the match can keep reading without a
// gap. The caller owns it from then on.
func (l *Lobby) TakeSubscription(ctx context.Context) remote.Subscription {
	reply := make(chan remote.Subscription, 1)
	select {
	case l.inbox <- TakeSubscription{Reply: reply}:
	case <-l.done:
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case sub := <-reply:
		return sub
	case <-l.done:
		// The reply may have been sent just before the loop stopped.
		select {
		case sub := <-reply:
			return sub
		default:
			return nil
		}
	case <-ctx.Done():
		return nil
	}
}

func (l *Lobby) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	<-l.done
	l.wg.Wait()
	return nil
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			if l.ctx.Err() != nil {
				l.shutdown()
				return
			}
			switch msg := m.(type) {
			case Join:
				l.join(msg)

			case joinDone:
				l.joined(msg)

			case Start:
				l.start()

			case startDone:
				if msg.err != nil && l.state.Status == StatusStarting {
					l.log.Warn("start game failed", zap.Error(msg.err))
					l.state.Status = StatusJoined
					l.publish(Update{Err: msg.err})
				}

			case FromServer:
				l.apply(msg.Event)

			case subscriptionLost:
				l.log.Error("lobby subscription lost", zap.Error(msg.err))
				l.publish(Update{Err: msg.err})

			case Watch:
				current := *l.latest.Load()
				current.Event = cloneEvent(current.Event)
				select {
				case msg.Outbox <- current:
					l.clients[msg.ID] = msg.Outbox
				default:
					// No room for the first snapshot: treat as a slow client.
					close(msg.Outbox)
				}

			case Unwatch:
				delete(l.clients, msg.ID)

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state,
				}

			case TakeSubscription:
				msg.Reply <- l.handoff
				l.handoff = nil

			case Shutdown:
				l.cancel()
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) join(msg Join) {
	if l.state.Status != StatusIdle {
		l.publish(Update{Err: ErrBusy})
		return
	}
	code := NormalizeCode(msg.Code)
	if code == "" {
		l.publish(Update{Err: ErrBlankCode})
		return
	}

	l.state = State{Status: StatusJoining, RoomCode: code, PlayerName: msg.Player}
	l.publish(Update{})

	l.spawn(func(ctx context.Context) {
		res, err := l.gateway.JoinRoom(ctx, code, msg.Player)
		done := joinDone{code: code, player: msg.Player, res: res, err: err}
		if err == nil && l.events != nil {
			done.sub, done.subErr = l.events.Subscribe(ctx, res.RoomID)
		}
		if !l.send(done) && done.sub != nil {
			_ = done.sub.Close()
		}
	})
}

func (l *Lobby) joined(msg joinDone) {
	if msg.err != nil {
		l.log.Warn("join failed", zap.String("code", msg.code), zap.Error(msg.err))
		l.state = State{Status: StatusIdle}
		l.publish(Update{Err: msg.err})
		return
	}

	l.state = State{
		Status:      StatusJoined,
		RoomID:      msg.res.RoomID,
		RoomCode:    msg.code,
		PlayerName:  msg.player,
		IsCreator:   msg.res.IsCreator,
		Creator:     msg.res.Creator,
		PlayerCount: 1,
		Joined:      true,
	}
	l.log.Info("joined room",
		zap.String("room_id", msg.res.RoomID),
		zap.Bool("is_creator", msg.res.IsCreator),
	)

	if msg.subErr != nil {
		l.publish(Update{Err: msg.subErr})
		return
	}
	if msg.sub != nil {
		l.watchEvents(msg.sub)
	}
	l.publish(Update{})
}

func (l *Lobby) start() {
	if l.state.Status != StatusJoined || !l.state.CanStart() {
		l.publish(Update{Err: ErrNotReady})
		return
	}
	l.state.Status = StatusStarting
	l.publish(Update{})

	roomID := l.state.RoomID
	l.spawn(func(ctx context.Context) {
		l.send(startDone{err: l.gateway.StartGame(ctx, roomID)})
	})
}

func (l *Lobby) apply(ev engine.LobbyEvent) {
	if l.state.Status == StatusMatchStarting {
		return
	}
	switch e := ev.(type) {
	case engine.PlayerJoined:
		l.state.PlayerCount = e.TotalPlayers

	case engine.Start:
		// Both players react to the creator's start. The subscription stays
		// open for whoever runs the match.
		l.state.Status = StatusMatchStarting
		l.state.Started = true
		l.detachSubscription()
	}
	l.publish(Update{Event: ev})
}

func (l *Lobby) watchEvents(sub remote.Subscription) {
	ctx, stop := context.WithCancel(l.ctx)
	l.sub, l.subStop = sub, stop
	started := l.spawn(func(context.Context) {
		remote.Drain(ctx, sub,
			func(env types.Envelope) (engine.LobbyEvent, bool) {
				return codec.DecodeLobby(env.Type, env.Payload)
			},
			func(ev engine.LobbyEvent) bool {
				if !l.send(FromServer{Event: ev}) {
					return false
				}
				// Stop reading at START; the rest of the stream is the match's.
				_, start := ev.(engine.Start)
				return !start
			},
			nil,
			func(err error) { l.send(subscriptionLost{err: err}) },
		)
	})
	if !started {
		l.releaseSubscription()
	}
}

func (l *Lobby) detachSubscription() {
	if l.subStop != nil {
		l.subStop()
	}
	l.handoff = l.sub
	l.sub, l.subStop = nil, nil
}

func (l *Lobby) releaseSubscription() {
	if l.subStop != nil {
		l.subStop()
	}
	if l.sub != nil {
		_ = l.sub.Close()
	}
	l.sub, l.subStop = nil, nil
}

func (l *Lobby) publish(u Update) {
	l.version++
	u.Version = l.version
	u.State = l.state
	u.Event = cloneEvent(u.Event)
	l.latest.Store(&u)
	l.broadcast(u)
}

func (l *Lobby) broadcast(u Update) {
	for id, ch := range l.clients {
		out := u
		out.Event = cloneEvent(u.Event)
		select {
		case ch <- out:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more updates
		delete(l.clients, id)
	}
	l.releaseSubscription()
	if l.handoff != nil {
		_ = l.handoff.Close()
		l.handoff = nil
	}
}

func (l *Lobby) spawn(fn func(ctx context.Context)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn(l.ctx)
	}()
	return true
}

func (l *Lobby) send(m Msg) bool {
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func cloneEvent(ev engine.LobbyEvent) engine.LobbyEvent {
	if ev == nil {
		return nil
	}
	return engine.CloneLobbyEvent(ev)
}
