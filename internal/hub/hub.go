// Package hub keeps the live match sessions of this process, keyed by room ID.
package hub

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/game"
)

var ErrClosed = errors.New("hub is shut down")

type HubMsg interface{ isHubMsg() }

// EnsureSession returns the session for Config.RoomID, opening it first if
// there is none yet.
type EnsureSession struct {
	Config game.Config
	Reply  chan SessionResult
}

type SessionResult struct {
	Session *game.Session
	Err     error
}

type GetSession struct {
	RoomID string
	Reply  chan *game.Session
}

type ListSessions struct {
	Reply chan []string
}

// RemoveSession closes and forgets one session.
type RemoveSession struct {
	RoomID string
	Reply  chan error
}

type ShutdownHub struct {
	Reply chan error
}

func (EnsureSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (ListSessions) isHubMsg()  {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*game.Session
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*game.Session),
		log:      logger.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Ensure is the blocking form of EnsureSession.
func (h *Hub) Ensure(ctx context.Context, cfg game.Config) (*game.Session, error) {
	reply := make(chan SessionResult, 1)
	res, err := request(ctx, h, EnsureSession{Config: cfg, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return res.Session, res.Err
}

// Get returns nil when no session is open for roomID.
func (h *Hub) Get(ctx context.Context, roomID string) *game.Session {
	reply := make(chan *game.Session, 1)
	s, _ := request(ctx, h, GetSession{RoomID: roomID, Reply: reply}, reply)
	return s
}

func (h *Hub) Remove(ctx context.Context, roomID string) error {
	reply := make(chan error, 1)
	res, err := request(ctx, h, RemoveSession{RoomID: roomID, Reply: reply}, reply)
	if err != nil {
		return err
	}
	return res
}

// Shutdown closes every session and stops the hub. Shutting down a stopped
// hub is a no-op.
func (h *Hub) Shutdown(ctx context.Context) error {
	reply := make(chan error, 1)
	res, err := request(ctx, h, ShutdownHub{Reply: reply}, reply)
	if errors.Is(err, ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	return res
}

// request posts m and waits for its reply. A message that lands in the inbox
// after the loop stopped is answered with ErrClosed.
func request[T any](ctx context.Context, h *Hub, m HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case <-h.done:
		return zero, ErrClosed
	default:
	}
	select {
	case h.inbox <- m:
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			_ = h.closeAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if s := h.sessions[msg.Config.RoomID]; s != nil {
					msg.Reply <- SessionResult{Session: s}
					break
				}
				s, err := game.Open(h.ctx, msg.Config)
				if err != nil {
					msg.Reply <- SessionResult{Err: err}
					break
				}
				h.sessions[msg.Config.RoomID] = s
				h.log.Info("session opened", zap.String("room_id", msg.Config.RoomID))
				msg.Reply <- SessionResult{Session: s}

			case GetSession:
				msg.Reply <- h.sessions[msg.RoomID] // May be nil

			case ListSessions:
				ids := make([]string, 0, len(h.sessions))
				for id := range h.sessions {
					ids = append(ids, id)
				}
				msg.Reply <- ids

			case RemoveSession:
				var err error
				if s := h.sessions[msg.RoomID]; s != nil {
					delete(h.sessions, msg.RoomID)
					err = s.Close()
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case ShutdownHub:
				err := h.closeAll()
				h.cancel()
				if msg.Reply != nil {
					msg.Reply <- err
				}
				return
			}
		}
	}
}

func (h *Hub) closeAll() error {
	var err error
	for id, s := range h.sessions {
		err = multierr.Append(err, s.Close())
		delete(h.sessions, id)
	}
	return err
}
