// Package ws implements remote.EventSource over a websocket push channel.
package ws

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/codec"
	"github.com/DoyleJ11/tapbattle/internal/remote"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

type Dialer struct {
	eventsURL string
	appID     string
	log       *zap.Logger
}

func NewDialer(eventsURL, appID string, logger *zap.Logger) *Dialer {
	return &Dialer{eventsURL: eventsURL, appID: appID, log: logger.Named("ws")}
}

var _ remote.EventSource = (*Dialer)(nil)

// Subscribe dials the push channel filtered to roomID. ctx bounds the dial
// only: the subscription lives until Close, so it can outlive the component
// that opened it.
func (d *Dialer) Subscribe(ctx context.Context, roomID string) (remote.Subscription, error) {
	u, err := url.Parse(d.eventsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse events url: %w", remote.ErrSubscription, err)
	}
	q := u.Query()
	q.Set("room", roomID)
	u.RawQuery = q.Encode()

	opts := &websocket.DialOptions{}
	if d.appID != "" {
		opts.HTTPHeader = map[string][]string{"X-Application-Id": {d.appID}}
	}
	conn, _, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", remote.ErrSubscription, err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &subscription{
		conn:      conn,
		envelopes: make(chan types.Envelope, 64),
		errs:      make(chan error, 1),
		cancel:    cancel,
		log:       d.log.With(zap.String("room_id", roomID)),
	}
	go s.readLoop(subCtx)

	s.log.Debug("subscribed")
	return s, nil
}

type subscription struct {
	conn      *websocket.Conn
	envelopes chan types.Envelope
	errs      chan error
	cancel    context.CancelFunc
	closeOnce sync.Once
	log       *zap.Logger
}

func (s *subscription) Envelopes() <-chan types.Envelope { return s.envelopes }
func (s *subscription) Err() <-chan error                { return s.errs }

// Close never reports the close handshake error: the peer may already be gone.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close(websocket.StatusNormalClosure, "bye")
	})
	return nil
}

func (s *subscription) readLoop(ctx context.Context) {
	defer close(s.envelopes)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("push channel lost", zap.Error(err))
			s.fail(err)
			return
		}

		env, err := codec.DecodeEnvelope(data)
		if err != nil {
			s.log.Debug("dropping frame", zap.Error(err))
			continue
		}

		select {
		case s.envelopes <- env:
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscription) fail(err error) {
	select {
	case s.errs <- fmt.Errorf("%w: %w", remote.ErrSubscription, err):
	default:
	}
}
