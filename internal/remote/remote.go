// Package remote describes the authoritative game service as seen by the
// client: outbound actions and the room scoped push channel.
package remote

import (
	"context"
	"errors"

	"github.com/DoyleJ11/tapbattle/internal/engine"
	"github.com/DoyleJ11/tapbattle/pkg/types"
)

var (
	ErrJoinFailed   = errors.New("join room failed")
	ErrActionFailed = errors.New("remote action failed")
	ErrSubscription = errors.New("event subscription failed")
)

type JoinResult struct {
	RoomID    string
	IsCreator bool
	Creator   string
}

// Gateway sends local intents to the service. Calls are single shot with no
// retry. A hit for a spawn that is already resolved is reported as success.
type Gateway interface {
	JoinRoom(ctx context.Context, code, player string) (JoinResult, error)
	StartGame(ctx context.Context, roomID string) error
	HitTarget(ctx context.Context, roomID, spawnID, player string) error
	// GetRoomState returns ok=false instead of an error on any failure.
	GetRoomState(ctx context.Context, roomID string) (engine.RoomState, bool)
}

// EventSource opens room scoped subscriptions on the push channel.
type EventSource interface {
	Subscribe(ctx context.Context, roomID string) (Subscription, error)
}

// Subscription is a live registration. Envelopes is closed once the
// subscription is dead; a fault is reported on Err first. Close releases the
// registration and is safe to call more than once.
type Subscription interface {
	Envelopes() <-chan types.Envelope
	Err() <-chan error
	Close() error
}
