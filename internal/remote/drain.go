package remote

import (
	"context"
	"fmt"

	"github.com/DoyleJ11/tapbattle/pkg/types"
)

// Drain forwards decoded envelopes to deliver until ctx is done, the
// subscription dies, or deliver returns false. Once deliver returns false no
// further envelope is read, so the subscription can be handed to another
// reader without losing anything. Envelopes that do not decode are passed to
// skipped and dropped. lost is called once if the subscription dies while ctx
// is live.
func Drain[T any](
	ctx context.Context,
	sub Subscription,
	decode func(types.Envelope) (T, bool),
	deliver func(T) bool,
	skipped func(types.Envelope),
	lost func(error),
) {
	for {
		select {
		case <-ctx.Done():
			return

		case env, ok := <-sub.Envelopes():
			if !ok {
				if ctx.Err() != nil {
					return
				}
				select {
				case err := <-sub.Err():
					lost(err)
				default:
					lost(fmt.Errorf("%w: channel closed", ErrSubscription))
				}
				return
			}
			v, ok := decode(env)
			if !ok {
				if skipped != nil {
					skipped(env)
				}
				continue
			}
			if !deliver(v) {
				return
			}
		}
	}
}
