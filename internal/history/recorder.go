package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/engine"
)

// Recorder writes match records. A failed write is logged and dropped so a
// lost history entry never interrupts play.
type Recorder struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, now: time.Now, log: logger.Named("history")}
}

func (r *Recorder) Record(ctx context.Context, s engine.State, end engine.End) {
	rec := BuildRecord(s, end, r.now())

	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		r.log.Error("saving match record",
			zap.String("room_code", rec.RoomCode),
			zap.String("champion", rec.Champion),
			zap.Error(err),
		)
		return
	}
	r.log.Info("match recorded",
		zap.Int64("id", id),
		zap.String("room_code", rec.RoomCode),
		zap.Bool("did_win", rec.DidWin),
	)
}
