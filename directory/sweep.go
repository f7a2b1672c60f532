package directory

import (
	"context"
	"log/slog"
	"time"

	"campuschat/contract"
	"campuschat/domain"
	"campuschat/store"
)

// DefaultSweepInterval matches the original client's 60s backstop.
const DefaultSweepInterval = time.Minute

// SweepWorker periodically re-queries the user's rooms and deletes any
// group room past its expiry. It backstops the per-room timers against
// missed or late fires (suspended process, clock drift). Both writers
// may race to delete the same room; deletion is idempotent.
type SweepWorker struct {
	store    contract.DocumentStore
	uid      string
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewSweepWorker(docs contract.DocumentStore, uid string, interval time.Duration, log *slog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SweepWorker{
		store:    docs,
		uid:      uid,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info("Starting expiry sweep", "uid", w.uid, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	filter := store.ArrayContains{Field: "participants", Value: w.uid}
	docs, err := w.store.Query(ctx, store.Rooms, filter)
	if err != nil {
		w.log.Error("Sweep query failed", "error", err)
		return
	}

	now := w.now()
	for _, doc := range docs {
		room := RoomFromDoc(doc)
		if room.Type != domain.RoomGroup || !room.Expired(now) {
			continue
		}
		if err := w.store.Delete(ctx, store.Rooms, room.ID); err != nil {
			w.log.Error("Sweep deletion failed", "room", room.ID, "error", err)
			continue
		}
		w.log.Info("Sweep deleted expired group room", "room", room.ID)
	}
}
