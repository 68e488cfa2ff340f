// Package timeout folds players who sit on their turn for too long.
package timeout

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"HoldemTable/internal/game/engine"
	"HoldemTable/internal/storage"
)

// Folder is the part of the engine the sweeper drives.
type Folder interface {
	TimeoutPlayer(ctx context.Context, tableID string) (bool, error)
}

// Sweeper periodically scans every table and issues a timeout fold
// through the engine's ordinary transactional path.
type Sweeper struct {
	store    storage.Store
	folder   Folder
	clock    quartz.Clock
	interval time.Duration
	log      *log.Logger
}

func NewSweeper(store storage.Store, folder Folder, clock quartz.Clock, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		folder:   folder,
		clock:    clock,
		interval: interval,
		log:      logger,
	}
}

// Sweep checks every table once and returns how many players were folded.
// Tables that are not stale in the snapshot are skipped without a
// transaction; the engine re-checks the rest.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.ListTables(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	folded := 0
	for _, id := range ids {
		t, err := s.store.GetTable(ctx, id)
		if err != nil {
			s.log.Warn("sweep: load table", "table", id, "err", err)
			continue
		}
		if !engine.Stale(t, now) {
			continue
		}
		ok, err := s.folder.TimeoutPlayer(ctx, id)
		if err != nil {
			s.log.Warn("sweep: timeout fold", "table", id, "err", err)
			continue
		}
		if ok {
			folded++
		}
	}
	return folded, nil
}

// Run sweeps on every tick until ctx ends.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval, "sweeper")
	defer ticker.Stop()
	s.log.Info("turn sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("sweep failed", "err", err)
			}
		}
	}
}
