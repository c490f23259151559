// Package sweeper removes expired chunks from the store and the in-process
// index on a cron schedule.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type expiredDeleter interface {
	DeleteExpiredChunks(ctx context.Context, workspaceID string, now time.Time) ([]string, error)
}

type chunkRemover interface {
	Workspaces() []string
	RemoveChunks(ctx context.Context, workspaceID string, chunkIDs []string) error
}

type sweepObserver interface {
	AddSweptChunks(workspaceID string, count int)
}

type Sweeper struct {
	store    expiredDeleter
	index    chunkRemover
	logger   *slog.Logger
	observer sweepObserver
	cron     *cron.Cron
	timeout  time.Duration
}

func New(store expiredDeleter, index chunkRemover, logger *slog.Logger, observer sweepObserver) *Sweeper {
	return &Sweeper{
		store:    store,
		index:    index,
		logger:   logger,
		observer: observer,
		cron:     cron.New(),
		timeout:  time.Minute,
	}
}

// Start registers the sweep job and starts the scheduler. The schedule uses
// standard five-field cron syntax.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep deletes expired chunks from the store first, then drops the same ids
// from the index. A chunk that expires between the two steps stays visible
// until the next sweep, which is acceptable for TTL semantics.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	for _, workspaceID := range s.index.Workspaces() {
		ids, err := s.store.DeleteExpiredChunks(ctx, workspaceID, now)
		if err != nil {
			s.logger.Error("ttl sweep store delete failed", "workspace_id", workspaceID, "error", err)
			continue
		}
		if len(ids) == 0 {
			continue
		}
		if err := s.index.RemoveChunks(ctx, workspaceID, ids); err != nil {
			s.logger.Error("ttl sweep index remove failed", "workspace_id", workspaceID, "error", err)
			continue
		}
		if s.observer != nil {
			s.observer.AddSweptChunks(workspaceID, len(ids))
		}
		s.logger.Info("ttl sweep removed chunks", "workspace_id", workspaceID, "count", len(ids))
	}
}
