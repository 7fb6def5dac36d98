package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Engine drives a Session: it renders cached state on start, then syncs
// on a ticker and on demand, and expires stale undo records.
type Engine struct {
	session  *Session
	interval time.Duration
	sweep    time.Duration
	logger   *zap.Logger
	trigger  chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates a new sync engine. A zero interval disables periodic
// syncs; Trigger still works.
func NewEngine(s *Session, interval time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	sweep := time.Second
	if w := s.opts.UndoWindow; w > 0 && w/2 < sweep {
		sweep = w / 2
	}
	return &Engine{
		session:  s,
		interval: interval,
		sweep:    sweep,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start loads the cache and begins the sync loop. The first sync runs
// immediately after the cached state is in place.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		if e.session.LoadCached(ctx) {
			e.logger.Info("serving cached state while syncing")
		}
		e.syncOnce(ctx)

		var tick <-chan time.Time
		if e.interval > 0 {
			t := time.NewTicker(e.interval)
			defer t.Stop()
			tick = t.C
		}
		sweep := time.NewTicker(e.sweep)
		defer sweep.Stop()

		for {
			select {
			case <-tick:
				e.syncOnce(ctx)
			case <-e.trigger:
				e.syncOnce(ctx)
			case <-sweep.C:
				e.session.SweepUndo()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger requests a sync without waiting. It returns false if one is
// already queued.
func (e *Engine) Trigger() bool {
	select {
	case e.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop cancels any in-flight sync and waits for the loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) syncOnce(ctx context.Context) {
	_, err := e.session.Sync(ctx)
	switch {
	case err == nil, errors.Is(err, ErrSyncInProgress), errors.Is(err, context.Canceled):
	default:
		// Already logged by the session; the next tick retries.
		e.logger.Debug("scheduled sync failed", zap.Error(err))
	}
}
