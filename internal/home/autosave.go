package home

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Autosaver checkpoints a Store on a fixed interval and saves it in full on Stop.
// It satisfies server.Service.
type Autosaver struct {
	store    *Store
	interval time.Duration
	logger   *zap.Logger

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewAutosaver creates an Autosaver.
//
// Precondition: store and logger must be non-nil. interval <= 0 disables
// periodic checkpoints; the final save on Stop still happens.
func NewAutosaver(store *Store, interval time.Duration, logger *zap.Logger) *Autosaver {
	return &Autosaver{
		store:    store,
		interval: interval,
		logger:   logger,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the checkpoint loop until Stop is called.
func (a *Autosaver) Start() error {
	defer close(a.done)

	var tick <-chan time.Time
	if a.interval > 0 {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-a.quit:
			return nil
		case <-tick:
			if err := a.store.Checkpoint(context.Background()); err != nil {
				a.logger.Error("home checkpoint failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the loop and writes every player's homes.
//
// Precondition: Start has been called (it may still be starting up).
//
// Postcondition: The Store has been saved once after the loop exited.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() {
		close(a.quit)
		<-a.done
		start := time.Now()
		if err := a.store.Save(context.Background()); err != nil {
			a.logger.Error("final home save failed", zap.Error(err))
			return
		}
		a.logger.Info("homes saved on shutdown", zap.Duration("elapsed", time.Since(start)))
	})
}
