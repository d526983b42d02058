// Package importer copies homes between repositories, e.g. from the legacy
// per-player YAML files into PostgreSQL.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Importer orchestrates a copy from a Source to a Sink.
type Importer struct {
	source Source
	sink   Sink
	logger *zap.Logger
}

// Report summarises an import.
type Report struct {
	Players int
	Homes   int
	Failed  []string
	Elapsed time.Duration
}

// New constructs an Importer.
//
// Precondition: source, sink and logger must be non-nil.
// Postcondition: returns a non-nil Importer.
func New(source Source, sink Sink, logger *zap.Logger) *Importer {
	return &Importer{source: source, sink: sink, logger: logger}
}

// Run loads every player from the source and writes them to the sink in
// player order. With dryRun set nothing is written.
//
// Postcondition: Report counts the players and homes written (or that would
// be written). A player that fails to save is listed in Report.Failed and its
// error is joined into the returned error; the remaining players are still copied.
func (imp *Importer) Run(ctx context.Context, dryRun bool) (Report, error) {
	start := time.Now()

	players, err := imp.source.LoadAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("loading source: %w", err)
	}
	imp.logger.Info("source loaded", zap.Int("players", len(players)), zap.Duration("elapsed", time.Since(start)))

	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rep Report
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		homes := players[id]
		if !dryRun {
			if err := imp.sink.SavePlayer(ctx, id, homes); err != nil {
				imp.logger.Warn("importing player failed", zap.String("player", id), zap.Error(err))
				rep.Failed = append(rep.Failed, id)
				errs = append(errs, fmt.Errorf("player %s: %w", id, err))
				continue
			}
		}
		rep.Players++
		rep.Homes += len(homes)
		imp.logger.Debug("player imported",
			zap.String("player", id),
			zap.Int("homes", len(homes)),
			zap.Bool("dry_run", dryRun),
		)
	}

	rep.Elapsed = time.Since(start)
	imp.logger.Info("import finished",
		zap.Int("players", rep.Players),
		zap.Int("homes", rep.Homes),
		zap.Int("failed", len(rep.Failed)),
		zap.Bool("dry_run", dryRun),
		zap.Duration("elapsed", rep.Elapsed),
	)
	return rep, errors.Join(errs...)
}
