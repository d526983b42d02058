// Package main copies homes between storage backends, e.g. from a legacy
// plugin data directory into bbolt, SQLite or PostgreSQL before switching
// storage.driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/simplehome/internal/config"
	"github.com/cory-johannsen/simplehome/internal/home"
	"github.com/cory-johannsen/simplehome/internal/importer"
	"github.com/cory-johannsen/simplehome/internal/observability"
	"github.com/cory-johannsen/simplehome/internal/storage/boltdb"
	"github.com/cory-johannsen/simplehome/internal/storage/postgres"
	"github.com/cory-johannsen/simplehome/internal/storage/sqlite"
	"github.com/cory-johannsen/simplehome/internal/storage/yamlfile"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file (database settings)")
	from := flag.String("from", "file", "source backend: file, bolt, sqlite or postgres")
	to := flag.String("to", "postgres", "destination backend: file, bolt, sqlite or postgres")
	sourceDir := flag.String("source-dir", "", "data directory of a file source or database path of a bolt or sqlite source (defaults to the configured location)")
	outputDir := flag.String("output-dir", "", "data directory of a file destination (required when -to file) or database path of a bolt or sqlite destination")
	dryRun := flag.Bool("dry-run", false, "report what would be copied without writing")
	flag.Parse()

	if *from == *to && *sourceDir == *outputDir {
		fmt.Fprintln(os.Stderr, "usage: import-homes -from <file|bolt|sqlite|postgres> -to <file|bolt|sqlite|postgres> [-source-dir <dir>] [-output-dir <dir>] [-dry-run]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	var pool *postgres.Pool
	var closers []interface{ Close() error }
	backend := func(kind, dir string) home.Repository {
		switch kind {
		case "file":
			if dir == "" {
				dir = cfg.Homes.DataDir
			}
			return yamlfile.NewRepository(dir)
		case "postgres":
			if pool == nil {
				if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
					logger.Fatal("applying migrations", zap.Error(err))
				}
				if pool, err = postgres.NewPool(ctx, cfg.Database); err != nil {
					logger.Fatal("connecting to database", zap.Error(err))
				}
			}
			return postgres.NewHomeRepository(pool.DB())
		case "sqlite":
			if dir == "" {
				dir = cfg.Storage.SQLitePath
			}
			repo, err := sqlite.Open(dir)
			if err != nil {
				logger.Fatal("opening sqlite database", zap.String("path", dir), zap.Error(err))
			}
			closers = append(closers, repo)
			return repo
		case "bolt":
			if dir == "" {
				dir = cfg.Storage.BoltPath
			}
			repo, err := boltdb.Open(dir)
			if err != nil {
				logger.Fatal("opening bolt database", zap.String("path", dir), zap.Error(err))
			}
			closers = append(closers, repo)
			return repo
		default:
			logger.Fatal("unknown backend", zap.String("backend", kind))
			return nil
		}
	}

	if *to == "file" && *outputDir == "" {
		logger.Fatal("-output-dir is required when -to file")
	}
	src := backend(*from, *sourceDir)
	dst := backend(*to, *outputDir)
	if pool != nil {
		defer pool.Close()
	}
	for _, c := range closers {
		defer c.Close()
	}

	rep, err := importer.New(src, dst, logger).Run(ctx, *dryRun)
	fmt.Printf("imported %d player(s), %d home(s) in %s\n", rep.Players, rep.Homes, rep.Elapsed.Round(time.Millisecond))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
