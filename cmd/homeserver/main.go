// Package main provides the home server binary: it loads the home store and
// serves the home commands to the game host over gRPC, with an optional admin
// HTTP listener for metrics and read-only lookups.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cory-johannsen/simplehome/internal/admin"
	"github.com/cory-johannsen/simplehome/internal/bridge"
	"github.com/cory-johannsen/simplehome/internal/command"
	"github.com/cory-johannsen/simplehome/internal/config"
	"github.com/cory-johannsen/simplehome/internal/home"
	"github.com/cory-johannsen/simplehome/internal/leveling"
	"github.com/cory-johannsen/simplehome/internal/message"
	"github.com/cory-johannsen/simplehome/internal/metrics"
	"github.com/cory-johannsen/simplehome/internal/observability"
	"github.com/cory-johannsen/simplehome/internal/scripting"
	"github.com/cory-johannsen/simplehome/internal/server"
	"github.com/cory-johannsen/simplehome/internal/storage/boltdb"
	"github.com/cory-johannsen/simplehome/internal/storage/postgres"
	"github.com/cory-johannsen/simplehome/internal/storage/sqlite"
	"github.com/cory-johannsen/simplehome/internal/storage/yamlfile"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional file of SIMPLEHOME_* overrides")
	migrateOnStart := flag.Bool("migrate", true, "apply pending migrations when storage.driver is postgres")
	flag.Parse()

	ctx := context.Background()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("%v", err)
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

	logger.Info("starting home server",
		zap.String("grpc_addr", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("admin_addr", cfg.Admin.Addr),
		zap.Bool("tracing", cfg.Tracing.Enabled),
		zap.Int("base_limit", cfg.Homes.Limit),
		zap.Strings("banned_worlds", cfg.Homes.BannedWorlds()),
	)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("initializing tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces", zap.Error(err))
		}
	}()

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	repo, err := openRepository(ctx, cfg, *migrateOnStart, logger, lifecycle)
	if err != nil {
		logger.Fatal("opening home repository", zap.Error(err))
	}

	var override home.LimitFunc
	if cfg.Scripting.LimitScript != "" {
		script, err := scripting.LoadLimitScript(cfg.Scripting.LimitScript, cfg.Scripting.InstructionLimit, logger)
		if err != nil {
			logger.Fatal("loading limit script", zap.Error(err))
		}
		defer script.Close()
		override = script.MaxHomes
	}

	tiers := leveling.New(cfg.Leveling.BaseURL, cfg.Leveling.Timeout, cfg.Leveling.Fallback, logger)
	policy := home.NewPolicy(cfg.Homes.Limit, tiers, override)
	banned := home.NewBannedWorlds(cfg.Homes.BannedWorlds())

	store := home.NewStore(repo, policy, banned, cfg.Homes.WriteThrough, logger)
	if err := store.Load(ctx); err != nil {
		if !errors.Is(err, home.ErrPlayersSkipped) {
			logger.Fatal("loading homes", zap.Error(err))
		}
		// Store.Load already logged which players were skipped; their files are left untouched.
		logger.Warn("serving without the skipped players' homes")
	}

	if err := metrics.RegisterHomesGauge(prometheus.DefaultRegisterer, store.TotalHomes); err != nil {
		logger.Fatal("registering metrics", zap.Error(err))
	}

	handler := command.NewHandler(store, message.NewCatalog(cfg.Messages), logger)
	grpcServer := bridge.NewServer(cfg.Server.Addr(), bridge.NewHomeService(handler, store, logger), logger)

	// Added first so it stops last: the final save runs after the listener has drained.
	lifecycle.Add("autosave", home.NewAutosaver(store, cfg.Homes.AutosaveInterval, logger))
	lifecycle.Add("grpc", grpcServer)
	if cfg.Admin.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := admin.NewRouter(store, prometheus.DefaultGatherer, logger)
		lifecycle.Add("admin", admin.NewServer(cfg.Admin.Addr, router, logger))
	}

	logger.Info("home server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Int("players", len(store.Players())),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// openRepository returns the repository selected by storage.driver. For bolt,
// sqlite and postgres it also registers the handle with the lifecycle so it is
// closed on shutdown, after the autosaver's final save.
func openRepository(ctx context.Context, cfg config.Config, migrateOnStart bool, logger *zap.Logger, lc *server.Lifecycle) (home.Repository, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		if migrateOnStart {
			if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		healthCtx, cancel := context.WithCancel(ctx)
		lc.Add("postgres", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-healthCtx.Done():
						return nil
					case <-ticker.C:
						if err := pool.Health(healthCtx, 5*time.Second); err != nil {
							logger.Warn("database health check failed", zap.Error(err))
						}
					}
				}
			},
			StopFn: func() {
				cancel()
				pool.Close()
			},
		})
		return postgres.NewHomeRepository(pool.DB()), nil
	case "bolt":
		repo, err := boltdb.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		lc.Add("bolt", &server.FuncService{
			StopFn: func() {
				if err := repo.Close(); err != nil {
					logger.Warn("closing bolt database", zap.Error(err))
				}
			},
		})
		return repo, nil
	case "sqlite":
		repo, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		lc.Add("sqlite", &server.FuncService{
			StopFn: func() {
				if err := repo.Close(); err != nil {
					logger.Warn("closing sqlite database", zap.Error(err))
				}
			},
		})
		return repo, nil
	case "file":
		return yamlfile.NewRepository(cfg.Homes.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
