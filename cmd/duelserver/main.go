// Package main runs the duel server: the duel engine behind an HTTP
// interaction gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rpgbot/internal/catalog"
	"github.com/cory-johannsen/rpgbot/internal/config"
	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
	"github.com/cory-johannsen/rpgbot/internal/game/duel"
	"github.com/cory-johannsen/rpgbot/internal/gateway"
	"github.com/cory-johannsen/rpgbot/internal/observability"
	"github.com/cory-johannsen/rpgbot/internal/scripting"
	"github.com/cory-johannsen/rpgbot/internal/server"
	"github.com/cory-johannsen/rpgbot/internal/storage/postgres"
	redisstore "github.com/cory-johannsen/rpgbot/internal/storage/redis"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envPath := flag.String("env", ".env", "path to an optional dotenv file")
	seed := flag.Bool("seed-catalog", false, "upsert the builtin catalog into postgres before loading it")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading %s: %v", *envPath, err)
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

	logger.Info("starting duel server",
		zap.String("gateway_addr", cfg.Gateway.Addr()),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("registry_backend", cfg.Registry.Backend),
	)

	ctx := context.Background()
	lifecycle := server.NewLifecycle(logger)
	checks := map[string]gateway.HealthCheck{}

	// Catalog
	var cat *catalog.Registry
	switch cfg.Catalog.Source {
	case "builtin":
		cat = catalog.Builtin()
	case "yaml":
		cat, err = catalog.LoadDir(cfg.Catalog.WeaponsDir, cfg.Catalog.ItemsDir)
		if err != nil {
			logger.Fatal("loading catalog", zap.Error(err))
		}
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		lifecycle.OnShutdown("postgres", pool.Close)
		checks["postgres"] = pool.Check

		repo := pool.Catalog()
		if *seed {
			if err := repo.Seed(ctx, combat.ReferenceWeapons(), combat.ReferenceItems()); err != nil {
				logger.Fatal("seeding catalog", zap.Error(err))
			}
			logger.Info("catalog seeded")
		}
		cat, err = repo.Load(ctx)
		if err != nil {
			logger.Fatal("loading catalog", zap.Error(err))
		}
	}
	logger.Info("catalog loaded",
		zap.Int("weapons", len(cat.Weapons())),
		zap.Int("items", len(cat.Items())),
	)

	runner := scripting.NewItemRunner(cfg.Catalog.ScriptInstructionLimit, logger)
	for _, d := range cat.Items() {
		if d.Kind != combat.ItemScript {
			continue
		}
		if _, err := runner.Compile(d.Key, d.Script); err != nil {
			logger.Fatal("compiling item script", zap.String("item", d.Key), zap.Error(err))
		}
	}

	// Registry
	var registry duel.Registry
	switch cfg.Registry.Backend {
	case "memory":
		registry = duel.NewMemoryRegistry()
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("connecting to redis", zap.Error(err))
		}
		lifecycle.OnShutdown("redis", func() { _ = client.Close() })
		redisRegistry := redisstore.NewRegistry(client, cfg.Redis.KeyPrefix).WithTTL(cfg.Redis.SessionTTL)
		checks["redis"] = redisRegistry.Check
		registry = redisRegistry
	}

	duelCfg, err := duelConfig(cfg.Duel)
	if err != nil {
		logger.Fatal("building duel config", zap.Error(err))
	}

	hub := gateway.NewHub(logger)
	deps := duel.Deps{
		Options: duel.Options{
			Config:   duelCfg,
			Source:   dice.NewLoggedRoller(dice.NewCryptoSource(), logger),
			Catalog:  cat,
			Scripts:  runner,
			Renderer: hub,
			Registry: registry,
			Logger:   logger,
		},
		Interactor: hub,
	}
	srv := gateway.NewServer(cfg.Gateway, hub, gateway.DepsStarter{Deps: deps}, logger)
	for name, check := range checks {
		srv.AddCheck(name, check)
	}

	lifecycle.Add("gateway", &server.FuncService{
		StartFn: srv.Listen,
		StopFn:  srv.Shutdown,
	})

	logger.Info("duel server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// duelConfig maps the configuration file's duel section onto engine rules.
func duelConfig(c config.DuelConfig) (duel.Config, error) {
	policy, err := duel.ParseTimeoutPolicy(c.TimeoutPolicy)
	if err != nil {
		return duel.Config{}, fmt.Errorf("duel.timeout_policy: %w", err)
	}
	return duel.Config{
		InviteTimeout:   c.InviteTimeout,
		TurnTimeout:     c.TurnTimeout,
		MaxHealth:       c.MaxHealth,
		ItemsPerBattler: c.ItemsPerBattler,
		TimeoutPolicy:   policy,
		RecentEntries:   c.RecentEntries,
		SummaryEntries:  c.SummaryEntries,
	}, nil
}
