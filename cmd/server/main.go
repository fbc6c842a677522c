package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/battlearena/arena-server-go/internal/arena"
	"github.com/battlearena/arena-server-go/internal/auth"
	"github.com/battlearena/arena-server-go/internal/battle"
	"github.com/battlearena/arena-server-go/internal/config"
	"github.com/battlearena/arena-server-go/internal/creature"
	"github.com/battlearena/arena-server-go/internal/events"
	"github.com/battlearena/arena-server-go/internal/leaderboard"
	"github.com/battlearena/arena-server-go/internal/ledger"
	"github.com/battlearena/arena-server-go/internal/market"
	"github.com/battlearena/arena-server-go/internal/repository"
	"github.com/battlearena/arena-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting arena server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if cfg.Auth.AdminTokenHash == "" {
		logger.Warn("admin token not configured; admin HTTP access disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Optional postgres persistence; the in-memory engine stays authoritative.
	var persister arena.Persister
	if cfg.Database.URL != "" {
		db, dbErr := repository.NewDB(ctx, cfg.Database, logger)
		if dbErr != nil {
			logger.Fatal("failed to connect to database", zap.Error(dbErr))
		}
		defer db.Close()

		store := repository.NewStore(db)
		if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
			logger.Fatal("failed to ensure database schema", zap.Error(schemaErr))
		}
		persister = store

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
	} else {
		logger.Warn("no database configured; running fully in memory")
	}

	// Initialize authorizer and grant the privileged system identities
	authorizer := auth.NewAuthorizer(cfg.Auth.AdminIdentity, cfg.Auth.AdminTokenHash, logger)
	if err := authorizer.Grant(authorizer.Admin(), arena.BattleIdentity); err != nil {
		logger.Fatal("failed to grant battle resolver", zap.Error(err))
	}
	logger.Info("authorizer initialized", zap.String("admin", authorizer.Admin()))

	// Initialize event log
	eventLog := events.NewLog(time.Now)

	// Initialize creature registry
	registry := creature.NewRegistry(creature.RegistryConfig{
		TrainExperience:   cfg.Game.TrainExperience,
		TrainStaminaCost:  cfg.Game.TrainStaminaCost,
		RestRegenInterval: cfg.Game.RestRegenInterval,
		RestRegenAmount:   cfg.Game.RestRegenAmount,
		StarterSpecies:    cfg.Game.StarterSpecies,
	}, authorizer, time.Now, logger)
	logger.Info("creature registry initialized")

	// Initialize reward ledger with the genesis allocation
	rewardLedger := ledger.NewLedger(cfg.Auth.AdminIdentity, cfg.Game.GenesisSupply, authorizer, logger)
	logger.Info("reward ledger initialized",
		zap.Uint64("genesis_supply", cfg.Game.GenesisSupply),
	)

	// Initialize battle resolver
	resolverCfg := battle.DefaultConfig()
	resolverCfg.Reward = cfg.Game.BattleReward
	resolverCfg.StaminaCost = cfg.Game.BattleStaminaCost
	resolver := battle.NewResolver(arena.BattleIdentity, resolverCfg, registry, rewardLedger, battle.NewStatsStore(), nil, logger)
	logger.Info("battle resolver initialized",
		zap.Uint64("reward", resolverCfg.Reward),
	)

	// Initialize marketplace escrow
	escrow := market.NewEscrow(arena.EscrowIdentity, registry, rewardLedger, logger)
	logger.Info("marketplace escrow initialized",
		zap.String("identity", escrow.Identity()),
	)

	// Initialize leaderboard
	board := leaderboard.New(resolver.Stats())

	gameArena := arena.New(authorizer, registry, rewardLedger, resolver, escrow, board, eventLog, persister, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTP.Address,
		Handler: server.NewServer(gameArena, authorizer, logger).Router(),
	}

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket event feed
	go func() {
		if wsErr := server.StartWebSocketServer(cfg.Server.WebSocket, gameArena, logger); wsErr != nil {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("arena server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("arena server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
