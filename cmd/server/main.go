package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gridwalk/server/internal/board"
	"github.com/gridwalk/server/internal/config"
	"github.com/gridwalk/server/internal/events"
	"github.com/gridwalk/server/internal/game"
	"github.com/gridwalk/server/internal/logging"
	"github.com/gridwalk/server/internal/server"
	"github.com/gridwalk/server/internal/ws"
)

// Exit codes: 0 normal shutdown, 1 fatal startup error, 2 unexpected panic.
func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic: %v", r)
			code = 2
		}
	}()

	// Initialize configuration (loads .env if present)
	cfg := config.Load()

	logger, err := logging.Init(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Printf("failed to initialize logger: %v", err)
		return 1
	}
	defer logger.Sync()

	// Load the board description
	var desc board.Description
	if cfg.MapFile != "" {
		desc, err = board.LoadFile(cfg.MapFile)
		if err != nil {
			logger.Error("failed to load map file", zap.String("path", cfg.MapFile), zap.Error(err))
			return 1
		}
		logger.Info("loaded map file", zap.String("path", cfg.MapFile))
	} else {
		desc = board.DefaultDescription()
		logger.Info("using built-in default map")
	}

	// Wire the event bus and the game engine
	bus := events.NewBus(128)
	engine, err := game.NewEngine(desc, bus, logger)
	if err != nil {
		logger.Error("failed to build game engine", zap.Error(err))
		return 1
	}

	hub := ws.NewHub(logger)
	srv := server.New(cfg, logger, engine, hub, bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gridwalk server",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.Int("board_width", desc.Width),
		zap.Int("board_height", desc.Height))

	if err := srv.Run(ctx); err != nil {
		logger.Error("server failed", zap.Error(err))
		return 1
	}
	return 0
}
