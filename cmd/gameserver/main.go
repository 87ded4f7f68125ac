// Package main runs the real-time session backend: a websocket server
// that tracks connected players and routes the game protocol between
// them.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/africauniverse/gameserver/internal/config"
	"github.com/africauniverse/gameserver/internal/dispatcher"
	"github.com/africauniverse/gameserver/internal/frontend/ws"
	"github.com/africauniverse/gameserver/internal/game/registry"
	"github.com/africauniverse/gameserver/internal/observability"
	"github.com/africauniverse/gameserver/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = built-in defaults")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics()
	reg := registry.NewRegistry()
	disp := dispatcher.New(reg, logger, metrics)
	wsServer := ws.NewServer(cfg, reg, disp, logger, metrics)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: wsServer.ListenAndServe,
		StopFn:  wsServer.Stop,
	})

	logger.Info("game server initialized",
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
