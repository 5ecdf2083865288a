// eisbridge accepts emulated input sessions from remote desktop clients and
// injects the validated events into the host compositor. Connections arrive
// over a unix socket, a D-Bus fd-passing interface, or a WebSocket endpoint.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/miragedesk/eisbridge/pkg/eis"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("EIS_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := eis.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger.Info("starting eisbridge",
		"backend", cfg.Backend,
		"socket", cfg.SocketPath,
		"max_sessions", cfg.MaxSessions)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := eis.NewServer(cfg, logger)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("eisbridge failed", "err", err)
		os.Exit(1)
	}
	logger.Info("eisbridge shutdown complete")
}
