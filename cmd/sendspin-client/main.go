// Command sendspin-client runs a standalone player session against a
// sendspin server, wiring the Transport, Time Filter, State Store,
// Protocol Engine, Decode Front-end, and Scheduler together.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/sendspin-audio/sendspin-go/audiosink"
	"github.com/sendspin-audio/sendspin-go/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := session.LoadConfig(configPath)
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("starting session", "player_id", cfg.PlayerID, "base_url", cfg.BaseURL)

	// Real host audio output is out of scope for this module (see the
	// audiosink package doc); the in-memory fake sink is the stand-in any
	// embedder replaces with a real Sink implementation.
	sink := audiosink.NewFakeSink()

	latencyPath := configPath + ".latency.json"
	sess := session.New(cfg, sink,
		session.WithLogger(logger),
		session.WithLatencyStore(session.NewFileLatencyStore(latencyPath)),
	)

	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("session stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
