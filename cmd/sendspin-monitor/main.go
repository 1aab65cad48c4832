// Command sendspin-monitor runs a player session like sendspin-client but
// renders a live, colored table of sync quality instead of playing audio:
// time-filter offset/error/drift, scheduler resync count, and state-store
// volume/mute/playing status.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Laky-64/gologging"
	"github.com/charmbracelet/lipgloss"

	"github.com/sendspin-audio/sendspin-go/audiosink"
	"github.com/sendspin-audio/sendspin-go/session"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	// Mirrors the teacher's own noisy-subsystem silencing: gologging
	// carries the "pretty" console output, slog carries this binary's own
	// structured lines.
	gologging.SetLevel(gologging.WarnLevel)

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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	sink := audiosink.NewFakeSink()
	sess := session.New(cfg, sink, session.WithLogger(logger))

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case err := <-done:
			if err != nil && ctx.Err() == nil {
				logger.Error("session stopped with error", "error", err)
				os.Exit(1)
			}
			return
		case <-ticker.C:
			render(sess)
		}
	}
}

func render(sess *session.Session) {
	filter := sess.FilterSnapshot()
	state := sess.Snapshot()
	resyncs := sess.ResyncCount()

	var b strings.Builder
	b.WriteString("\033[H\033[2J") // move cursor home, clear screen
	b.WriteString(headerStyle.Render("sendspin-monitor") + "\n\n")

	syncRow := labelStyle.Render("synchronized") + ": " + boolCell(filter.Synchronized)
	b.WriteString(syncRow + "\n")
	b.WriteString(fmt.Sprintf("%s: %.1f\n", labelStyle.Render("offset_us"), filter.OffsetUs))
	b.WriteString(fmt.Sprintf("%s: %.1f\n", labelStyle.Render("error_us"), filter.ErrorUs))
	b.WriteString(fmt.Sprintf("%s: %.6f\n", labelStyle.Render("drift"), filter.Drift))
	b.WriteString(fmt.Sprintf("%s: %.1f\n", labelStyle.Render("jitter_us"), filter.RecentJitterUs))
	b.WriteString(fmt.Sprintf("%s: %d\n", labelStyle.Render("resync_count"), resyncs))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s: %d\n", labelStyle.Render("volume"), state.Volume))
	b.WriteString(labelStyle.Render("muted") + ": " + boolCell(state.Muted) + "\n")
	b.WriteString(labelStyle.Render("playing") + ": " + boolCell(state.IsPlaying) + "\n")
	b.WriteString(fmt.Sprintf("%s: %s\n", labelStyle.Render("player_state"), state.PlayerState))

	fmt.Print(b.String())
}

func boolCell(v bool) string {
	if v {
		return okStyle.Render("yes")
	}
	return warnStyle.Render("no")
}
