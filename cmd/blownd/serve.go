package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shubh-37/blown-salon-voice-agent/internal/config"
	"github.com/shubh-37/blown-salon-voice-agent/internal/conversation"
	"github.com/shubh-37/blown-salon-voice-agent/internal/db"
	"github.com/shubh-37/blown-salon-voice-agent/internal/escalation"
	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
	"github.com/shubh-37/blown-salon-voice-agent/internal/knowledge"
	"github.com/shubh-37/blown-salon-voice-agent/internal/notify"
	"github.com/shubh-37/blown-salon-voice-agent/internal/server"
	"github.com/shubh-37/blown-salon-voice-agent/internal/sweeper"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor hub",
		Long:  "Starts the HTTP API, both websocket channels, and the timeout sweeper.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "blown.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	kb := knowledge.NewService(gormDB)
	esc := escalation.NewService(gormDB, kb)
	convs := conversation.NewService(gormDB)
	dashboard := hub.New("dashboard")
	agents := hub.New("agent")
	notifier := buildNotifier(cfg.Notify)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sw, err := sweeper.New(sweeper.Opts{
		Escalations: esc,
		Dashboard:   dashboard,
		Interval:    time.Duration(cfg.Sweep.IntervalMinutes) * time.Minute,
		Schedule:    cfg.Sweep.Schedule,
		Threshold:   time.Duration(cfg.Sweep.TimeoutHours) * time.Hour,
	})
	if err != nil {
		return err
	}
	go sw.Run(ctx)

	return server.Start(ctx, server.StartOpts{
		Escalations:   esc,
		Knowledge:     kb,
		Conversations: convs,
		Dashboard:     dashboard,
		Agents:        agents,
		Notifier:      notifier,
		Addr:          fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Out:           cmd.OutOrStdout(),
	})
}

// buildNotifier assembles the notification fan-out from config. The
// customer log adapter is always on; chat adapters need tokens.
func buildNotifier(cfg config.NotifyConfig) *notify.Notifier {
	adapters := []notify.Adapter{notify.CustomerLog{}}
	if cfg.Slack.Token != "" {
		adapters = append(adapters, notify.NewSlack(cfg.Slack.Token, cfg.Slack.Channel))
	}
	if cfg.Discord.Token != "" {
		if d, err := notify.NewDiscord(cfg.Discord.Token, cfg.Discord.Channel); err == nil {
			adapters = append(adapters, d)
		}
	}
	return notify.New(adapters...)
}
