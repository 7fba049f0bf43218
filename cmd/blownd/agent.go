package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shubh-37/blown-salon-voice-agent/internal/agentclient"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a standalone reconciliation client",
		Long:  "Connects to the hub's agent channel and mirrors the knowledge base, the way a voice-agent worker does. Useful for watching replication.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "blown.yaml", "path to config file")
	return cmd
}

func runAgent(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := agentclient.New(agentclient.Opts{
		ServerURL: cfg.Agent.ServerURL,
		Backoff:   time.Duration(cfg.Agent.ReconnectDelaySec) * time.Second,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Agent mirroring %s\n", cfg.Agent.ServerURL)
	if err := client.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
