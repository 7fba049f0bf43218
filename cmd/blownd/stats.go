package main

import (
	"fmt"

	"github.com/shubh-37/blown-salon-voice-agent/internal/db"
	"github.com/shubh-37/blown-salon-voice-agent/internal/escalation"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print help-request statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}

			stats, err := escalation.NewService(gormDB, nil).Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:    %d\n", stats.Total)
			fmt.Fprintf(out, "Pending:  %d\n", stats.Pending)
			fmt.Fprintf(out, "Resolved: %d\n", stats.Resolved)
			fmt.Fprintf(out, "Timeout:  %d\n", stats.Timeout)
			fmt.Fprintf(out, "Avg resolution: %.2f minutes\n", stats.AvgResolutionMinutes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "blown.yaml", "path to config file")
	return cmd
}
