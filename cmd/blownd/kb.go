package main

import (
	"fmt"
	"strings"

	"github.com/shubh-37/blown-salon-voice-agent/internal/db"
	"github.com/shubh-37/blown-salon-voice-agent/internal/knowledge"
	"github.com/spf13/cobra"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Knowledge-base utilities",
	}
	cmd.AddCommand(newKBListCmd())
	cmd.AddCommand(newKBAddCmd())
	cmd.AddCommand(newKBSearchCmd())
	return cmd
}

func newKBListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge-base entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := kbFromConfig(configPath)
			if err != nil {
				return err
			}
			entries, err := kb.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Knowledge base is empty.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s, used %d]\n  Q: %s\n  A: %s\n",
					e.ID, e.Category, e.UsageCount, e.Question, e.Answer)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "blown.yaml", "path to config file")
	return cmd
}

func newKBAddCmd() *cobra.Command {
	var (
		configPath string
		category   string
	)

	cmd := &cobra.Command{
		Use:   "add <question> <answer>",
		Short: "Add a knowledge-base entry manually",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := kbFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := kb.AddEntry(args[0], args[1], knowledge.AddOpts{Category: category})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added entry %s\n", entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "blown.yaml", "path to config file")
	cmd.Flags().StringVar(&category, "category", "", "entry category (default general)")
	return cmd
}

func newKBSearchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "search <question...>",
		Short: "Match a question against the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := kbFromConfig(configPath)
			if err != nil {
				return err
			}
			entry, err := kb.Match(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if entry == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No match.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Q: %s\nA: %s\n", entry.Question, entry.Answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "blown.yaml", "path to config file")
	return cmd
}

func kbFromConfig(configPath string) (*knowledge.Service, error) {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return knowledge.NewService(gormDB), nil
}
