package main

import (
	"github.com/spf13/cobra"
)

// globalOptions holds the flags shared by every command.
type globalOptions struct {
	configPath  string
	dbPath      string
	metricsAddr string
	concurrency int
	dryRun      bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "filmcrew",
		Short: "Task orchestration for a crew of film production agents",
		Long: `filmcrew turns requests into dependency-ordered tasks for a crew of
agents (screenwriter, designers, image and video producers) and runs them
through external CLI providers.

Requests are decomposed into tasks, queued by priority and dependencies,
and executed with retries and per-agent circuit breakers. Every task state
change can be recorded to SQLite and exported as Prometheus metrics.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file to use instead of ~/.filmcrew/config.json and .filmcrew/config.json")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite audit database (overrides storage.path)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "Tasks to run at once (overrides execution.concurrency)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Complete tasks without calling any provider")

	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newPlanCmd(opts))
	rootCmd.AddCommand(newTeamCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newTUICmd(opts))

	return rootCmd
}
