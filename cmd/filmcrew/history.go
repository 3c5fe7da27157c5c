package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/filmcrew/internal/persistence"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "history [task-id]",
		Short: "Show recorded tasks, or one task with its output",
		Example: `  filmcrew history
  filmcrew history 3f2a...
  filmcrew history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dbPath := cfg.Storage.Path
			if opts.dbPath != "" {
				dbPath = opts.dbPath
			}
			if dbPath == "" {
				return errors.New("no audit database configured (set storage.path or --db)")
			}

			store, err := persistence.NewSQLiteStore(cmd.Context(), dbPath)
			if err != nil {
				return fmt.Errorf("open audit store: %w", err)
			}
			defer store.Close()

			if prune > 0 {
				cutoff := time.Now().Add(-prune)
				n, err := store.PruneBefore(cmd.Context(), cutoff)
				if err != nil {
					return fmt.Errorf("prune history: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d task(s) finished before %s\n", n, cutoff.Format(time.RFC3339))
				return nil
			}
			if len(args) == 1 {
				return showTask(cmd, store, args[0])
			}
			return listTasks(cmd, store)
		},
	}

	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete tasks that finished longer ago than this instead of listing")
	return cmd
}

func listTasks(cmd *cobra.Command, store persistence.Store) error {
	tasks, err := store.ListTasks(cmd.Context())
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded tasks.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tAGENT\tACTION\tNAME")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.Status, task.AgentID, task.Action, task.Name)
	}
	return tw.Flush()
}

func showTask(cmd *cobra.Command, store persistence.Store, id string) error {
	task, err := store.GetTask(cmd.Context(), id)
	if err != nil {
		return err
	}
	lines, err := store.GetOutput(cmd.Context(), id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s  %s\n", task.ID, task.Name)
	fmt.Fprintf(w, "agent:    %s (%s)\n", task.AgentID, task.Action)
	fmt.Fprintf(w, "status:   %s\n", task.Status)
	fmt.Fprintf(w, "priority: %d\n", task.Priority)
	if len(task.Dependencies) > 0 {
		fmt.Fprintf(w, "after:    %v\n", task.Dependencies)
	}
	if d := task.Duration(); d > 0 {
		fmt.Fprintf(w, "took:     %v\n", d)
	}
	if task.Error != nil {
		fmt.Fprintf(w, "error:    %v\n", task.Error)
	}
	if s := resultText(task.Result); s != "" {
		fmt.Fprintf(w, "\n%s\n", s)
	}
	if len(lines) > 0 {
		fmt.Fprintln(w, "\noutput:")
		for _, line := range lines {
			fmt.Fprintf(w, "  %s\n", line.Line)
		}
	}
	return nil
}
