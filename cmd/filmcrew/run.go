package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/filmcrew/internal/events"
	"github.com/aristath/filmcrew/internal/orchestrator"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var set map[string]string

	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Decompose a request into tasks and run them",
		Long: `Classify a natural-language request, turn it into one or more tasks for
the right agents, and run them until the queue drains.

Examples:
  filmcrew run "write the script for a heist short"
  filmcrew run "make a film about a lighthouse keeper" --concurrency 3
  filmcrew run "design the villain" --set tone=noir`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			message := strings.Join(args, " ")
			tasks, err := a.orch.SubmitRequest(message, stringContext(set))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s request: %d task(s) queued\n", orchestrator.ClassifyRequest(message), len(tasks))

			return runQueue(cmd, a)
		},
	}

	cmd.Flags().StringToStringVar(&set, "set", nil, "Extra context passed to every task (key=value)")
	return cmd
}

// runQueue drains the queue with progress on stderr and a report on stdout.
// Any failed task makes the command fail.
func runQueue(cmd *cobra.Command, a *app) error {
	a.watch(256, func(ch <-chan events.Event) {
		printProgress(cmd.ErrOrStderr(), ch)
	})

	report, err := a.execute(cmd.Context())
	printReport(cmd.OutOrStdout(), report)
	printBlocked(cmd.OutOrStdout(), a.queue)
	if err != nil {
		return fmt.Errorf("execution interrupted: %w", err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d task(s) failed", len(failed))
	}
	return nil
}

func stringContext(set map[string]string) map[string]any {
	if len(set) == 0 {
		return nil
	}
	ctx := make(map[string]any, len(set))
	for k, v := range set {
		ctx[k] = v
	}
	return ctx
}
