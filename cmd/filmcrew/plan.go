package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/filmcrew/internal/orchestrator"
)

func newPlanCmd(opts *globalOptions) *cobra.Command {
	var (
		planOpts orchestrator.PlanOptions
		set      map[string]string
		run      bool
	)

	cmd := &cobra.Command{
		Use:   "plan <description>",
		Short: "Build a phased production plan",
		Long: fmt.Sprintf(`Expand a description into a phased production plan and print it.
With --run the plan is queued and executed.

Templates: %s`, strings.Join(orchestrator.Templates(), ", ")),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			planOpts.Context = stringContext(set)
			planOpts.Enqueue = run
			plan, err := a.orch.CreatePlan(strings.Join(args, " "), planOpts)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)

			if !run {
				return nil
			}
			return runQueue(cmd, a)
		},
	}

	cmd.Flags().StringVar(&planOpts.Template, "template", orchestrator.TemplateFilm, "Plan template")
	cmd.Flags().StringVar(&planOpts.Title, "title", "", "Plan title (derived from the description when empty)")
	cmd.Flags().BoolVar(&planOpts.SequentialPhases, "sequential", false, "Each phase waits for the previous one")
	cmd.Flags().StringToStringVar(&set, "set", nil, "Extra context passed to every task (key=value)")
	cmd.Flags().BoolVar(&run, "run", false, "Queue and execute the plan")
	return cmd
}
