package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/filmcrew/internal/orchestrator"
)

func newTeamCmd(opts *globalOptions) *cobra.Command {
	var prompt bool

	cmd := &cobra.Command{
		Use:   "team",
		Short: "Describe the configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			orch := orchestrator.New(nil, cfg.Registry(), orchestrator.Options{})

			if prompt {
				fmt.Fprintln(cmd.OutOrStdout(), orch.GetTeamPrompt())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), orch.GetTeamDescription())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&prompt, "prompt", false, "Print the routing prompt given to agents instead")
	return cmd
}
