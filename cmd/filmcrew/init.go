package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/filmcrew/internal/config"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	var global, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default crew configuration",
		Long: `Write the default agents, providers and execution settings as JSON so
they can be edited. The file goes to .filmcrew/config.json, to
~/.filmcrew/config.json with --global, or to the --config path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				globalPath, projectPath, err := config.DefaultPaths()
				if err != nil {
					return err
				}
				path = projectPath
				if global {
					path = globalPath
				}
			}

			cfg, err := config.Init(path, force)
			if err != nil {
				return fmt.Errorf("init config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d agents and %d providers to %s\n", len(cfg.Agents), len(cfg.Providers), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write the per-user config instead of the project one")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
