package cmd

import (
	"fmt"

	"github.com/bnema/continuity/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the continuity configuration file",
	}

	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the resolved defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				defaultPath, err := config.DefaultPath()
				if err != nil {
					return err
				}
				target = defaultPath
			}

			if err := config.WriteDefault(target); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), target)
			return err
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Destination path (default: ~/.continuity/config.toml)")
	return cmd
}
