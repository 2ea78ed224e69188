package cmd

import (
	"github.com/bnema/continuity/internal/logger"
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "continuity",
		Short:         "continuity: session boundaries, durable session data, and context assembly",
		Long:          "continuity tracks LLM session boundaries, persists session-scoped data across them, assembles prioritized context bundles for re-injection, and journals chunk/embedding records durably.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.Init()
		},
	}

	rootCmd.AddCommand(newVersionCmd(), newConfigCmd())

	app, err := wireApp()
	if err != nil {
		// Wiring trouble (usually a malformed config file) still leaves
		// version and config init available as the way out.
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newSessionCmd(app),
		newStoreCmd(app),
		newAssembleCmd(app),
		newJournalCmd(app),
	)

	return rootCmd
}
