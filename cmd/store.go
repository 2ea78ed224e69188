package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errStoreOperationFailed = errors.New("session data operation failed")

func newStoreCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Read and write per-session durable data",
	}

	cmd.AddCommand(
		newStoreSetCmd(app),
		newStoreGetCmd(app),
		newStoreDeleteCmd(app),
		newStoreClearCmd(app),
		newStoreSessionsCmd(app),
		newStoreRetrieveCmd(app),
		newStoreAssertCmd(app),
	)

	return cmd
}

func newStoreSetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <namespace> <key> <json-value>",
		Short: "Store a value in the active session",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
				// Treat non-JSON input as a plain string value.
				value = args[2]
			}
			if !app.data.Store(cmd.Context(), args[0], args[1], value) {
				return fmt.Errorf("store %s:%s: %w", args[0], args[1], errStoreOperationFailed)
			}
			return nil
		},
	}
}

func newStoreGetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "Read a value from the active session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, ok := app.data.Get(cmd.Context(), args[0], args[1])
			if !ok {
				return fmt.Errorf("%s:%s not found in active session", args[0], args[1])
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
}

func newStoreDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <namespace> <key>",
		Short: "Remove a key from the active session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.data.Delete(cmd.Context(), args[0], args[1]) {
				return fmt.Errorf("delete %s:%s: %w", args[0], args[1], errStoreOperationFailed)
			}
			return nil
		},
	}
}

func newStoreClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all data of the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.data.Clear(cmd.Context()) {
				return errStoreOperationFailed
			}
			return nil
		},
	}
}

func newStoreSessionsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions that have a data file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, id := range app.data.ListSessions(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newStoreRetrieveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retrieve <namespace> <key>",
		Short: "Look a key up in the active session, then in all prior sessions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, sessionID, ok := app.data.RetrieveAcrossSessions(cmd.Context(), args[0], args[1])
			if !ok {
				return fmt.Errorf("%s:%s not found in any session", args[0], args[1])
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sessionID, string(raw))
			return err
		},
	}
}

func newStoreAssertCmd(app *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "assert <name> <true|false>",
		Short: "Append a pass/fail assertion record to the active session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			condition := args[1] == "true"
			app.data.Assert(cmd.Context(), args[0], condition, message)
			if !condition {
				return fmt.Errorf("assertion %q failed", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "Assertion detail message")
	return cmd
}
