package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Track session lifecycle and token boundaries",
	}

	cmd.AddCommand(
		newSessionIDCmd(app),
		newSessionBoundaryCmd(app),
		newSessionInfoCmd(app),
		newSessionListCmd(app),
		newSessionCompleteCmd(app),
	)

	return cmd
}

func newSessionIDCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print the active session id, rolling over on timeout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.tracker.CurrentSessionID(cmd.Context()))
			return err
		},
	}
}

func newSessionBoundaryCmd(app *app) *cobra.Command {
	var boundaryType string
	var fields []string

	cmd := &cobra.Command{
		Use:   "boundary",
		Short: "Record a token boundary on the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := map[string]any{"type": boundaryType}
			for _, field := range fields {
				key, value, ok := strings.Cut(field, "=")
				if !ok {
					return fmt.Errorf("invalid --data field %q, want key=value", field)
				}
				data[key] = value
			}

			markerID, ok := app.data.CreateSessionBoundary(cmd.Context(), data)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (partially recorded)\n", markerID)
				return nil
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), markerID)
			return err
		},
	}

	cmd.Flags().StringVar(&boundaryType, "type", "manual", "Boundary type tag")
	cmd.Flags().StringArrayVar(&fields, "data", nil, "Boundary metadata as key=value (repeatable)")
	return cmd
}

func newSessionInfoCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info [session-id]",
		Short: "Show boundary proximity and continuity score",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}

			info, err := app.tracker.BoundaryInfo(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "session:    %s\n", info.SessionID)
			fmt.Fprintf(cmd.OutOrStdout(), "boundaries: %d\n", info.BoundaryCount)
			fmt.Fprintf(cmd.OutOrStdout(), "elapsed:    %s\n", info.Elapsed.Round(time.Second))
			fmt.Fprintf(cmd.OutOrStdout(), "proximity:  %s\n", info.Proximity)
			fmt.Fprintf(cmd.OutOrStdout(), "continuity: %.2f\n", info.ContinuityScore)
			return nil
		},
	}
}

func newSessionListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all known sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, rec := range app.tracker.Sessions(cmd.Context()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d boundaries\n", rec.ID, rec.Status, len(rec.Boundaries))
			}
			return nil
		},
	}
}

func newSessionCompleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Mark the active session completed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.tracker.CompleteSession(cmd.Context())
		},
	}
}
