package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/continuity/internal/application"
	"github.com/spf13/cobra"
)

func newAssembleCmd(app *app) *cobra.Command {
	var (
		strategy  string
		format    string
		maxItems  int
		threshold float64
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "assemble <query>",
		Short: "Assemble and render a context bundle for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, bundle, err := app.assembler.RenderContext(cmd.Context(), strategy, args[0], application.AssembleOptions{
				MaxItems:           maxItems,
				RelevanceThreshold: threshold,
				DisableCache:       noCache,
			}, application.RenderFormat(format))
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)
			if !bundle.Success {
				return fmt.Errorf("no context available for %q", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", application.StrategyStandard,
		fmt.Sprintf("Assembly strategy (%s)", strings.Join(application.StrategyNames(), ", ")))
	cmd.Flags().StringVar(&format, "format", string(application.FormatMarkdown), "Output format: markdown, text, json")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Cap the number of items in the bundle (0 = unlimited)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum provider relevance")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the bundle cache")
	return cmd
}
